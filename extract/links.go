package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/brandkit/models"
)

// pathRule classifies a URL path by keyword; earlier rules are more specific.
type pathRule struct {
	re    *regexp.Regexp
	typ   models.LinkType
	score int
}

var pathRules = []pathRule{
	{regexp.MustCompile(`/collections/[^/]+/products/[^/]+`), models.LinkProduct, 55},
	{regexp.MustCompile(`/products/[^/]+`), models.LinkProduct, 50},
	{regexp.MustCompile(`/product/[^/]+`), models.LinkProduct, 45},
	{regexp.MustCompile(`/(p|dp|item|items)/[^/]+`), models.LinkProduct, 35},
	{regexp.MustCompile(`/shop/[^/]+/[^/]+`), models.LinkProduct, 25},
	{regexp.MustCompile(`[\w-]+-p\d+|\.html$`), models.LinkProduct, 15},
	{regexp.MustCompile(`/collections/[^/]+`), models.LinkCollection, 50},
	{regexp.MustCompile(`/(category|categories)/[^/]+`), models.LinkCollection, 40},
	{regexp.MustCompile(`/(shop|store|catalog)/?$`), models.LinkCollection, 30},
	{regexp.MustCompile(`/(c|department|departments)/[^/]+`), models.LinkCollection, 25},
}

// skipPaths are links that never lead to merchandise.
var skipPaths = regexp.MustCompile(`(?i)/(cart|checkout|account|login|register|search|blogs?|pages|policies|policy|contact|faq|help|wishlist|collections/all/?$|collections/?$)`)

// Structured-data links outrank anything found in anchors.
const (
	scoreStructuredProduct  = 100
	scoreStructuredItemList = 90
)

// Links is the result of link discovery on one page.
type Links struct {
	Products   []models.URLCandidate
	Collection *models.URLCandidate
}

// DiscoverLinks returns the top maxProducts product URLs and the best
// collection URL found on p.
func DiscoverLinks(p *Page, maxProducts int) Links {
	var out Links
	for _, c := range LinkCandidates(p) {
		switch c.Type {
		case models.LinkProduct:
			if len(out.Products) < maxProducts {
				out.Products = append(out.Products, c)
			}
		case models.LinkCollection:
			if out.Collection == nil {
				cc := c
				out.Collection = &cc
			}
		}
	}
	return out
}

// LinkCandidates returns every same-site product or collection URL on p,
// deduplicated and sorted by descending score with encounter order kept on
// ties.
func LinkCandidates(p *Page) []models.URLCandidate {
	var cands []Candidate[models.URLCandidate]
	index := make(map[string]int)

	add := func(raw string, typ models.LinkType, score int) {
		u := p.Resolve(raw)
		if u == "" || !p.SameSite(u) || u == p.Base.String() {
			return
		}
		key := linkKey(u)
		if i, ok := index[key]; ok {
			if score > cands[i].Score {
				cands[i].Score = score
				cands[i].Value.Score = score
			}
			return
		}
		index[key] = len(cands)
		cands = append(cands, Candidate[models.URLCandidate]{
			Value: models.URLCandidate{URL: u, Score: score, Type: typ},
			Score: score,
		})
	}

	for _, block := range jsonLDBlocks(p) {
		walkJSONLD(block, func(node map[string]any) {
			switch {
			case hasType(node, "Product", "ProductGroup"):
				if u := jsonString(node["url"]); u != "" {
					add(u, models.LinkProduct, scoreStructuredProduct)
				}
			case hasType(node, "ListItem"):
				item := jsonString(node["url"])
				if item == "" {
					item = jsonString(node["item"])
				}
				if item == "" {
					return
				}
				typ := models.LinkProduct
				if t, _, ok := ClassifyPath(p.Resolve(item)); ok {
					typ = t
				}
				add(item, typ, scoreStructuredItemList)
			}
		})
	}

	p.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		typ, score, ok := ClassifyPath(p.Resolve(href))
		if !ok {
			return
		}
		add(href, typ, score+textBonus(cleanText(s.Text())))
	})

	ranked := Rank(cands)
	out := make([]models.URLCandidate, len(ranked))
	for i, c := range ranked {
		out[i] = c.Value
	}
	return out
}

// ClassifyPath maps an absolute URL to a link type and base score using the
// path keyword rules.
func ClassifyPath(rawURL string) (models.LinkType, int, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || rawURL == "" {
		return "", 0, false
	}
	path := strings.ToLower(u.Path)
	if skipPaths.MatchString(path) {
		return "", 0, false
	}
	for _, r := range pathRules {
		if r.re.MatchString(path) {
			return r.typ, r.score, true
		}
	}
	return "", 0, false
}

// textBonus favors anchors with descriptive, product-name-like text.
func textBonus(text string) int {
	n := len([]rune(text))
	switch {
	case n >= 10 && n <= 80:
		return 10
	case n >= 3 && n < 10:
		return 5
	default:
		return 0
	}
}

func linkKey(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	parsed.RawQuery = ""
	parsed.Host = bareHost(parsed.Host)
	return strings.TrimSuffix(parsed.String(), "/")
}
