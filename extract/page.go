// Package extract holds the heuristic extraction strategies that turn one
// rendered DOM snapshot into brand assets, discovered links and product
// candidates.
//
// Every strategy is a pure function of its Page: it never performs I/O,
// never mutates the document, and reports "not found" through an empty
// result rather than an error.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/brandkit/models"
)

// Page is a parsed DOM snapshot plus the context needed to interpret it.
type Page struct {
	Doc    *goquery.Document
	Base   *url.URL
	HTML   string
	Styles *models.StyleSnapshot
}

// NewPage parses rawHTML rendered at pageURL. styles may be nil when the
// page was not loaded in a browser.
func NewPage(rawHTML, pageURL string, styles *models.StyleSnapshot) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeParse, "invalid page url", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeParse, "failed to parse page html", err)
	}
	return &Page{Doc: doc, Base: base, HTML: rawHTML, Styles: styles}, nil
}

// Resolve turns ref into an absolute http(s) URL, or "" when it cannot.
func (p *Page) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "javascript:") {
		return ""
	}
	u, err := p.Base.Parse(ref)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// SameSite reports whether rawURL points at the page's host, ignoring "www.".
func (p *Page) SameSite(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return bareHost(u.Hostname()) == bareHost(p.Base.Hostname())
}

// Meta returns the content of the first meta tag whose property or name
// equals one of keys, in key order.
func (p *Page) Meta(keys ...string) string {
	for _, k := range keys {
		sel := p.Doc.Find(`meta[property="` + k + `"], meta[name="` + k + `"], meta[itemprop="` + k + `"]`).First()
		if v, ok := sel.Attr("content"); ok {
			if v = cleanText(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func bareHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}

var spaceRun = regexp.MustCompile(`\s+`)

// cleanText unescapes entities and collapses whitespace.
func cleanText(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(html.UnescapeString(s), " "))
}

// selectorList is a ranked list of pre-compiled CSS selectors.
type selectorList []cascadia.Selector

func compileAll(selectors ...string) selectorList {
	out := make(selectorList, len(selectors))
	for i, s := range selectors {
		out[i] = cascadia.MustCompile(s)
	}
	return out
}

// each calls fn for every match of every selector in rank order. rank is
// the index of the selector that matched.
func (l selectorList) each(root *goquery.Selection, fn func(rank int, s *goquery.Selection)) {
	for i, m := range l {
		root.FindMatcher(m).Each(func(_ int, s *goquery.Selection) {
			fn(i, s)
		})
	}
}

// first returns the first non-empty text found by the ranked selectors.
func (l selectorList) firstText(root *goquery.Selection, maxLen int) string {
	for _, m := range l {
		found := ""
		root.FindMatcher(m).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			t := cleanText(s.Text())
			if t == "" {
				if v, ok := s.Attr("content"); ok {
					t = cleanText(v)
				}
			}
			if t != "" && (maxLen <= 0 || len(t) <= maxLen) {
				found = t
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// attrSignals concatenates the lower-cased class, id and selected
// attributes of s for keyword matching.
func attrSignals(s *goquery.Selection, attrs ...string) string {
	var b strings.Builder
	for _, a := range append([]string{"class", "id"}, attrs...) {
		if v, ok := s.Attr(a); ok {
			b.WriteString(strings.ToLower(v))
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// ancestorMatches reports whether any of the first depth ancestors of s has
// class/id signals matching re.
func ancestorMatches(s *goquery.Selection, re *regexp.Regexp, depth int) bool {
	cur := s.Parent()
	for i := 0; i < depth && cur.Length() > 0; i++ {
		if re.MatchString(attrSignals(cur)) {
			return true
		}
		cur = cur.Parent()
	}
	return false
}

// within reports whether s sits inside an element matched by m.
func within(s *goquery.Selection, m cascadia.Selector) bool {
	return s.ParentsMatcher(m).Length() > 0
}

// imageSource returns the best absolute URL for an <img>-like element,
// looking at lazy-loading attributes and srcset before src.
func (p *Page) imageSource(s *goquery.Selection) string {
	for _, a := range []string{"data-src", "data-original", "data-lazy-src", "src"} {
		if v, ok := s.Attr(a); ok {
			if u := p.Resolve(v); u != "" {
				return u
			}
		}
	}
	for _, a := range []string{"data-srcset", "srcset"} {
		if v, ok := s.Attr(a); ok {
			if u := p.Resolve(largestSrcset(v)); u != "" {
				return u
			}
		}
	}
	return ""
}

// largestSrcset returns the last (typically widest) URL of a srcset value.
func largestSrcset(v string) string {
	parts := strings.Split(v, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		fields := strings.Fields(parts[i])
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}
