package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/brandkit/models"
)

var (
	heroKeyword    = regexp.MustCompile(`hero|banner|slide|slideshow|carousel|masthead|jumbotron|splash|featured`)
	productKeyword = regexp.MustCompile(`product|card|thumbnail|grid-item|collection-item`)
	iconKeyword    = regexp.MustCompile(`icon|avatar|badge|payment|flag|rating|star`)
	heroRegion     = cascadia.MustCompile(`header, [class*="hero"], [id*="hero"], [class*="banner"], [class*="slideshow"], [class*="masthead"]`)
	heroImages     = cascadia.MustCompile(`img`)
)

// Hero returns the main banner image of p, preferring in-page images over
// the og:image fallback. It returns nil when nothing plausible was found.
func Hero(p *Page) *models.HeroImage {
	var cands []Candidate[models.HeroImage]

	p.Doc.FindMatcher(heroImages).Each(func(_ int, s *goquery.Selection) {
		u := p.imageSource(s)
		if u == "" {
			return
		}
		cands = append(cands, Candidate[models.HeroImage]{
			Value: models.HeroImage{URL: u, AltText: cleanText(s.AttrOr("alt", ""))},
			Score: ScoreHero(s),
		})
	})

	if og := p.Resolve(p.Meta("og:image", "twitter:image")); og != "" {
		cands = append(cands, Candidate[models.HeroImage]{
			Value: models.HeroImage{URL: og, AltText: p.Meta("og:image:alt", "twitter:image:alt")},
			Score: 25,
		})
	}

	best, ok := BestPositive(cands)
	if !ok {
		return nil
	}
	hero := best.Value
	return &hero
}

// ScoreHero rates an <img> element as the page's hero image.
func ScoreHero(s *goquery.Selection) int {
	score := 0
	signals := attrSignals(s, "src", "alt")

	if heroKeyword.MatchString(signals) || ancestorMatches(s, heroKeyword, 4) {
		score += 30
	}

	w, h := dimension(s, "width"), dimension(s, "height")
	if w > 0 && h > 0 && float64(w)/float64(h) > 1.5 {
		score += 20
	}
	if w >= 800 {
		score += 15
	}
	if within(s, heroRegion) {
		score += 10
	}

	if strings.Contains(signals, "logo") || ancestorMatches(s, logoKeyword, 2) {
		score -= 50
	}
	if productKeyword.MatchString(signals) || ancestorMatches(s, productKeyword, 3) {
		score -= 25
	}
	if iconKeyword.MatchString(signals) || (w > 0 && w < 100) {
		score -= 30
	}
	return score
}

// dimension reads a numeric width/height attribute such as "1200" or "1200px".
func dimension(s *goquery.Selection, attr string) int {
	v := strings.TrimSuffix(strings.TrimSpace(s.AttrOr(attr, "")), "px")
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
