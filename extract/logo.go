package extract

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

var (
	logoKeyword  = regexp.MustCompile(`logo|brand`)
	logoPenalty  = regexp.MustCompile(`sprite|payment|badge|partner|award|sponsor|social|icon-`)
	headerRegion = cascadia.MustCompile(`header, nav, [role="banner"], [class*="header"], [id*="header"], [class*="navbar"]`)
	footerRegion = cascadia.MustCompile(`footer, [class*="footer"], [id*="footer"]`)
	logoElements = compileAll(`img`, `svg`)
	faviconLinks = compileAll(`link[rel~="apple-touch-icon"]`, `link[rel~="icon"]`, `link[rel="shortcut icon"]`, `link[rel~="mask-icon"]`)
)

// Logo returns the absolute URL of the most plausible brand logo, falling
// back to favicon link tags. It returns "" when nothing was found.
func Logo(p *Page, brandName string) string {
	var cands []Candidate[string]

	if u := structuredLogo(p); u != "" {
		cands = append(cands, Candidate[string]{Value: u, Score: 60})
	}

	brand := strings.ToLower(strings.TrimSpace(brandName))
	logoElements.each(p.Doc.Selection, func(rank int, s *goquery.Selection) {
		var u string
		if rank == 0 {
			u = p.imageSource(s)
		} else {
			u = inlineSVGDataURL(s)
		}
		if u == "" {
			return
		}
		cands = append(cands, Candidate[string]{Value: u, Score: ScoreLogo(s, brand)})
	})

	if best, ok := BestPositive(cands); ok {
		return best.Value
	}

	for _, m := range faviconLinks {
		if href, ok := p.Doc.FindMatcher(m).First().Attr("href"); ok {
			if u := p.Resolve(href); u != "" {
				return u
			}
		}
	}
	return ""
}

// ScoreLogo rates an <img> or <svg> element as a logo. brand is the
// lower-cased brand name, possibly empty.
func ScoreLogo(s *goquery.Selection, brand string) int {
	score := 0
	signals := attrSignals(s, "src", "alt", "aria-label", "title")

	if logoKeyword.MatchString(attrSignals(s)) {
		score += 50
	} else if strings.Contains(signals, "logo") {
		score += 35
	}
	if ancestorMatches(s, logoKeyword, 3) {
		score += 30
	}

	if brand != "" {
		alt := strings.ToLower(strings.TrimSpace(s.AttrOr("alt", s.AttrOr("aria-label", ""))))
		if alt != "" && (strings.Contains(alt, brand) || strings.Contains(brand, alt)) {
			score += 25
		}
	}

	if within(s, headerRegion) {
		score += 20
	}
	if a := s.Closest("a"); a.Length() > 0 {
		if isHomeLink(a.AttrOr("href", "")) {
			score += 15
		}
	}

	if within(s, footerRegion) {
		score -= 15
	}
	if logoPenalty.MatchString(signals) {
		score -= 20
	}
	if w := dimension(s, "width"); w > 0 && w < 16 {
		score -= 20
	}
	// A bare <svg> only counts when it is explicitly marked as a logo.
	if goquery.NodeName(s) == "svg" && !strings.Contains(signals, "logo") && !ancestorMatches(s, logoKeyword, 2) {
		score -= 100
	}
	return score
}

// inlineSVGDataURL serializes an inline <svg> into a data URL.
func inlineSVGDataURL(s *goquery.Selection) string {
	markup, err := goquery.OuterHtml(s)
	if err != nil || markup == "" || len(markup) > 64<<10 {
		return ""
	}
	if !strings.Contains(markup, "xmlns") {
		markup = strings.Replace(markup, "<svg", `<svg xmlns="http://www.w3.org/2000/svg"`, 1)
	}
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(markup))
}

func isHomeLink(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return (u.Path == "" || u.Path == "/" || u.Path == "./") && u.RawQuery == "" && (u.Host != "" || u.Path != "")
}
