package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/brandkit/models"
)

// DefaultFontStack is used when no brand font was detected.
const DefaultFontStack = "Helvetica, Arial, sans-serif"

var systemFonts = map[string]bool{
	"-apple-system": true, "blinkmacsystemfont": true, "system-ui": true, "ui-sans-serif": true,
	"ui-serif": true, "ui-monospace": true, "segoe ui": true, "helvetica": true,
	"helvetica neue": true, "arial": true, "sans-serif": true, "serif": true, "monospace": true,
	"cursive": true, "fantasy": true, "times": true, "times new roman": true, "georgia": true,
	"verdana": true, "tahoma": true, "courier": true, "courier new": true, "apple color emoji": true,
	"segoe ui emoji": true, "segoe ui symbol": true, "noto color emoji": true, "inherit": true,
	"initial": true, "emoji": true, "math": true,
}

// Fonts reads the computed heading and body font-family values and keeps
// the first non-system family of each. Google Fonts stylesheet links fill
// whatever the computed styles did not reveal.
func Fonts(p *Page) models.Fonts {
	var body, heading string
	if p.Styles != nil {
		body = BrandFont(p.Styles.BodyFont)
		heading = BrandFont(p.Styles.HeadingFont)
	}

	if body == "" || heading == "" {
		linked := googleFontFamilies(p)
		if len(linked) > 0 {
			if heading == "" {
				heading = linked[0]
			}
			if body == "" {
				body = linked[len(linked)-1]
			}
		}
	}

	if body == "" {
		body = DefaultFontStack
	}
	if heading == "" {
		heading = body
	}
	return models.Fonts{Heading: heading, Body: body}
}

// BrandFont returns the first family in a CSS font-family stack that is not
// a generic or system font, with quoting removed. It returns "" when the
// stack holds only system fonts.
func BrandFont(stack string) string {
	for _, f := range strings.Split(stack, ",") {
		f = strings.TrimSpace(strings.Trim(strings.TrimSpace(f), `"'`))
		if f == "" || strings.HasPrefix(f, "var(") {
			continue
		}
		if systemFonts[strings.ToLower(f)] {
			continue
		}
		return f
	}
	return ""
}

// googleFontFamilies lists families requested through fonts.googleapis.com
// stylesheet links, in document order.
func googleFontFamilies(p *Page) []string {
	var out []string
	seen := make(map[string]bool)
	p.Doc.Find(`link[href*="fonts.googleapis.com"]`).Each(func(_ int, s *goquery.Selection) {
		u, err := url.Parse(p.Resolve(s.AttrOr("href", "")))
		if err != nil {
			return
		}
		for _, fam := range u.Query()["family"] {
			// css2 uses one family per parameter, css v1 joins them with "|".
			for _, part := range strings.Split(fam, "|") {
				name := strings.TrimSpace(strings.SplitN(part, ":", 2)[0])
				if name != "" && !seen[name] {
					seen[name] = true
					out = append(out, name)
				}
			}
		}
	})
	return out
}
