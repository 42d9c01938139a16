package extract

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/brandkit/models"
)

// Default palette used when nothing usable was extracted.
const (
	DefaultPrimary    = "#000000"
	DefaultBackground = "#ffffff"
	DefaultText       = "#111111"
)

// Channel thresholds for the near-white and near-black filter.
const (
	nearWhite = 240
	nearBlack = 40
)

var (
	hexColor   = regexp.MustCompile(`^#([0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	rgbColor   = regexp.MustCompile(`^rgba?\(\s*([\d.]+%?)[\s,]+([\d.]+%?)[\s,]+([\d.]+%?)(?:[\s,/]+([\d.]+%?))?\s*\)$`)
	cssVarDecl = regexp.MustCompile(`(--[\w-]+)\s*:\s*([^;}{]+)`)
	brandVar   = regexp.MustCompile(`(?i)primary|brand|accent|main|theme|button|link`)
)

var namedColors = map[string]string{
	"black": "#000000", "white": "#ffffff", "red": "#ff0000", "green": "#008000",
	"blue": "#0000ff", "navy": "#000080", "teal": "#008080", "orange": "#ffa500",
	"purple": "#800080", "gray": "#808080", "grey": "#808080", "maroon": "#800000",
	"olive": "#808000", "silver": "#c0c0c0", "yellow": "#ffff00", "pink": "#ffc0cb",
	"gold": "#ffd700", "crimson": "#dc143c", "coral": "#ff7f50", "tomato": "#ff6347",
	"indigo": "#4b0082", "darkgreen": "#006400", "darkblue": "#00008b", "royalblue": "#4169e1",
}

// NormalizeColor converts a CSS color value into lower-case "#rrggbb".
// Fully transparent colors and values it cannot interpret return "".
func NormalizeColor(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.TrimSuffix(strings.TrimSpace(strings.TrimSuffix(v, "!important")), ";")
	if v == "" || v == "transparent" || v == "inherit" || v == "initial" || v == "currentcolor" {
		return ""
	}
	if named, ok := namedColors[v]; ok {
		return named
	}
	if m := hexColor.FindStringSubmatch(v); m != nil {
		h := m[1]
		switch len(h) {
		case 3, 4:
			if len(h) == 4 && h[3] == '0' {
				return ""
			}
			return "#" + string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
		case 8:
			if h[6:] == "00" {
				return ""
			}
			return "#" + h[:6]
		}
		return "#" + h
	}
	if m := rgbColor.FindStringSubmatch(v); m != nil {
		if m[4] != "" {
			if a, ok := channel(m[4], 1); !ok || a == 0 {
				return ""
			}
		}
		var rgb [3]int
		for i := range rgb {
			c, ok := channel(m[i+1], 255)
			if !ok {
				return ""
			}
			rgb[i] = int(math.Round(c))
		}
		return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
	}
	return ""
}

// channel parses a numeric or percentage channel, clamped to [0, max].
func channel(s string, max float64) (float64, bool) {
	pct := strings.HasSuffix(s, "%")
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, false
	}
	if pct {
		f = f / 100 * max
	}
	return math.Max(0, math.Min(max, f)), true
}

// IsNeutral reports whether a normalized color is near-white (all channels
// above 240) or near-black (all channels below 40).
func IsNeutral(hex string) bool {
	if len(hex) != 7 {
		return true
	}
	var rgb [3]int64
	for i := range rgb {
		c, err := strconv.ParseInt(hex[1+2*i:3+2*i], 16, 64)
		if err != nil {
			return true
		}
		rgb[i] = c
	}
	white, black := true, true
	for _, c := range rgb {
		if c <= nearWhite {
			white = false
		}
		if c >= nearBlack {
			black = false
		}
	}
	return white || black
}

// Colors builds the palette from declared CSS variables, the theme-color
// meta tag and the computed styles captured in p.Styles.
func Colors(p *Page) models.Colors {
	cands := brandVariables(p)
	cands = append(cands, p.Meta("theme-color", "msapplication-TileColor"))

	st := p.Styles
	if st == nil {
		st = &models.StyleSnapshot{}
	}
	cands = append(cands, st.ButtonBackgrounds...)
	cands = append(cands, st.LinkColors...)
	cands = append(cands, st.HeaderBackground, st.HeroBackground)

	out := models.Colors{
		Primary:    DefaultPrimary,
		Background: firstColor(st.BodyBackground, DefaultBackground),
		Text:       firstColor(st.BodyColor, DefaultText),
	}
	for _, c := range cands {
		if hex := NormalizeColor(c); hex != "" && !IsNeutral(hex) {
			out.Primary = hex
			break
		}
	}
	return out
}

// brandVariables returns brand-looking custom property values, computed
// ones first, then those declared in inline <style> blocks. Within each
// source, "primary" names come before "brand", "accent" and the rest.
func brandVariables(p *Page) []string {
	var cands []Candidate[string]
	if p.Styles != nil {
		names := make([]string, 0, len(p.Styles.CSSVariables))
		for name := range p.Styles.CSSVariables {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if r := varRank(name); r > 0 {
				cands = append(cands, Candidate[string]{Value: p.Styles.CSSVariables[name], Score: 100 + r})
			}
		}
	}
	p.Doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		for _, m := range cssVarDecl.FindAllStringSubmatch(s.Text(), -1) {
			if r := varRank(m[1]); r > 0 {
				cands = append(cands, Candidate[string]{Value: m[2], Score: r})
			}
		}
	})
	out := make([]string, 0, len(cands))
	for _, c := range Rank(cands) {
		out = append(out, c.Value)
	}
	return out
}

func varRank(name string) int {
	name = strings.ToLower(name)
	switch {
	case !brandVar.MatchString(name):
		return 0
	case strings.Contains(name, "primary"):
		return 40
	case strings.Contains(name, "brand"):
		return 30
	case strings.Contains(name, "accent"):
		return 20
	default:
		return 10
	}
}

func firstColor(v, fallback string) string {
	if hex := NormalizeColor(v); hex != "" {
		return hex
	}
	return fallback
}
