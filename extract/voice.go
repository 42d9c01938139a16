package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/brandkit/models"
)

const (
	maxHeadlines  = 5
	maxCTAs       = 5
	maxVoiceHints = 10

	maxHeadlineLen = 120
	maxCTALen      = 40
	maxTaglineLen  = 200
	minTaglineLen  = 12
)

var (
	headlineSelectors = compileAll(
		`[class*="hero"] h1, [class*="hero"] h2, [class*="banner"] h1, [class*="banner"] h2, [class*="slideshow"] h1, [class*="slideshow"] h2`,
		`h1`,
		`h2`,
	)
	ctaSelectors = compileAll(
		`[class*="hero"] a[class*="btn"], [class*="hero"] a[class*="button"], [class*="banner"] a[class*="btn"], [class*="banner"] a[class*="button"]`,
		`a[class*="btn"], a[class*="button"], a[class*="cta"], button[class*="cta"]`,
		`button`,
	)
	taglineSelectors = compileAll(
		`[class*="tagline"], [class*="slogan"], [id*="tagline"]`,
		`[class*="hero"] p, [class*="banner"] p, [class*="hero"] [class*="subtitle"], [class*="subheading"]`,
	)

	// Utility button labels that say nothing about the brand.
	ctaJunk = regexp.MustCompile(`(?i)^(menu|close|search|cart|bag|log ?in|sign ?in|account|submit|ok|accept( all)?( cookies)?|reject( all)?|next|prev(ious)?|skip.*|toggle.*|open.*|×|x|\+|-|\d+)$`)
)

// Snippets collects hero-biased headlines, call-to-action labels and a
// tagline from p.
func Snippets(p *Page) models.Snippets {
	return models.Snippets{
		Tagline:   Tagline(p),
		Headlines: collectTexts(p, headlineSelectors, maxHeadlines, maxHeadlineLen, nil),
		CTAs:      collectTexts(p, ctaSelectors, maxCTAs, maxCTALen, ctaJunk),
	}
}

// VoiceHints merges tagline, headlines and CTAs into one deduplicated list
// of at most 10 entries.
func VoiceHints(s models.Snippets) []string {
	var all []string
	if s.Tagline != "" {
		all = append(all, s.Tagline)
	}
	all = append(all, s.Headlines...)
	all = append(all, s.CTAs...)
	return dedupeTexts(all, maxVoiceHints)
}

// Tagline prefers dedicated tagline markup, then the meta description, then
// the readability excerpt of the page.
func Tagline(p *Page) string {
	if t := taglineSelectors.firstText(p.Doc.Selection, maxTaglineLen); utf8.RuneCountInString(t) >= minTaglineLen {
		return t
	}
	if d := p.Meta("description", "og:description"); d != "" {
		return truncateRunes(d, maxTaglineLen)
	}
	if p.HTML == "" {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(p.HTML), p.Base)
	if err != nil {
		return ""
	}
	if ex := cleanText(article.Excerpt); utf8.RuneCountInString(ex) >= minTaglineLen {
		return truncateRunes(ex, maxTaglineLen)
	}
	return ""
}

// collectTexts gathers up to limit distinct short texts in selector rank
// order, skipping any that match junk.
func collectTexts(p *Page, sels selectorList, limit, maxLen int, junk *regexp.Regexp) []string {
	var out []string
	seen := make(map[string]bool)
	sels.each(p.Doc.Selection, func(_ int, s *goquery.Selection) {
		if len(out) >= limit {
			return
		}
		t := cleanText(s.Text())
		if t == "" {
			t = cleanText(s.AttrOr("aria-label", ""))
		}
		if t == "" || utf8.RuneCountInString(t) > maxLen {
			return
		}
		if junk != nil && junk.MatchString(t) {
			return
		}
		key := strings.ToLower(t)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, t)
	})
	return out
}

func dedupeTexts(in []string, limit int) []string {
	out := make([]string, 0, min(len(in), limit))
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
