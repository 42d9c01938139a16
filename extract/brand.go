package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleSeparators split "<Page> | <Brand>" style titles.
var titleSeparators = regexp.MustCompile(`\s+[|\-–—·:•»]+\s+|\s*\|\s*|\s*::\s*`)

// genericTitleWords are whole title segments that never name a brand.
var genericTitleWords = map[string]struct{}{
	"home": {}, "homepage": {}, "home page": {}, "shop": {}, "store": {},
	"online store": {}, "official site": {}, "official website": {},
	"official store": {}, "welcome": {}, "index": {}, "online shop": {},
}

// brandSuffix removes trailing generic words from a single segment.
var brandSuffix = regexp.MustCompile(`(?i)\s+(home|homepage|shop|store|online store|online shop|official site|official store)\s*$`)

var titleCaser = cases.Title(language.English)

// BrandName picks the brand name in priority order: site-name metadata,
// structured-data organization name, cleaned page title, title-cased host.
func BrandName(p *Page) string {
	if v := p.Meta("og:site_name", "application-name", "apple-mobile-web-app-title"); v != "" {
		return v
	}
	if v := structuredOrganizationName(p); v != "" {
		return v
	}
	if v := cleanTitle(p.Doc.Find("title").First().Text(), p.Base.Hostname()); v != "" {
		return v
	}
	return HostnameBrand(p.Base.Hostname())
}

// cleanTitle strips separators and generic suffix words from a page title.
// When several segments remain, the one resembling host wins, else the
// first.
func cleanTitle(title, host string) string {
	title = cleanText(title)
	if title == "" {
		return ""
	}

	var segments []string
	for _, seg := range titleSeparators.Split(title, -1) {
		seg = strings.Trim(seg, " |-–—·:•»")
		if seg == "" {
			continue
		}
		if _, generic := genericTitleWords[strings.ToLower(seg)]; generic {
			continue
		}
		if stripped := brandSuffix.ReplaceAllString(seg, ""); stripped != "" {
			seg = stripped
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return ""
	}

	hostKey := compact(hostLabel(host))
	for _, seg := range segments {
		if hostKey != "" && compact(seg) == hostKey {
			return seg
		}
	}
	return segments[0]
}

// HostnameBrand derives a display name from a hostname:
// "www.my-brand.co.uk" becomes "My Brand".
func HostnameBrand(host string) string {
	label := hostLabel(host)
	if label == "" {
		return host
	}
	words := strings.FieldsFunc(label, func(r rune) bool { return r == '-' || r == '_' })
	return titleCaser.String(strings.Join(words, " "))
}

// hostLabel returns the most significant label of host, skipping "www"
// and "shop"/"store" subdomains.
func hostLabel(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	labels := strings.Split(host, ".")
	for len(labels) > 2 {
		switch labels[0] {
		case "www", "shop", "store", "m":
			labels = labels[1:]
			continue
		}
		break
	}
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

func compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
