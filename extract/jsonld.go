package extract

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// skipKeys are not descended into when walking structured data, so variant
// and related products are not reported as standalone items.
var skipKeys = map[string]struct{}{
	"hasVariant": {}, "isVariantOf": {}, "isRelatedTo": {}, "isSimilarTo": {},
	"review": {}, "isAccessoryOrSparePartFor": {}, "breadcrumb": {},
}

// jsonLDBlocks decodes every application/ld+json script on the page.
// Blocks that fail to decode are skipped.
func jsonLDBlocks(p *Page) []any {
	var blocks []any
	p.Doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			// Some sites concatenate objects or leave trailing commas;
			// retry once wrapped as an array.
			if err := json.Unmarshal([]byte("["+strings.TrimSuffix(raw, ",")+"]"), &v); err != nil {
				return
			}
		}
		blocks = append(blocks, v)
	})
	return blocks
}

// walkJSONLD visits every object in v depth-first in document order.
func walkJSONLD(v any, fn func(node map[string]any)) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			walkJSONLD(item, fn)
		}
	case map[string]any:
		fn(t)
		if hasType(t, "BreadcrumbList") {
			return
		}
		for _, k := range sortedKeys(t) {
			if _, skip := skipKeys[k]; skip {
				continue
			}
			walkJSONLD(t[k], fn)
		}
	}
}

// sortedKeys orders keys so @graph and itemListElement are visited in a
// stable order; Go map iteration order is random.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// hasType reports whether node's @type equals one of types.
func hasType(node map[string]any, types ...string) bool {
	check := func(s string) bool {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "http://schema.org/"), "https://schema.org/")
		for _, t := range types {
			if strings.EqualFold(s, t) {
				return true
			}
		}
		return false
	}
	switch t := node["@type"].(type) {
	case string:
		return check(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && check(s) {
				return true
			}
		}
	}
	return false
}

// jsonString flattens a structured-data value into a string: strings and
// numbers as-is, objects through @value/url/name, arrays through their
// first usable element.
func jsonString(v any) string {
	switch t := v.(type) {
	case string:
		return cleanText(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case map[string]any:
		for _, k := range []string{"@value", "url", "contentUrl", "@id", "name"} {
			if s := jsonString(t[k]); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range t {
			if s := jsonString(item); s != "" {
				return s
			}
		}
	}
	return ""
}

// structuredOrganizationName returns the name of the first Organization-like
// node, falling back to a WebSite node.
func structuredOrganizationName(p *Page) string {
	var org, site string
	for _, b := range jsonLDBlocks(p) {
		walkJSONLD(b, func(node map[string]any) {
			name, _ := node["name"].(string)
			name = cleanText(name)
			if name == "" {
				return
			}
			if org == "" && hasType(node, "Organization", "Brand", "Store", "OnlineStore", "Corporation", "ClothingStore") {
				org = name
			}
			if site == "" && hasType(node, "WebSite") {
				site = name
			}
		})
	}
	if org != "" {
		return org
	}
	return site
}

// structuredLogo returns the logo URL of the first Organization-like node.
func structuredLogo(p *Page) string {
	logo := ""
	for _, b := range jsonLDBlocks(p) {
		walkJSONLD(b, func(node map[string]any) {
			if logo != "" || !hasType(node, "Organization", "Brand", "Store", "OnlineStore", "Corporation") {
				return
			}
			logo = p.Resolve(jsonString(node["logo"]))
		})
	}
	return logo
}
