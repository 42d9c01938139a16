// Package catalog normalizes extracted product candidates into the final,
// deduplicated and size-capped product list of a brand profile.
package catalog

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/use-agent/brandkit/models"
)

// DefaultLimit is the maximum number of products in a brand profile.
const DefaultLimit = 8

// maxTitleLen is the maximum product title length in runes.
const maxTitleLen = 200

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".avif": {}, ".gif": {},
}

// placeholderMarkers flag images that stand in for a real product photo.
var placeholderMarkers = regexp.MustCompile(`(?i)(placeholder|1x1|spacer|blank\.|pixel\.|transparent\.|no[-_]?image|default[-_]?image|coming[-_]?soon|loading\.|lazy[-_]?load)`)

// imageHosts are host substrings of image CDNs that often omit extensions.
var imageHosts = []string{"cdn", "image", "img", "media", "static", "assets"}

// collectionProduct matches Shopify's collection-scoped product path; the
// same product is also served at /products/<handle>.
var collectionProduct = regexp.MustCompile(`/collections/[^/]+(/products/[^/]+)`)

// trackingParams are dropped from product URLs before keying.
var trackingParams = []string{"variant", "ref", "fbclid", "gclid", "_pos", "_sid", "_ss", "srsltid"}

// IsValidImageURL reports whether raw looks like a real, absolute product
// image: no placeholder markers, and either a known image extension, a
// /products/ path segment, or an image CDN host.
func IsValidImageURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if placeholderMarkers.MatchString(u.Path) || placeholderMarkers.MatchString(u.RawQuery) {
		return false
	}

	p := strings.ToLower(u.Path)
	if _, ok := imageExtensions[path.Ext(p)]; ok {
		return true
	}
	if strings.Contains(p, "/products/") {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range imageHosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}

// ImageScore rates an image URL for product use. Invalid images score
// below zero; known extensions and /products/ paths add points.
func ImageScore(raw string) int {
	if !IsValidImageURL(raw) {
		return -100
	}
	score := 0
	p := strings.ToLower(raw)
	if _, ok := imageExtensions[path.Ext(strings.SplitN(p, "?", 2)[0])]; ok {
		score += 10
	}
	if strings.Contains(p, "/products/") {
		score += 10
	}
	return score
}

// CanonicalURL lower-cases the host, drops the fragment, tracking query
// parameters and a trailing slash.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") {
			q.Del(k)
			continue
		}
		for _, t := range trackingParams {
			if lk == t {
				q.Del(k)
			}
		}
	}
	u.RawQuery = q.Encode()

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.Path = collectionProduct.ReplaceAllString(u.Path, "$1")
		u.RawPath = ""
	}
	return u.String()
}

// Key is the deduplication key: lower-cased title and canonical URL.
func Key(title, rawURL string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + CanonicalURL(rawURL)
}

// NewID returns a process-unique product identifier.
func NewID() string {
	return "prod_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Normalize deduplicates candidates by Key preserving first-seen order,
// drops entries without a title or URL, blanks invalid image URLs, stores
// models.PriceUnknown for missing prices and truncates to limit entries.
func Normalize(cands []models.ProductCandidate, limit int) []models.Product {
	if limit <= 0 {
		limit = DefaultLimit
	}

	out := make([]models.Product, 0, min(len(cands), limit))
	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		if len(out) >= limit {
			break
		}
		title := truncateRunes(strings.Join(strings.Fields(c.Title), " "), maxTitleLen)
		if title == "" || strings.TrimSpace(c.URL) == "" {
			continue
		}
		key := Key(title, c.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		priceStr := c.Price
		if !c.HasPrice() {
			priceStr = models.PriceUnknown
		}
		image := strings.TrimSpace(c.Image)
		if !IsValidImageURL(image) {
			image = ""
		}

		out = append(out, models.Product{
			ID:    NewID(),
			Title: title,
			Price: priceStr,
			Image: image,
			URL:   CanonicalURL(c.URL),
		})
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
