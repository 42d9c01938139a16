// Package urlguard normalizes user-supplied website URLs and rejects targets
// that would let a request reach private or loopback networks.
//
// AssertPublicHostname is the only SSRF defense in the ingestion path, so it
// must run before every navigation, including on post-redirect URLs that are
// about to be followed for further fetches.
package urlguard

import (
	"net/netip"
	"net/url"
	"regexp"
	"strings"

	"github.com/use-agent/brandkit/models"
)

// rejectedSchemes are refused before any parsing happens.
var rejectedSchemes = []string{"file:", "javascript:", "data:"}

// blockedHostnames are exact-match hostnames that always resolve locally.
var blockedHostnames = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
	"::1":       {},
}

// privatePrefixes covers private, loopback, link-local and unique-local ranges.
var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

var hasScheme = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)

// numericHost matches decimal/hex/octal IPv4 spellings such as "2130706433"
// or "0x7f.1" that browsers resolve but netip does not parse.
var numericHost = regexp.MustCompile(`^(0x[0-9a-f]+|[0-9]+)(\.(0x[0-9a-f]+|[0-9]+))*$`)

// Normalize trims raw, adds "https://" when no scheme is present, and returns
// the parsed URL with its fragment removed. Non-http(s) schemes fail with
// INVALID_URL.
func Normalize(raw string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidURL, "url is empty", nil)
	}

	lower := strings.ToLower(s)
	for _, scheme := range rejectedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return nil, models.NewScrapeError(models.ErrCodeInvalidURL, "unsupported url scheme", nil)
		}
	}

	if !hasScheme.MatchString(s) {
		s = "https://" + strings.TrimPrefix(s, "//")
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidURL, "url could not be parsed", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidURL, "only http and https urls are supported", nil)
	}
	if u.Hostname() == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidURL, "url has no host", nil)
	}

	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}

// AssertPublicHostname fails with BLOCKED_URL when host names a loopback,
// private, link-local or otherwise internal address.
func AssertPublicHostname(host string) error {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
	h = strings.TrimSuffix(h, ".")

	if h == "" {
		return models.NewScrapeError(models.ErrCodeBlockedURL, "empty hostname", nil)
	}
	if _, ok := blockedHostnames[h]; ok {
		return blocked(h)
	}
	if strings.HasSuffix(h, ".localhost") {
		return blocked(h)
	}

	// Zone identifiers ("fe80::1%eth0") are only meaningful for local links.
	if i := strings.IndexByte(h, '%'); i >= 0 {
		return blocked(h)
	}

	addr, err := netip.ParseAddr(h)
	if err != nil {
		if numericHost.MatchString(h) {
			return blocked(h)
		}
		// Not an IP literal: a public DNS name as far as this check is concerned.
		return nil
	}
	addr = addr.Unmap()
	for _, p := range privatePrefixes {
		if p.Contains(addr) {
			return blocked(h)
		}
	}
	if addr.IsLoopback() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() || addr.IsPrivate() {
		return blocked(h)
	}
	return nil
}

// Validate runs Normalize followed by AssertPublicHostname.
func Validate(raw string) (*url.URL, error) {
	u, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := AssertPublicHostname(u.Hostname()); err != nil {
		return nil, err
	}
	return u, nil
}

func blocked(host string) error {
	return models.NewScrapeError(models.ErrCodeBlockedURL, "host "+host+" is not publicly routable", nil)
}
