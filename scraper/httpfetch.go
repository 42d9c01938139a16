package scraper

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	tls2 "github.com/refraction-networking/utls"

	"github.com/use-agent/brandkit/config"
	"github.com/use-agent/brandkit/models"
	"github.com/use-agent/brandkit/urlguard"
)

// maxBodyBytes caps how much of a static response is read.
const maxBodyBytes = 5 << 20

// HTTPFetcher performs plain HTTP GETs with a Chrome TLS fingerprint (utls).
// It is used where a rendered DOM is not needed, such as search result
// markup. Every dialed address is checked against the URL guard, so a
// public hostname resolving to a private address is refused too.
type HTTPFetcher struct {
	client *http.Client
}

// FetcherOption customizes an HTTPFetcher.
type FetcherOption func(*fetcherOptions)

type fetcherOptions struct {
	proxy        string
	timeout      time.Duration
	allowPrivate bool
}

// WithProxy routes requests through an http(s) proxy.
func WithProxy(proxy string) FetcherOption {
	return func(o *fetcherOptions) { o.proxy = proxy }
}

// WithTimeout bounds each request, body included.
func WithTimeout(d time.Duration) FetcherOption {
	return func(o *fetcherOptions) { o.timeout = d }
}

// AllowPrivateNetworks disables the dial-time address check. Tests only.
func AllowPrivateNetworks() FetcherOption {
	return func(o *fetcherOptions) { o.allowPrivate = true }
}

// NewHTTPFetcher creates a fetcher.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	o := fetcherOptions{timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	dialer := &net.Dialer{Timeout: o.timeout}
	// Through a proxy the dialed address is the proxy itself, so only the
	// URL-level checks apply.
	if !o.allowPrivate && o.proxy == "" {
		dialer.Control = guardDial
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, dialer, network, addr)
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: o.timeout,
	}
	if o.proxy != "" {
		proxyURL, err := url.Parse(o.proxy)
		if err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &HTTPFetcher{client: &http.Client{
		Transport: transport,
		Timeout:   o.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("httpfetch: too many redirects")
			}
			return urlguard.AssertPublicHostname(req.URL.Hostname())
		},
	}}
}

// Fetch retrieves rawURL and returns at most 5 MB of its body. The request
// is sent as a form POST when form is non-nil.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	method := http.MethodGet
	var body io.Reader
	if form != nil {
		method = http.MethodPost
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidURL, "invalid fetch url", err)
	}
	req.Header.Set("User-Agent", config.DefaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, categorizeError(err, "http fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, fmt.Sprintf("HTTP %d for %s", resp.StatusCode, rawURL), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, categorizeError(err, "failed to read response body")
	}
	return data, nil
}

// guardDial rejects connections to private, loopback and link-local
// addresses after DNS resolution.
func guardDial(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	return urlguard.AssertPublicHostname(host)
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via
// utls. ALPN is narrowed to http/1.1 because net/http cannot speak h2 over
// a non-crypto/tls connection.
func dialTLSChrome(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	spec, err := tls2.UTLSIdToSpec(tls2.HelloChrome_Auto)
	if err != nil {
		return nil, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls2.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{ServerName: host}, tls2.HelloCustom)
	if err := tlsConn.ApplyPreset(&spec); err != nil {
		rawConn.Close()
		return nil, err
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
