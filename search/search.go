// Package search fills product images and prices that primary extraction
// left empty by querying a web search engine's HTML results and re-running
// the single-product extractor on the hits.
package search

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/use-agent/brandkit/catalog"
	"github.com/use-agent/brandkit/config"
	"github.com/use-agent/brandkit/extract"
	"github.com/use-agent/brandkit/models"
	"github.com/use-agent/brandkit/urlguard"
)

// pagesPerQuery is how many result pages are opened per search.
const pagesPerQuery = 2

// Fetcher retrieves raw markup. scraper.HTTPFetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, form url.Values) ([]byte, error)
}

// socialDomains never carry usable product data.
var socialDomains = []string{
	"facebook.com", "instagram.com", "twitter.com", "x.com", "tiktok.com",
	"pinterest.com", "youtube.com", "linkedin.com", "reddit.com", "threads.net",
	"snapchat.com", "tumblr.com", "quora.com", "wikipedia.org",
}

// commerceSignals mark hosts or snippets that look like a store listing.
var commerceSignals = []string{"shop", "store", "buy", "cart", "price", "sale", "$", "€", "£", "amazon.", "ebay.", "etsy."}

// Result is one organic search hit.
type Result struct {
	URL     string
	Title   string
	Snippet string
}

// Enhancer runs the web-search enhancement stage.
type Enhancer struct {
	fetcher    Fetcher
	endpoint   string
	maxQueries int
	timeout    time.Duration
	limiter    *rate.Limiter
}

// NewEnhancer creates an Enhancer. The limiter paces queries across all
// concurrent ingestions.
func NewEnhancer(f Fetcher, cfg config.SearchConfig) *Enhancer {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Enhancer{
		fetcher:    f,
		endpoint:   cfg.Endpoint,
		maxQueries: cfg.MaxQueries,
		timeout:    cfg.Timeout,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Enhance returns a copy of products with missing images and prices filled
// from search results. It issues at most maxQueries searches in total,
// never overwrites a present value, and swallows every failure.
func (e *Enhancer) Enhance(ctx context.Context, brand, website string, products []models.ProductCandidate) []models.ProductCandidate {
	out := make([]models.ProductCandidate, len(products))
	copy(out, products)

	remaining := e.maxQueries
	siteHost := hostOf(website)

	for i := range out {
		if remaining <= 0 || ctx.Err() != nil {
			break
		}
		c := &out[i]

		if !catalog.IsValidImageURL(c.Image) {
			remaining--
			e.lookup(ctx, strings.TrimSpace(brand+" "+c.Title), siteHost, false, c)
		}
		if !c.HasPrice() && remaining > 0 && ctx.Err() == nil {
			remaining--
			e.lookup(ctx, strings.TrimSpace(brand+" "+c.Title+" price"), siteHost, true, c)
		}
	}
	return out
}

// lookup runs one search and fills c's empty fields from the first result
// pages that yield them.
func (e *Enhancer) lookup(ctx context.Context, query, siteHost string, forPrice bool, c *models.ProductCandidate) {
	results, err := e.Search(ctx, query)
	if err != nil {
		slog.Debug("search failed", "query", query, "error", err)
		return
	}
	opened := 0
	for _, r := range rankResults(results, siteHost, forPrice) {
		if opened == pagesPerQuery || ctx.Err() != nil {
			return
		}
		opened++
		found, ok := e.productAt(ctx, r.URL)
		if !ok {
			continue
		}
		fill(c, found)
		if catalog.IsValidImageURL(c.Image) && c.HasPrice() {
			return
		}
	}
}

// fill copies image and price from found into c only where c is empty.
func fill(c *models.ProductCandidate, found models.ProductCandidate) {
	if !catalog.IsValidImageURL(c.Image) && catalog.IsValidImageURL(found.Image) {
		c.Image = found.Image
	}
	if !c.HasPrice() && found.HasPrice() {
		c.Price = found.Price
	}
}

// Search posts query to the engine's HTML endpoint and parses the hits,
// social-media hosts removed.
func (e *Enhancer) Search(ctx context.Context, query string) ([]Result, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeTimeout, "search pacing wait aborted", err)
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	body, err := e.fetcher.Fetch(ctx, e.endpoint, url.Values{"q": {query}})
	if err != nil {
		return nil, err
	}
	results, err := ParseResults(body)
	if err != nil {
		return nil, err
	}

	kept := results[:0]
	for _, r := range results {
		if !isSocial(hostOf(r.URL)) {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// productAt fetches a result page statically and runs the single-product
// extractor on it. Hosts failing the URL guard are never fetched.
func (e *Enhancer) productAt(ctx context.Context, rawURL string) (models.ProductCandidate, bool) {
	u, err := urlguard.Validate(rawURL)
	if err != nil {
		return models.ProductCandidate{}, false
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	body, err := e.fetcher.Fetch(ctx, u.String(), nil)
	if err != nil {
		slog.Debug("search result fetch failed", "url", u.String(), "error", err)
		return models.ProductCandidate{}, false
	}
	page, err := extract.NewPage(string(body), u.String(), nil)
	if err != nil {
		return models.ProductCandidate{}, false
	}
	return extract.SingleProduct(page)
}

func (e *Enhancer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// ParseResults extracts organic hits from search engine result markup.
// DuckDuckGo's HTML endpoint wraps targets in a redirect carrying the real
// URL in the "uddg" parameter; those are unwrapped.
func ParseResults(body []byte) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeParse, "failed to parse search results", err)
	}

	var out []Result
	seen := make(map[string]bool)
	doc.Find(".result, .web-result").Each(func(_ int, s *goquery.Selection) {
		if strings.Contains(s.AttrOr("class", ""), "result--ad") {
			return
		}
		a := s.Find("a.result__a, a.result-link, h2 a").First()
		target := unwrapRedirect(a.AttrOr("href", ""))
		if target == "" || seen[target] {
			return
		}
		seen[target] = true
		out = append(out, Result{
			URL:     target,
			Title:   strings.TrimSpace(a.Text()),
			Snippet: strings.TrimSpace(s.Find(".result__snippet, .result-snippet").First().Text()),
		})
	})
	return out, nil
}

// unwrapRedirect returns the absolute http(s) target of a result link.
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return unwrapRedirect(target)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return ""
	}
	return u.String()
}

// rankResults orders results for opening. The brand's own site comes first;
// for price lookups, commerce-looking hosts and snippets are preferred.
func rankResults(results []Result, siteHost string, forPrice bool) []Result {
	type scored struct {
		r     Result
		score int
	}
	ranked := make([]scored, len(results))
	for i, r := range results {
		score := 0
		host := hostOf(r.URL)
		if siteHost != "" && (host == siteHost || strings.HasSuffix(host, "."+siteHost)) {
			score += 50
		}
		if forPrice {
			text := strings.ToLower(host + " " + r.Snippet)
			for _, sig := range commerceSignals {
				if strings.Contains(text, sig) {
					score += 10
				}
			}
		}
		ranked[i] = scored{r, score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]Result, len(ranked))
	for i, s := range ranked {
		out[i] = s.r
	}
	return out
}

func isSocial(host string) bool {
	for _, d := range socialDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
