// Package pipeline runs one brand ingestion: homepage load, asset
// extraction, link discovery, optional collection and product pages,
// search enhancement and finalization, all under one wall-clock budget.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/use-agent/brandkit/catalog"
	"github.com/use-agent/brandkit/config"
	"github.com/use-agent/brandkit/extract"
	"github.com/use-agent/brandkit/models"
	"github.com/use-agent/brandkit/scraper"
	"github.com/use-agent/brandkit/urlguard"
)

// Loader renders one page. scraper.Scraper implements it.
type Loader interface {
	Load(ctx context.Context, rawURL string, opts scraper.LoadOptions) (*scraper.Snapshot, error)
}

// Enhancer fills missing product images and prices. search.Enhancer
// implements it. Enhance must never fail and must not overwrite values.
type Enhancer interface {
	Enhance(ctx context.Context, brand, website string, products []models.ProductCandidate) []models.ProductCandidate
}

// Pipeline is safe for concurrent use; each call to Run keeps its own state.
type Pipeline struct {
	loader   Loader
	enhancer Enhancer
	observer Observer
	cfg      config.IngestConfig
	now      func() time.Time
	validate *validator.Validate
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEnhancer enables the search enhancement stage.
func WithEnhancer(e Enhancer) Option {
	return func(p *Pipeline) { p.enhancer = e }
}

// WithObserver sets the event sink. The default discards events.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithClock replaces time.Now for budget checks.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline that loads pages through loader.
func New(loader Loader, cfg config.IngestConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		loader:   loader,
		observer: NopObserver{},
		cfg:      cfg,
		now:      time.Now,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest returns the brand profile of rawURL. It never fails: any error is
// reported once through the observer and replaced by Fallback(rawURL).
func (p *Pipeline) Ingest(ctx context.Context, rawURL string) *models.BrandProfile {
	start := p.now()
	profile, err := p.Run(ctx, rawURL)
	if err == nil {
		return profile
	}
	p.observer.Event(ctx, Event{
		Kind:    EventFallback,
		Stage:   StageFallback,
		URL:     rawURL,
		Code:    models.CodeOf(err),
		Message: err.Error(),
		Elapsed: p.now().Sub(start),
	})
	return Fallback(rawURL)
}

// Run is the error-propagating entry point used by the HTTP boundary.
// Input errors (INVALID_URL, BLOCKED_URL) and homepage failures are
// returned; failures of later stages only shrink the result. A panic in
// any stage is returned as an untyped error.
func (p *Pipeline) Run(ctx context.Context, rawURL string) (profile *models.BrandProfile, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			profile = nil
			err = fmt.Errorf("pipeline: panic during ingestion: %v", rec)
		}
	}()

	r := &run{p: p, budget: NewBudget(p.cfg.Budget, p.now), start: p.now()}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Budget)
	defer cancel()

	// ── 1. Input validation ─────────────────────────────────────────
	r.emit(ctx, EventStageStart, StageInit, rawURL, nil)
	target, err := urlguard.Validate(rawURL)
	if err != nil {
		return nil, err
	}
	r.emit(ctx, EventStageDone, StageInit, target.String(), nil)

	// ── 2. Homepage ─────────────────────────────────────────────────
	r.emit(ctx, EventStageStart, StageHomepage, target.String(), nil)
	home, err := r.load(ctx, target.String())
	if err != nil {
		return nil, err
	}
	// Redirects may land anywhere; nothing is followed from an
	// internal host.
	final, err := urlguard.Validate(home.FinalURL)
	if err != nil {
		return nil, err
	}
	page, err := extract.NewPage(home.HTML, final.String(), home.Styles)
	if err != nil {
		return nil, err
	}
	r.emit(ctx, EventStageDone, StageHomepage, final.String(), nil)

	// ── 3. Brand assets ─────────────────────────────────────────────
	r.emit(ctx, EventStageStart, StageAssets, final.String(), nil)
	profile = brandAssets(page)
	profile.Website = final.Scheme + "://" + final.Host
	products := mergeCandidates(nil, extract.Products(page, extract.ListingPage), false)
	r.emit(ctx, EventStageDone, StageAssets, final.String(), nil)

	// ── 4. Link discovery ───────────────────────────────────────────
	links := extract.DiscoverLinks(page, p.cfg.MaxProductPages)
	productURLs := appendURLs(nil, links.Products, p.cfg.MaxProductPages)
	r.emit(ctx, EventStageDone, StageLinks, final.String(), nil)

	// ── 5. Collection page (optional) ───────────────────────────────
	if links.Collection != nil {
		switch {
		case !r.budget.Allows(p.cfg.CollectionReserve):
			r.emit(ctx, EventStageSkip, StageCollection, links.Collection.URL, nil)
		default:
			if cp, ok := r.page(ctx, StageCollection, links.Collection.URL); ok {
				products = mergeCandidates(products, extract.Products(cp, extract.ListingPage), false)
				more := extract.DiscoverLinks(cp, p.cfg.MaxProductPages)
				productURLs = appendURLs(productURLs, more.Products, p.cfg.MaxProductPages)
			}
		}
	}

	// ── 6. Product pages (0..MaxProductPages) ───────────────────────
	for _, u := range productURLs {
		if !r.budget.Allows(p.cfg.ProductReserve) {
			r.emit(ctx, EventStageSkip, StageProducts, u, nil)
			break
		}
		if pp, ok := r.page(ctx, StageProducts, u); ok {
			products = mergeCandidates(products, extract.Products(pp, extract.DetailPage), true)
		}
	}

	// ── 7. Search enhancement (optional) ────────────────────────────
	products = capCandidates(products, p.cfg.CatalogLimit)
	if p.enhancer != nil && anyIncomplete(products) {
		if r.budget.Allows(p.cfg.ProductReserve) {
			r.emit(ctx, EventStageStart, StageEnhancement, profile.Website, nil)
			products = p.enhancer.Enhance(ctx, profile.Name, profile.Website, products)
			r.emit(ctx, EventStageDone, StageEnhancement, profile.Website, nil)
		} else {
			r.emit(ctx, EventStageSkip, StageEnhancement, profile.Website, nil)
		}
	}

	// ── 8. Finalize ─────────────────────────────────────────────────
	profile.Catalog = catalog.Normalize(products, p.cfg.CatalogLimit)
	if err := p.finalize(profile); err != nil {
		return nil, err
	}
	r.emit(ctx, EventStageDone, StageFinalize, profile.Website, nil)
	return profile, nil
}

// run is the state of one ingestion.
type run struct {
	p      *Pipeline
	budget Budget
	start  time.Time
}

func (r *run) emit(ctx context.Context, kind EventKind, stage Stage, url string, err error) {
	e := Event{
		Kind:      kind,
		Stage:     stage,
		URL:       url,
		Elapsed:   r.p.now().Sub(r.start),
		Remaining: r.budget.Remaining(),
	}
	if err != nil {
		e.Code = models.CodeOf(err)
		e.Message = err.Error()
	}
	r.p.observer.Event(ctx, e)
}

// load renders rawURL with the configured retry policy.
func (r *run) load(ctx context.Context, rawURL string) (*scraper.Snapshot, error) {
	cfg := r.p.cfg
	opts := scraper.LoadOptions{
		Timeout:            cfg.NavigationTimeout,
		WaitForNetworkIdle: true,
		IdleCap:            cfg.IdleWait,
	}
	policy := scraper.DefaultRetryPolicy
	if cfg.RetryAttempts > 0 {
		policy = scraper.RetryPolicy{Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}
	}
	return scraper.WithRetries(ctx, policy, func(ctx context.Context) (*scraper.Snapshot, error) {
		return r.p.loader.Load(ctx, rawURL, opts)
	})
}

// page loads a secondary page and parses it. Failures are reported as
// stage errors and yield ok == false.
func (r *run) page(ctx context.Context, stage Stage, rawURL string) (*extract.Page, bool) {
	r.emit(ctx, EventStageStart, stage, rawURL, nil)

	fail := func(err error) (*extract.Page, bool) {
		r.emit(ctx, EventStageError, stage, rawURL, err)
		return nil, false
	}

	target, err := urlguard.Validate(rawURL)
	if err != nil {
		return fail(err)
	}
	snap, err := r.load(ctx, target.String())
	if err != nil {
		return fail(err)
	}
	final, err := urlguard.Validate(snap.FinalURL)
	if err != nil {
		return fail(err)
	}
	pg, err := extract.NewPage(snap.HTML, final.String(), snap.Styles)
	if err != nil {
		return fail(err)
	}
	r.emit(ctx, EventStageDone, stage, final.String(), nil)
	return pg, true
}

// brandAssets runs every homepage asset extractor.
func brandAssets(page *extract.Page) *models.BrandProfile {
	name := extract.BrandName(page)
	snippets := extract.Snippets(page)
	return &models.BrandProfile{
		Name:       name,
		LogoURL:    extract.Logo(page, name),
		HeroImage:  extract.Hero(page),
		Colors:     extract.Colors(page),
		Fonts:      extract.Fonts(page),
		Snippets:   snippets,
		VoiceHints: extract.VoiceHints(snippets),
		Trust:      map[string]string{},
	}
}

// appendURLs adds candidate URLs not yet in dst, up to limit entries.
func appendURLs(dst []string, cands []models.URLCandidate, limit int) []string {
	for _, c := range cands {
		if len(dst) >= limit {
			break
		}
		key := catalog.CanonicalURL(c.URL)
		dup := false
		for _, u := range dst {
			if catalog.CanonicalURL(u) == key {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, c.URL)
		}
	}
	return dst
}

// mergeCandidates appends found to dst, dropping candidates without a
// title or URL. A candidate naming a product already in dst only fills that
// product's empty image and price. Candidates match by dedup key; with
// byURL they also match on canonical URL alone, for detail pages whose
// title differs from the listing card.
func mergeCandidates(dst, found []models.ProductCandidate, byURL bool) []models.ProductCandidate {
	for _, f := range found {
		if strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.URL) == "" {
			continue
		}
		i := indexOf(dst, f, byURL)
		if i < 0 {
			dst = append(dst, f)
			continue
		}
		if !catalog.IsValidImageURL(dst[i].Image) && catalog.IsValidImageURL(f.Image) {
			dst[i].Image = f.Image
		}
		if !dst[i].HasPrice() && f.HasPrice() {
			dst[i].Price = f.Price
		}
	}
	return dst
}

func indexOf(list []models.ProductCandidate, c models.ProductCandidate, byURL bool) int {
	key := catalog.Key(c.Title, c.URL)
	canon := catalog.CanonicalURL(c.URL)
	for i, e := range list {
		if byURL && canon != "" && catalog.CanonicalURL(e.URL) == canon {
			return i
		}
		if catalog.Key(e.Title, e.URL) == key {
			return i
		}
	}
	return -1
}

// capCandidates keeps the first limit candidates; merged lists carry no
// duplicates, so these are the ones that reach the catalog.
func capCandidates(c []models.ProductCandidate, limit int) []models.ProductCandidate {
	if limit <= 0 {
		limit = catalog.DefaultLimit
	}
	if len(c) > limit {
		return c[:limit]
	}
	return c
}

func anyIncomplete(products []models.ProductCandidate) bool {
	for _, c := range products {
		if !catalog.IsValidImageURL(c.Image) || !c.HasPrice() {
			return true
		}
	}
	return false
}
