package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/use-agent/brandkit/config"
	"github.com/use-agent/brandkit/extract"
	"github.com/use-agent/brandkit/models"
	"github.com/use-agent/brandkit/scraper"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Now()} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeLoader serves canned markup by URL. Every load advances the clock by
// the URL's delay.
type fakeLoader struct {
	mu      sync.Mutex
	pages   map[string]string
	final   map[string]string
	delay   map[string]time.Duration
	clock   *fakeClock
	panicOn string
	calls   []string
}

func (l *fakeLoader) Load(_ context.Context, rawURL string, _ scraper.LoadOptions) (*scraper.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, rawURL)
	if l.clock != nil {
		l.clock.advance(l.delay[rawURL])
	}
	if rawURL == l.panicOn {
		panic("renderer exploded")
	}
	body, ok := l.pages[rawURL]
	if !ok {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "no response", nil)
	}
	final := rawURL
	if f, ok := l.final[rawURL]; ok {
		final = f
	}
	return &scraper.Snapshot{FinalURL: final, HTML: body, StatusCode: 200}, nil
}

func (l *fakeLoader) loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Event(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) find(kind EventKind, stage Stage) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind && e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

func testConfig() config.IngestConfig {
	return config.IngestConfig{
		Budget:            10 * time.Second,
		NavigationTimeout: 8 * time.Second,
		IdleWait:          2 * time.Second,
		RetryAttempts:     2,
		RetryBackoff:      time.Millisecond,
		CollectionReserve: 3 * time.Second,
		ProductReserve:    2 * time.Second,
		MaxProductPages:   4,
		CatalogLimit:      8,
	}
}

const (
	site       = "https://mybrand.example"
	collection = site + "/collections/linen"
	shirt      = site + "/products/linen-shirt"
	pants      = site + "/products/linen-pants"
	dress      = site + "/products/linen-dress"
)

const homeHTML = `<html><head><title>Home | MyBrand</title>
<meta property="og:site_name" content="MyBrand">
<meta name="description" content="Handmade linen goods for slow living.">
<meta name="theme-color" content="#2a6f4e">
</head><body>
<header><a href="/"><img class="site-logo" src="/logo.png" alt="MyBrand"></a></header>
<main>
<h1>Linen for every season</h1>
<a href="/collections/linen">Shop linen</a>
<a href="/products/linen-shirt">Linen Shirt</a>
<a href="/products/linen-pants">Linen Pants</a>
</main></body></html>`

const collectionHTML = `<html><body><ul class="products">
<li class="product"><a href="/products/linen-dress">
<img src="https://cdn.mybrand.example/dress.jpg">
<h2 class="woocommerce-loop-product__title">Linen Dress</h2>
<span class="price">$120.00</span></a></li>
</ul></body></html>`

const shirtHTML = `<html><head><title>Linen Shirt – MyBrand</title>
<meta property="og:image" content="https://cdn.mybrand.example/shirt.jpg">
<link rel="canonical" href="https://mybrand.example/products/linen-shirt">
</head><body><main><h1 class="product-title">Linen Shirt</h1><span class="price">$89.00</span></main></body></html>`

func siteLoader() *fakeLoader {
	return &fakeLoader{pages: map[string]string{
		site:       homeHTML,
		collection: collectionHTML,
		shirt:      shirtHTML,
	}}
}

func TestIngest_EndToEnd(t *testing.T) {
	loader := siteLoader()
	rec := &recorder{}
	p := New(loader, testConfig(), WithObserver(rec))

	profile := p.Ingest(context.Background(), "mybrand.example")

	if profile.Name != "MyBrand" {
		t.Errorf("Name = %q, want MyBrand", profile.Name)
	}
	if profile.Website != site {
		t.Errorf("Website = %q", profile.Website)
	}
	if profile.LogoURL != site+"/logo.png" {
		t.Errorf("LogoURL = %q", profile.LogoURL)
	}
	if profile.Colors.Primary != "#2a6f4e" {
		t.Errorf("Primary = %q", profile.Colors.Primary)
	}
	if profile.Snippets.Tagline == "" {
		t.Error("tagline missing")
	}

	if len(profile.Catalog) != 2 {
		t.Fatalf("catalog = %+v", profile.Catalog)
	}
	byTitle := map[string]models.Product{}
	for _, prod := range profile.Catalog {
		byTitle[prod.Title] = prod
	}
	if got := byTitle["Linen Dress"]; got.Price != "$120.00" || got.URL != dress {
		t.Errorf("dress = %+v", got)
	}
	if got := byTitle["Linen Shirt"]; got.Price != "$89.00" || got.Image != "https://cdn.mybrand.example/shirt.jpg" {
		t.Errorf("shirt = %+v", got)
	}

	// Neither pants nor dress has a page.
	if errs := rec.find(EventStageError, StageProducts); len(errs) != 2 {
		t.Errorf("product stage errors = %d, want 2", len(errs))
	}
	if len(rec.find(EventFallback, StageFallback)) != 0 {
		t.Error("fallback emitted on success")
	}
	if len(rec.find(EventStageStart, StageInit)) != 1 || len(rec.find(EventStageDone, StageInit)) != 1 {
		t.Error("init stage not reported")
	}
	if err := validator.New().Struct(profile); err != nil {
		t.Errorf("profile invalid: %v", err)
	}
}

func TestRun_OGSiteName(t *testing.T) {
	loader := &fakeLoader{pages: map[string]string{
		"https://example.com": `<html><head><meta property="og:site_name" content="MyBrand"><title>Something Else</title></head><body></body></html>`,
	}}
	profile, err := New(loader, testConfig()).Run(context.Background(), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if profile.Name != "MyBrand" {
		t.Errorf("Name = %q", profile.Name)
	}
	if profile.Catalog == nil || len(profile.Catalog) != 0 {
		t.Errorf("catalog = %#v, want empty", profile.Catalog)
	}
}

func TestIngest_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		code     string
		wantName string
		wantSite string
		loads    int
	}{
		{"blocked loopback", "http://127.0.0.1/admin", models.ErrCodeBlockedURL, "127", "http://127.0.0.1", 0},
		{"blocked localhost", "localhost:8080", models.ErrCodeBlockedURL, "Localhost", "https://localhost:8080", 0},
		{"invalid scheme", "javascript:alert(1)", models.ErrCodeInvalidURL, unknownBrand, unknownWebsite, 0},
		{"unreachable", "https://unreachable-shop.example", models.ErrCodeNavigation, "Unreachable Shop", "https://unreachable-shop.example", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &fakeLoader{}
			rec := &recorder{}
			profile := New(loader, testConfig(), WithObserver(rec)).Ingest(context.Background(), tt.url)

			if profile == nil {
				t.Fatal("nil profile")
			}
			if profile.Name != tt.wantName || profile.Website != tt.wantSite {
				t.Errorf("got (%q, %q), want (%q, %q)", profile.Name, profile.Website, tt.wantName, tt.wantSite)
			}
			if len(profile.Catalog) != 0 || profile.Colors.Primary == "" || profile.Fonts.Body == "" {
				t.Errorf("fallback shape wrong: %+v", profile)
			}
			if err := validator.New().Struct(profile); err != nil {
				t.Errorf("fallback invalid: %v", err)
			}
			if got := len(loader.loaded()); got != tt.loads {
				t.Errorf("loads = %d, want %d", got, tt.loads)
			}
			fb := rec.find(EventFallback, StageFallback)
			if len(fb) != 1 || fb[0].Code != tt.code {
				t.Errorf("fallback events = %+v, want one with %s", fb, tt.code)
			}
		})
	}
}

func TestRun_ReturnsPermanentErrors(t *testing.T) {
	_, err := New(&fakeLoader{}, testConfig()).Run(context.Background(), "http://192.168.1.1")
	if models.CodeOf(err) != models.ErrCodeBlockedURL {
		t.Errorf("code = %q", models.CodeOf(err))
	}
}

func TestRun_RedirectToPrivateHostIsBlocked(t *testing.T) {
	loader := siteLoader()
	loader.final = map[string]string{site: "http://10.0.0.5/"}
	_, err := New(loader, testConfig()).Run(context.Background(), site)
	if models.CodeOf(err) != models.ErrCodeBlockedURL {
		t.Fatalf("code = %q, want BLOCKED_URL", models.CodeOf(err))
	}
	if got := loader.loaded(); len(got) != 1 {
		t.Errorf("followed links after blocked redirect: %v", got)
	}
}

func TestIngest_PanicFallsBack(t *testing.T) {
	loader := siteLoader()
	loader.panicOn = site
	rec := &recorder{}
	profile := New(loader, testConfig(), WithObserver(rec)).Ingest(context.Background(), site)
	if profile.Name != "Mybrand" {
		t.Errorf("Name = %q", profile.Name)
	}
	if fb := rec.find(EventFallback, StageFallback); len(fb) != 1 {
		t.Errorf("fallback events = %d", len(fb))
	}
}

func TestRun_CollectionSkippedWhenBudgetLow(t *testing.T) {
	clock := newFakeClock()
	loader := siteLoader()
	loader.clock = clock
	// 2.5s left after the homepage: too little for the collection (3s),
	// enough for one product page (2s).
	loader.delay = map[string]time.Duration{site: 7500 * time.Millisecond, shirt: time.Second}
	rec := &recorder{}

	profile, err := New(loader, testConfig(), WithObserver(rec), WithClock(clock.Now)).Run(context.Background(), site)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{site, shirt}
	if got := loader.loaded(); !equal(got, want) {
		t.Errorf("loads = %v, want %v", got, want)
	}
	if len(rec.find(EventStageSkip, StageCollection)) != 1 {
		t.Error("collection skip not reported")
	}
	if len(rec.find(EventStageSkip, StageProducts)) != 1 {
		t.Error("product skip not reported")
	}
	if len(profile.Catalog) != 1 || profile.Catalog[0].Title != "Linen Shirt" {
		t.Errorf("collected data lost: %+v", profile.Catalog)
	}
}

func TestRun_ProductLoopStopsAtBudget(t *testing.T) {
	clock := newFakeClock()
	loader := siteLoader()
	loader.clock = clock
	// 1s left after the collection page.
	loader.delay = map[string]time.Duration{site: 4 * time.Second, collection: 5 * time.Second}

	_, err := New(loader, testConfig(), WithClock(clock.Now)).Run(context.Background(), site)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{site, collection}
	if got := loader.loaded(); !equal(got, want) {
		t.Errorf("loads = %v, want %v", got, want)
	}
}

func TestRun_AtMostMaxProductPages(t *testing.T) {
	home := `<html><body>
<a href="/products/a">Product A</a><a href="/products/b">Product B</a><a href="/products/c">Product C</a>
<a href="/products/d">Product D</a><a href="/products/e">Product E</a><a href="/products/f">Product F</a>
</body></html>`
	loader := &fakeLoader{pages: map[string]string{site: home}}
	cfg := testConfig()
	cfg.RetryAttempts = 1

	if _, err := New(loader, cfg).Run(context.Background(), site); err != nil {
		t.Fatal(err)
	}
	if got := len(loader.loaded()); got != 1+4 {
		t.Errorf("loads = %d, want homepage + 4 product pages", got)
	}
}

type fakeEnhancer struct {
	calls int
	got   []models.ProductCandidate
}

func (e *fakeEnhancer) Enhance(_ context.Context, _, _ string, products []models.ProductCandidate) []models.ProductCandidate {
	e.calls++
	e.got = products
	out := make([]models.ProductCandidate, len(products))
	for i, c := range products {
		if !c.HasPrice() {
			c.Price = "$10.00"
		}
		out[i] = c
	}
	return out
}

func TestRun_EnhancementFillsMissingPrice(t *testing.T) {
	loader := siteLoader()
	loader.pages[shirt] = `<html><head><meta property="og:image" content="https://cdn.mybrand.example/shirt.jpg"></head>
<body><h1 class="product-title">Linen Shirt</h1></body></html>`
	delete(loader.pages, collection)
	enh := &fakeEnhancer{}

	profile, err := New(loader, testConfig(), WithEnhancer(enh)).Run(context.Background(), site)
	if err != nil {
		t.Fatal(err)
	}
	if enh.calls != 1 {
		t.Fatalf("enhancer calls = %d", enh.calls)
	}
	if len(profile.Catalog) != 1 || profile.Catalog[0].Price != "$10.00" {
		t.Errorf("catalog = %+v", profile.Catalog)
	}
}

func TestRun_EnhancementSkippedWhenComplete(t *testing.T) {
	enh := &fakeEnhancer{}
	if _, err := New(siteLoader(), testConfig(), WithEnhancer(enh)).Run(context.Background(), site); err != nil {
		t.Fatal(err)
	}
	if enh.calls != 0 {
		t.Errorf("enhancer called %d times for a complete catalog", enh.calls)
	}
}

func TestRun_UnsetRetryConfigUsesDefaultPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAttempts = 0
	loader := &fakeLoader{}

	_, err := New(loader, cfg).Run(context.Background(), "https://unreachable-shop.example")
	if models.CodeOf(err) != models.ErrCodeNavigation {
		t.Fatalf("err = %v", err)
	}
	if got := len(loader.loaded()); got != scraper.DefaultRetryPolicy.Attempts {
		t.Errorf("loads = %d, want %d", got, scraper.DefaultRetryPolicy.Attempts)
	}
}

func TestMergeCandidates(t *testing.T) {
	base := []models.ProductCandidate{
		{Title: "Shirt", Price: models.PriceUnknown, URL: "https://a.example/products/shirt"},
		{Title: "Hat", Price: "$5.00", Image: "https://cdn.a.example/hat.jpg", URL: "https://a.example/products/hat"},
	}
	found := []models.ProductCandidate{
		{Title: "Linen Shirt", Price: "$20.00", Image: "https://cdn.a.example/shirt.jpg", URL: "https://A.example/products/shirt/"},
		{Title: "Hat", Price: "$9.00", URL: "https://a.example/products/hat"},
		{Title: "", URL: "https://a.example/products/x"},
		{Title: "Scarf", URL: "https://a.example/products/scarf"},
	}
	got := mergeCandidates(base, found, true)
	if len(got) != 3 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Title != "Shirt" || got[0].Price != "$20.00" || got[0].Image == "" {
		t.Errorf("empty fields not filled: %+v", got[0])
	}
	if got[1].Price != "$5.00" {
		t.Errorf("price overwritten: %+v", got[1])
	}
	if got[2].Title != "Scarf" {
		t.Errorf("new product not appended: %+v", got[2])
	}
}

func TestMergeCandidates_ListingKeepsTitlesSharingURL(t *testing.T) {
	// Structured data without a url falls back to the page URL.
	found := []models.ProductCandidate{
		{Title: "Red Shirt", Price: "$20.00", URL: "https://shop.example/"},
		{Title: "Blue Shirt", Price: "$22.00", URL: "https://shop.example/"},
		{Title: "red shirt", Price: "$25.00", URL: "https://SHOP.example/"},
	}

	tests := []struct {
		name   string
		byURL  bool
		titles []string
	}{
		{"listing", false, []string{"Red Shirt", "Blue Shirt"}},
		{"detail", true, []string{"Red Shirt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeCandidates(nil, found, tt.byURL)
			if len(got) != len(tt.titles) {
				t.Fatalf("got %+v, want titles %v", got, tt.titles)
			}
			for i, title := range tt.titles {
				if got[i].Title != title {
					t.Errorf("got[%d].Title = %q, want %q", i, got[i].Title, title)
				}
			}
			if got[0].Price != "$20.00" {
				t.Errorf("first price overwritten: %+v", got[0])
			}
		})
	}
}

func TestFinalize_RepairsInvalidFields(t *testing.T) {
	p := New(&fakeLoader{}, testConfig())
	profile := &models.BrandProfile{
		Name:      "Acme",
		Website:   "https://acme.example",
		LogoURL:   "not a url",
		HeroImage: &models.HeroImage{URL: ""},
		Colors:    models.Colors{Primary: "red", Background: "#ffffff", Text: "#111111"},
		Fonts:     models.Fonts{Heading: "", Body: "Inter"},
		Catalog: []models.Product{
			{ID: "prod_1", Title: "Ok", Price: "$1.00", URL: "https://acme.example/p/1"},
			{ID: "prod_2", Title: "Bad", Price: "$1.00", URL: ""},
		},
	}
	if err := p.finalize(profile); err != nil {
		t.Fatal(err)
	}
	if profile.LogoURL != "" || profile.HeroImage != nil {
		t.Errorf("invalid assets kept: %q %+v", profile.LogoURL, profile.HeroImage)
	}
	if profile.Colors.Primary != extract.DefaultPrimary || profile.Fonts.Heading != extract.DefaultFontStack {
		t.Errorf("defaults not restored: %+v %+v", profile.Colors, profile.Fonts)
	}
	if len(profile.Catalog) != 1 || profile.Catalog[0].ID != "prod_1" {
		t.Errorf("catalog = %+v", profile.Catalog)
	}
	if profile.Trust == nil || profile.VoiceHints == nil {
		t.Error("nil collections in finalized profile")
	}
}

func TestBudget(t *testing.T) {
	clock := newFakeClock()
	b := NewBudget(10*time.Second, clock.Now)

	if !b.Allows(3 * time.Second) {
		t.Error("fresh budget refuses 3s reserve")
	}
	clock.advance(8 * time.Second)
	if b.Remaining() != 2*time.Second {
		t.Errorf("Remaining = %v", b.Remaining())
	}
	if b.Allows(3*time.Second) || !b.Allows(2*time.Second) {
		t.Error("reserve checks wrong at 2s left")
	}
	clock.advance(5 * time.Second)
	if b.Remaining() != 0 {
		t.Errorf("Remaining = %v, want 0 past the deadline", b.Remaining())
	}
}

func TestFallback_ValidWithoutHost(t *testing.T) {
	p := Fallback("")
	if p.Name != unknownBrand || p.Website != unknownWebsite {
		t.Errorf("got %+v", p)
	}
	if err := validator.New().Struct(p); err != nil {
		t.Errorf("invalid: %v", err)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
