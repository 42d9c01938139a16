package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/brandkit/config"
	"github.com/use-agent/brandkit/models"
)

// Scraper is the page resource manager. It owns at most one browser
// process, launched on first use and recycled after cfg.RestartInterval,
// and hands out short-lived pages through WithPage.
// It is safe for concurrent use.
type Scraper struct {
	cfg         config.BrowserConfig
	browser     *recycler[*rod.Browser]
	activePages atomic.Int32
}

// NewScraper creates a Scraper. No browser is started until the first page
// is requested.
func NewScraper(cfg config.BrowserConfig) *Scraper {
	return &Scraper{
		cfg: cfg,
		browser: &recycler[*rod.Browser]{
			maxAge: cfg.RestartInterval,
			now:    time.Now,
			create: func() (*rod.Browser, error) { return launch(cfg) },
			destroy: func(b *rod.Browser) {
				if err := b.Close(); err != nil {
					slog.Warn("failed to close browser", "error", err)
				}
			},
		},
	}
}

// launch starts a headless Chromium and connects to it.
func launch(cfg config.BrowserConfig) (*rod.Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)
	return browser, nil
}

// WithPage runs fn with a freshly configured page and closes the page on
// every exit path, including panics inside fn.
func (s *Scraper) WithPage(ctx context.Context, fn func(page *rod.Page) error) error {
	if err := ctx.Err(); err != nil {
		return categorizeError(err, "context done before page acquisition")
	}
	b, err := s.browser.acquire()
	if err != nil {
		return err
	}
	h, err := s.newPage(b)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}

	s.activePages.Add(1)
	defer func() {
		h.close()
		s.activePages.Add(-1)
	}()
	return fn(h.page)
}

// Load fetches rawURL in a scoped page. It satisfies the pipeline's Loader.
func (s *Scraper) Load(ctx context.Context, rawURL string, opts LoadOptions) (*Snapshot, error) {
	var snap *Snapshot
	err := s.WithPage(ctx, func(page *rod.Page) error {
		var err error
		snap, err = LoadHTML(ctx, page, rawURL, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// pageHandle is a page plus the request filter mounted on it.
type pageHandle struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (h *pageHandle) close() {
	if h.router != nil {
		_ = h.router.Stop()
	}
	if err := h.page.Close(); err != nil {
		slog.Debug("failed to close page", "error", err)
	}
}

// newPage opens a tab with the fixed user agent, viewport, stealth script
// and request filter. Everything is installed before the first navigation.
func (s *Scraper) newPage(b *rod.Browser) (*pageHandle, error) {
	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	h := &pageHandle{page: page}

	if s.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.cfg.UserAgent,
		AcceptLanguage: acceptLanguage,
	}); err != nil {
		h.close()
		return nil, err
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.ViewportWidth,
		Height:            s.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		h.close()
		return nil, err
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": acceptLanguage}),
	}.Call(page)

	h.router = setupHijack(page, s.cfg.BlockedResourceTypes, s.cfg.BlockAds)
	return h, nil
}

// Stats returns a snapshot of the browser lifecycle for health reporting.
func (s *Scraper) Stats() models.BrowserStats {
	live, age, restarts := s.browser.stats()
	st := models.BrowserStats{
		Running:     live,
		Restarts:    restarts,
		ActivePages: int(s.activePages.Load()),
	}
	if live {
		st.Age = age.Round(time.Second).String()
	}
	return st
}

// Close kills the browser process and clears the handle, so a later page
// request launches a new one. Call this on graceful shutdown to prevent
// zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: closing browser")
	s.browser.close()
}
