package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/use-agent/brandkit/models"
)

const acceptLanguage = "en-US,en;q=0.9"

// LoadOptions controls a single LoadHTML call.
type LoadOptions struct {
	// Timeout bounds navigation plus extraction. Zero means no extra bound.
	Timeout time.Duration

	// WaitForNetworkIdle enables a best-effort settle wait after load.
	WaitForNetworkIdle bool

	// IdleCap bounds the settle wait; defaults to 2s.
	IdleCap time.Duration
}

// Snapshot is one rendered page: the post-redirect URL, the full markup
// and the computed styles read from the live page.
type Snapshot struct {
	FinalURL   string
	HTML       string
	StatusCode int
	Styles     *models.StyleSnapshot
}

const defaultIdleCap = 2 * time.Second

// LoadHTML navigates page to rawURL and returns the rendered snapshot.
//
// It fails with NAVIGATION_FAILED when the navigation gets no response or
// the document status is 400 or above, and with TIMEOUT when opts.Timeout
// or ctx expire. The settle wait and style capture are best-effort.
func LoadHTML(ctx context.Context, page *rod.Page, rawURL string, opts LoadOptions) (*Snapshot, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	p := page.Context(ctx)

	if err := p.Navigate(rawURL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	if err := p.WaitLoad(); err != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), "page load timed out")
		}
		slog.Debug("load event not observed, proceeding with current DOM", "url", rawURL, "error", err)
	}

	status := documentStatus(p)
	if status >= 400 {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, fmt.Sprintf("target responded with HTTP %d", status), nil)
	}

	if opts.WaitForNetworkIdle {
		idleCap := opts.IdleCap
		if idleCap <= 0 {
			idleCap = defaultIdleCap
		}
		waitSettled(p, idleCap)
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = rawURL
	}

	return &Snapshot{
		FinalURL:   finalURL,
		HTML:       rawHTML,
		StatusCode: status,
		Styles:     captureStyles(p),
	}, nil
}

// waitSettled waits up to limit for the DOM to stop changing. Network idle
// via the Fetch domain conflicts with the request filter on recent
// Chromium, so DOM stability stands in for it. Errors are ignored.
func waitSettled(p *rod.Page, limit time.Duration) {
	settle := p.Timeout(limit)
	defer settle.CancelTimeout()
	if err := settle.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("page did not settle within cap, proceeding", "error", err)
	}
}

// documentStatus reads the main document's HTTP status from the navigation
// timing entry. It returns 0 when the browser does not expose it.
func documentStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// styleSnapshotJS collects every computed-style value the color and font
// extractors need in a single round trip.
const styleSnapshotJS = `() => {
	const cs = (el, prop) => el ? getComputedStyle(el).getPropertyValue(prop).trim() : "";
	const transparent = (v) => !v || v === "transparent" || v === "rgba(0, 0, 0, 0)";

	const vars = {};
	for (const sheet of Array.from(document.styleSheets)) {
		let rules;
		try { rules = sheet.cssRules; } catch (e) { continue; }
		for (const rule of Array.from(rules || [])) {
			if (!rule.selectorText || !/(^|,)\s*(:root|html|body)\s*(,|$)/.test(rule.selectorText)) continue;
			for (const name of Array.from(rule.style)) {
				if (name.startsWith("--")) vars[name] = rule.style.getPropertyValue(name).trim();
			}
		}
	}
	const root = getComputedStyle(document.documentElement);
	for (const name of Object.keys(vars)) {
		const resolved = root.getPropertyValue(name).trim();
		if (resolved) vars[name] = resolved;
	}

	const pick = (sel, prop, n) => Array.from(document.querySelectorAll(sel))
		.slice(0, n).map((el) => cs(el, prop)).filter((v) => !transparent(v));

	const header = document.querySelector("header, [role=banner], .header, #header");
	const hero = document.querySelector("[class*=hero], [class*=banner], [class*=slideshow]");
	const heading = document.querySelector("h1, h2");
	let bodyBg = cs(document.body, "background-color");
	if (transparent(bodyBg)) bodyBg = cs(document.documentElement, "background-color");

	return {
		cssVariables: vars,
		buttonBackgrounds: pick("button, .btn, .button, a[class*=btn], a[class*=button], [type=submit]", "background-color", 10),
		linkColors: pick("a[href]", "color", 20),
		headerBackground: cs(header, "background-color"),
		heroBackground: cs(hero, "background-color"),
		bodyBackground: bodyBg,
		bodyColor: cs(document.body, "color"),
		bodyFont: cs(document.body, "font-family"),
		headingFont: cs(heading, "font-family"),
	};
}`

// captureStyles reads the style snapshot from the live page. It returns nil
// when evaluation fails; extractors then fall back to markup and defaults.
func captureStyles(p *rod.Page) *models.StyleSnapshot {
	res, err := p.Eval(styleSnapshotJS)
	if err != nil {
		slog.Debug("style snapshot failed", "error", err)
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil
	}
	var snap models.StyleSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		slog.Debug("style snapshot decode failed", "error", err)
		return nil
	}
	return &snap
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ScrapeErrors so callers can
// tell timeouts from navigation failures.
func categorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
