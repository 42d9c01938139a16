package scraper

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps config resource type names to protocol resource types.
// Images are deliberately absent: extraction needs them.
var configToProto = map[string]proto.NetworkResourceType{
	"Media":       proto.NetworkResourceTypeMedia,
	"Font":        proto.NetworkResourceTypeFont,
	"Stylesheet":  proto.NetworkResourceTypeStylesheet,
	"Script":      proto.NetworkResourceTypeScript,
	"TextTrack":   proto.NetworkResourceTypeTextTrack,
	"EventSource": proto.NetworkResourceTypeEventSource,
	"WebSocket":   proto.NetworkResourceTypeWebSocket,
	"Manifest":    proto.NetworkResourceTypeManifest,
}

// adDomains are ad and tracking hosts aborted when BlockAds is enabled.
// Subdomains match too.
var adDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"connect.facebook.net":  {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"amazon-adsystem.com":   {},
	"criteo.com":            {},
	"criteo.net":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"moatads.com":           {},
	"pubmatic.com":          {},
	"rubiconproject.com":    {},
	"scorecardresearch.com": {},
	"quantserve.com":        {},
	"hotjar.com":            {},
	"mixpanel.com":          {},
	"segment.io":            {},
	"segment.com":           {},
	"analytics.tiktok.com":  {},
	"ads-twitter.com":       {},
	"bat.bing.com":          {},
	"clarity.ms":            {},
	"klaviyo.com":           {},
	"attentivemobile.com":   {},
	"gorgias.chat":          {},
	"intercom.io":           {},
	"zendesk.com":           {},
	"optimizely.com":        {},
	"demdex.net":            {},
	"bluekai.com":           {},
	"consensu.org":          {},
	"onetrust.com":          {},
	"cookielaw.org":         {},
}

// isAdDomain checks if a hostname (or any parent domain) is in the ad blocklist.
func isAdDomain(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for host != "" {
		if _, ok := adDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return false
}

// blockedTypeSet builds the lookup set for the request filter, dropping
// names that are unknown or would block images.
func blockedTypeSet(names []string) map[proto.NetworkResourceType]struct{} {
	set := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		rt, ok := configToProto[name]
		if !ok {
			slog.Warn("ignoring resource type in request filter", "type", name)
			continue
		}
		set[rt] = struct{}{}
	}
	return set
}

// setupHijack installs the request filter on page. It aborts the given
// resource types and, when blockAds is set, requests to ad domains.
// Images always pass.
//
// Returns the running HijackRouter so the caller can stop it when the page
// is released, or nil if there is nothing to block.
func setupHijack(page *rod.Page, blockedTypes []string, blockAds bool) *rod.HijackRouter {
	blocked := blockedTypeSet(blockedTypes)
	if len(blocked) == 0 && !blockAds {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if shouldBlock(ctx.Request.Type(), ctx.Request.URL(), blocked, blockAds) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks, so it must live in its own goroutine.
	// It will exit when router.Stop() is called.
	go router.Run()

	return router
}

// shouldBlock is the request filter decision.
func shouldBlock(rt proto.NetworkResourceType, u *url.URL, blocked map[proto.NetworkResourceType]struct{}, blockAds bool) bool {
	if rt == proto.NetworkResourceTypeImage {
		return false
	}
	if _, ok := blocked[rt]; ok {
		return true
	}
	return blockAds && u != nil && isAdDomain(u.Hostname())
}
