package extract

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/brandkit/catalog"
	"github.com/use-agent/brandkit/models"
	"github.com/use-agent/brandkit/price"
)

var (
	titleSelectors = compileAll(
		`[itemprop="name"]`,
		`.product__title, .product-title, .product_title, .product-single__title, .product-name, .product-info__title, [data-product-title]`,
		`main h1, [class*="product"] h1`,
		`h1`,
	)
	priceElements = compileAll(
		`[itemprop="price"], meta[property="product:price:amount"], meta[property="og:price:amount"]`,
		`[class*="price"], [id*="price"], [data-price], [data-product-price]`,
		`ins, del, s`,
	)
	productImageSelectors = compileAll(
		`[itemprop="image"]`,
		`.product__media img, .product-single__photo img, .product-gallery img, .woocommerce-product-gallery img, [class*="product"] img`,
		`main img`,
	)

	salePrice     = regexp.MustCompile(`(?:^|[\s_-])(?:sale|current|final|special|now|actual|discount|reduced)`)
	previousPrice = regexp.MustCompile(`(?:^|[\s_-])(?:was|compare|original|regular|old|before|strike|msrp|list|rrp)`)
	priceWord     = regexp.MustCompile(`price|amount|money`)

	// nestedPrice marks wrappers whose children are scored individually.
	nestedPrice = cascadia.MustCompile(`[class*="price"], [class*="money"], [class*="was"], [class*="compare"], ins, del, s`)
)

// SingleProduct scans a product detail page for its title, price and main
// image. ok is false when no title could be found.
func SingleProduct(p *Page) (models.ProductCandidate, bool) {
	title := titleSelectors.firstText(p.Doc.Selection, 200)
	if title == "" {
		title = p.Meta("og:title", "twitter:title")
	}
	if title == "" {
		return models.ProductCandidate{}, false
	}

	c := models.ProductCandidate{
		Title: title,
		Price: models.PriceUnknown,
		Image: bestProductImage(p, p.Doc.Selection),
		URL:   canonicalPageURL(p),
	}
	if c.Image == "" {
		if og := p.Resolve(p.Meta("og:image")); catalog.IsValidImageURL(og) {
			c.Image = og
		}
	}
	if pr, ok := bestPrice(p.Doc.Selection, p); ok {
		c.Price = pr
	}
	return c, true
}

// ScorePrice rates an element as the current selling price. Elements that
// look like a previous or compare-at price are pushed below zero.
func ScorePrice(s *goquery.Selection) int {
	score := 0
	signals := attrSignals(s, "itemprop", "property", "data-price")
	if _, ok := s.Attr("itemprop"); ok || goquery.NodeName(s) == "meta" {
		score += 40
	}
	if salePrice.MatchString(signals) || goquery.NodeName(s) == "ins" {
		score += 30
	}
	if priceWord.MatchString(signals) {
		score += 10
	}
	if previousPrice.MatchString(signals) || ancestorMatches(s, previousPrice, 2) {
		score -= 50
	}
	switch goquery.NodeName(s) {
	case "del", "s", "strike":
		score -= 50
	}
	if s.ParentsFiltered("del, s, strike").Length() > 0 {
		score -= 50
	}
	return score
}

// bestPrice returns the highest scoring parseable price below root. meta
// and data attributes are read before element text.
func bestPrice(root *goquery.Selection, p *Page) (string, bool) {
	var cands []Candidate[string]
	seen := make(map[*html.Node]bool)
	priceElements.each(root, func(_ int, s *goquery.Selection) {
		if seen[s.Get(0)] {
			return
		}
		seen[s.Get(0)] = true
		if s.FindMatcher(nestedPrice).Length() > 0 {
			return
		}
		raw := s.AttrOr("content", "")
		if raw == "" {
			raw = s.AttrOr("data-price", "")
		}
		if raw == "" {
			raw = s.Text()
		}
		if cur := p.Meta("product:price:currency", "og:price:currency", "priceCurrency"); cur != "" && goquery.NodeName(s) == "meta" {
			raw = cur + " " + raw
		}
		pr, ok := price.CleanAndExtract(raw)
		if !ok {
			return
		}
		cands = append(cands, Candidate[string]{Value: pr, Score: ScorePrice(s)})
	})
	best, ok := Best(cands)
	if !ok || best.Score < 0 {
		return "", false
	}
	return best.Value, true
}

// bestProductImage picks the highest-scoring image below root.
func bestProductImage(p *Page, root *goquery.Selection) string {
	var cands []Candidate[string]
	productImageSelectors.each(root, func(rank int, s *goquery.Selection) {
		u := p.imageSource(s)
		if u == "" {
			u = p.Resolve(s.AttrOr("content", s.AttrOr("href", "")))
		}
		if u == "" {
			return
		}
		score := catalog.ImageScore(u)
		if score < 0 {
			return
		}
		cands = append(cands, Candidate[string]{Value: u, Score: score + 10*(len(productImageSelectors)-rank)})
	})
	best, ok := Best(cands)
	if !ok {
		return ""
	}
	return best.Value
}
