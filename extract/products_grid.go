package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/brandkit/catalog"
	"github.com/use-agent/brandkit/models"
)

// gridPattern describes one family of product listing markup.
type gridPattern struct {
	name  string
	card  cascadia.Selector
	title selectorList
}

var gridPatterns = []gridPattern{
	{
		name:  "shopify",
		card:  cascadia.MustCompile(`.product-card, .card-wrapper, .grid-product, .product-item, .grid__item[class*="product"], li.grid__item`),
		title: compileAll(`.card__heading, .product-card__title, .grid-product__title, .product-item__title`, `h2, h3`),
	},
	{
		name:  "woocommerce",
		card:  cascadia.MustCompile(`li.product, .products .product, .wc-block-grid__product`),
		title: compileAll(`.woocommerce-loop-product__title, .wc-block-grid__product-title`, `h2, h3`),
	},
	{
		name:  "bigcommerce",
		card:  cascadia.MustCompile(`.productGrid .product, article.card, .listItem`),
		title: compileAll(`.card-title, .listItem-title`, `h3, h4`),
	},
	{
		name:  "magento",
		card:  cascadia.MustCompile(`.product-item-info, li.product-item, .item.product`),
		title: compileAll(`.product-item-link, .product-item-name`, `strong, h2`),
	},
	{
		name:  "generic",
		card:  cascadia.MustCompile(`[itemtype*="schema.org/Product"], [data-product-id], [class*="product-tile"], [class*="productCard"], [class*="product-card"]`),
		title: compileAll(`[itemprop="name"], [class*="title"], [class*="name"]`, `h2, h3, h4, a`),
	},
}

// GridProducts scans a listing page for product cards. Patterns are tried
// in order and the first one yielding any product wins.
func GridProducts(p *Page) []models.ProductCandidate {
	for _, gp := range gridPatterns {
		if out := gp.scan(p); len(out) > 0 {
			return out
		}
	}
	return nil
}

func (gp gridPattern) scan(p *Page) []models.ProductCandidate {
	var out []models.ProductCandidate
	p.Doc.FindMatcher(gp.card).Each(func(_ int, card *goquery.Selection) {
		// Nested matches of the same pattern describe the same card.
		if card.ParentsMatcher(gp.card).Length() > 0 {
			return
		}
		c, ok := cardProduct(p, card, gp.title)
		if ok {
			out = append(out, c)
		}
	})
	return out
}

func cardProduct(p *Page, card *goquery.Selection, titles selectorList) (models.ProductCandidate, bool) {
	title := titles.firstText(card, 200)
	link := cardLink(p, card)
	if title == "" || link == "" {
		return models.ProductCandidate{}, false
	}
	c := models.ProductCandidate{
		Title: title,
		Price: models.PriceUnknown,
		Image: cardImage(p, card),
		URL:   link,
	}
	if pr, ok := bestPrice(card, p); ok {
		c.Price = pr
	}
	return c, true
}

// cardLink prefers an anchor whose path classifies as a product page.
func cardLink(p *Page, card *goquery.Selection) string {
	first := ""
	anchors := card.Find("a[href]")
	if goquery.NodeName(card) == "a" {
		anchors = card.AddSelection(anchors)
	}
	anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		u := p.Resolve(a.AttrOr("href", ""))
		if u == "" || !p.SameSite(u) {
			return true
		}
		if typ, _, ok := ClassifyPath(u); ok && typ == models.LinkProduct {
			first = u
			return false
		}
		if first == "" && !skipPaths.MatchString(strings.ToLower(u)) {
			first = u
		}
		return true
	})
	return first
}

func cardImage(p *Page, card *goquery.Selection) string {
	var cands []Candidate[string]
	card.Find("img").Each(func(_ int, img *goquery.Selection) {
		if u := p.imageSource(img); u != "" {
			cands = append(cands, Candidate[string]{Value: u, Score: catalog.ImageScore(u)})
		}
	})
	best, ok := Best(cands)
	if !ok || best.Score < 0 {
		return ""
	}
	return best.Value
}
