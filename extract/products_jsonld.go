package extract

import (
	"strconv"
	"strings"

	"github.com/use-agent/brandkit/models"
	"github.com/use-agent/brandkit/price"
)

// inStockMarkers are schema.org ItemAvailability values that count as
// purchasable.
var inStockMarkers = []string{"instock", "limitedavailability", "onlineonly", "instoreonly", "preorder", "presale"}

// StructuredProducts extracts products from schema.org Product and
// ProductGroup nodes. Products without a URL are attributed to the page
// itself.
func StructuredProducts(p *Page) []models.ProductCandidate {
	var out []models.ProductCandidate
	for _, block := range jsonLDBlocks(p) {
		walkJSONLD(block, func(node map[string]any) {
			if !hasType(node, "Product", "ProductGroup", "IndividualProduct") {
				return
			}
			title := jsonString(node["name"])
			if title == "" {
				return
			}
			u := p.Resolve(jsonString(node["url"]))
			if u == "" {
				u = canonicalPageURL(p)
			}
			c := models.ProductCandidate{
				Title: title,
				Image: p.Resolve(jsonString(node["image"])),
				URL:   u,
				Price: models.PriceUnknown,
			}
			if pr, ok := productPrice(node); ok {
				c.Price = pr
			}
			out = append(out, c)
		})
	}
	return out
}

// productPrice reads the price of a Product node, looking at its own
// offers first and at its variants' offers second.
func productPrice(node map[string]any) (string, bool) {
	if pr, ok := OfferPrice(node["offers"]); ok {
		return pr, true
	}
	variants, _ := node["hasVariant"].([]any)
	for _, v := range variants {
		if vm, ok := v.(map[string]any); ok {
			if pr, ok := OfferPrice(vm["offers"]); ok {
				return pr, true
			}
		}
	}
	return "", false
}

// OfferPrice normalizes the price of a schema.org offers value: a single
// Offer, an AggregateOffer (lowPrice preferred), an Offer array (in-stock
// offers preferred), or an offer nesting further offers.
func OfferPrice(v any) (string, bool) {
	switch t := v.(type) {
	case map[string]any:
		return singleOfferPrice(t)
	case []any:
		offers := make([]map[string]any, 0, len(t))
		for _, o := range t {
			if om, ok := o.(map[string]any); ok {
				offers = append(offers, om)
			}
		}
		for _, o := range offers {
			if inStock(o) {
				if pr, ok := singleOfferPrice(o); ok {
					return pr, true
				}
			}
		}
		// Nothing marked in stock: take the first priced offer that does
		// not state an availability at all.
		for _, o := range offers {
			if _, stated := o["availability"]; stated {
				continue
			}
			if pr, ok := singleOfferPrice(o); ok {
				return pr, true
			}
		}
	}
	return "", false
}

func singleOfferPrice(o map[string]any) (string, bool) {
	currency := jsonString(o["priceCurrency"])

	var values []string
	if hasType(o, "AggregateOffer") {
		values = append(values, jsonString(o["lowPrice"]))
	}
	values = append(values, jsonString(o["price"]))
	if spec, ok := o["priceSpecification"]; ok {
		values = append(values, specPrice(spec, &currency))
	}
	if hasType(o, "AggregateOffer") {
		values = append(values, jsonString(o["highPrice"]))
	}

	for _, v := range values {
		if v == "" {
			continue
		}
		// schema.org prices always use a dot decimal separator.
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			v = strconv.FormatFloat(f, 'f', 2, 64)
		}
		if pr, ok := price.CleanAndExtract(strings.TrimSpace(currency + " " + v)); ok {
			return pr, true
		}
	}

	if nested, ok := o["offers"]; ok {
		return OfferPrice(nested)
	}
	return "", false
}

// specPrice reads a PriceSpecification (or list of them), filling currency
// when the offer itself did not name one.
func specPrice(v any, currency *string) string {
	switch t := v.(type) {
	case map[string]any:
		if *currency == "" {
			*currency = jsonString(t["priceCurrency"])
		}
		return jsonString(t["price"])
	case []any:
		for _, item := range t {
			if s := specPrice(item, currency); s != "" {
				return s
			}
		}
	}
	return ""
}

func inStock(o map[string]any) bool {
	a := strings.ToLower(jsonString(o["availability"]))
	if a == "" {
		return false
	}
	for _, m := range inStockMarkers {
		if strings.HasSuffix(a, m) {
			return true
		}
	}
	return false
}

// canonicalPageURL is the page's canonical link, or its own URL.
func canonicalPageURL(p *Page) string {
	if href, ok := p.Doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if u := p.Resolve(href); u != "" {
			return u
		}
	}
	if u := p.Resolve(p.Meta("og:url")); u != "" {
		return u
	}
	return p.Base.String()
}
