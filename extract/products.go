package extract

import "github.com/use-agent/brandkit/models"

// PageKind tells Products which DOM strategy applies once structured data
// came up empty.
type PageKind int

const (
	// ListingPage is a homepage or collection page showing product cards.
	ListingPage PageKind = iota
	// DetailPage is a single product page.
	DetailPage
)

func (k PageKind) String() string {
	if k == DetailPage {
		return "detail"
	}
	return "listing"
}

// Products runs the product strategies in preference order: structured
// data first, then the DOM strategy for kind.
func Products(p *Page, kind PageKind) []models.ProductCandidate {
	if out := StructuredProducts(p); len(out) > 0 {
		return out
	}
	if kind == DetailPage {
		if c, ok := SingleProduct(p); ok {
			return []models.ProductCandidate{c}
		}
		return nil
	}
	return GridProducts(p)
}
