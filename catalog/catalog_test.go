package catalog

import (
	"fmt"
	"strings"
	"testing"

	"github.com/use-agent/brandkit/models"
)

func TestNormalize_DeduplicatesPreservingOrder(t *testing.T) {
	cands := []models.ProductCandidate{
		{Title: "Linen Shirt", Price: "$49.00", URL: "https://shop.example.com/products/linen-shirt"},
		{Title: "Wool Socks", Price: "$12.00", URL: "https://shop.example.com/products/wool-socks"},
		{Title: "LINEN SHIRT", Price: "$59.00", URL: "https://shop.example.com/products/linen-shirt/"},
		{Title: "Linen Shirt", Price: "$49.00", URL: "https://SHOP.example.com/products/linen-shirt?utm_source=x#reviews"},
	}

	got := Normalize(cands, DefaultLimit)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Title != "Linen Shirt" || got[0].Price != "$49.00" {
		t.Errorf("first entry = %+v, want first-seen Linen Shirt at $49.00", got[0])
	}
	if got[1].Title != "Wool Socks" {
		t.Errorf("second entry = %+v, want Wool Socks", got[1])
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("ids must be unique and non-empty: %q %q", got[0].ID, got[1].ID)
	}
}

func TestNormalize_CapsAtLimit(t *testing.T) {
	var cands []models.ProductCandidate
	for i := 0; i < 50; i++ {
		cands = append(cands, models.ProductCandidate{
			Title: fmt.Sprintf("Product %d", i),
			URL:   fmt.Sprintf("https://example.com/products/p-%d", i),
		})
	}

	got := Normalize(cands, DefaultLimit)
	if len(got) != DefaultLimit {
		t.Fatalf("len = %d, want %d", len(got), DefaultLimit)
	}
	if got[7].Title != "Product 7" {
		t.Errorf("last entry = %q, want Product 7", got[7].Title)
	}

	if got := Normalize(cands, 0); len(got) != DefaultLimit {
		t.Errorf("limit 0 should fall back to default, got %d", len(got))
	}
}

func TestNormalize_FillsSentinelsAndDropsInvalid(t *testing.T) {
	long := strings.Repeat("x", 300)
	cands := []models.ProductCandidate{
		{Title: "  ", URL: "https://example.com/products/a"},
		{Title: "No URL"},
		{Title: "Mug", URL: "https://example.com/products/mug", Image: "https://example.com/img/placeholder.png"},
		{Title: long, URL: "https://example.com/products/long", Price: "€10.00", Image: "https://cdn.example.com/mug.jpg"},
	}

	got := Normalize(cands, DefaultLimit)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Price != models.PriceUnknown {
		t.Errorf("price = %q, want %q", got[0].Price, models.PriceUnknown)
	}
	if got[0].Image != "" {
		t.Errorf("placeholder image kept: %q", got[0].Image)
	}
	if n := len([]rune(got[1].Title)); n != 200 {
		t.Errorf("title length = %d, want 200", n)
	}
	if got[1].Image != "https://cdn.example.com/mug.jpg" {
		t.Errorf("image = %q", got[1].Image)
	}
}

func TestIsValidImageURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/a/b.jpg", true},
		{"https://example.com/a/b.JPEG?v=2", true},
		{"https://example.com/products/shoe", true},
		{"https://cdn.shopify.com/s/files/1/shoe", true},
		{"https://example.com/spacer.gif", false},
		{"https://example.com/images/1x1.png", false},
		{"https://example.com/placeholder-product.png", false},
		{"data:image/png;base64,AAAA", false},
		{"/relative/path.jpg", false},
		{"https://example.com/about", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsValidImageURL(tt.in); got != tt.want {
				t.Errorf("IsValidImageURL(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_CollectionScopedProductIsDuplicate(t *testing.T) {
	got := Normalize([]models.ProductCandidate{
		{Title: "Linen Shirt", Price: "$89.00", URL: "https://shop.example/collections/linen/products/linen-shirt"},
		{Title: "Linen Shirt", Price: "$89.00", URL: "https://shop.example/products/linen-shirt"},
	}, DefaultLimit)
	if len(got) != 1 {
		t.Errorf("got %d products, want 1: %+v", len(got), got)
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.com/products/a/", "https://example.com/products/a"},
		{"https://example.com/products/a?variant=1&utm_medium=x", "https://example.com/products/a"},
		{"https://example.com/product.php?id=7#top", "https://example.com/product.php?id=7"},
		{"https://example.com/", "https://example.com/"},
		{"https://shop.example/collections/linen/products/shirt", "https://shop.example/products/shirt"},
		{"https://shop.example/en-gb/collections/all/products/shirt/", "https://shop.example/en-gb/products/shirt"},
		{"https://shop.example/collections/linen", "https://shop.example/collections/linen"},
	}

	for _, tt := range tests {
		if got := CanonicalURL(tt.in); got != tt.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
