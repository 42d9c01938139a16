package models

// PriceUnknown is stored when no positive price could be parsed.
const PriceUnknown = "N/A"

// BrandProfile is the structured output of ingesting one merchant website.
// It is always structurally valid, including in the fallback case.
type BrandProfile struct {
	Name       string            `json:"name" validate:"required"`
	Website    string            `json:"website" validate:"required,url"`
	LogoURL    string            `json:"logoUrl" validate:"omitempty,url"`
	HeroImage  *HeroImage        `json:"heroImage,omitempty"`
	Colors     Colors            `json:"colors"`
	Fonts      Fonts             `json:"fonts"`
	VoiceHints []string          `json:"voiceHints" validate:"max=10"`
	Snippets   Snippets          `json:"snippets"`
	Catalog    []Product         `json:"catalog" validate:"max=8,dive"`
	Trust      map[string]string `json:"trust"`
}

// HeroImage is the main banner image of the homepage.
type HeroImage struct {
	URL     string `json:"url" validate:"required,url"`
	AltText string `json:"altText"`
}

// Colors holds normalized "#rrggbb" colors.
type Colors struct {
	Primary    string `json:"primary" validate:"required,hexcolor,len=7"`
	Background string `json:"background" validate:"required,hexcolor,len=7"`
	Text       string `json:"text" validate:"required,hexcolor,len=7"`
}

// Fonts holds CSS font-family strings.
type Fonts struct {
	Heading string `json:"heading" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// Snippets are short copy fragments that describe the brand voice.
type Snippets struct {
	Tagline   string   `json:"tagline,omitempty"`
	Headlines []string `json:"headlines,omitempty" validate:"max=5"`
	CTAs      []string `json:"ctas,omitempty" validate:"max=5"`
}

// Product is one catalog entry. It is never mutated after being placed
// in a BrandProfile.
type Product struct {
	ID    string `json:"id" validate:"required"`
	Title string `json:"title" validate:"required,max=200"`
	Price string `json:"price" validate:"required"`
	Image string `json:"image" validate:"omitempty,url"`
	URL   string `json:"url" validate:"required,url"`
}

// ProductCandidate is a provisional product produced by an extraction
// strategy, before enrichment and deduplication. Price is the normalized
// display price or PriceUnknown.
type ProductCandidate struct {
	Title string
	Price string
	Image string
	URL   string
}

// HasPrice reports whether the candidate carries a parsed price.
func (p ProductCandidate) HasPrice() bool {
	return p.Price != "" && p.Price != PriceUnknown
}

// LinkType classifies a discovered URL.
type LinkType string

const (
	LinkProduct    LinkType = "product"
	LinkCollection LinkType = "collection"
)

// URLCandidate is a link found during discovery.
type URLCandidate struct {
	URL   string
	Score int
	Type  LinkType
}

// StyleSnapshot is the set of computed-style values read from a live page.
// It is captured once per page so color and font extraction can run as
// pure functions over (DOM, snapshot).
type StyleSnapshot struct {
	CSSVariables      map[string]string `json:"cssVariables"`
	ButtonBackgrounds []string          `json:"buttonBackgrounds"`
	LinkColors        []string          `json:"linkColors"`
	HeaderBackground  string            `json:"headerBackground"`
	HeroBackground    string            `json:"heroBackground"`
	BodyBackground    string            `json:"bodyBackground"`
	BodyColor         string            `json:"bodyColor"`
	BodyFont          string            `json:"bodyFont"`
	HeadingFont       string            `json:"headingFont"`
}
