package pipeline

import (
	"github.com/use-agent/brandkit/extract"
	"github.com/use-agent/brandkit/models"
	"github.com/use-agent/brandkit/urlguard"
)

const (
	unknownBrand   = "Unknown Brand"
	unknownWebsite = "about:blank"
)

// Fallback builds the minimal valid profile returned when ingestion fails.
// Only the hostname of rawURL is used; nothing is fetched.
func Fallback(rawURL string) *models.BrandProfile {
	name, website := unknownBrand, unknownWebsite
	if u, err := urlguard.Normalize(rawURL); err == nil {
		website = u.Scheme + "://" + u.Host
		if n := extract.HostnameBrand(u.Hostname()); n != "" {
			name = n
		}
	}
	return &models.BrandProfile{
		Name:    name,
		Website: website,
		Colors: models.Colors{
			Primary:    extract.DefaultPrimary,
			Background: extract.DefaultBackground,
			Text:       extract.DefaultText,
		},
		Fonts: models.Fonts{
			Heading: extract.DefaultFontStack,
			Body:    extract.DefaultFontStack,
		},
		VoiceHints: []string{},
		Catalog:    []models.Product{},
		Trust:      map[string]string{},
	}
}
