package pipeline

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/use-agent/brandkit/extract"
	"github.com/use-agent/brandkit/models"
)

// finalize is the boundary normalizer. It drops catalog entries and
// optional assets that fail validation, restores defaults for required
// style fields, and fails only when the profile is still invalid.
func (p *Pipeline) finalize(profile *models.BrandProfile) error {
	kept := profile.Catalog[:0]
	for _, prod := range profile.Catalog {
		if p.validate.Struct(prod) == nil {
			kept = append(kept, prod)
		}
	}
	profile.Catalog = kept
	if profile.VoiceHints == nil {
		profile.VoiceHints = []string{}
	}
	if profile.Trust == nil {
		profile.Trust = map[string]string{}
	}

	err := p.validate.Struct(profile)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			return models.NewScrapeError(models.ErrCodeExtraction, "profile validation failed", err)
		}
		return nil
	}

	for _, fe := range verrs {
		repair(profile, strings.TrimPrefix(fe.StructNamespace(), "BrandProfile."))
	}
	if err := p.validate.Struct(profile); err != nil {
		return models.NewScrapeError(models.ErrCodeExtraction, "profile validation failed", err)
	}
	return nil
}

// repair resets the field at namespace to a valid value where one exists.
func repair(profile *models.BrandProfile, namespace string) {
	switch {
	case namespace == "LogoURL":
		profile.LogoURL = ""
	case strings.HasPrefix(namespace, "HeroImage"):
		profile.HeroImage = nil
	case namespace == "Colors.Primary":
		profile.Colors.Primary = extract.DefaultPrimary
	case namespace == "Colors.Background":
		profile.Colors.Background = extract.DefaultBackground
	case namespace == "Colors.Text":
		profile.Colors.Text = extract.DefaultText
	case namespace == "Fonts.Heading":
		profile.Fonts.Heading = extract.DefaultFontStack
	case namespace == "Fonts.Body":
		profile.Fonts.Body = extract.DefaultFontStack
	case namespace == "VoiceHints":
		profile.VoiceHints = profile.VoiceHints[:min(len(profile.VoiceHints), 10)]
	case strings.HasPrefix(namespace, "Snippets.Headlines"):
		profile.Snippets.Headlines = profile.Snippets.Headlines[:min(len(profile.Snippets.Headlines), 5)]
	case strings.HasPrefix(namespace, "Snippets.CTAs"):
		profile.Snippets.CTAs = profile.Snippets.CTAs[:min(len(profile.Snippets.CTAs), 5)]
	case namespace == "Name":
		profile.Name = unknownBrand
	}
}
