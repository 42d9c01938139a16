package models

// BrandRequest is the payload for POST /api/v1/brand.
type BrandRequest struct {
	// URL is the merchant website to ingest. Scheme is optional;
	// "https://" is assumed when missing. Required.
	URL string `json:"url" binding:"required,max=2048"`
}
