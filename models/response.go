package models

// BrandResponse is the response for POST /api/v1/brand.
type BrandResponse struct {
	// Success indicates whether ingestion completed without a boundary error.
	Success bool `json:"success"`

	// Profile is the extracted brand profile. Nil when Success is false.
	Profile *BrandProfile `json:"profile,omitempty"`

	// CacheStatus is "hit" or "miss" when the profile cache is enabled.
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent serving the request.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	BrowserStats BrowserStats `json:"browser_stats"`
	Version      string       `json:"version"`
}

// BrowserStats reports the state of the shared browser process.
type BrowserStats struct {
	Running     bool   `json:"running"`
	Age         string `json:"age"`
	Restarts    int    `json:"restarts"`
	ActivePages int    `json:"active_pages"`
}
