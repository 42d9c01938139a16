package models

import (
	"errors"
	"fmt"
)

// Internal error codes surfaced to logging and observability.
const (
	ErrCodeInvalidURL   = "INVALID_URL"
	ErrCodeBlockedURL   = "BLOCKED_URL"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeParse        = "PARSE_FAILED"
	ErrCodeExtraction   = "EXTRACTION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
)

// API-facing error codes returned by the HTTP boundary.
const (
	ErrCodeScrapeTimeout = "SCRAPE_TIMEOUT"
	ErrCodeScrapeFailed  = "SCRAPE_FAILED"
	ErrCodeInternal      = "INTERNAL"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first ScrapeError in err's chain,
// or ErrCodeExtraction for untyped errors.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeExtraction
}

// IsPermanent reports whether err is an input error that must never be retried.
func IsPermanent(err error) bool {
	var se *ScrapeError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == ErrCodeInvalidURL || se.Code == ErrCodeBlockedURL
}
