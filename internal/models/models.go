package models

import "time"

// Outcome values recorded for each download resolution request.
const (
	OutcomeResolved        = "resolved"
	OutcomeInvalidRequest  = "invalid_request"
	OutcomeRateLimited     = "rate_limited"
	OutcomeNotFound        = "not_found"
	OutcomeUpstreamError   = "upstream_error"
	OutcomeUpstreamTimeout = "upstream_timeout"
	OutcomeInternalError   = "internal_error"
)

// ResolutionEvent records how a single POST /api/download request ended.
// The transient download URL is never stored.
type ResolutionEvent struct {
	ID            string
	RequestID     string
	VideoID       string
	Status        int
	Outcome       string
	TitleFallback bool
	Duration      time.Duration
	CreatedAt     time.Time
}
