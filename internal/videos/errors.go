package videos

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidShareURL indicates no video identifier could be extracted from a share URL.
	ErrInvalidShareURL = errors.New("invalid share url")
	// ErrDownloadURLNotFound indicates upstream has no download URL for the identifier.
	ErrDownloadURLNotFound = errors.New("download url not found")
	// ErrProviderUnavailable indicates the upstream client is not configured.
	ErrProviderUnavailable = errors.New("video upstream unavailable")

	errEmptyTitle = errors.New("session has no name")
)

// UpstreamError describes a failed call to the upstream video API.
type UpstreamError struct {
	Op         string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected upstream status %d", e.Op, e.StatusCode)
	case e.Timeout:
		return fmt.Sprintf("%s: upstream timed out: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is an upstream call that ran out of time.
func IsTimeout(err error) bool {
	var upstreamErr *UpstreamError
	return errors.As(err, &upstreamErr) && upstreamErr.Timeout
}
