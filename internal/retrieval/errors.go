package retrieval

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrURLRequired is returned for blank input before any network call.
	ErrURLRequired = errors.New("URL is required")
	// ErrShareUnsupported indicates the share target cannot accept files.
	ErrShareUnsupported = errors.New("sharing files is not supported")
	// ErrNotVideo indicates the fetched payload was not a video.
	ErrNotVideo = errors.New("downloaded file is not a video")
)

const defaultServerMessage = "Failed to get download URL"

// ServerError carries a failed response from the download API. Message is
// suitable for showing to the user.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// Attempt records one delivery path that was tried and why it failed.
type Attempt struct {
	Method Method
	Err    error
}

// ShareError is returned when every delivery path failed.
type ShareError struct {
	Attempts []Attempt
}

func (e *ShareError) Error() string {
	if len(e.Attempts) == 0 {
		return "Failed to download video: no delivery method available"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", attempt.Method, attempt.Err))
	}
	return "Failed to download video (" + strings.Join(parts, "; ") + ")"
}

func (e *ShareError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		errs = append(errs, attempt.Err)
	}
	return errs
}
