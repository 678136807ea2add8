package videos

import "context"

// DefaultTitle stands in for a title the upstream metadata call could not supply.
const DefaultTitle = "Loom Video"

// SessionInfo is the display metadata upstream keeps for a recorded session.
type SessionInfo struct {
	Name string `json:"name"`
}

// Upstream is the pair of calls the Resolver makes against the video host.
type Upstream interface {
	TranscodedURL(ctx context.Context, videoID string) (string, error)
	SessionInfo(ctx context.Context, videoID string) (SessionInfo, error)
}

// Resolution is the response contract for a resolved share URL.
type Resolution struct {
	DownloadURL string `json:"downloadUrl"`
	VideoID     string `json:"videoId"`
	Filename    string `json:"filename"`
	Title       string `json:"title,omitempty"`
}

// TitleResult carries the outcome of the best-effort title lookup. When
// Fallback is set, Value holds DefaultTitle and Err the reason the lookup failed.
type TitleResult struct {
	Value    string
	Fallback bool
	Err      error
}

// ResolvedTitle wraps a title that upstream supplied.
func ResolvedTitle(title string) TitleResult {
	return TitleResult{Value: title}
}

// FallbackTitle records a failed lookup and substitutes DefaultTitle.
func FallbackTitle(err error) TitleResult {
	return TitleResult{Value: DefaultTitle, Fallback: true, Err: err}
}

// ForFilename returns the title to feed into SanitizeFilename. Fallback titles
// yield an empty string so the filename derives from the video identifier.
func (t TitleResult) ForFilename() string {
	if t.Fallback {
		return ""
	}
	return t.Value
}
