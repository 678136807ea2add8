package videos

import "strings"

// ExtractID returns the video identifier carried by a share URL: the last path
// segment once the query string is dropped. Any non-empty segment is accepted;
// upstream decides whether it names a real video.
func ExtractID(shareURL string) (string, error) {
	clean, _, _ := strings.Cut(shareURL, "?")

	idx := strings.LastIndex(clean, "/")
	id := clean[idx+1:]
	if id == "" {
		return "", ErrInvalidShareURL
	}

	return id, nil
}
