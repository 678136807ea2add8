package videos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultLoomBaseURL = "https://www.loom.com"
	// Error bodies are only drained so the connection can be reused.
	maxDrainBytes = 64 << 10
)

// LoomClient calls the Loom session API.
type LoomClient struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

// NewLoomClient constructs a client for the Loom API rooted at baseURL.
func NewLoomClient(baseURL string, httpClient *http.Client) *LoomClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultLoomBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &LoomClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
		UserAgent:  "loomdrop/1.0",
	}
}

// TranscodedURL asks upstream for a transient download URL of the session's MP4.
func (c *LoomClient) TranscodedURL(ctx context.Context, videoID string) (string, error) {
	const op = "loom transcoded-url"

	var payload struct {
		URL string `json:"url"`
	}
	if err := c.call(ctx, op, http.MethodPost, c.sessionPath(videoID, "transcoded-url"), &payload); err != nil {
		var upstreamErr *UpstreamError
		if errors.As(err, &upstreamErr) && upstreamErr.StatusCode == http.StatusNotFound {
			return "", ErrDownloadURLNotFound
		}
		return "", err
	}

	downloadURL := strings.TrimSpace(payload.URL)
	if downloadURL == "" {
		return "", ErrDownloadURLNotFound
	}
	if parsed, err := url.Parse(downloadURL); err != nil || !parsed.IsAbs() {
		return "", &UpstreamError{Op: op, Err: fmt.Errorf("download url %q is not absolute", downloadURL)}
	}

	return downloadURL, nil
}

// SessionInfo fetches the session's display metadata.
func (c *LoomClient) SessionInfo(ctx context.Context, videoID string) (SessionInfo, error) {
	var info SessionInfo
	if err := c.call(ctx, "loom session-info", http.MethodGet, c.sessionPath(videoID), &info); err != nil {
		return SessionInfo{}, err
	}
	return info, nil
}

func (c *LoomClient) sessionPath(videoID string, suffix ...string) string {
	parts := append([]string{c.BaseURL, "api/campaigns/sessions", url.PathEscape(videoID)}, suffix...)
	return strings.Join(parts, "/")
}

func (c *LoomClient) call(ctx context.Context, op, method, endpoint string, out any) error {
	if c == nil || c.HTTPClient == nil {
		return ErrProviderUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return &UpstreamError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &UpstreamError{Op: op, Err: err, Timeout: isTimeout(ctx, err)}
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Op: op, Err: fmt.Errorf("decode response: %w", err), Timeout: isTimeout(ctx, err)}
	}

	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
