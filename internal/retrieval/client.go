package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loomdrop/backend/internal/logging"
	"github.com/loomdrop/backend/internal/videos"
)

const maxErrorBodyBytes = 64 << 10

// Client resolves a share URL through the download API and delivers the video
// using the paths available for the detected device.
type Client struct {
	APIURL     string
	HTTPClient *http.Client
	Devices    DeviceDetector
	Sharer     Sharer
	Saver      Saver
	Opener     Opener
}

// Result describes a delivered video.
type Result struct {
	Filename    string
	VideoID     string
	Title       string
	DownloadURL string
	Method      Method
	Location    string
	Size        int64
}

// DisplayName is the title when one was resolved, otherwise the filename.
func (r Result) DisplayName() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Filename
}

// NewClient constructs a Client for the API rooted at apiURL.
func NewClient(apiURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		APIURL:     strings.TrimRight(apiURL, "/"),
		HTTPClient: httpClient,
	}
}

// Retrieve resolves shareURL and delivers the video. Mobile devices try the
// share target first, then direct download, then opening the URL; desktops skip
// the share target. The first path that succeeds wins.
func (c *Client) Retrieve(ctx context.Context, shareURL string) (Result, error) {
	shareURL = strings.TrimSpace(shareURL)
	if shareURL == "" {
		return Result{}, ErrURLRequired
	}

	res, err := c.resolve(ctx, shareURL)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Filename:    res.Filename,
		VideoID:     res.VideoID,
		Title:       res.Title,
		DownloadURL: res.DownloadURL,
	}
	method, delivery, err := c.deliver(ctx, Download{
		URL:      res.DownloadURL,
		Filename: res.Filename,
		VideoID:  res.VideoID,
		Title:    res.Title,
	})
	if err != nil {
		return result, err
	}

	result.Method = method
	result.Location = delivery.Location
	result.Size = delivery.Size
	return result, nil
}

func (c *Client) resolve(ctx context.Context, shareURL string) (videos.Resolution, error) {
	payload, err := json.Marshal(map[string]string{"url": shareURL})
	if err != nil {
		return videos.Resolution{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL+"/api/download", bytes.NewReader(payload))
	if err != nil {
		return videos.Resolution{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return videos.Resolution{}, fmt.Errorf("request download url: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return videos.Resolution{}, serverError(resp.StatusCode, body)
	}

	var res videos.Resolution
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return videos.Resolution{}, fmt.Errorf("decode download response: %w", err)
	}
	if res.DownloadURL == "" {
		return videos.Resolution{}, &ServerError{StatusCode: resp.StatusCode, Message: defaultServerMessage}
	}
	return res, nil
}

func serverError(status int, body []byte) *ServerError {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &ServerError{StatusCode: status, Message: fmt.Sprintf("HTTP %d: %s", status, body)}
	}
	if payload.Error == "" {
		return &ServerError{StatusCode: status, Message: defaultServerMessage}
	}
	return &ServerError{StatusCode: status, Message: payload.Error}
}

type deliveryStep struct {
	method Method
	run    func(context.Context, Download) (Delivery, error)
}

func (c *Client) plan() []deliveryStep {
	class := DeviceDesktop
	if c.Devices != nil {
		class = c.Devices.Detect()
	}

	var steps []deliveryStep
	if class == DeviceMobile && c.Sharer != nil {
		steps = append(steps, deliveryStep{method: MethodShare, run: func(ctx context.Context, d Download) (Delivery, error) {
			if !c.Sharer.CanShareFiles() {
				return Delivery{}, ErrShareUnsupported
			}
			return c.Sharer.Share(ctx, d)
		}})
	}
	if c.Saver != nil {
		steps = append(steps, deliveryStep{method: MethodDownload, run: c.Saver.Save})
	}
	if c.Opener != nil {
		steps = append(steps, deliveryStep{method: MethodOpen, run: c.Opener.Open})
	}
	return steps
}

func (c *Client) deliver(ctx context.Context, d Download) (Method, Delivery, error) {
	logger := logging.FromContext(ctx)
	shareErr := &ShareError{}

	for _, step := range c.plan() {
		if err := ctx.Err(); err != nil {
			shareErr.Attempts = append(shareErr.Attempts, Attempt{Method: step.method, Err: err})
			break
		}
		delivery, err := step.run(ctx, d)
		if err == nil {
			return step.method, delivery, nil
		}
		logger.Warn("delivery failed, trying next method", "method", step.method, "videoId", d.VideoID, "error", err)
		shareErr.Attempts = append(shareErr.Attempts, Attempt{Method: step.method, Err: err})
	}

	return "", Delivery{}, shareErr
}
