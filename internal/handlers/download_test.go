package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loomdrop/backend/internal/models"
	"github.com/loomdrop/backend/internal/videos"
)

type resolverStub struct {
	res    videos.Resolution
	err    error
	called []string
}

func (s *resolverStub) Resolve(_ context.Context, videoID string) (videos.Resolution, error) {
	s.called = append(s.called, videoID)
	if s.err != nil {
		return videos.Resolution{}, s.err
	}
	res := s.res
	res.VideoID = videoID
	return res, nil
}

type recorderStub struct {
	mu     sync.Mutex
	events []models.ResolutionEvent
	err    error
}

func (s *recorderStub) Enqueue(event models.ResolutionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recorderStub) last(t *testing.T) models.ResolutionEvent {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		t.Fatal("expected a resolution event to be recorded")
	}
	return s.events[len(s.events)-1]
}

type denyLimiter struct{ keys []string }

func (l *denyLimiter) Allow(key string) bool {
	l.keys = append(l.keys, key)
	return false
}

func postDownload(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

func TestDownloadHandlerResolves(t *testing.T) {
	resolver := &resolverStub{res: videos.Resolution{
		DownloadURL: "https://cdn.example/video.mp4",
		Filename:    "My Video Demo.mp4",
		Title:       "My: Video!! Demo",
	}}
	events := &recorderStub{}
	handler := DownloadHandler{Resolver: resolver, Events: events}

	rec := postDownload(t, http.HandlerFunc(handler.Resolve), `{"url":"https://www.loom.com/share/abc123?t=5"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp videos.Resolution
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.VideoID != "abc123" || resp.DownloadURL != "https://cdn.example/video.mp4" || resp.Filename != "My Video Demo.mp4" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resolver.called) != 1 || resolver.called[0] != "abc123" {
		t.Fatalf("expected resolver called with abc123 got %v", resolver.called)
	}

	event := events.last(t)
	if event.Outcome != models.OutcomeResolved || event.Status != http.StatusOK || event.VideoID != "abc123" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.TitleFallback {
		t.Fatal("expected title fallback to be false")
	}
	if event.ID == "" {
		t.Fatal("expected event id")
	}
}

func TestDownloadHandlerValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "missing url", body: `{}`, message: "URL is required"},
		{name: "blank url", body: `{"url":"   "}`, message: "URL is required"},
		{name: "non-string url", body: `{"url":42}`, message: "URL is required"},
		{name: "null url", body: `{"url":null}`, message: "URL is required"},
		{name: "malformed json", body: `{"url":`, message: "invalid request body"},
		{name: "trailing slash", body: `{"url":"https://www.loom.com/share/"}`, message: "Invalid Loom URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &resolverStub{}
			events := &recorderStub{}
			handler := DownloadHandler{Resolver: resolver, Events: events}

			rec := postDownload(t, http.HandlerFunc(handler.Resolve), tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400 got %d", rec.Code)
			}
			if msg := decodeError(t, rec); msg != tt.message {
				t.Fatalf("expected %q got %q", tt.message, msg)
			}
			if len(resolver.called) != 0 {
				t.Fatalf("resolver must not be called, got %v", resolver.called)
			}
			if events.last(t).Outcome != models.OutcomeInvalidRequest {
				t.Fatalf("unexpected outcome %q", events.last(t).Outcome)
			}
		})
	}
}

func TestDownloadHandlerResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		outcome string
		message string
	}{
		{
			name:    "not found",
			err:     videos.ErrDownloadURLNotFound,
			status:  http.StatusNotFound,
			outcome: models.OutcomeNotFound,
			message: "Could not get download URL",
		},
		{
			name:    "upstream status",
			err:     &videos.UpstreamError{Op: "loom transcoded-url", StatusCode: http.StatusInternalServerError},
			status:  http.StatusBadGateway,
			outcome: models.OutcomeUpstreamError,
			message: "Failed to reach Loom",
		},
		{
			name:    "upstream timeout",
			err:     &videos.UpstreamError{Op: "loom transcoded-url", Timeout: true, Err: context.DeadlineExceeded},
			status:  http.StatusGatewayTimeout,
			outcome: models.OutcomeUpstreamTimeout,
			message: "Loom did not respond in time",
		},
		{
			name:    "unexpected",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			outcome: models.OutcomeInternalError,
			message: "Failed to process download request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &recorderStub{}
			handler := DownloadHandler{Resolver: &resolverStub{err: tt.err}, Events: events}

			rec := postDownload(t, http.HandlerFunc(handler.Resolve), `{"url":"https://www.loom.com/share/abc123"}`)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d got %d", tt.status, rec.Code)
			}
			if msg := decodeError(t, rec); msg != tt.message {
				t.Fatalf("expected %q got %q", tt.message, msg)
			}
			event := events.last(t)
			if event.Outcome != tt.outcome || event.Status != tt.status || event.VideoID != "abc123" {
				t.Fatalf("unexpected event %+v", event)
			}
		})
	}
}

func TestDownloadHandlerRateLimited(t *testing.T) {
	limiter := &denyLimiter{}
	resolver := &resolverStub{}
	handler := DownloadHandler{Resolver: resolver, Limiter: limiter}

	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`{"url":"https://www.loom.com/share/abc123"}`))
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	handler.Resolve(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 got %d", rec.Code)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "download:203.0.113.7" {
		t.Fatalf("unexpected limiter keys %v", limiter.keys)
	}
	if len(resolver.called) != 0 {
		t.Fatal("resolver must not be called when rate limited")
	}
}

func TestDownloadHandlerMissingResolver(t *testing.T) {
	rec := postDownload(t, http.HandlerFunc(DownloadHandler{}.Resolve), `{"url":"https://www.loom.com/share/abc123"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
}

func TestDownloadHandlerIgnoresRecorderErrors(t *testing.T) {
	events := &recorderStub{err: errors.New("queue full")}
	handler := DownloadHandler{Resolver: &resolverStub{res: videos.Resolution{DownloadURL: "https://cdn.example/v.mp4", Filename: "abc123.mp4"}}, Events: events}

	rec := postDownload(t, http.HandlerFunc(handler.Resolve), `{"url":"https://www.loom.com/share/abc123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if !events.last(t).TitleFallback {
		t.Fatal("expected title fallback when no title resolved")
	}
}

func TestRegisterRoutesMethods(t *testing.T) {
	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{Resolver: &resolverStub{}})

	req := httptest.NewRequest(http.MethodGet, "/api/download", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

// fakeLoom serves the two session endpoints. Sessions missing from urls get a 404
// on the transcoded-url call; the metadata endpoint always fails unless named.
func fakeLoom(t *testing.T, urls, names map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/campaigns/sessions/{id}/transcoded-url", func(w http.ResponseWriter, r *http.Request) {
		downloadURL, ok := urls[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": downloadURL})
	})
	mux.HandleFunc("GET /api/campaigns/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		name, ok := names[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"name":%q}`, name)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newEndToEndMux(t *testing.T, upstream *httptest.Server) *http.ServeMux {
	t.Helper()
	client := videos.NewLoomClient(upstream.URL, upstream.Client())
	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{Resolver: videos.NewResolver(client, time.Second, time.Second)})
	return mux
}

func TestDownloadEndToEndMetadataFailure(t *testing.T) {
	upstream := fakeLoom(t, map[string]string{"xyz789": "https://cdn.example/video.mp4"}, nil)
	mux := newEndToEndMux(t, upstream)

	rec := postDownload(t, mux, `{"url":"https://www.loom.com/share/xyz789"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["downloadUrl"] != "https://cdn.example/video.mp4" || resp["videoId"] != "xyz789" || resp["filename"] != "xyz789.mp4" {
		t.Fatalf("unexpected response %v", resp)
	}
	if _, ok := resp["title"]; ok {
		t.Fatalf("expected title to be omitted, got %v", resp["title"])
	}
}

func TestDownloadEndToEndWithTitle(t *testing.T) {
	upstream := fakeLoom(t,
		map[string]string{"abc123": "https://cdn.example/abc.mp4"},
		map[string]string{"abc123": "My: Video!! Demo"},
	)
	mux := newEndToEndMux(t, upstream)

	rec := postDownload(t, mux, `{"url":"https://www.loom.com/share/abc123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp videos.Resolution
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Filename != "My Video Demo.mp4" || resp.Title != "My: Video!! Demo" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestDownloadEndToEndUnknownIdentifier(t *testing.T) {
	upstream := fakeLoom(t, nil, nil)
	mux := newEndToEndMux(t, upstream)

	rec := postDownload(t, mux, `{"url":"not-a-url"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Could not get download URL" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestDownloadEndToEndMissingURL(t *testing.T) {
	upstream := fakeLoom(t, nil, nil)
	mux := newEndToEndMux(t, upstream)

	rec := postDownload(t, mux, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "URL is required" {
		t.Fatalf("unexpected message %q", msg)
	}
}
