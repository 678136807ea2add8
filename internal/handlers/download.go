package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loomdrop/backend/internal/logging"
	"github.com/loomdrop/backend/internal/models"
	"github.com/loomdrop/backend/internal/videos"
)

const maxDownloadBodyBytes = 64 << 10

// DownloadHandler resolves share URLs into direct download links.
type DownloadHandler struct {
	Resolver VideoResolver
	Limiter  RateLimiter
	Events   EventRecorder
	NowFunc  func() time.Time
}

type downloadRequest struct {
	URL any `json:"url"`
}

// Resolve handles POST /api/download.
func (h DownloadHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	started := h.now()

	event := models.ResolutionEvent{
		ID:        uuid.NewString(),
		RequestID: logging.RequestIDFromContext(ctx),
	}
	finish := func(status int, outcome string) {
		event.Status = status
		event.Outcome = outcome
		event.Duration = h.now().Sub(started)
		event.CreatedAt = started
		h.record(ctx, event)
	}

	if ok, wait := allowRequest(h.Limiter, r, "download"); !ok {
		logger.Warn("download rate limited", "client", clientIP(r), "retryAfter", wait)
		setRetryAfter(w, wait)
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
		finish(http.StatusTooManyRequests, models.OutcomeRateLimited)
		return
	}

	if h.Resolver == nil {
		logger.Error("download resolver unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "Failed to process download request")
		finish(http.StatusInternalServerError, models.OutcomeInternalError)
		return
	}

	var req downloadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDownloadBodyBytes)).Decode(&req); err != nil {
		logger.Warn("invalid download payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		finish(http.StatusBadRequest, models.OutcomeInvalidRequest)
		return
	}

	shareURL, ok := req.URL.(string)
	if !ok || strings.TrimSpace(shareURL) == "" {
		respondError(ctx, w, http.StatusBadRequest, "URL is required")
		finish(http.StatusBadRequest, models.OutcomeInvalidRequest)
		return
	}

	videoID, err := videos.ExtractID(strings.TrimSpace(shareURL))
	if err != nil {
		logger.Warn("share url rejected", "url", shareURL, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "Invalid Loom URL")
		finish(http.StatusBadRequest, models.OutcomeInvalidRequest)
		return
	}
	event.VideoID = videoID
	ctx = logging.With(ctx, "videoId", videoID)
	logger = logging.FromContext(ctx)
	logger.Info("resolving video")

	res, err := h.Resolver.Resolve(ctx, videoID)
	if err != nil {
		status, outcome, message := classifyResolveError(err)
		respondError(ctx, w, status, message)
		finish(status, outcome)
		return
	}

	event.TitleFallback = res.Title == ""
	logger.Info("video resolved", "filename", res.Filename, "titleFallback", event.TitleFallback)
	respondJSON(ctx, w, http.StatusOK, res)
	finish(http.StatusOK, models.OutcomeResolved)
}

func classifyResolveError(err error) (int, string, string) {
	var upstreamErr *videos.UpstreamError
	switch {
	case errors.Is(err, videos.ErrDownloadURLNotFound):
		return http.StatusNotFound, models.OutcomeNotFound, "Could not get download URL"
	case videos.IsTimeout(err):
		return http.StatusGatewayTimeout, models.OutcomeUpstreamTimeout, "Loom did not respond in time"
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway, models.OutcomeUpstreamError, "Failed to reach Loom"
	default:
		return http.StatusInternalServerError, models.OutcomeInternalError, "Failed to process download request"
	}
}

func (h DownloadHandler) record(ctx context.Context, event models.ResolutionEvent) {
	if h.Events == nil {
		return
	}
	if err := h.Events.Enqueue(event); err != nil {
		logging.FromContext(ctx).Warn("resolution event not recorded", "eventId", event.ID, "error", err)
	}
}

func (h DownloadHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
