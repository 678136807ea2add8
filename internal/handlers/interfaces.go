package handlers

import (
	"context"

	"github.com/loomdrop/backend/internal/models"
	"github.com/loomdrop/backend/internal/videos"
)

// VideoResolver turns a video identifier into a downloadable resolution.
type VideoResolver interface {
	Resolve(ctx context.Context, videoID string) (videos.Resolution, error)
}

// EventRecorder accepts resolution outcomes for asynchronous persistence.
type EventRecorder interface {
	Enqueue(event models.ResolutionEvent) error
}

// RateLimiter is the minimal interface required to guard sensitive endpoints.
type RateLimiter interface {
	Allow(key string) bool
}
