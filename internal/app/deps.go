package app

import (
	"context"
	"log/slog"

	"github.com/loomdrop/backend/internal/audit"
	"github.com/loomdrop/backend/internal/config"
	"github.com/loomdrop/backend/internal/db"
	"github.com/loomdrop/backend/internal/handlers"
	"github.com/loomdrop/backend/internal/middleware"
	"github.com/loomdrop/backend/internal/repositories"
	"github.com/loomdrop/backend/internal/videos"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. A nil pool leaves the resolution event log disabled.
func buildDependencies(pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error) {
	loom := videos.NewLoomClient(cfg.LoomBaseURL, nil)
	deps := handlers.Dependencies{
		Resolver: videos.NewResolver(loom, cfg.DownloadTimeout, cfg.MetadataTimeout),
		Limiter:  middleware.NewDownloadRateLimiter(cfg.RateLimit),
	}

	if pool == nil {
		return deps, func(context.Context) error { return nil }
	}

	recorder := audit.NewRecorder(repositories.NewPostgresEventLog(pool), audit.Config{
		QueueSize: cfg.Audit.QueueSize,
		Workers:   cfg.Audit.Workers,
	}, logger)
	deps.Events = recorder

	return deps, recorder.Shutdown
}
