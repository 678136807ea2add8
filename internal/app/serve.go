package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomdrop/backend/internal/config"
	"github.com/loomdrop/backend/internal/db"
	"github.com/loomdrop/backend/internal/handlers"
	"github.com/loomdrop/backend/internal/httpserver"
	"github.com/loomdrop/backend/internal/logging"
	"github.com/loomdrop/backend/internal/middleware"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the download API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.New(os.Stdout, cfg.SlogLevel())
	slog.SetDefault(logger)

	var eventPool db.Pool
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		eventPool = pool
	}

	deps, cleanup := buildDependencies(eventPool, cfg, logger)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	handler := middleware.RequestLogger(logger)(mux)
	srv := httpserver.New(cfg.AppPort, handler, max(cfg.DownloadTimeout, cfg.MetadataTimeout))

	logger.Info("starting http server", "port", cfg.AppPort, "loomBaseUrl", cfg.LoomBaseURL, "eventLog", eventPool != nil)
	serveErr := srv.ListenAndServe(ctx)
	logger.Info("http server stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()
	if err := cleanup(shutdownCtx); err != nil {
		logger.Warn("flush resolution events", "error", err)
	}

	return serveErr
}
