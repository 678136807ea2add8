package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loomdrop/backend/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func testConfig() config.Config {
	return config.Config{
		LoomBaseURL:     "https://loom.test",
		DownloadTimeout: time.Second,
		MetadataTimeout: time.Second,
		RateLimit:       config.RateLimitConfig{Requests: 10, Window: time.Minute, Burst: 5},
		Audit:           config.AuditConfig{Workers: 1, QueueSize: 4},
	}
}

func TestBuildDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, cleanup := buildDependencies(fakePool{}, testConfig(), logger)
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := cleanup(ctx); err != nil {
			t.Errorf("cleanup: %v", err)
		}
	}()

	if deps.Resolver == nil {
		t.Fatal("expected resolver to be configured")
	}
	if deps.Limiter == nil {
		t.Fatal("expected rate limiter to be configured")
	}
	if deps.Events == nil {
		t.Fatal("expected event recorder to be configured")
	}
}

func TestBuildDependenciesWithoutDatabase(t *testing.T) {
	deps, cleanup := buildDependencies(nil, testConfig(), slog.Default())

	if deps.Events != nil {
		t.Fatal("expected event log to be disabled without a pool")
	}
	if err := cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
