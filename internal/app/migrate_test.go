package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/loomdrop/backend/internal/config"
)

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.sql", "0001_a.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := listMigrations(dir)
	if err != nil {
		t.Fatalf("listMigrations() error = %v", err)
	}
	if strings.Join(got, ",") != "0001_a.sql,0002_b.sql" {
		t.Fatalf("unexpected migrations %v", got)
	}

	if _, err := listMigrations(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestMigrationBackoff(t *testing.T) {
	tests := map[int]time.Duration{
		1:  100 * time.Millisecond,
		2:  200 * time.Millisecond,
		3:  400 * time.Millisecond,
		10: migrationMaxBackoff,
	}
	for retry, want := range tests {
		if got := migrationBackoff(retry); got != want {
			t.Errorf("migrationBackoff(%d) = %v want %v", retry, got, want)
		}
	}
}

func TestWithRetry(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}

	t.Run("recovers from transient error", func(t *testing.T) {
		calls, retries := 0, 0
		err := withRetry(context.Background(), 3, func() error {
			calls++
			if calls == 1 {
				return serialization
			}
			return nil
		}, func(int, error) { retries++ })
		if err != nil {
			t.Fatalf("withRetry() error = %v", err)
		}
		if calls != 2 || retries != 1 {
			t.Fatalf("expected 2 calls and 1 retry got %d and %d", calls, retries)
		}
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		calls := 0
		syntax := &pgconn.PgError{Code: "42601"}
		err := withRetry(context.Background(), 3, func() error {
			calls++
			return syntax
		}, nil)
		if !errors.Is(err, syntax) || calls != 1 {
			t.Fatalf("expected single failing call got %d calls, err %v", calls, err)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := withRetry(context.Background(), 2, func() error {
			calls++
			return serialization
		}, nil)
		if !errors.Is(err, serialization) || calls != 2 {
			t.Fatalf("expected 2 calls and wrapped error got %d, %v", calls, err)
		}
	})

	t.Run("stops when context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := withRetry(ctx, 3, func() error { return serialization }, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled got %v", err)
		}
	})
}

func TestShouldRetryMigration(t *testing.T) {
	if shouldRetryMigration(nil) {
		t.Fatal("nil is not retryable")
	}
	if !shouldRetryMigration(&pgconn.PgError{Code: "40P01"}) {
		t.Fatal("deadlock should be retryable")
	}
	if shouldRetryMigration(errors.New("syntax error")) {
		t.Fatal("plain errors are not retryable")
	}
	if !shouldRetryMigration(context.DeadlineExceeded) {
		t.Fatal("deadline exceeded should be retryable")
	}
}

func TestRunMigrationsRequiresDatabase(t *testing.T) {
	err := runMigrations(context.Background(), &bytes.Buffer{}, config.Config{MigrationDir: "migrations"}, "up")
	if !errors.Is(err, errDatabaseURLRequired) {
		t.Fatalf("expected errDatabaseURLRequired got %v", err)
	}
}

func TestMigrateCommandRejectsUnknownAction(t *testing.T) {
	if err := execute(context.Background(), []string{"migrate", "down"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unsupported action")
	}
}
