package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loomdrop/backend/internal/models"
)

// EventStore persists resolution events.
type EventStore interface {
	Record(ctx context.Context, event models.ResolutionEvent) error
}

// Config controls the concurrency characteristics of the recorder.
type Config struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

var (
	// ErrQueueFull indicates an event was dropped because the queue had no room.
	ErrQueueFull = errors.New("audit queue full")
	// ErrRecorderClosed indicates the recorder has been shut down.
	ErrRecorderClosed = errors.New("audit recorder closed")
)

// Recorder writes resolution events to an EventStore from a pool of background
// workers so that requests never wait on the database.
type Recorder struct {
	store  EventStore
	logger *slog.Logger
	cfg    Config

	mu     sync.RWMutex
	closed bool
	events chan models.ResolutionEvent
	wg     sync.WaitGroup
}

// NewRecorder starts cfg.Workers workers draining a queue of cfg.QueueSize events.
func NewRecorder(store EventStore, cfg Config, logger *slog.Logger) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	rec := &Recorder{
		store:  store,
		logger: logger,
		cfg:    cfg,
		events: make(chan models.ResolutionEvent, cfg.QueueSize),
	}

	rec.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go rec.worker()
	}

	return rec
}

// Enqueue hands event to the workers without blocking. A full queue drops the
// event and returns ErrQueueFull.
func (r *Recorder) Enqueue(event models.ResolutionEvent) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrRecorderClosed
	}

	select {
	case r.events <- event:
		return nil
	default:
		r.logger.Warn("dropping resolution event", "eventId", event.ID, "videoId", event.VideoID, "outcome", event.Outcome)
		return ErrQueueFull
	}
}

// Shutdown stops accepting events and waits for queued ones to be written.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for event := range r.events {
		r.write(event)
	}
}

func (r *Recorder) write(event models.ResolutionEvent) {
	if r.store == nil {
		r.logger.Error("audit recorder missing event store", "eventId", event.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	if err := r.store.Record(ctx, event); err != nil {
		r.logger.Error("record resolution event", "eventId", event.ID, "videoId", event.VideoID, "error", err)
	}
}
