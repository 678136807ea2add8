package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// spanIDs locates a span within its trace. The trace id is inherited from the
// request id when one is present so upstream calls group with their request.
type spanIDs struct {
	traceID string
	spanID  string
}

// Span times a single upstream call or other unit of work.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
}

// StartSpan derives a child span from ctx and returns a context whose logger
// carries the trace, span and parent span ids.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)
	parent, hasParent := ctx.Value(spanKey).(spanIDs)

	ids := spanIDs{traceID: parent.traceID, spanID: uuid.NewString()}
	if ids.traceID == "" {
		ids.traceID = RequestIDFromContext(ctx)
		if ids.traceID == "" {
			ids.traceID = uuid.NewString()
		}
		logger = logger.With(slog.String("trace_id", ids.traceID))
	}

	logger = logger.With(
		slog.String("span_id", ids.spanID),
		slog.String("span_name", name),
	)
	if hasParent {
		logger = logger.With(slog.String("parent_span_id", parent.spanID))
	}

	ctx = WithLogger(ctx, logger)
	ctx = context.WithValue(ctx, spanKey, ids)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// TraceIDFromContext returns the trace id of the innermost span, if any.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ids, _ := ctx.Value(spanKey).(spanIDs)
	return ids.traceID
}

// End emits a debug entry with the span's duration.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.logger.Debug("span completed", slog.Duration("duration", time.Since(s.start)))
}
