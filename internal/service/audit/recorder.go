package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
)

// LogRecorder writes audit events to the structured log.
type LogRecorder struct {
	logger *slog.Logger
}

func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger.With("component", "audit")}
}

func (l *LogRecorder) Record(ctx context.Context, events ...audit.Event) error {
	for _, e := range events {
		l.logger.InfoContext(ctx, "audit",
			"id", e.ID,
			"occurred_at", e.OccurredAt,
			"actor_id", e.ActorID,
			"entity", e.Entity,
			"entity_id", e.EntityID,
			"action", e.Action,
			"detail", e.Detail,
		)
	}
	return nil
}

// Fanout records to every recorder and joins their errors. One failing
// recorder does not stop the others.
type Fanout []audit.Recorder

func (f Fanout) Record(ctx context.Context, events ...audit.Event) error {
	var errs []error
	for _, r := range f {
		if err := r.Record(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
