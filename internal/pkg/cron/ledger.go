package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/google/uuid"
)

// LedgerJobs reconciles holds whose request no longer needs them.
type LedgerJobs struct {
	ledgerService leave.LedgerService
	recorder      audit.Recorder
	interval      time.Duration
	leakAfter     time.Duration
	autoResolve   bool
}

type LedgerJobsConfig struct {
	Interval    time.Duration
	LeakAfter   time.Duration
	AutoResolve bool
}

func NewLedgerJobs(ledgerService leave.LedgerService, recorder audit.Recorder, cfg LedgerJobsConfig) *LedgerJobs {
	return &LedgerJobs{
		ledgerService: ledgerService,
		recorder:      recorder,
		interval:      cfg.Interval,
		leakAfter:     cfg.LeakAfter,
		autoResolve:   cfg.AutoResolve,
	}
}

func (j *LedgerJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("reconcile_leaked_holds", j.interval, j.ReconcileLeakedHolds)
}

// ReconcileResult counts what one reconciliation pass did.
type ReconcileResult struct {
	Found     int
	Finalized int
	Released  int
	Failed    int
}

func (j *LedgerJobs) ReconcileLeakedHolds(ctx context.Context) error {
	_, err := j.Reconcile(ctx)
	return err
}

// Reconcile reports leaked holds. With auto-resolve on, holds of approved
// requests are finalized and all others released.
func (j *LedgerJobs) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	leaked, err := j.ledgerService.ListLeakedHolds(ctx, j.leakAfter)
	if err != nil {
		return result, fmt.Errorf("failed to list leaked holds: %w", err)
	}
	result.Found = len(leaked)

	for _, l := range leaked {
		status := "missing"
		if l.RequestStatus != nil {
			status = string(*l.RequestStatus)
		}
		slog.Warn("Cron: Leaked leave hold",
			"request_id", l.Hold.RequestID,
			"user_id", l.Hold.UserID,
			"units", l.Hold.UnitsHeld.String(),
			"request_status", status,
			"request_deleted", l.RequestDeleted,
		)
		j.record(ctx, l, status)

		if !j.autoResolve {
			continue
		}

		if finalizes(l) {
			_, err = j.ledgerService.Finalize(ctx, l.Hold.RequestID)
		} else {
			_, err = j.ledgerService.Release(ctx, l.Hold.RequestID)
		}
		switch {
		case err == nil && finalizes(l):
			result.Finalized++
		case err == nil:
			result.Released++
		case errors.Is(err, leave.ErrHoldAlreadyFinalized), errors.Is(err, leave.ErrHoldAlreadyReleased):
			// resolved by a request transition since the listing
		default:
			result.Failed++
			slog.Error("Cron: Failed to resolve leaked hold", "request_id", l.Hold.RequestID, "error", err)
		}
	}

	if result.Found > 0 {
		slog.Info("Cron: Leaked holds reconciled",
			"found", result.Found,
			"finalized", result.Finalized,
			"released", result.Released,
			"failed", result.Failed,
		)
	}
	if result.Failed > 0 {
		return result, fmt.Errorf("%d leaked holds could not be resolved", result.Failed)
	}
	return result, nil
}

func finalizes(l leave.LeakedHold) bool {
	return !l.RequestDeleted && l.RequestStatus != nil && *l.RequestStatus == leave.RequestStatusApproved
}

func (j *LedgerJobs) record(ctx context.Context, l leave.LeakedHold, status string) {
	if j.recorder == nil {
		return
	}
	err := j.recorder.Record(ctx, audit.Event{
		ID:         uuid.Must(uuid.NewV7()).String(),
		OccurredAt: time.Now().UTC(),
		ActorID:    "system",
		Entity:     audit.EntityLeaveHold,
		EntityID:   l.Hold.RequestID,
		Action:     "leak_detected",
		Detail: map[string]any{
			"user_id":         l.Hold.UserID,
			"leave_type_id":   l.Hold.LeaveTypeID,
			"units":           l.Hold.UnitsHeld.String(),
			"request_status":  status,
			"request_deleted": l.RequestDeleted,
		},
	})
	if err != nil {
		slog.Error("failed to record audit event", "entity", audit.EntityLeaveHold, "entity_id", l.Hold.RequestID, "error", err)
	}
}
