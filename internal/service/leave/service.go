package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerServiceImpl guards every balance change with a lock on the ledger
// row inside one transaction.
type LedgerServiceImpl struct {
	transactor database.Transactor
	leave.LedgerRepository
	recorder audit.Recorder
	now      func() time.Time
}

func NewLedgerService(transactor database.Transactor, ledgerRepository leave.LedgerRepository, recorder audit.Recorder) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		transactor:       transactor,
		LedgerRepository: ledgerRepository,
		recorder:         recorder,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the service clock.
func (l *LedgerServiceImpl) SetClock(now func() time.Time) {
	l.now = now
}

// Hold implements leave.LedgerService. Replaying a hold with the same
// parameters returns the stored hold unchanged, including a replay that
// raced the original insert.
func (l *LedgerServiceImpl) Hold(ctx context.Context, req leave.HoldRequest) (leave.Hold, error) {
	hold, created, err := l.hold(ctx, req)
	if errors.Is(err, leave.ErrHoldExists) {
		// the losing insert rolled back; compare against the winner
		return l.replayed(ctx, req)
	}
	if err != nil {
		return leave.Hold{}, err
	}
	if created {
		l.holdChanged(ctx, hold.UserID, hold, "hold")
	}
	return hold, nil
}

// hold joins the caller's transaction when there is one; created reports
// whether units actually moved.
func (l *LedgerServiceImpl) hold(ctx context.Context, req leave.HoldRequest) (hold leave.Hold, created bool, err error) {
	if err := req.Validate(); err != nil {
		return leave.Hold{}, false, err
	}

	err = l.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := l.LedgerRepository.GetHold(ctx, req.RequestID, true)
		switch {
		case err == nil:
			if !sameHold(existing, req) {
				return leave.ErrHoldConflict
			}
			hold = existing
			return nil
		case !errors.Is(err, leave.ErrNoActiveHold):
			return err
		}

		entry, err := l.LedgerRepository.GetEntry(ctx, req.UserID, req.LeaveTypeID, true)
		if err != nil {
			if errors.Is(err, leave.ErrLedgerEntryNotFound) {
				return insufficient(req, decimal.Zero)
			}
			return err
		}
		if entry.AvailableUnits.LessThan(req.Units) {
			return insufficient(req, entry.AvailableUnits)
		}

		if err := l.LedgerRepository.MoveAvailableToHeld(ctx, req.UserID, req.LeaveTypeID, req.Units); err != nil {
			if errors.Is(err, leave.ErrInsufficientBalance) {
				return insufficient(req, entry.AvailableUnits)
			}
			return err
		}

		hold, err = l.LedgerRepository.CreateHold(ctx, leave.Hold{
			RequestID:   req.RequestID,
			UserID:      req.UserID,
			LeaveTypeID: req.LeaveTypeID,
			UnitsHeld:   req.Units,
			Status:      leave.HoldStatusHeld,
		})
		created = err == nil
		return err
	})
	if err != nil {
		return leave.Hold{}, false, err
	}
	return hold, created, nil
}

func (l *LedgerServiceImpl) replayed(ctx context.Context, req leave.HoldRequest) (leave.Hold, error) {
	existing, err := l.LedgerRepository.GetHold(ctx, req.RequestID, false)
	if err != nil {
		return leave.Hold{}, err
	}
	if !sameHold(existing, req) {
		return leave.Hold{}, leave.ErrHoldConflict
	}
	return existing, nil
}

func sameHold(existing leave.Hold, req leave.HoldRequest) bool {
	return existing.UserID == req.UserID &&
		existing.LeaveTypeID == req.LeaveTypeID &&
		existing.UnitsHeld.Equal(req.Units)
}

func insufficient(req leave.HoldRequest, available decimal.Decimal) error {
	return &leave.InsufficientBalanceError{
		UserID:      req.UserID,
		LeaveTypeID: req.LeaveTypeID,
		Requested:   req.Units,
		Available:   available,
	}
}

// Finalize implements leave.LedgerService.
func (l *LedgerServiceImpl) Finalize(ctx context.Context, requestID string) (leave.Hold, error) {
	return l.resolveAndRecord(ctx, requestID, leave.HoldStatusFinalized)
}

// Release implements leave.LedgerService.
func (l *LedgerServiceImpl) Release(ctx context.Context, requestID string) (leave.Hold, error) {
	return l.resolveAndRecord(ctx, requestID, leave.HoldStatusReleased)
}

func (l *LedgerServiceImpl) resolveAndRecord(ctx context.Context, requestID string, target leave.HoldStatus) (leave.Hold, error) {
	hold, changed, err := l.resolve(ctx, requestID, target)
	if err != nil {
		return leave.Hold{}, err
	}
	if changed {
		l.holdChanged(ctx, hold.UserID, hold, string(target))
	}
	return hold, nil
}

// resolve moves a held hold to a terminal status. Reaching the same status
// twice is a no-op; crossing to the other terminal status is refused.
func (l *LedgerServiceImpl) resolve(ctx context.Context, requestID string, target leave.HoldStatus) (hold leave.Hold, changed bool, err error) {
	if requestID == "" {
		return leave.Hold{}, false, leave.ErrNoActiveHold
	}

	err = l.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := l.LedgerRepository.GetHold(ctx, requestID, true)
		if err != nil {
			return err
		}

		switch current.Status {
		case target:
			hold = current
			return nil
		case leave.HoldStatusReleased:
			return leave.ErrHoldAlreadyReleased
		case leave.HoldStatusFinalized:
			return leave.ErrHoldAlreadyFinalized
		}

		if _, err := l.LedgerRepository.GetEntry(ctx, current.UserID, current.LeaveTypeID, true); err != nil {
			return err
		}

		move := l.LedgerRepository.MoveHeldToConsumed
		if target == leave.HoldStatusReleased {
			move = l.LedgerRepository.MoveHeldToAvailable
		}
		if err := move(ctx, current.UserID, current.LeaveTypeID, current.UnitsHeld); err != nil {
			return err
		}

		hold, err = l.LedgerRepository.UpdateHoldStatus(ctx, requestID, target, l.now())
		changed = err == nil
		return err
	})
	if err != nil {
		return leave.Hold{}, false, err
	}
	return hold, changed, nil
}

// Grant implements leave.LedgerService.
func (l *LedgerServiceImpl) Grant(ctx context.Context, req leave.GrantRequest) (leave.LedgerEntry, error) {
	if err := req.Validate(); err != nil {
		return leave.LedgerEntry{}, err
	}

	var entry leave.LedgerEntry
	err := l.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := l.LedgerRepository.GetEntry(ctx, req.UserID, req.LeaveTypeID, true); err != nil && !errors.Is(err, leave.ErrLedgerEntryNotFound) {
			return err
		}
		var err error
		entry, err = l.LedgerRepository.Credit(ctx, req.UserID, req.LeaveTypeID, req.Units)
		return err
	})
	if err != nil {
		return leave.LedgerEntry{}, fmt.Errorf("grant leave units: %w", err)
	}

	slog.Info("leave units granted",
		"user_id", req.UserID,
		"leave_type_id", req.LeaveTypeID,
		"units", req.Units.String(),
		"actor_id", req.ActorID,
	)
	if l.recorder != nil {
		l.send(ctx, audit.Event{
			ActorID:  req.ActorID,
			Entity:   audit.EntityLeaveLedger,
			EntityID: req.UserID + "/" + req.LeaveTypeID,
			Action:   "grant",
			Detail: map[string]any{
				"units":     req.Units.String(),
				"reason":    req.Reason,
				"available": entry.AvailableUnits.String(),
			},
		})
	}
	return entry, nil
}

// GetBalance implements leave.LedgerService.
func (l *LedgerServiceImpl) GetBalance(ctx context.Context, userID, leaveTypeID string) (leave.LedgerEntry, error) {
	return l.LedgerRepository.GetEntry(ctx, userID, leaveTypeID, false)
}

// ListBalances implements leave.LedgerService.
func (l *LedgerServiceImpl) ListBalances(ctx context.Context, userID string) ([]leave.LedgerEntry, error) {
	return l.LedgerRepository.ListEntries(ctx, userID)
}

// GetHold implements leave.LedgerService.
func (l *LedgerServiceImpl) GetHold(ctx context.Context, requestID string) (leave.Hold, error) {
	return l.LedgerRepository.GetHold(ctx, requestID, false)
}

// ListLeakedHolds implements leave.LedgerService.
func (l *LedgerServiceImpl) ListLeakedHolds(ctx context.Context, olderThan time.Duration) ([]leave.LeakedHold, error) {
	if olderThan < 0 {
		return nil, fmt.Errorf("older_than must not be negative")
	}
	return l.LedgerRepository.ListLeakedHolds(ctx, l.now().Add(-olderThan))
}

// holdChanged logs and audits a committed hold transition.
func (l *LedgerServiceImpl) holdChanged(ctx context.Context, actorID string, hold leave.Hold, action string) {
	slog.Info("leave hold changed",
		"action", action,
		"request_id", hold.RequestID,
		"user_id", hold.UserID,
		"leave_type_id", hold.LeaveTypeID,
		"units", hold.UnitsHeld.String(),
		"status", hold.Status,
	)
	if l.recorder == nil {
		return
	}
	l.send(ctx, audit.Event{
		ActorID:  actorID,
		Entity:   audit.EntityLeaveHold,
		EntityID: hold.RequestID,
		Action:   action,
		Detail: map[string]any{
			"user_id":       hold.UserID,
			"leave_type_id": hold.LeaveTypeID,
			"units":         hold.UnitsHeld.String(),
			"status":        hold.Status,
		},
	})
}

func (l *LedgerServiceImpl) send(ctx context.Context, event audit.Event) {
	event.ID = uuid.Must(uuid.NewV7()).String()
	event.OccurredAt = l.now()
	if err := l.recorder.Record(ctx, event); err != nil {
		slog.Error("failed to record audit event", "entity", event.Entity, "entity_id", event.EntityID, "error", err)
	}
}
