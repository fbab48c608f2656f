package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerRepository persists balances and holds. The Move* methods are
// conditional updates: they change nothing and report an error when the
// source column cannot cover units.
type LedgerRepository interface {
	GetEntry(ctx context.Context, userID, leaveTypeID string, forUpdate bool) (LedgerEntry, error)
	ListEntries(ctx context.Context, userID string) ([]LedgerEntry, error)

	// Credit adds units to the available balance, creating the entry if needed
	Credit(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) (LedgerEntry, error)

	MoveAvailableToHeld(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) error
	MoveHeldToConsumed(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) error
	MoveHeldToAvailable(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) error

	// CreateHold returns ErrHoldConflict if a hold for the request exists
	CreateHold(ctx context.Context, hold Hold) (Hold, error)
	GetHold(ctx context.Context, requestID string, forUpdate bool) (Hold, error)
	UpdateHoldStatus(ctx context.Context, requestID string, status HoldStatus, at time.Time) (Hold, error)

	// ListLeakedHolds returns held holds created before cutoff whose request
	// is missing, deleted or no longer pending
	ListLeakedHolds(ctx context.Context, cutoff time.Time) ([]LeakedHold, error)
}

type LeaveRequestRepository interface {
	Create(ctx context.Context, request LeaveRequest) (LeaveRequest, error)
	GetByID(ctx context.Context, id string, forUpdate bool) (LeaveRequest, error)

	// Update writes the status and decision columns
	Update(ctx context.Context, request LeaveRequest) (LeaveRequest, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error

	ListByUser(ctx context.Context, userID string, filter LeaveRequestFilter) ([]LeaveRequest, error)
	ListByStatus(ctx context.Context, status RequestStatus) ([]LeaveRequest, error)
}
