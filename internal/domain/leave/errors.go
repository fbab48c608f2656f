package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Ledger errors
	ErrInsufficientBalance  = errors.New("insufficient leave balance")
	ErrNoActiveHold         = errors.New("no active hold for this request")
	ErrHoldAlreadyReleased  = errors.New("hold has already been released")
	ErrHoldAlreadyFinalized = errors.New("hold has already been finalized")
	ErrHoldConflict         = errors.New("a different hold already exists for this request")
	ErrHoldExists           = errors.New("a hold already exists for this request")
	ErrLedgerEntryNotFound  = errors.New("leave balance not found")
	ErrInvalidUnits         = errors.New("units must be positive with at most two decimals")

	// Request errors
	ErrLeaveRequestNotFound    = errors.New("leave request not found")
	ErrRequestAlreadyProcessed = errors.New("leave request already processed")
	ErrSelfApproval            = errors.New("a leave request cannot be decided by its requester")
	ErrNotRequestOwner         = errors.New("only the requester can perform this action")
)

// InsufficientBalanceError carries the numbers a caller needs to explain a
// rejected hold. It matches ErrInsufficientBalance.
type InsufficientBalanceError struct {
	UserID      string
	LeaveTypeID string
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance: requested %s, available %s", e.Requested.String(), e.Available.String())
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
