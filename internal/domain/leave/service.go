package leave

import (
	"context"
	"time"
)

// LedgerService is the only way balances change.
type LedgerService interface {
	Hold(ctx context.Context, req HoldRequest) (Hold, error)
	Finalize(ctx context.Context, requestID string) (Hold, error)
	Release(ctx context.Context, requestID string) (Hold, error)
	Grant(ctx context.Context, req GrantRequest) (LedgerEntry, error)

	GetBalance(ctx context.Context, userID, leaveTypeID string) (LedgerEntry, error)
	ListBalances(ctx context.Context, userID string) ([]LedgerEntry, error)
	GetHold(ctx context.Context, requestID string) (Hold, error)
	ListLeakedHolds(ctx context.Context, olderThan time.Duration) ([]LeakedHold, error)
}

// RequestService drives the ledger through a request's approval lifecycle.
type RequestService interface {
	Submit(ctx context.Context, req SubmitLeaveRequest) (LeaveRequest, error)
	Approve(ctx context.Context, req DecideLeaveRequest) (LeaveRequest, error)
	Reject(ctx context.Context, req DecideLeaveRequest) (LeaveRequest, error)
	Cancel(ctx context.Context, requestID string, userID string) (LeaveRequest, error)
	Delete(ctx context.Context, req DeleteLeaveRequest) error

	Get(ctx context.Context, id string) (LeaveRequest, error)
	ListMine(ctx context.Context, userID string, filter LeaveRequestFilter) ([]LeaveRequest, error)
	ListPending(ctx context.Context) ([]LeaveRequest, error)
}
