package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

type HoldStatus string

const (
	HoldStatusHeld      HoldStatus = "held"
	HoldStatusFinalized HoldStatus = "finalized"
	HoldStatusReleased  HoldStatus = "released"
)

func (s HoldStatus) IsTerminal() bool {
	return s == HoldStatusFinalized || s == HoldStatusReleased
}

// LedgerEntry is the balance of one leave type for one user. Held units are
// not part of AvailableUnits, so the three columns always sum to everything
// ever granted.
type LedgerEntry struct {
	UserID         string          `json:"user_id"`
	LeaveTypeID    string          `json:"leave_type_id"`
	AvailableUnits decimal.Decimal `json:"available_units"`
	HeldUnits      decimal.Decimal `json:"held_units"`
	ConsumedUnits  decimal.Decimal `json:"consumed_units"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (e LedgerEntry) Total() decimal.Decimal {
	return e.AvailableUnits.Add(e.HeldUnits).Add(e.ConsumedUnits)
}

// Hold reserves units against a ledger entry while RequestID is pending.
type Hold struct {
	RequestID   string          `json:"request_id"`
	UserID      string          `json:"user_id"`
	LeaveTypeID string          `json:"leave_type_id"`
	UnitsHeld   decimal.Decimal `json:"units_held"`
	Status      HoldStatus      `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
}

// LeakedHold is a hold still in HoldStatusHeld although its request is gone
// or no longer pending.
type LeakedHold struct {
	Hold           Hold           `json:"hold"`
	RequestStatus  *RequestStatus `json:"request_status,omitempty"`
	RequestDeleted bool           `json:"request_deleted"`
}

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
)

type LeaveRequest struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	LeaveTypeID     string          `json:"leave_type_id"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	Units           decimal.Decimal `json:"units"`
	Reason          string          `json:"reason"`
	Status          RequestStatus   `json:"status"`
	DecidedBy       *string         `json:"decided_by,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
}

// CalendarDays counts the days of an inclusive date range.
func CalendarDays(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}
