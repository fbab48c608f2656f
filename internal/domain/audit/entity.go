package audit

import "time"

const (
	EntityAttendance   = "attendance"
	EntityLeaveLedger  = "leave_ledger"
	EntityLeaveHold    = "leave_hold"
	EntityLeaveRequest = "leave_request"
)

// Event is one line of the audit trail.
type Event struct {
	ID         string         `json:"id"`
	OccurredAt time.Time      `json:"occurred_at"`
	ActorID    string         `json:"actor_id"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	Detail     map[string]any `json:"detail,omitempty"`
}
