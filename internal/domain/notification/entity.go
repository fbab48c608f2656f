package notification

import "time"

const EventLeaveStatusChanged = "leave_request.status_changed"

// StatusChange is emitted after a leave request transition has committed.
// UserID is the requester, who receives the notification.
type StatusChange struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	UserID         string    `json:"user_id"`
	LeaveTypeID    string    `json:"leave_type_id"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Status         string    `json:"status"`
	ActorID        string    `json:"actor_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}
