package attendance

import (
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
)

// ========================================
// CLOCK EVENT DTOs
// ========================================

// ClockEventRequest drives one state machine transition for UserID. A nil
// Timestamp means "now" on the server clock.
type ClockEventRequest struct {
	UserID     string     `json:"-" validate:"required"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	WorkTypeID *string    `json:"work_type_id,omitempty" validate:"omitempty,uuid"`
}

func (r *ClockEventRequest) Validate() error {
	var errs validator.ValidationErrors

	if err := validator.Struct(r); err != nil {
		return err
	}
	if r.Timestamp != nil && r.Timestamp.IsZero() {
		errs = append(errs, validator.ValidationError{
			Field:   "timestamp",
			Message: "timestamp must be a valid RFC3339 time",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ClockEventResponse struct {
	Record  AttendanceRecord `json:"record"`
	State   ClockState       `json:"state"`
	Applied bool             `json:"applied"`
}

// ========================================
// CORRECTION DTOs
// ========================================

// ChangeSet lists the fields a correction replaces. Nil fields are carried
// forward from the corrected row.
type ChangeSet struct {
	ClockRecords *[]ClockSession `json:"clock_records,omitempty"`
	WorkTypeID   *string         `json:"work_type_id,omitempty" validate:"omitempty,uuid"`
}

type CorrectionRequest struct {
	RecordID string    `json:"-" validate:"required"`
	EditorID string    `json:"-" validate:"required"`
	Reason   string    `json:"reason"`
	Changes  ChangeSet `json:"changes"`
}

// Validate checks the request shape. A blank reason is reported by the
// service as ErrMissingEditReason.
func (r *CorrectionRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}
	return validator.Struct(r.Changes)
}

type CorrectionResponse struct {
	Record    AttendanceRecord `json:"record"`
	Changes   []FieldChange    `json:"changes"`
	NoChanges bool             `json:"no_changes"`
}

type DiffResponse struct {
	FromID    string        `json:"from_id"`
	ToID      string        `json:"to_id"`
	Changes   []FieldChange `json:"changes"`
	NoChanges bool          `json:"no_changes"`
}
