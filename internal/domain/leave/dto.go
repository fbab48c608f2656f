package leave

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ValidUnits accepts positive amounts with at most two decimal places.
func ValidUnits(units decimal.Decimal) bool {
	return units.IsPositive() && units.Equal(units.Round(2))
}

// ========================================
// LEDGER DTOs
// ========================================

type HoldRequest struct {
	RequestID   string          `json:"request_id" validate:"required"`
	UserID      string          `json:"user_id" validate:"required"`
	LeaveTypeID string          `json:"leave_type_id" validate:"required"`
	Units       decimal.Decimal `json:"units"`
}

func (r *HoldRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}
	if !ValidUnits(r.Units) {
		return validator.ValidationErrors{{Field: "units", Message: ErrInvalidUnits.Error()}}
	}
	return nil
}

type GrantRequest struct {
	UserID      string          `json:"user_id" validate:"required"`
	LeaveTypeID string          `json:"leave_type_id" validate:"required"`
	Units       decimal.Decimal `json:"units"`
	Reason      string          `json:"reason" validate:"max=500"`
	ActorID     string          `json:"-" validate:"required"`
}

func (r *GrantRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}
	if !ValidUnits(r.Units) {
		return validator.ValidationErrors{{Field: "units", Message: ErrInvalidUnits.Error()}}
	}
	return nil
}

// ========================================
// REQUEST DTOs
// ========================================

type SubmitLeaveRequest struct {
	UserID      string           `json:"-" validate:"required"`
	LeaveTypeID string           `json:"leave_type_id" validate:"required"`
	StartDate   string           `json:"start_date" validate:"required"`
	EndDate     string           `json:"end_date" validate:"required"`
	Units       *decimal.Decimal `json:"units,omitempty"`
	Reason      string           `json:"reason" validate:"max=1000"`

	startDate time.Time
	endDate   time.Time
}

func (r *SubmitLeaveRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}

	var errs validator.ValidationErrors
	start, okStart := validator.IsValidDate(r.StartDate)
	if !okStart {
		errs = append(errs, validator.ValidationError{Field: "start_date", Message: "start_date must be in YYYY-MM-DD format"})
	}
	end, okEnd := validator.IsValidDate(r.EndDate)
	if !okEnd {
		errs = append(errs, validator.ValidationError{Field: "end_date", Message: "end_date must be in YYYY-MM-DD format"})
	}
	if okStart && okEnd && end.Before(start) {
		errs = append(errs, validator.ValidationError{Field: "end_date", Message: "end_date must not be before start_date"})
	}
	if r.Units != nil && !ValidUnits(*r.Units) {
		errs = append(errs, validator.ValidationError{Field: "units", Message: ErrInvalidUnits.Error()})
	}
	if len(errs) > 0 {
		return errs
	}

	r.startDate, r.endDate = start, end
	return nil
}

// Dates returns the parsed range; only meaningful after Validate.
func (r *SubmitLeaveRequest) Dates() (time.Time, time.Time) {
	return r.startDate, r.endDate
}

// RequestedUnits defaults to the inclusive calendar-day count.
func (r *SubmitLeaveRequest) RequestedUnits() decimal.Decimal {
	if r.Units != nil {
		return *r.Units
	}
	return decimal.NewFromInt(int64(CalendarDays(r.startDate, r.endDate)))
}

type DecideLeaveRequest struct {
	RequestID string `json:"-" validate:"required"`
	DeciderID string `json:"-" validate:"required"`
	Reason    string `json:"reason" validate:"max=1000"`
}

func (r *DecideLeaveRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	return validator.Struct(r)
}

type DeleteLeaveRequest struct {
	RequestID      string `validate:"required"`
	ActorID        string `validate:"required"`
	ActorIsManager bool
}

type LeaveRequestFilter struct {
	Status *RequestStatus
}
