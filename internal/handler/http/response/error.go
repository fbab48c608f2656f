package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/user"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/worktype"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var insufficient *leave.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		UnprocessableEntity(w, "INSUFFICIENT_BALANCE", "Insufficient leave balance", map[string]string{
			"requested": insufficient.Requested.String(),
			"available": insufficient.Available.String(),
		})
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, user.ErrInvalidToken):
		Unauthorized(w, err.Error())
	case errors.Is(err, user.ErrOwnerAccessRequired),
		errors.Is(err, user.ErrManagerAccessRequired),
		errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, err.Error())

	// Attendance state machine
	case errors.Is(err, attendance.ErrAlreadyWorking):
		Conflict(w, "Already clocked in")
	case errors.Is(err, attendance.ErrNotWorking):
		Conflict(w, "Not clocked in")
	case errors.Is(err, attendance.ErrBreakAlreadyActive):
		Conflict(w, "A break is already in progress")
	case errors.Is(err, attendance.ErrNoActiveBreak):
		Conflict(w, "No break in progress")

	// Attendance corrections and history
	case errors.Is(err, attendance.ErrInvalidInterval):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, attendance.ErrMissingEditReason):
		BadRequest(w, "Edit reason is required", map[string]string{"reason": "required"})
	case errors.Is(err, attendance.ErrUnrelatedRecords):
		BadRequest(w, "Attendance records belong to different days", nil)
	case errors.Is(err, attendance.ErrRecordSuperseded):
		Conflict(w, "Attendance record has already been corrected")
	case errors.Is(err, attendance.ErrConcurrentUpdate),
		errors.Is(err, attendance.ErrDuplicateDay):
		Conflict(w, "Attendance record was modified concurrently, please retry")
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance record not found")
	case errors.Is(err, attendance.ErrNoPredecessor):
		NotFound(w, "Attendance record has no earlier version")
	case errors.Is(err, attendance.ErrHistoryCycle):
		slog.Error("attendance history is corrupt", "error", err)
		InternalServerError(w, "Attendance history is corrupt")

	// Ledger
	case errors.Is(err, leave.ErrInvalidUnits):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, leave.ErrNoActiveHold):
		NotFound(w, "No active hold for this request")
	case errors.Is(err, leave.ErrLedgerEntryNotFound):
		NotFound(w, "Leave balance not found")
	case errors.Is(err, leave.ErrHoldAlreadyReleased):
		Conflict(w, "Hold has already been released")
	case errors.Is(err, leave.ErrHoldAlreadyFinalized):
		Conflict(w, "Hold has already been finalized")
	case errors.Is(err, leave.ErrHoldConflict),
		errors.Is(err, leave.ErrHoldExists):
		Conflict(w, "A different hold already exists for this request")

	// Leave requests
	case errors.Is(err, leave.ErrLeaveRequestNotFound):
		NotFound(w, "Leave request not found")
	case errors.Is(err, leave.ErrRequestAlreadyProcessed):
		Conflict(w, "Leave request already processed")
	case errors.Is(err, leave.ErrSelfApproval),
		errors.Is(err, leave.ErrNotRequestOwner):
		Forbidden(w, err.Error())

	// Work types
	case errors.Is(err, worktype.ErrWorkTypeNotFound):
		NotFound(w, "Work type not found")
	case errors.Is(err, worktype.ErrWorkTypeExists):
		Conflict(w, "Work type with this name already exists")

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
