package attendance

import "errors"

// Attendance domain errors
var (
	// State machine errors
	ErrAlreadyWorking     = errors.New("a clock session is already open")
	ErrNotWorking         = errors.New("no open clock session")
	ErrBreakAlreadyActive = errors.New("a break is already in progress")
	ErrNoActiveBreak      = errors.New("no break in progress")

	// Interval and correction errors
	ErrInvalidInterval   = errors.New("invalid interval")
	ErrMissingEditReason = errors.New("edit reason is required")
	ErrRecordSuperseded  = errors.New("attendance record has already been corrected")
	ErrHistoryCycle      = errors.New("attendance history chain contains a cycle")
	ErrNoPredecessor     = errors.New("attendance record has no earlier version")
	ErrUnrelatedRecords  = errors.New("attendance records belong to different days")

	// Persistence errors
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrConcurrentUpdate   = errors.New("attendance record was modified concurrently")
	ErrDuplicateDay       = errors.New("attendance record for this day already exists")
)
