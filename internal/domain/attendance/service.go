package attendance

import (
	"context"
	"time"
)

// AttendanceService defines the clocking, correction and history operations
type AttendanceService interface {
	ClockIn(ctx context.Context, req ClockEventRequest) (ClockEventResponse, error)
	StartBreak(ctx context.Context, req ClockEventRequest) (ClockEventResponse, error)
	EndBreak(ctx context.Context, req ClockEventRequest) (ClockEventResponse, error)
	ClockOut(ctx context.Context, req ClockEventRequest) (ClockEventResponse, error)

	// ApplyCorrection appends a new version of a day
	ApplyCorrection(ctx context.Context, req CorrectionRequest) (CorrectionResponse, error)

	GetRecord(ctx context.Context, id string) (AttendanceRecord, error)
	GetDay(ctx context.Context, userID string, workDate time.Time) (AttendanceRecord, error)

	// History returns the day's versions oldest first
	History(ctx context.Context, id string) ([]HistoryEntry, error)

	// Diff compares two versions; an empty againstID means the predecessor
	Diff(ctx context.Context, id string, againstID string) (DiffResponse, error)

	ListStaleOpenDays(ctx context.Context, olderThan time.Duration) ([]AttendanceRecord, error)
}
