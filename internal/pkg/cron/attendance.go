package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
)

// AttendanceJobs reports days left open. Sessions are never closed on the
// employee's behalf; a manager corrects them.
type AttendanceJobs struct {
	attendanceService attendance.AttendanceService
	interval          time.Duration
	staleAfter        time.Duration
}

func NewAttendanceJobs(attendanceService attendance.AttendanceService, interval, staleAfter time.Duration) *AttendanceJobs {
	return &AttendanceJobs{
		attendanceService: attendanceService,
		interval:          interval,
		staleAfter:        staleAfter,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("report_stale_open_days", j.interval, j.ReportStaleOpenDays)
}

// ReportStaleOpenDays logs every day whose last session is still open after
// staleAfter and returns how many it found.
func (j *AttendanceJobs) ReportStaleOpenDays(ctx context.Context) error {
	_, err := j.reportStaleOpenDays(ctx)
	return err
}

func (j *AttendanceJobs) reportStaleOpenDays(ctx context.Context) (int, error) {
	stale, err := j.attendanceService.ListStaleOpenDays(ctx, j.staleAfter)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale open days: %w", err)
	}

	for _, record := range stale {
		slog.Warn("Cron: Open attendance day needs correction",
			"attendance_id", record.ID,
			"user_id", record.UserID,
			"work_date", record.WorkDate.Format(time.DateOnly),
		)
	}
	if len(stale) > 0 {
		slog.Info("Cron: Stale open attendance days", "count", len(stale))
	}
	return len(stale), nil
}
