package worktype

import (
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
)

// WorkType is the policy an attendance day is derived under. An empty
// ScheduledStart or ScheduledEnd disables lateness or early-leave checks.
type WorkType struct {
	ID                       string    `json:"id"`
	Name                     string    `json:"name"`
	ScheduledStart           string    `json:"scheduled_start,omitempty"`
	ScheduledEnd             string    `json:"scheduled_end,omitempty"`
	GracePeriodMinutes       int       `json:"grace_period_minutes"`
	OvertimeThresholdMinutes int       `json:"overtime_threshold_minutes"`
	Timezone                 string    `json:"timezone"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// DefaultPolicy is used when a user has no work type.
func DefaultPolicy(timezone string) WorkType {
	return WorkType{
		Name:                     "default",
		OvertimeThresholdMinutes: attendance.DefaultOvertimeThresholdMinutes,
		Timezone:                 timezone,
	}
}

// IsDefault reports whether the policy is not backed by a stored work type.
func (w WorkType) IsDefault() bool {
	return w.ID == ""
}

// Location falls back to UTC when the zone cannot be loaded.
func (w WorkType) Location() *time.Location {
	if w.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WorkDate is the business-local calendar day of ts, as a UTC midnight.
func (w WorkType) WorkDate(ts time.Time) time.Time {
	y, m, d := ts.In(w.Location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (w WorkType) at(workDate time.Time, clock string) (time.Time, bool) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := workDate.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, w.Location()), true
}

// LateMinutes is zero inside the grace period, otherwise the whole minutes
// between the scheduled start and the first clock-in.
func (w WorkType) LateMinutes(workDate, firstIn time.Time) int {
	start, ok := w.at(workDate, w.ScheduledStart)
	if !ok {
		return 0
	}
	if !firstIn.After(start.Add(time.Duration(w.GracePeriodMinutes) * time.Minute)) {
		return 0
	}
	return int(firstIn.Sub(start) / time.Minute)
}

// EarlyLeaveMinutes counts whole minutes between the last clock-out and the
// scheduled end. An end at or before the start belongs to the next day.
func (w WorkType) EarlyLeaveMinutes(workDate, lastOut time.Time) int {
	end, ok := w.at(workDate, w.ScheduledEnd)
	if !ok {
		return 0
	}
	if w.ScheduledStart != "" && w.ScheduledEnd <= w.ScheduledStart {
		end = end.Add(24 * time.Hour)
	}
	if !lastOut.Before(end) {
		return 0
	}
	return int(end.Sub(lastOut) / time.Minute)
}

// Derive runs the derivation engine for a day under this policy.
func (w WorkType) Derive(workDate time.Time, sessions []attendance.ClockSession) attendance.Figures {
	in := attendance.DerivationInput{OvertimeThresholdMinutes: w.OvertimeThresholdMinutes}
	if first, ok := attendance.FirstIn(sessions); ok {
		in.LateMinutes = w.LateMinutes(workDate, first)
	}
	if last, ok := attendance.LastOut(sessions); ok {
		in.EarlyLeaveMinutes = w.EarlyLeaveMinutes(workDate, last)
	}
	return attendance.Derive(sessions, in)
}
