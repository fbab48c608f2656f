package attendance

import "time"

type Status string

const (
	StatusInProgress     Status = "in_progress"
	StatusNormal         Status = "normal"
	StatusLate           Status = "late"
	StatusEarlyLeave     Status = "early_leave"
	StatusLateEarlyLeave Status = "late_early_leave"
	StatusAbsent         Status = "absent"
)

// ClockState is the position of a day in the clock state machine.
type ClockState string

const (
	StateNotStarted ClockState = "not_started"
	StateWorking    ClockState = "working"
	StateOnBreak    ClockState = "on_break"
	StateClockedOut ClockState = "clocked_out"
)

type AnomalyCode string

const (
	AnomalyNegativeSession     AnomalyCode = "negative_session"
	AnomalyNegativeBreak       AnomalyCode = "negative_break"
	AnomalyBreakOutsideSession AnomalyCode = "break_outside_session"
	AnomalyOpenBreakAtClockOut AnomalyCode = "open_break_at_clock_out"
)

// Anomaly marks a data-quality problem that was persisted rather than rejected.
// Break is nil when the anomaly concerns the session itself.
type Anomaly struct {
	Code    AnomalyCode `json:"code"`
	Session int         `json:"session"`
	Break   *int        `json:"break,omitempty"`
}

type BreakInterval struct {
	Start time.Time  `json:"break_start"`
	End   *time.Time `json:"break_end,omitempty"`
}

func (b BreakInterval) IsOpen() bool {
	return b.End == nil
}

type ClockSession struct {
	In     time.Time       `json:"in_time"`
	Out    *time.Time      `json:"out_time,omitempty"`
	Breaks []BreakInterval `json:"breaks"`
}

func (s ClockSession) IsOpen() bool {
	return s.Out == nil
}

// ActiveBreak returns the index of the break without an end, or -1.
func (s ClockSession) ActiveBreak() int {
	for i := len(s.Breaks) - 1; i >= 0; i-- {
		if s.Breaks[i].IsOpen() {
			return i
		}
	}
	return -1
}

// AttendanceRecord is one version of an employee's day. Rows linked by
// SourceID form the correction chain for that day.
type AttendanceRecord struct {
	ID                string         `json:"id"`
	UserID            string         `json:"user_id"`
	WorkDate          time.Time      `json:"work_date"`
	ClockRecords      []ClockSession `json:"clock_records"`
	WorkTypeID        *string        `json:"work_type_id,omitempty"`
	ActualWorkMinutes int            `json:"actual_work_minutes"`
	BreakMinutes      int            `json:"break_minutes"`
	OvertimeMinutes   int            `json:"overtime_minutes"`
	LateMinutes       int            `json:"late_minutes"`
	EarlyLeaveMinutes int            `json:"early_leave_minutes"`
	Status            Status         `json:"status"`
	Anomalies         []Anomaly      `json:"anomalies"`
	SourceID          *string        `json:"source_id,omitempty"`
	EditReason        *string        `json:"edit_reason,omitempty"`
	EditedBy          *string        `json:"edited_by,omitempty"`
	ApprovedBy        *string        `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time     `json:"approved_at,omitempty"`
	Version           int            `json:"version"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         *time.Time     `json:"deleted_at,omitempty"`
}

// IsCorrection reports whether the row supersedes an earlier version.
func (r AttendanceRecord) IsCorrection() bool {
	return r.SourceID != nil
}

// HasOpenSession reports whether the latest session has not been clocked out.
func (r AttendanceRecord) HasOpenSession() bool {
	n := len(r.ClockRecords)
	return n > 0 && r.ClockRecords[n-1].IsOpen()
}
