package attendance

import "time"

const DefaultOvertimeThresholdMinutes = 480

// DerivationInput carries what the work-type policy contributes. Late and
// early-leave minutes are computed by the policy and passed through.
type DerivationInput struct {
	OvertimeThresholdMinutes int
	LateMinutes              int
	EarlyLeaveMinutes        int
}

type Figures struct {
	ActualWorkMinutes int
	BreakMinutes      int
	OvertimeMinutes   int
	LateMinutes       int
	EarlyLeaveMinutes int
	Status            Status
	Anomalies         []Anomaly
}

// Derive recomputes every derived field of a day from its sessions.
// Intervals are truncated to whole minutes and negative spans count as zero.
func Derive(sessions []ClockSession, in DerivationInput) Figures {
	threshold := in.OvertimeThresholdMinutes
	if threshold < 0 {
		threshold = DefaultOvertimeThresholdMinutes
	}

	f := Figures{Anomalies: DetectAnomalies(sessions)}
	inProgress := false
	for _, s := range sessions {
		if s.IsOpen() {
			inProgress = true
			continue
		}
		sessionMinutes := floorMinutes(s.Out.Sub(s.In))
		breakMinutes := SessionBreakMinutes(s)
		f.ActualWorkMinutes += max(0, sessionMinutes-breakMinutes)
		f.BreakMinutes += breakMinutes
	}
	f.OvertimeMinutes = max(0, f.ActualWorkMinutes-threshold)
	f.LateMinutes = max(0, in.LateMinutes)
	if !inProgress {
		f.EarlyLeaveMinutes = max(0, in.EarlyLeaveMinutes)
	}
	f.Status = ResolveStatus(len(sessions) > 0, inProgress, f.LateMinutes, f.EarlyLeaveMinutes)
	return f
}

// SessionBreakMinutes sums the completed breaks of a session. Breaks are
// not clipped to the session; the worked time clamps at zero instead.
// Open breaks contribute nothing.
func SessionBreakMinutes(s ClockSession) int {
	total := 0
	for _, b := range s.Breaks {
		if b.End == nil {
			continue
		}
		total += floorMinutes(b.End.Sub(b.Start))
	}
	return total
}

func ResolveStatus(hasSessions, inProgress bool, lateMinutes, earlyLeaveMinutes int) Status {
	switch {
	case !hasSessions:
		return StatusAbsent
	case inProgress:
		return StatusInProgress
	case lateMinutes > 0 && earlyLeaveMinutes > 0:
		return StatusLateEarlyLeave
	case lateMinutes > 0:
		return StatusLate
	case earlyLeaveMinutes > 0:
		return StatusEarlyLeave
	default:
		return StatusNormal
	}
}

func floorMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// FirstIn returns the earliest clock-in of the day.
func FirstIn(sessions []ClockSession) (time.Time, bool) {
	if len(sessions) == 0 {
		return time.Time{}, false
	}
	return sessions[0].In, true
}

// LastOut returns the clock-out of the final session once the day is closed.
func LastOut(sessions []ClockSession) (time.Time, bool) {
	n := len(sessions)
	if n == 0 || sessions[n-1].Out == nil {
		return time.Time{}, false
	}
	return *sessions[n-1].Out, true
}

// ApplyFigures copies derived values onto a record.
func (r *AttendanceRecord) ApplyFigures(f Figures) {
	r.ActualWorkMinutes = f.ActualWorkMinutes
	r.BreakMinutes = f.BreakMinutes
	r.OvertimeMinutes = f.OvertimeMinutes
	r.LateMinutes = f.LateMinutes
	r.EarlyLeaveMinutes = f.EarlyLeaveMinutes
	r.Status = f.Status
	r.Anomalies = f.Anomalies
}
