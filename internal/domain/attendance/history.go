package attendance

import (
	"fmt"
	"time"
)

// MaxChainLength bounds history traversal.
const MaxChainLength = 1000

type FieldChange struct {
	Field    string `json:"field_name"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

type HistoryEntry struct {
	Record  AttendanceRecord `json:"record"`
	Changes []FieldChange    `json:"changes"`
}

// Diff lists every content field that differs between two versions of a day.
// Identity and audit columns are not compared, so a no-op correction yields
// an empty diff.
func Diff(prev, next AttendanceRecord) []FieldChange {
	changes := make([]FieldChange, 0)
	add := func(field string, oldValue, newValue any) {
		changes = append(changes, FieldChange{Field: field, OldValue: oldValue, NewValue: newValue})
	}

	if !sameDate(prev.WorkDate, next.WorkDate) {
		add("work_date", prev.WorkDate.Format("2006-01-02"), next.WorkDate.Format("2006-01-02"))
	}
	if !SessionsEqual(prev.ClockRecords, next.ClockRecords) {
		add("clock_records", prev.ClockRecords, next.ClockRecords)
	}
	if !stringPtrEqual(prev.WorkTypeID, next.WorkTypeID) {
		add("work_type_id", prev.WorkTypeID, next.WorkTypeID)
	}
	if prev.ActualWorkMinutes != next.ActualWorkMinutes {
		add("actual_work_minutes", prev.ActualWorkMinutes, next.ActualWorkMinutes)
	}
	if prev.BreakMinutes != next.BreakMinutes {
		add("break_minutes", prev.BreakMinutes, next.BreakMinutes)
	}
	if prev.OvertimeMinutes != next.OvertimeMinutes {
		add("overtime_minutes", prev.OvertimeMinutes, next.OvertimeMinutes)
	}
	if prev.LateMinutes != next.LateMinutes {
		add("late_minutes", prev.LateMinutes, next.LateMinutes)
	}
	if prev.EarlyLeaveMinutes != next.EarlyLeaveMinutes {
		add("early_leave_minutes", prev.EarlyLeaveMinutes, next.EarlyLeaveMinutes)
	}
	if prev.Status != next.Status {
		add("status", prev.Status, next.Status)
	}
	if !anomaliesEqual(prev.Anomalies, next.Anomalies) {
		add("anomalies", prev.Anomalies, next.Anomalies)
	}
	if !stringPtrEqual(prev.ApprovedBy, next.ApprovedBy) {
		add("approved_by", prev.ApprovedBy, next.ApprovedBy)
	}
	if !timePtrEqual(prev.ApprovedAt, next.ApprovedAt) {
		add("approved_at", prev.ApprovedAt, next.ApprovedAt)
	}
	return changes
}

// SessionsEqual compares two session sequences instant by instant, ignoring
// location and monotonic clock readings.
func SessionsEqual(a, b []ClockSession) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].In.Equal(b[i].In) || !timePtrEqual(a[i].Out, b[i].Out) {
			return false
		}
		if len(a[i].Breaks) != len(b[i].Breaks) {
			return false
		}
		for j := range a[i].Breaks {
			x, y := a[i].Breaks[j], b[i].Breaks[j]
			if !x.Start.Equal(y.Start) || !timePtrEqual(x.End, y.End) {
				return false
			}
		}
	}
	return true
}

// WalkBack follows source pointers from head and returns the chain oldest
// first. The oldest row must have no source.
func WalkBack(head AttendanceRecord, load func(id string) (AttendanceRecord, error)) ([]AttendanceRecord, error) {
	chain := []AttendanceRecord{head}
	seen := map[string]struct{}{head.ID: {}}

	current := head
	for current.SourceID != nil {
		if len(chain) >= MaxChainLength {
			return nil, fmt.Errorf("%w: chain longer than %d rows", ErrHistoryCycle, MaxChainLength)
		}
		if _, ok := seen[*current.SourceID]; ok {
			return nil, fmt.Errorf("%w: row %s revisited", ErrHistoryCycle, *current.SourceID)
		}
		prev, err := load(*current.SourceID)
		if err != nil {
			return nil, fmt.Errorf("load source %s: %w", *current.SourceID, err)
		}
		seen[prev.ID] = struct{}{}
		chain = append(chain, prev)
		current = prev
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// BuildHistory pairs each version with its changes against the one before.
func BuildHistory(chain []AttendanceRecord) []HistoryEntry {
	entries := make([]HistoryEntry, len(chain))
	for i, rec := range chain {
		entries[i] = HistoryEntry{Record: rec, Changes: []FieldChange{}}
		if i > 0 {
			entries[i].Changes = Diff(chain[i-1], rec)
		}
	}
	return entries
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func anomaliesEqual(a, b []Anomaly) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Code != b[i].Code || a[i].Session != b[i].Session {
			return false
		}
		if (a[i].Break == nil) != (b[i].Break == nil) {
			return false
		}
		if a[i].Break != nil && *a[i].Break != *b[i].Break {
			return false
		}
	}
	return true
}
