package attendance

import (
	"fmt"
	"time"
)

type Action string

const (
	ActionClockIn    Action = "clock_in"
	ActionBreakStart Action = "break_start"
	ActionBreakEnd   Action = "break_end"
	ActionClockOut   Action = "clock_out"
)

// Apply runs one state machine transition. The input slice is never
// modified; applied is false when the event was an exact replay.
func Apply(sessions []ClockSession, action Action, ts time.Time) (next []ClockSession, applied bool, err error) {
	if ts.IsZero() {
		return sessions, false, fmt.Errorf("%w: timestamp is required", ErrInvalidInterval)
	}
	switch action {
	case ActionClockIn:
		return ClockIn(sessions, ts)
	case ActionBreakStart:
		return StartBreak(sessions, ts)
	case ActionBreakEnd:
		return EndBreak(sessions, ts)
	case ActionClockOut:
		return ClockOut(sessions, ts)
	default:
		return sessions, false, fmt.Errorf("unknown clock action %q", action)
	}
}

// ClockIn opens a new session. It always fails while a session is open, so
// concurrent clock-ins resolve to one success and one ErrAlreadyWorking.
func ClockIn(sessions []ClockSession, ts time.Time) ([]ClockSession, bool, error) {
	state := State(sessions)
	if state == StateWorking || state == StateOnBreak {
		return sessions, false, ErrAlreadyWorking
	}
	for _, s := range sessions {
		if s.In.Equal(ts) {
			return sessions, false, nil
		}
	}
	if n := len(sessions); n > 0 && ts.Before(*sessions[n-1].Out) {
		return sessions, false, fmt.Errorf("%w: clock-in at %s precedes the previous clock-out", ErrInvalidInterval, ts.Format(time.RFC3339))
	}

	next := CloneSessions(sessions)
	next = append(next, ClockSession{In: ts, Breaks: []BreakInterval{}})
	return next, true, nil
}

func StartBreak(sessions []ClockSession, ts time.Time) ([]ClockSession, bool, error) {
	n := len(sessions)
	if n == 0 {
		return sessions, false, ErrNotWorking
	}
	last := sessions[n-1]
	for _, b := range last.Breaks {
		if b.Start.Equal(ts) {
			return sessions, false, nil
		}
	}
	if !last.IsOpen() {
		return sessions, false, ErrNotWorking
	}
	if last.ActiveBreak() >= 0 {
		return sessions, false, ErrBreakAlreadyActive
	}
	if ts.Before(last.In) {
		return sessions, false, fmt.Errorf("%w: break starts before clock-in", ErrInvalidInterval)
	}
	if k := len(last.Breaks); k > 0 && ts.Before(*last.Breaks[k-1].End) {
		return sessions, false, fmt.Errorf("%w: break starts before the previous break ended", ErrInvalidInterval)
	}

	next := CloneSessions(sessions)
	next[n-1].Breaks = append(next[n-1].Breaks, BreakInterval{Start: ts})
	return next, true, nil
}

func EndBreak(sessions []ClockSession, ts time.Time) ([]ClockSession, bool, error) {
	n := len(sessions)
	if n == 0 {
		return sessions, false, ErrNoActiveBreak
	}
	last := sessions[n-1]
	active := last.ActiveBreak()
	if !last.IsOpen() || active < 0 {
		for _, b := range last.Breaks {
			if b.End != nil && b.End.Equal(ts) {
				return sessions, false, nil
			}
		}
		return sessions, false, ErrNoActiveBreak
	}
	if ts.Before(last.Breaks[active].Start) {
		return sessions, false, fmt.Errorf("%w: break ends before it started", ErrInvalidInterval)
	}

	next := CloneSessions(sessions)
	end := ts
	next[n-1].Breaks[active].End = &end
	return next, true, nil
}

// ClockOut closes the open session. An open break is left open and surfaces
// as an AnomalyOpenBreakAtClockOut.
func ClockOut(sessions []ClockSession, ts time.Time) ([]ClockSession, bool, error) {
	n := len(sessions)
	if n == 0 {
		return sessions, false, ErrNotWorking
	}
	last := sessions[n-1]
	if !last.IsOpen() {
		if last.Out.Equal(ts) {
			return sessions, false, nil
		}
		return sessions, false, ErrNotWorking
	}
	if ts.Before(last.In) {
		return sessions, false, fmt.Errorf("%w: clock-out precedes clock-in", ErrInvalidInterval)
	}
	for _, b := range last.Breaks {
		if ts.Before(b.Start) || (b.End != nil && ts.Before(*b.End)) {
			return sessions, false, fmt.Errorf("%w: clock-out precedes a recorded break", ErrInvalidInterval)
		}
	}

	next := CloneSessions(sessions)
	out := ts
	next[n-1].Out = &out
	return next, true, nil
}
