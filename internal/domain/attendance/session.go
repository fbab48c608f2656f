package attendance

import (
	"fmt"
	"time"
)

// NewBreakInterval builds a break, rejecting an end before its start.
func NewBreakInterval(start time.Time, end *time.Time) (BreakInterval, error) {
	if start.IsZero() {
		return BreakInterval{}, fmt.Errorf("%w: break_start is required", ErrInvalidInterval)
	}
	if end != nil && end.Before(start) {
		return BreakInterval{}, fmt.Errorf("%w: break_end %s is before break_start %s", ErrInvalidInterval, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	b := BreakInterval{Start: start}
	if end != nil {
		e := *end
		b.End = &e
	}
	return b, nil
}

// NewClockSession builds a session and validates it against now.
func NewClockSession(in time.Time, out *time.Time, breaks []BreakInterval, now time.Time) (ClockSession, error) {
	s := ClockSession{In: in, Breaks: cloneBreaks(breaks)}
	if out != nil {
		o := *out
		s.Out = &o
	}
	if err := s.Validate(now); err != nil {
		return ClockSession{}, err
	}
	return s, nil
}

// Validate fails with ErrInvalidInterval when out precedes in, when a break
// falls outside [in, out or now], or when more than one break is open.
func (s ClockSession) Validate(now time.Time) error {
	if s.In.IsZero() {
		return fmt.Errorf("%w: in_time is required", ErrInvalidInterval)
	}
	if s.Out != nil && s.Out.Before(s.In) {
		return fmt.Errorf("%w: out_time is before in_time", ErrInvalidInterval)
	}

	upper := now
	if s.Out != nil {
		upper = *s.Out
	}

	open := 0
	for i, b := range s.Breaks {
		if b.Start.IsZero() {
			return fmt.Errorf("%w: break %d has no break_start", ErrInvalidInterval, i)
		}
		if b.IsOpen() {
			open++
		} else if b.End.Before(b.Start) {
			return fmt.Errorf("%w: break %d ends before it starts", ErrInvalidInterval, i)
		}
		if b.Start.Before(s.In) || b.Start.After(upper) {
			return fmt.Errorf("%w: break %d starts outside its session", ErrInvalidInterval, i)
		}
		if b.End != nil && b.End.After(upper) {
			return fmt.Errorf("%w: break %d ends outside its session", ErrInvalidInterval, i)
		}
	}
	if open > 1 {
		return fmt.Errorf("%w: more than one break without an end", ErrInvalidInterval)
	}
	return nil
}

// ValidateShape rejects sequences that cannot be stored at all. Ordering
// problems inside a session are left to DetectAnomalies.
func ValidateShape(sessions []ClockSession) error {
	for i, s := range sessions {
		if s.In.IsZero() {
			return fmt.Errorf("%w: session %d has no in_time", ErrInvalidInterval, i)
		}
		if s.IsOpen() && i != len(sessions)-1 {
			return fmt.Errorf("%w: only the last session may be open", ErrInvalidInterval)
		}
		if i > 0 && s.In.Before(sessions[i-1].In) {
			return fmt.Errorf("%w: session %d starts before session %d", ErrInvalidInterval, i, i-1)
		}
		open := 0
		for j, b := range s.Breaks {
			if b.Start.IsZero() {
				return fmt.Errorf("%w: session %d break %d has no break_start", ErrInvalidInterval, i, j)
			}
			if b.IsOpen() {
				open++
			}
		}
		if open > 1 {
			return fmt.Errorf("%w: session %d has more than one break without an end", ErrInvalidInterval, i)
		}
	}
	return nil
}

// DetectAnomalies lists the data-quality problems of a structurally valid
// sequence.
func DetectAnomalies(sessions []ClockSession) []Anomaly {
	anomalies := make([]Anomaly, 0)
	for i, s := range sessions {
		negative := s.Out != nil && s.Out.Before(s.In)
		if negative {
			anomalies = append(anomalies, Anomaly{Code: AnomalyNegativeSession, Session: i})
		}
		for j, b := range s.Breaks {
			idx := j
			if b.End != nil && b.End.Before(b.Start) {
				anomalies = append(anomalies, Anomaly{Code: AnomalyNegativeBreak, Session: i, Break: &idx})
			}
			outside := b.Start.Before(s.In) ||
				(s.Out != nil && !negative && (b.Start.After(*s.Out) || (b.End != nil && b.End.After(*s.Out))))
			if outside {
				anomalies = append(anomalies, Anomaly{Code: AnomalyBreakOutsideSession, Session: i, Break: &idx})
			}
			if b.IsOpen() && !s.IsOpen() {
				anomalies = append(anomalies, Anomaly{Code: AnomalyOpenBreakAtClockOut, Session: i, Break: &idx})
			}
		}
	}
	return anomalies
}

// State derives the state machine position from the recorded sessions.
func State(sessions []ClockSession) ClockState {
	if len(sessions) == 0 {
		return StateNotStarted
	}
	last := sessions[len(sessions)-1]
	if !last.IsOpen() {
		return StateClockedOut
	}
	if last.ActiveBreak() >= 0 {
		return StateOnBreak
	}
	return StateWorking
}

func cloneBreaks(breaks []BreakInterval) []BreakInterval {
	out := make([]BreakInterval, len(breaks))
	for i, b := range breaks {
		out[i] = BreakInterval{Start: b.Start}
		if b.End != nil {
			e := *b.End
			out[i].End = &e
		}
	}
	return out
}

// CloneSessions returns a deep copy so callers never share break slices.
func CloneSessions(sessions []ClockSession) []ClockSession {
	out := make([]ClockSession, len(sessions))
	for i, s := range sessions {
		out[i] = ClockSession{In: s.In, Breaks: cloneBreaks(s.Breaks)}
		if s.Out != nil {
			o := *s.Out
			out[i].Out = &o
		}
	}
	return out
}
