package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/worktype"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/google/uuid"
)

const defaultMaxRetries = 3

type Options struct {
	// MaxRetries bounds attempts on a version or first-insert conflict
	MaxRetries int
	Clock      func() time.Time
}

type AttendanceServiceImpl struct {
	transactor database.Transactor
	attendance.AttendanceRepository
	policies   worktype.WorkTypeService
	recorder   audit.Recorder
	maxRetries int
	now        func() time.Time
}

func NewAttendanceService(
	transactor database.Transactor,
	attendanceRepository attendance.AttendanceRepository,
	policies worktype.WorkTypeService,
	recorder audit.Recorder,
	opts Options,
) *AttendanceServiceImpl {
	svc := &AttendanceServiceImpl{
		transactor:           transactor,
		AttendanceRepository: attendanceRepository,
		policies:             policies,
		recorder:             recorder,
		maxRetries:           opts.MaxRetries,
		now:                  opts.Clock,
	}
	if svc.maxRetries <= 0 {
		svc.maxRetries = defaultMaxRetries
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc
}

// ClockIn implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ClockIn(ctx context.Context, req attendance.ClockEventRequest) (attendance.ClockEventResponse, error) {
	return s.clockEvent(ctx, req, attendance.ActionClockIn)
}

// StartBreak implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) StartBreak(ctx context.Context, req attendance.ClockEventRequest) (attendance.ClockEventResponse, error) {
	return s.clockEvent(ctx, req, attendance.ActionBreakStart)
}

// EndBreak implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) EndBreak(ctx context.Context, req attendance.ClockEventRequest) (attendance.ClockEventResponse, error) {
	return s.clockEvent(ctx, req, attendance.ActionBreakEnd)
}

// ClockOut implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ClockOut(ctx context.Context, req attendance.ClockEventRequest) (attendance.ClockEventResponse, error) {
	return s.clockEvent(ctx, req, attendance.ActionClockOut)
}

func (s *AttendanceServiceImpl) clockEvent(ctx context.Context, req attendance.ClockEventRequest, action attendance.Action) (attendance.ClockEventResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.ClockEventResponse{}, err
	}

	ts := s.now()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}

	var resp attendance.ClockEventResponse
	err := s.retryOnConflict(ctx, func() error {
		return s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			resp, err = s.applyClockEvent(ctx, req, action, ts)
			return err
		})
	})
	if err != nil {
		return attendance.ClockEventResponse{}, err
	}

	if resp.Applied {
		slog.Info("clock event applied",
			"action", action,
			"user_id", req.UserID,
			"attendance_id", resp.Record.ID,
			"state", resp.State,
		)
		s.record(ctx, audit.Event{
			ActorID:  req.UserID,
			Entity:   audit.EntityAttendance,
			EntityID: resp.Record.ID,
			Action:   string(action),
			Detail: map[string]any{
				"timestamp": ts,
				"work_date": resp.Record.WorkDate.Format("2006-01-02"),
				"status":    resp.Record.Status,
				"version":   resp.Record.Version,
			},
		})
	}
	return resp, nil
}

// applyClockEvent runs inside a transaction. The day being changed is the
// latest head for the user, or the head of the clock-in's work date.
func (s *AttendanceServiceImpl) applyClockEvent(ctx context.Context, req attendance.ClockEventRequest, action attendance.Action, ts time.Time) (attendance.ClockEventResponse, error) {
	head, err := s.AttendanceRepository.GetLatestHead(ctx, req.UserID, true)
	if err != nil {
		return attendance.ClockEventResponse{}, err
	}

	if action == attendance.ActionClockIn && (head == nil || !head.HasOpenSession()) {
		policy, err := s.policies.Resolve(ctx, req.UserID, req.WorkTypeID)
		if err != nil {
			return attendance.ClockEventResponse{}, err
		}
		workDate := policy.WorkDate(ts)
		if head == nil || !head.WorkDate.Equal(workDate) {
			head, err = s.AttendanceRepository.GetHeadByDate(ctx, req.UserID, workDate, true)
			if err != nil {
				return attendance.ClockEventResponse{}, err
			}
		}
		if head == nil {
			return s.startDay(ctx, req.UserID, workDate, policy, ts)
		}
	}

	if head == nil {
		_, _, err := attendance.Apply(nil, action, ts)
		return attendance.ClockEventResponse{}, err
	}

	next, applied, err := attendance.Apply(head.ClockRecords, action, ts)
	if err != nil {
		return attendance.ClockEventResponse{}, err
	}
	if !applied {
		return attendance.ClockEventResponse{Record: *head, State: attendance.State(head.ClockRecords)}, nil
	}

	policy, err := s.policies.Stored(ctx, head.WorkTypeID)
	if err != nil {
		return attendance.ClockEventResponse{}, err
	}
	rec := *head
	rec.ClockRecords = next
	rec.ApplyFigures(policy.Derive(rec.WorkDate, next))

	updated, err := s.AttendanceRepository.Update(ctx, rec)
	if err != nil {
		return attendance.ClockEventResponse{}, err
	}
	return attendance.ClockEventResponse{Record: updated, State: attendance.State(next), Applied: true}, nil
}

func (s *AttendanceServiceImpl) startDay(ctx context.Context, userID string, workDate time.Time, policy worktype.WorkType, ts time.Time) (attendance.ClockEventResponse, error) {
	sessions, _, err := attendance.ClockIn(nil, ts)
	if err != nil {
		return attendance.ClockEventResponse{}, err
	}

	rec := attendance.AttendanceRecord{
		UserID:       userID,
		WorkDate:     workDate,
		ClockRecords: sessions,
	}
	if !policy.IsDefault() {
		id := policy.ID
		rec.WorkTypeID = &id
	}
	rec.ApplyFigures(policy.Derive(workDate, sessions))

	created, err := s.AttendanceRepository.Create(ctx, rec)
	if err != nil {
		return attendance.ClockEventResponse{}, err
	}
	return attendance.ClockEventResponse{Record: created, State: attendance.State(sessions), Applied: true}, nil
}

// retryOnConflict reruns fn after a lost optimistic race and fails closed
// with ErrConcurrentUpdate once the attempts are used up.
func (s *AttendanceServiceImpl) retryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = fn()
		if !errors.Is(err, attendance.ErrConcurrentUpdate) && !errors.Is(err, attendance.ErrDuplicateDay) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		slog.Warn("attendance write conflict, retrying", "attempt", attempt, "error", err)
	}
	return fmt.Errorf("%w after %d attempts", attendance.ErrConcurrentUpdate, s.maxRetries)
}

// ApplyCorrection implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ApplyCorrection(ctx context.Context, req attendance.CorrectionRequest) (attendance.CorrectionResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.CorrectionResponse{}, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return attendance.CorrectionResponse{}, attendance.ErrMissingEditReason
	}
	if req.Changes.ClockRecords != nil {
		if err := attendance.ValidateShape(*req.Changes.ClockRecords); err != nil {
			return attendance.CorrectionResponse{}, err
		}
	}

	var original, created attendance.AttendanceRecord
	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		original, err = s.AttendanceRepository.GetByID(ctx, req.RecordID, true)
		if err != nil {
			return err
		}
		successor, err := s.AttendanceRepository.GetSuccessor(ctx, original.ID)
		if err != nil {
			return err
		}
		if successor != nil {
			return attendance.ErrRecordSuperseded
		}

		sessions := attendance.CloneSessions(original.ClockRecords)
		if req.Changes.ClockRecords != nil {
			sessions = attendance.CloneSessions(*req.Changes.ClockRecords)
		}
		workTypeID := original.WorkTypeID
		if req.Changes.WorkTypeID != nil {
			workTypeID = nil
			if *req.Changes.WorkTypeID != "" {
				id := *req.Changes.WorkTypeID
				workTypeID = &id
			}
		}

		policy, err := s.policies.Stored(ctx, workTypeID)
		if err != nil {
			return err
		}

		sourceID := original.ID
		editor := req.EditorID
		correction := attendance.AttendanceRecord{
			UserID:       original.UserID,
			WorkDate:     original.WorkDate,
			ClockRecords: sessions,
			WorkTypeID:   workTypeID,
			SourceID:     &sourceID,
			EditReason:   &reason,
			EditedBy:     &editor,
			ApprovedBy:   original.ApprovedBy,
			ApprovedAt:   original.ApprovedAt,
		}
		correction.ApplyFigures(policy.Derive(correction.WorkDate, sessions))

		created, err = s.AttendanceRepository.Create(ctx, correction)
		return err
	})
	if err != nil {
		return attendance.CorrectionResponse{}, err
	}

	changes := attendance.Diff(original, created)
	slog.Info("attendance corrected",
		"attendance_id", created.ID,
		"source_id", original.ID,
		"edited_by", req.EditorID,
		"changed_fields", len(changes),
	)
	s.record(ctx, audit.Event{
		ActorID:  req.EditorID,
		Entity:   audit.EntityAttendance,
		EntityID: created.ID,
		Action:   "correct",
		Detail: map[string]any{
			"source_id": original.ID,
			"reason":    reason,
			"changes":   changes,
		},
	})

	return attendance.CorrectionResponse{
		Record:    created,
		Changes:   changes,
		NoChanges: len(changes) == 0,
	}, nil
}

// GetRecord implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetRecord(ctx context.Context, id string) (attendance.AttendanceRecord, error) {
	return s.AttendanceRepository.GetByID(ctx, id, false)
}

// GetDay implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetDay(ctx context.Context, userID string, workDate time.Time) (attendance.AttendanceRecord, error) {
	y, m, d := workDate.Date()
	head, err := s.AttendanceRepository.GetHeadByDate(ctx, userID, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), false)
	if err != nil {
		return attendance.AttendanceRecord{}, err
	}
	if head == nil {
		return attendance.AttendanceRecord{}, attendance.ErrAttendanceNotFound
	}
	return *head, nil
}

// History implements attendance.AttendanceService. Any version of the day
// may be passed; the chain is walked back from its newest row.
func (s *AttendanceServiceImpl) History(ctx context.Context, id string) ([]attendance.HistoryEntry, error) {
	head, err := s.AttendanceRepository.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}

	for steps := 0; ; steps++ {
		if steps >= attendance.MaxChainLength {
			return nil, attendance.ErrHistoryCycle
		}
		next, err := s.AttendanceRepository.GetSuccessor(ctx, head.ID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		head = *next
	}

	chain, err := attendance.WalkBack(head, func(id string) (attendance.AttendanceRecord, error) {
		return s.AttendanceRepository.GetByID(ctx, id, false)
	})
	if err != nil {
		return nil, err
	}
	return attendance.BuildHistory(chain), nil
}

// Diff implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Diff(ctx context.Context, id string, againstID string) (attendance.DiffResponse, error) {
	rec, err := s.AttendanceRepository.GetByID(ctx, id, false)
	if err != nil {
		return attendance.DiffResponse{}, err
	}

	if againstID == "" {
		if rec.SourceID == nil {
			return attendance.DiffResponse{}, attendance.ErrNoPredecessor
		}
		againstID = *rec.SourceID
	}

	other, err := s.AttendanceRepository.GetByID(ctx, againstID, false)
	if err != nil {
		return attendance.DiffResponse{}, err
	}
	if other.UserID != rec.UserID || !other.WorkDate.Equal(rec.WorkDate) {
		return attendance.DiffResponse{}, attendance.ErrUnrelatedRecords
	}

	changes := attendance.Diff(other, rec)
	return attendance.DiffResponse{
		FromID:    other.ID,
		ToID:      rec.ID,
		Changes:   changes,
		NoChanges: len(changes) == 0,
	}, nil
}

// ListStaleOpenDays implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ListStaleOpenDays(ctx context.Context, olderThan time.Duration) ([]attendance.AttendanceRecord, error) {
	if olderThan < 0 {
		return nil, fmt.Errorf("%w: older_than must not be negative", attendance.ErrInvalidInterval)
	}
	return s.AttendanceRepository.ListStaleOpen(ctx, s.now().Add(-olderThan))
}

// record sends an audit event. Failures never affect the committed change.
func (s *AttendanceServiceImpl) record(ctx context.Context, event audit.Event) {
	if s.recorder == nil {
		return
	}
	event.ID = uuid.Must(uuid.NewV7()).String()
	event.OccurredAt = s.now()
	if err := s.recorder.Record(ctx, event); err != nil {
		slog.Error("failed to record audit event", "entity", event.Entity, "entity_id", event.EntityID, "error", err)
	}
}
