package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/worktype"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/memory"
	worktypeService "github.com/cmlabs-hris/hris-timekeeping/internal/service/worktype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "0192f0c1-0000-7000-8000-000000000001"

var testDay = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureRecorder) Record(ctx context.Context, events ...audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

func (c *captureRecorder) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	svc       *AttendanceServiceImpl
	workTypes *worktypeService.WorkTypeServiceImpl
	recorder  *captureRecorder
	now       time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		workTypes: worktypeService.NewWorkTypeService(memory.NewWorkTypeRepository(store), "UTC"),
		recorder:  &captureRecorder{},
		now:       testDay.Add(20 * time.Hour),
	}
	f.svc = NewAttendanceService(
		memory.NewTransactor(store),
		memory.NewAttendanceRepository(store),
		f.workTypes,
		f.recorder,
		Options{MaxRetries: 3, Clock: func() time.Time { return f.now }},
	)
	return f
}

func at(hour, minute int) *time.Time {
	ts := testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	return &ts
}

func event(ts *time.Time) attendance.ClockEventRequest {
	return attendance.ClockEventRequest{UserID: testUser, Timestamp: ts}
}

func runDay(t *testing.T, f *fixture) attendance.ClockEventResponse {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.ClockIn(ctx, event(at(9, 0)))
	require.NoError(t, err)
	_, err = f.svc.StartBreak(ctx, event(at(12, 0)))
	require.NoError(t, err)
	_, err = f.svc.EndBreak(ctx, event(at(12, 30)))
	require.NoError(t, err)
	resp, err := f.svc.ClockOut(ctx, event(at(18, 0)))
	require.NoError(t, err)
	return resp
}

func TestClockEvents_FullDay(t *testing.T) {
	// Setup
	f := setup(t)

	// Act
	resp := runDay(t, f)

	// Assert
	assert.True(t, resp.Applied)
	assert.Equal(t, attendance.StateClockedOut, resp.State)
	rec := resp.Record
	assert.Equal(t, testDay, rec.WorkDate)
	assert.Equal(t, 510, rec.ActualWorkMinutes)
	assert.Equal(t, 30, rec.BreakMinutes)
	assert.Equal(t, 30, rec.OvertimeMinutes)
	assert.Equal(t, attendance.StatusNormal, rec.Status)
	assert.Nil(t, rec.WorkTypeID)
	assert.Equal(t, 4, rec.Version)
	assert.Equal(t, []string{"clock_in", "break_start", "break_end", "clock_out"}, f.recorder.actions())
}

func TestClockEvents_ReplayIsNoOp(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	done := runDay(t, f)

	// Act
	resp, err := f.svc.ClockOut(ctx, event(at(18, 0)))

	// Assert
	require.NoError(t, err)
	assert.False(t, resp.Applied)
	assert.Equal(t, done.Record.Version, resp.Record.Version)
	assert.Len(t, f.recorder.actions(), 4)
}

func TestClockIn_WhileWorking(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.ClockIn(ctx, event(at(9, 0)))
	require.NoError(t, err)

	// Act
	_, err = f.svc.ClockIn(ctx, event(at(9, 5)))

	// Assert
	assert.ErrorIs(t, err, attendance.ErrAlreadyWorking)
}

func TestClockOut_WithoutClockIn(t *testing.T) {
	// Setup
	f := setup(t)

	// Act
	_, err := f.svc.ClockOut(context.Background(), event(at(17, 0)))

	// Assert
	assert.ErrorIs(t, err, attendance.ErrNotWorking)
}

func TestClockIn_ReEntrySameDay(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	first, err := f.svc.ClockIn(ctx, event(at(8, 0)))
	require.NoError(t, err)
	_, err = f.svc.ClockOut(ctx, event(at(12, 0)))
	require.NoError(t, err)

	// Act
	_, err = f.svc.ClockIn(ctx, event(at(13, 0)))
	require.NoError(t, err)
	resp, err := f.svc.ClockOut(ctx, event(at(17, 30)))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, first.Record.ID, resp.Record.ID)
	assert.Len(t, resp.Record.ClockRecords, 2)
	assert.Equal(t, 510, resp.Record.ActualWorkMinutes)
}

func TestClockOut_OvernightStaysOnStartDay(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.ClockIn(ctx, event(at(22, 0)))
	require.NoError(t, err)

	// Act
	resp, err := f.svc.ClockOut(ctx, event(at(30, 0)))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, testDay, resp.Record.WorkDate)
	assert.Equal(t, 480, resp.Record.ActualWorkMinutes)
}

func TestClockIn_UsesAssignedWorkType(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	wt, err := f.workTypes.Create(ctx, worktype.CreateWorkTypeRequest{
		Name:               "office",
		ScheduledStart:     "09:00",
		ScheduledEnd:       "17:00",
		GracePeriodMinutes: 5,
	})
	require.NoError(t, err)
	require.NoError(t, f.workTypes.Assign(ctx, worktype.AssignWorkTypeRequest{UserID: testUser, WorkTypeID: wt.ID}))

	// Act
	_, err = f.svc.ClockIn(ctx, event(at(9, 20)))
	require.NoError(t, err)
	resp, err := f.svc.ClockOut(ctx, event(at(16, 0)))

	// Assert
	require.NoError(t, err)
	require.NotNil(t, resp.Record.WorkTypeID)
	assert.Equal(t, wt.ID, *resp.Record.WorkTypeID)
	assert.Equal(t, 20, resp.Record.LateMinutes)
	assert.Equal(t, 60, resp.Record.EarlyLeaveMinutes)
	assert.Equal(t, attendance.StatusLateEarlyLeave, resp.Record.Status)
}

func TestClockIn_Concurrent(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make([]error, 2)

	// Act
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ClockIn(ctx, event(at(9, i)))
		}(i)
	}
	wg.Wait()

	// Assert
	succeeded, refused := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, attendance.ErrAlreadyWorking):
			refused++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, refused)
}

func TestApplyCorrection(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	day := runDay(t, f)
	fixed := []attendance.ClockSession{{In: *at(9, 0), Out: at(17, 0), Breaks: []attendance.BreakInterval{}}}

	// Act
	resp, err := f.svc.ApplyCorrection(ctx, attendance.CorrectionRequest{
		RecordID: day.Record.ID,
		EditorID: "manager-1",
		Reason:   "forgot to clock out",
		Changes:  attendance.ChangeSet{ClockRecords: &fixed},
	})

	// Assert
	require.NoError(t, err)
	assert.False(t, resp.NoChanges)
	require.NotNil(t, resp.Record.SourceID)
	assert.Equal(t, day.Record.ID, *resp.Record.SourceID)
	assert.Equal(t, 480, resp.Record.ActualWorkMinutes)
	assert.Equal(t, 0, resp.Record.OvertimeMinutes)

	original, err := f.svc.GetRecord(ctx, day.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, 510, original.ActualWorkMinutes)

	head, err := f.svc.GetDay(ctx, testUser, testDay)
	require.NoError(t, err)
	assert.Equal(t, resp.Record.ID, head.ID)
}

func TestApplyCorrection_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	day := runDay(t, f)

	t.Run("missing reason", func(t *testing.T) {
		_, err := f.svc.ApplyCorrection(ctx, attendance.CorrectionRequest{RecordID: day.Record.ID, EditorID: "m", Reason: "   "})
		assert.ErrorIs(t, err, attendance.ErrMissingEditReason)
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := f.svc.ApplyCorrection(ctx, attendance.CorrectionRequest{RecordID: "missing", EditorID: "m", Reason: "x"})
		assert.ErrorIs(t, err, attendance.ErrAttendanceNotFound)
	})

	t.Run("open session in the middle", func(t *testing.T) {
		bad := []attendance.ClockSession{{In: *at(9, 0)}, {In: *at(13, 0), Out: at(17, 0)}}
		_, err := f.svc.ApplyCorrection(ctx, attendance.CorrectionRequest{
			RecordID: day.Record.ID, EditorID: "m", Reason: "x",
			Changes: attendance.ChangeSet{ClockRecords: &bad},
		})
		assert.ErrorIs(t, err, attendance.ErrInvalidInterval)
	})

	t.Run("superseded record", func(t *testing.T) {
		_, err := f.svc.ApplyCorrection(ctx, attendance.CorrectionRequest{RecordID: day.Record.ID, EditorID: "m", Reason: "first"})
		require.NoError(t, err)

		_, err = f.svc.ApplyCorrection(ctx, attendance.CorrectionRequest{RecordID: day.Record.ID, EditorID: "m", Reason: "second"})
		assert.ErrorIs(t, err, attendance.ErrRecordSuperseded)
	})
}

func TestApplyCorrection_NoChanges(t *testing.T) {
	// Setup
	f := setup(t)
	day := runDay(t, f)

	// Act
	resp, err := f.svc.ApplyCorrection(context.Background(), attendance.CorrectionRequest{
		RecordID: day.Record.ID,
		EditorID: "manager-1",
		Reason:   "reviewed",
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, resp.NoChanges)
	assert.Empty(t, resp.Changes)
}

func assignLongShift(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	threshold := 600
	wt, err := f.workTypes.Create(ctx, worktype.CreateWorkTypeRequest{Name: "long shift", OvertimeThresholdMinutes: &threshold})
	require.NoError(t, err)
	require.NoError(t, f.workTypes.Assign(ctx, worktype.AssignWorkTypeRequest{UserID: testUser, WorkTypeID: wt.ID}))
}

func TestApplyCorrection_NoChangesAfterReassignment(t *testing.T) {
	// Setup
	f := setup(t)
	day := runDay(t, f)
	assignLongShift(t, f)

	// Act
	resp, err := f.svc.ApplyCorrection(context.Background(), attendance.CorrectionRequest{
		RecordID: day.Record.ID,
		EditorID: "manager-1",
		Reason:   "reviewed",
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, resp.NoChanges)
	assert.Empty(t, resp.Changes)
	assert.Nil(t, resp.Record.WorkTypeID)
	assert.Equal(t, 30, resp.Record.OvertimeMinutes)
}

func TestClockOut_KeepsPolicyOfOpenDay(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.ClockIn(ctx, event(at(9, 0)))
	require.NoError(t, err)
	assignLongShift(t, f)

	// Act
	resp, err := f.svc.ClockOut(ctx, event(at(18, 0)))

	// Assert
	require.NoError(t, err)
	assert.Nil(t, resp.Record.WorkTypeID)
	assert.Equal(t, 540, resp.Record.ActualWorkMinutes)
	assert.Equal(t, 60, resp.Record.OvertimeMinutes)
}

func TestHistoryAndDiff(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	day := runDay(t, f)
	fixed := []attendance.ClockSession{{In: *at(9, 0), Out: at(17, 0), Breaks: []attendance.BreakInterval{}}}
	v2, err := f.svc.ApplyCorrection(ctx, attendance.CorrectionRequest{
		RecordID: day.Record.ID, EditorID: "m", Reason: "fix", Changes: attendance.ChangeSet{ClockRecords: &fixed},
	})
	require.NoError(t, err)
	v3, err := f.svc.ApplyCorrection(ctx, attendance.CorrectionRequest{RecordID: v2.Record.ID, EditorID: "m", Reason: "recheck"})
	require.NoError(t, err)

	// Act
	history, err := f.svc.History(ctx, day.Record.ID)
	require.NoError(t, err)
	diff, err := f.svc.Diff(ctx, v2.Record.ID, "")
	require.NoError(t, err)
	_, rootErr := f.svc.Diff(ctx, day.Record.ID, "")
	span, err := f.svc.Diff(ctx, v3.Record.ID, day.Record.ID)
	require.NoError(t, err)

	// Assert
	require.Len(t, history, 3)
	assert.Equal(t, day.Record.ID, history[0].Record.ID)
	assert.Equal(t, v3.Record.ID, history[2].Record.ID)
	assert.NotEmpty(t, history[1].Changes)
	assert.Empty(t, history[2].Changes)

	assert.Equal(t, day.Record.ID, diff.FromID)
	assert.False(t, diff.NoChanges)
	assert.ErrorIs(t, rootErr, attendance.ErrNoPredecessor)
	assert.Equal(t, len(diff.Changes), len(span.Changes))
}

func TestDiff_UnrelatedRecords(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	first := runDay(t, f)
	next := testDay.Add(24*time.Hour + 9*time.Hour)
	second, err := f.svc.ClockIn(ctx, event(&next))
	require.NoError(t, err)

	// Act
	_, err = f.svc.Diff(ctx, second.Record.ID, first.Record.ID)

	// Assert
	assert.ErrorIs(t, err, attendance.ErrUnrelatedRecords)
}

func TestListStaleOpenDays(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.ClockIn(ctx, event(at(9, 0)))
	require.NoError(t, err)

	// Act
	fresh, err := f.svc.ListStaleOpenDays(ctx, 48*time.Hour)
	require.NoError(t, err)
	f.now = testDay.Add(72 * time.Hour)
	stale, err := f.svc.ListStaleOpenDays(ctx, 48*time.Hour)
	require.NoError(t, err)
	_, negErr := f.svc.ListStaleOpenDays(ctx, -time.Hour)

	// Assert
	assert.Empty(t, fresh)
	require.Len(t, stale, 1)
	assert.Equal(t, testUser, stale[0].UserID)
	assert.ErrorIs(t, negErr, attendance.ErrInvalidInterval)
}

func TestClockEvent_Validation(t *testing.T) {
	// Setup
	f := setup(t)

	// Act
	_, err := f.svc.ClockIn(context.Background(), attendance.ClockEventRequest{})

	// Assert
	assert.Error(t, err)
}

func TestClockEvent_ServerClock(t *testing.T) {
	// Setup
	f := setup(t)

	// Act
	resp, err := f.svc.ClockIn(context.Background(), attendance.ClockEventRequest{UserID: testUser})

	// Assert
	require.NoError(t, err)
	assert.True(t, resp.Record.ClockRecords[0].In.Equal(f.now))
}
