//go:build integration

package postgresql

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/worktype"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	attendanceService "github.com/cmlabs-hris/hris-timekeeping/internal/service/attendance"
	leaveService "github.com/cmlabs-hris/hris-timekeeping/internal/service/leave"
	worktypeService "github.com/cmlabs-hris/hris-timekeeping/internal/service/worktype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *database.DB

func init() {
	// Ryuk cannot reach the socket under rootless Podman
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	var container testcontainers.Container
	if dsn == "" {
		var err error
		container, dsn, err = startPostgres(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to start postgres container:", err)
			os.Exit(1)
		}
	}

	var err error
	testDB, err = database.NewPostgreSQLDB(ctx, dsn, database.PoolConfig{MaxConns: 10, MinConns: 1})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to connect to test database:", err)
		os.Exit(1)
	}
	if err := Migrate(ctx, testDB); err != nil {
		fmt.Fprintln(os.Stderr, "failed to migrate test database:", err)
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	if container != nil {
		_ = container.Terminate(ctx)
	}
	os.Exit(code)
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "hris_timekeeping_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/hris_timekeeping_test?sslmode=disable", host, port.Port())
	return container, dsn, nil
}

func truncateTables(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(context.Background(),
		`TRUNCATE TABLE leave_holds, leave_requests, leave_ledger, attendances, work_type_assignments, work_types CASCADE`)
	require.NoError(t, err)
}

func newAttendanceService() *attendanceService.AttendanceServiceImpl {
	return attendanceService.NewAttendanceService(
		NewTransactor(testDB),
		NewAttendanceRepository(testDB),
		worktypeService.NewWorkTypeService(NewWorkTypeRepository(testDB), "UTC"),
		nil,
		attendanceService.Options{MaxRetries: 3},
	)
}

func newLeaveServices() (*leaveService.LedgerServiceImpl, *leaveService.RequestServiceImpl) {
	tx := NewTransactor(testDB)
	ledger := leaveService.NewLedgerService(tx, NewLeaveLedgerRepository(testDB), nil)
	requests := leaveService.NewRequestService(tx, NewLeaveRequestRepository(testDB), ledger, nil, nil)
	return ledger, requests
}

func TestMigrate_Idempotent(t *testing.T) {
	// Act
	err := Migrate(context.Background(), testDB)

	// Assert
	require.NoError(t, err)
	var version int
	require.NoError(t, testDB.QueryRow(context.Background(), `SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, 3, version)
}

func TestAttendance_DayFlowAndCorrection(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	svc := newAttendanceService()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ts := func(h, m int) *time.Time {
		v := day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
		return &v
	}
	req := func(h, m int) attendance.ClockEventRequest {
		return attendance.ClockEventRequest{UserID: "u1", Timestamp: ts(h, m)}
	}

	// Act
	_, err := svc.ClockIn(ctx, req(9, 0))
	require.NoError(t, err)
	_, err = svc.StartBreak(ctx, req(12, 0))
	require.NoError(t, err)
	_, err = svc.EndBreak(ctx, req(12, 30))
	require.NoError(t, err)
	out, err := svc.ClockOut(ctx, req(18, 0))
	require.NoError(t, err)
	replay, err := svc.ClockOut(ctx, req(18, 0))
	require.NoError(t, err)

	fixed := []attendance.ClockSession{{In: *ts(9, 0), Out: ts(17, 0), Breaks: []attendance.BreakInterval{}}}
	corrected, err := svc.ApplyCorrection(ctx, attendance.CorrectionRequest{
		RecordID: out.Record.ID, EditorID: "m1", Reason: "wrong clock-out",
		Changes: attendance.ChangeSet{ClockRecords: &fixed},
	})
	require.NoError(t, err)
	_, supersededErr := svc.ApplyCorrection(ctx, attendance.CorrectionRequest{RecordID: out.Record.ID, EditorID: "m1", Reason: "again"})
	history, err := svc.History(ctx, out.Record.ID)
	require.NoError(t, err)
	head, err := svc.GetDay(ctx, "u1", day)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 510, out.Record.ActualWorkMinutes)
	assert.Equal(t, 30, out.Record.OvertimeMinutes)
	assert.Equal(t, attendance.StatusNormal, out.Record.Status)
	assert.False(t, replay.Applied)
	assert.Equal(t, 480, corrected.Record.ActualWorkMinutes)
	assert.ErrorIs(t, supersededErr, attendance.ErrRecordSuperseded)
	require.Len(t, history, 2)
	assert.Equal(t, corrected.Record.ID, head.ID)
	assert.Equal(t, day, head.WorkDate)
}

func TestAttendance_ConcurrentClockIn(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	svc := newAttendanceService()
	start := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts := start.Add(time.Duration(i) * time.Second)
			_, errs[i] = svc.ClockIn(ctx, attendance.ClockEventRequest{UserID: "u2", Timestamp: &ts})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, attendance.ErrAlreadyWorking) || errors.Is(err, attendance.ErrConcurrentUpdate) || errors.Is(err, attendance.ErrDuplicateDay), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	head, err := svc.GetDay(ctx, "u2", start)
	require.NoError(t, err)
	assert.Len(t, head.ClockRecords, 1)
}

func TestWorkType_CreateAssignResolve(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	svc := worktypeService.NewWorkTypeService(NewWorkTypeRepository(testDB), "UTC")

	wt, err := svc.Create(ctx, worktype.CreateWorkTypeRequest{Name: "office", ScheduledStart: "09:00", ScheduledEnd: "17:00"})
	require.NoError(t, err)
	_, dupErr := svc.Create(ctx, worktype.CreateWorkTypeRequest{Name: "office"})
	require.NoError(t, svc.Assign(ctx, worktype.AssignWorkTypeRequest{UserID: "u1", WorkTypeID: wt.ID}))
	resolved, err := svc.Resolve(ctx, "u1", nil)
	require.NoError(t, err)
	fallback, err := svc.Resolve(ctx, "u9", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, dupErr, worktype.ErrWorkTypeExists)
	assert.Equal(t, wt.ID, resolved.ID)
	assert.True(t, fallback.IsDefault())
}

func TestLeave_HoldRejectAndApprove(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	ledger, requests := newLeaveServices()
	_, err := ledger.Grant(ctx, leave.GrantRequest{UserID: "u1", LeaveTypeID: "annual", Units: decimal.NewFromInt(10), ActorID: "m1"})
	require.NoError(t, err)

	balance := func() leave.LedgerEntry {
		entry, err := ledger.GetBalance(ctx, "u1", "annual")
		require.NoError(t, err)
		return entry
	}
	submit := func() leave.LeaveRequest {
		r, err := requests.Submit(ctx, leave.SubmitLeaveRequest{UserID: "u1", LeaveTypeID: "annual", StartDate: "2025-04-01", EndDate: "2025-04-01"})
		require.NoError(t, err)
		return r
	}

	first := submit()
	held := balance()
	_, err = requests.Reject(ctx, leave.DecideLeaveRequest{RequestID: first.ID, DeciderID: "m1"})
	require.NoError(t, err)
	afterReject := balance()

	second := submit()
	_, err = requests.Approve(ctx, leave.DecideLeaveRequest{RequestID: second.ID, DeciderID: "m1"})
	require.NoError(t, err)
	afterApprove := balance()

	assert.True(t, held.AvailableUnits.Equal(decimal.NewFromInt(9)))
	assert.True(t, held.HeldUnits.Equal(decimal.NewFromInt(1)))
	assert.True(t, afterReject.AvailableUnits.Equal(decimal.NewFromInt(10)))
	assert.True(t, afterReject.HeldUnits.IsZero())
	assert.True(t, afterReject.ConsumedUnits.IsZero())
	assert.True(t, afterApprove.AvailableUnits.Equal(decimal.NewFromInt(9)))
	assert.True(t, afterApprove.HeldUnits.IsZero())
	assert.True(t, afterApprove.ConsumedUnits.Equal(decimal.NewFromInt(1)))
}

func TestLeave_ConcurrentHoldsConserveUnits(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	ledger, _ := newLeaveServices()
	_, err := ledger.Grant(ctx, leave.GrantRequest{UserID: "u1", LeaveTypeID: "annual", Units: decimal.NewFromInt(3), ActorID: "m1"})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Hold(ctx, leave.HoldRequest{
				RequestID: fmt.Sprintf("req-%d", i), UserID: "u1", LeaveTypeID: "annual", Units: decimal.NewFromInt(1),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, leave.ErrInsufficientBalance)
		}(i)
	}
	wg.Wait()

	entry, err := ledger.GetBalance(ctx, "u1", "annual")
	require.NoError(t, err)
	assert.Equal(t, 3, succeeded)
	assert.True(t, entry.AvailableUnits.IsZero())
	assert.True(t, entry.HeldUnits.Equal(decimal.NewFromInt(3)))
	assert.True(t, entry.Total().Equal(decimal.NewFromInt(3)))
}

func TestLeave_DeleteReleasesAndLeaksAreFound(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	ledger, requests := newLeaveServices()
	_, err := ledger.Grant(ctx, leave.GrantRequest{UserID: "u1", LeaveTypeID: "annual", Units: decimal.NewFromInt(5), ActorID: "m1"})
	require.NoError(t, err)

	r, err := requests.Submit(ctx, leave.SubmitLeaveRequest{UserID: "u1", LeaveTypeID: "annual", StartDate: "2025-04-01", EndDate: "2025-04-02"})
	require.NoError(t, err)
	require.NoError(t, requests.Delete(ctx, leave.DeleteLeaveRequest{RequestID: r.ID, ActorID: "u1"}))

	_, err = ledger.Hold(ctx, leave.HoldRequest{RequestID: "orphan", UserID: "u1", LeaveTypeID: "annual", Units: decimal.NewFromInt(1)})
	require.NoError(t, err)
	_, err = testDB.Exec(ctx, `UPDATE leave_holds SET created_at = NOW() - INTERVAL '3 days' WHERE request_id = 'orphan'`)
	require.NoError(t, err)

	leaked, err := ledger.ListLeakedHolds(ctx, 24*time.Hour)
	require.NoError(t, err)
	hold, err := ledger.GetHold(ctx, r.ID)
	require.NoError(t, err)

	assert.Equal(t, leave.HoldStatusReleased, hold.Status)
	require.Len(t, leaked, 1)
	assert.Equal(t, "orphan", leaked[0].Hold.RequestID)
	assert.Nil(t, leaked[0].RequestStatus)
}

func TestLeave_ConcurrentIdenticalHoldsAreIdempotent(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	ledger, _ := newLeaveServices()
	_, err := ledger.Grant(ctx, leave.GrantRequest{UserID: "u1", LeaveTypeID: "annual", Units: decimal.NewFromInt(5), ActorID: "m1"})
	require.NoError(t, err)

	req := leave.HoldRequest{RequestID: "req-same", UserID: "u1", LeaveTypeID: "annual", Units: decimal.NewFromInt(2)}
	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Hold(ctx, req)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	entry, err := ledger.GetBalance(ctx, "u1", "annual")
	require.NoError(t, err)
	assert.True(t, entry.AvailableUnits.Equal(decimal.NewFromInt(3)))
	assert.True(t, entry.HeldUnits.Equal(decimal.NewFromInt(2)))
}
