package leave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	employeeID = "0192f0c1-0000-7000-8000-000000000001"
	managerID  = "0192f0c1-0000-7000-8000-000000000002"
	annual     = "annual"
)

var clock = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

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

func (c *captureRecorder) count(entity, action string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Entity == entity && e.Action == action {
			n++
		}
	}
	return n
}

type captureNotifier struct {
	mu      sync.Mutex
	changes []notification.StatusChange
}

func (c *captureNotifier) NotifyStatusChange(ctx context.Context, change notification.StatusChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, change)
}

func (c *captureNotifier) all() []notification.StatusChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notification.StatusChange(nil), c.changes...)
}

type fixture struct {
	store    *memory.Store
	ledger   *LedgerServiceImpl
	requests *RequestServiceImpl
	recorder *captureRecorder
	notifier *captureNotifier
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	tx := memory.NewTransactor(store)
	f := &fixture{
		store:    store,
		recorder: &captureRecorder{},
		notifier: &captureNotifier{},
	}
	f.ledger = NewLedgerService(tx, memory.NewLedgerRepository(store), f.recorder)
	f.ledger.SetClock(func() time.Time { return clock })
	f.requests = NewRequestService(tx, memory.NewLeaveRequestRepository(store), f.ledger, f.notifier, f.recorder)
	f.requests.SetClock(func() time.Time { return clock })
	return f
}

func units(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) grant(t *testing.T, userID, amount string) {
	t.Helper()
	_, err := f.ledger.Grant(context.Background(), leave.GrantRequest{
		UserID: userID, LeaveTypeID: annual, Units: units(amount), ActorID: managerID,
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID string) leave.LedgerEntry {
	t.Helper()
	entry, err := f.ledger.GetBalance(context.Background(), userID, annual)
	require.NoError(t, err)
	return entry
}

func assertBalance(t *testing.T, entry leave.LedgerEntry, available, held, consumed string) {
	t.Helper()
	assert.True(t, entry.AvailableUnits.Equal(units(available)), "available: got %s want %s", entry.AvailableUnits, available)
	assert.True(t, entry.HeldUnits.Equal(units(held)), "held: got %s want %s", entry.HeldUnits, held)
	assert.True(t, entry.ConsumedUnits.Equal(units(consumed)), "consumed: got %s want %s", entry.ConsumedUnits, consumed)
}

func holdRequest(requestID, amount string) leave.HoldRequest {
	return leave.HoldRequest{RequestID: requestID, UserID: employeeID, LeaveTypeID: annual, Units: units(amount)}
}

func TestLedger_HoldThenRelease(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	f.grant(t, employeeID, "10")

	// Act
	hold, err := f.ledger.Hold(ctx, holdRequest("req-1", "1"))
	require.NoError(t, err)
	held := f.balance(t, employeeID)
	released, err := f.ledger.Release(ctx, "req-1")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, leave.HoldStatusHeld, hold.Status)
	assertBalance(t, held, "9", "1", "0")
	assert.Equal(t, leave.HoldStatusReleased, released.Status)
	require.NotNil(t, released.ResolvedAt)
	assertBalance(t, f.balance(t, employeeID), "10", "0", "0")
}

func TestLedger_HoldThenFinalize(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	f.grant(t, employeeID, "10")
	_, err := f.ledger.Hold(ctx, holdRequest("req-1", "1"))
	require.NoError(t, err)

	// Act
	hold, err := f.ledger.Finalize(ctx, "req-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, leave.HoldStatusFinalized, hold.Status)
	assertBalance(t, f.balance(t, employeeID), "9", "0", "1")
	assert.True(t, f.balance(t, employeeID).Total().Equal(units("10")))
}

func TestLedger_InsufficientBalance(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	f.grant(t, employeeID, "2")

	// Act
	_, err := f.ledger.Hold(ctx, holdRequest("req-1", "2.5"))

	// Assert
	require.ErrorIs(t, err, leave.ErrInsufficientBalance)
	var balanceErr *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &balanceErr)
	assert.True(t, balanceErr.Available.Equal(units("2")))
	assert.True(t, balanceErr.Requested.Equal(units("2.5")))
	assertBalance(t, f.balance(t, employeeID), "2", "0", "0")
	_, err = f.ledger.GetHold(ctx, "req-1")
	assert.ErrorIs(t, err, leave.ErrNoActiveHold)
}

func TestLedger_HoldWithoutEntry(t *testing.T) {
	// Setup
	f := setup(t)

	// Act
	_, err := f.ledger.Hold(context.Background(), holdRequest("req-1", "1"))

	// Assert
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)
}

func TestLedger_HoldReplay(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	f.grant(t, employeeID, "10")
	first, err := f.ledger.Hold(ctx, holdRequest("req-1", "1"))
	require.NoError(t, err)

	// Act
	again, err := f.ledger.Hold(ctx, holdRequest("req-1", "1"))
	require.NoError(t, err)
	_, conflict := f.ledger.Hold(ctx, holdRequest("req-1", "2"))

	// Assert
	assert.Equal(t, first.CreatedAt, again.CreatedAt)
	assert.ErrorIs(t, conflict, leave.ErrHoldConflict)
	assertBalance(t, f.balance(t, employeeID), "9", "1", "0")
	assert.Equal(t, 1, f.recorder.count(audit.EntityLeaveHold, "hold"))
}

// lateHoldRepository misses the locked hold lookup a set number of times,
// as a transaction does when a concurrent insert of the same hold has not
// committed yet.
type lateHoldRepository struct {
	leave.LedgerRepository
	misses int
}

func (r *lateHoldRepository) GetHold(ctx context.Context, requestID string, forUpdate bool) (leave.Hold, error) {
	if forUpdate && r.misses > 0 {
		r.misses--
		return leave.Hold{}, leave.ErrNoActiveHold
	}
	return r.LedgerRepository.GetHold(ctx, requestID, forUpdate)
}

func TestLedger_HoldReplayRacingInsert(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	f.grant(t, employeeID, "10")
	first, err := f.ledger.Hold(ctx, holdRequest("req-1", "1"))
	require.NoError(t, err)

	repo := &lateHoldRepository{LedgerRepository: memory.NewLedgerRepository(f.store), misses: 2}
	racing := NewLedgerService(memory.NewTransactor(f.store), repo, f.recorder)
	racing.SetClock(func() time.Time { return clock })

	// Act
	again, err := racing.Hold(ctx, holdRequest("req-1", "1"))
	require.NoError(t, err)
	_, conflict := racing.Hold(ctx, holdRequest("req-1", "2"))

	// Assert
	assert.Equal(t, first, again)
	assert.ErrorIs(t, conflict, leave.ErrHoldConflict)
	assertBalance(t, f.balance(t, employeeID), "9", "1", "0")
	assert.Equal(t, 1, f.recorder.count(audit.EntityLeaveHold, "hold"))
}

func TestLedger_ResolveTransitions(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	f.grant(t, employeeID, "10")
	_, err := f.ledger.Hold(ctx, holdRequest("req-1", "1"))
	require.NoError(t, err)
	_, err = f.ledger.Release(ctx, "req-1")
	require.NoError(t, err)

	// Act
	_, releaseAgain := f.ledger.Release(ctx, "req-1")
	_, finalizeAfter := f.ledger.Finalize(ctx, "req-1")
	_, unknown := f.ledger.Finalize(ctx, "req-404")

	// Assert
	assert.NoError(t, releaseAgain)
	assert.ErrorIs(t, finalizeAfter, leave.ErrHoldAlreadyReleased)
	assert.ErrorIs(t, unknown, leave.ErrNoActiveHold)
	assertBalance(t, f.balance(t, employeeID), "10", "0", "0")
	assert.Equal(t, 1, f.recorder.count(audit.EntityLeaveHold, "released"))
}

func TestLedger_ReleaseAfterFinalize(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	f.grant(t, employeeID, "10")
	_, err := f.ledger.Hold(ctx, holdRequest("req-1", "1"))
	require.NoError(t, err)
	_, err = f.ledger.Finalize(ctx, "req-1")
	require.NoError(t, err)

	// Act
	_, err = f.ledger.Release(ctx, "req-1")

	// Assert
	assert.ErrorIs(t, err, leave.ErrHoldAlreadyFinalized)
	assertBalance(t, f.balance(t, employeeID), "9", "0", "1")
}

func TestLedger_GrantValidation(t *testing.T) {
	// Setup
	f := setup(t)

	// Act
	_, err := f.ledger.Grant(context.Background(), leave.GrantRequest{
		UserID: employeeID, LeaveTypeID: annual, Units: units("-1"), ActorID: managerID,
	})

	// Assert
	assert.Error(t, err)
	_, err = f.ledger.GetBalance(context.Background(), employeeID, annual)
	assert.ErrorIs(t, err, leave.ErrLedgerEntryNotFound)
}

func TestLedger_ConcurrentHoldsNeverOverdraw(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	f.grant(t, employeeID, "5")
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)

	// Act
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.ledger.Hold(ctx, holdRequest(string(rune('a'+i)), "1"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, leave.ErrInsufficientBalance):
				insufficient++
			}
		}(i)
	}
	wg.Wait()

	// Assert
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 15, insufficient)
	entry := f.balance(t, employeeID)
	assertBalance(t, entry, "0", "5", "0")
	assert.True(t, entry.Total().Equal(units("5")))
}

func TestLedger_ListLeakedHolds(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	f.store.SetClock(func() time.Time { return clock.Add(-72 * time.Hour) })
	f.grant(t, employeeID, "10")
	_, err := f.ledger.Hold(ctx, holdRequest("orphan", "1"))
	require.NoError(t, err)

	// Act
	leaked, err := f.ledger.ListLeakedHolds(ctx, 24*time.Hour)
	require.NoError(t, err)
	recent, err := f.ledger.ListLeakedHolds(ctx, 96*time.Hour)
	require.NoError(t, err)
	_, negErr := f.ledger.ListLeakedHolds(ctx, -time.Hour)

	// Assert
	require.Len(t, leaked, 1)
	assert.Equal(t, "orphan", leaked[0].Hold.RequestID)
	assert.Nil(t, leaked[0].RequestStatus)
	assert.Empty(t, recent)
	assert.Error(t, negErr)
}

func TestLedger_ListBalances(t *testing.T) {
	// Setup
	f := setup(t)
	ctx := context.Background()
	f.grant(t, employeeID, "10")
	_, err := f.ledger.Grant(ctx, leave.GrantRequest{UserID: employeeID, LeaveTypeID: "sick", Units: units("3"), ActorID: managerID})
	require.NoError(t, err)
	f.grant(t, employeeID, "2")

	// Act
	entries, err := f.ledger.ListBalances(ctx, employeeID)

	// Assert
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, annual, entries[0].LeaveTypeID)
	assert.True(t, entries[0].AvailableUnits.Equal(units("12")))
	assert.Equal(t, 3, f.recorder.count(audit.EntityLeaveLedger, "grant"))
}
