// Package memory keeps every repository in process memory. It backs the
// API when DB_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/worktype"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/google/uuid"
)

type ledgerKey struct {
	userID      string
	leaveTypeID string
}

// Store holds the tables. A single mutex serializes transactions, which
// gives the same outcome as row locks for the workloads served here.
type Store struct {
	mu sync.Mutex

	attendances map[string]attendance.AttendanceRecord
	ledger      map[ledgerKey]leave.LedgerEntry
	holds       map[string]leave.Hold
	requests    map[string]leave.LeaveRequest
	workTypes   map[string]worktype.WorkType
	assignments map[string]string

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		attendances: make(map[string]attendance.AttendanceRecord),
		ledger:      make(map[ledgerKey]leave.LedgerEntry),
		holds:       make(map[string]leave.Hold),
		requests:    make(map[string]leave.LeaveRequest),
		workTypes:   make(map[string]worktype.WorkType),
		assignments: make(map[string]string),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for created/updated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// lock acquires the store unless ctx already runs inside a transaction.
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	attendances map[string]attendance.AttendanceRecord
	ledger      map[ledgerKey]leave.LedgerEntry
	holds       map[string]leave.Hold
	requests    map[string]leave.LeaveRequest
	workTypes   map[string]worktype.WorkType
	assignments map[string]string
}

// Stored values are never mutated in place, so shallow map copies are
// enough to roll back.
func (s *Store) snapshot() snapshot {
	return snapshot{
		attendances: maps.Clone(s.attendances),
		ledger:      maps.Clone(s.ledger),
		holds:       maps.Clone(s.holds),
		requests:    maps.Clone(s.requests),
		workTypes:   maps.Clone(s.workTypes),
		assignments: maps.Clone(s.assignments),
	}
}

func (s *Store) restore(snap snapshot) {
	s.attendances = snap.attendances
	s.ledger = snap.ledger
	s.holds = snap.holds
	s.requests = snap.requests
	s.workTypes = snap.workTypes
	s.assignments = snap.assignments
}

type transactor struct {
	store *Store
}

func NewTransactor(store *Store) database.Transactor {
	return &transactor{store: store}
}

// WithinTransaction implements database.Transactor. Writes made by fn are
// undone when it returns an error or panics.
func (t *transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	snap := t.store.snapshot()
	defer func() {
		if p := recover(); p != nil {
			t.store.restore(snap)
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
