package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
)

type attendanceRepository struct {
	store *Store
}

func NewAttendanceRepository(store *Store) attendance.AttendanceRepository {
	return &attendanceRepository{store: store}
}

func cloneRecord(r attendance.AttendanceRecord) attendance.AttendanceRecord {
	r.ClockRecords = attendance.CloneSessions(r.ClockRecords)
	if r.Anomalies != nil {
		r.Anomalies = append(make([]attendance.Anomaly, 0, len(r.Anomalies)), r.Anomalies...)
	}
	return r
}

func (r *attendanceRepository) successorOf(id string) (attendance.AttendanceRecord, bool) {
	for _, rec := range r.store.attendances {
		if rec.DeletedAt == nil && rec.SourceID != nil && *rec.SourceID == id {
			return rec, true
		}
	}
	return attendance.AttendanceRecord{}, false
}

func (r *attendanceRepository) heads(match func(attendance.AttendanceRecord) bool) []attendance.AttendanceRecord {
	var out []attendance.AttendanceRecord
	for _, rec := range r.store.attendances {
		if rec.DeletedAt != nil || !match(rec) {
			continue
		}
		if _, superseded := r.successorOf(rec.ID); superseded {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Create implements attendance.AttendanceRepository.
func (r *attendanceRepository) Create(ctx context.Context, rec attendance.AttendanceRecord) (attendance.AttendanceRecord, error) {
	defer r.store.lock(ctx)()

	for _, existing := range r.store.attendances {
		if existing.DeletedAt != nil {
			continue
		}
		if rec.SourceID == nil && existing.SourceID == nil &&
			existing.UserID == rec.UserID && existing.WorkDate.Equal(rec.WorkDate) {
			return attendance.AttendanceRecord{}, attendance.ErrDuplicateDay
		}
		if rec.SourceID != nil && existing.SourceID != nil && *existing.SourceID == *rec.SourceID {
			return attendance.AttendanceRecord{}, attendance.ErrRecordSuperseded
		}
	}

	now := r.store.now()
	rec.ID = newID()
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec = cloneRecord(rec)
	r.store.attendances[rec.ID] = rec
	return cloneRecord(rec), nil
}

// Update implements attendance.AttendanceRepository.
func (r *attendanceRepository) Update(ctx context.Context, rec attendance.AttendanceRecord) (attendance.AttendanceRecord, error) {
	defer r.store.lock(ctx)()

	current, ok := r.store.attendances[rec.ID]
	if !ok || current.DeletedAt != nil || current.Version != rec.Version {
		return attendance.AttendanceRecord{}, attendance.ErrConcurrentUpdate
	}
	if _, superseded := r.successorOf(rec.ID); superseded {
		return attendance.AttendanceRecord{}, attendance.ErrConcurrentUpdate
	}

	next := current
	next.ClockRecords = rec.ClockRecords
	next.WorkTypeID = rec.WorkTypeID
	next.ActualWorkMinutes = rec.ActualWorkMinutes
	next.BreakMinutes = rec.BreakMinutes
	next.OvertimeMinutes = rec.OvertimeMinutes
	next.LateMinutes = rec.LateMinutes
	next.EarlyLeaveMinutes = rec.EarlyLeaveMinutes
	next.Status = rec.Status
	next.Anomalies = rec.Anomalies
	next.Version = current.Version + 1
	next.UpdatedAt = r.store.now()

	next = cloneRecord(next)
	r.store.attendances[next.ID] = next
	return cloneRecord(next), nil
}

// GetByID implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetByID(ctx context.Context, id string, forUpdate bool) (attendance.AttendanceRecord, error) {
	defer r.store.lock(ctx)()

	rec, ok := r.store.attendances[id]
	if !ok || rec.DeletedAt != nil {
		return attendance.AttendanceRecord{}, attendance.ErrAttendanceNotFound
	}
	return cloneRecord(rec), nil
}

// GetSuccessor implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetSuccessor(ctx context.Context, id string) (*attendance.AttendanceRecord, error) {
	defer r.store.lock(ctx)()

	rec, ok := r.successorOf(id)
	if !ok {
		return nil, nil
	}
	rec = cloneRecord(rec)
	return &rec, nil
}

// GetHeadByDate implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetHeadByDate(ctx context.Context, userID string, workDate time.Time, forUpdate bool) (*attendance.AttendanceRecord, error) {
	defer r.store.lock(ctx)()

	heads := r.heads(func(rec attendance.AttendanceRecord) bool {
		return rec.UserID == userID && rec.WorkDate.Equal(workDate)
	})
	if len(heads) == 0 {
		return nil, nil
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i].CreatedAt.After(heads[j].CreatedAt) })
	rec := cloneRecord(heads[0])
	return &rec, nil
}

// GetLatestHead implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetLatestHead(ctx context.Context, userID string, forUpdate bool) (*attendance.AttendanceRecord, error) {
	defer r.store.lock(ctx)()

	heads := r.heads(func(rec attendance.AttendanceRecord) bool { return rec.UserID == userID })
	if len(heads) == 0 {
		return nil, nil
	}
	sort.Slice(heads, func(i, j int) bool {
		if !heads[i].WorkDate.Equal(heads[j].WorkDate) {
			return heads[i].WorkDate.After(heads[j].WorkDate)
		}
		return heads[i].CreatedAt.After(heads[j].CreatedAt)
	})
	rec := cloneRecord(heads[0])
	return &rec, nil
}

// ListStaleOpen implements attendance.AttendanceRepository.
func (r *attendanceRepository) ListStaleOpen(ctx context.Context, cutoff time.Time) ([]attendance.AttendanceRecord, error) {
	defer r.store.lock(ctx)()

	y, m, d := cutoff.Date()
	cutoffDay := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	heads := r.heads(func(rec attendance.AttendanceRecord) bool {
		return rec.WorkDate.Before(cutoffDay) && rec.HasOpenSession()
	})
	sort.Slice(heads, func(i, j int) bool {
		if !heads[i].WorkDate.Equal(heads[j].WorkDate) {
			return heads[i].WorkDate.Before(heads[j].WorkDate)
		}
		return heads[i].UserID < heads[j].UserID
	})
	for i := range heads {
		heads[i] = cloneRecord(heads[i])
	}
	return heads, nil
}
