package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const attendanceColumns = `
	id, user_id, work_date, clock_records, work_type_id,
	actual_work_minutes, break_minutes, overtime_minutes, late_minutes, early_leave_minutes,
	status, anomalies, source_id, edit_reason, edited_by, approved_by, approved_at,
	version, created_at, updated_at, deleted_at`

// head rows are the ones nothing supersedes yet
const notSuperseded = `NOT EXISTS (SELECT 1 FROM attendances s WHERE s.source_id = a.id AND s.deleted_at IS NULL)`

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

func scanAttendance(row pgx.Row) (attendance.AttendanceRecord, error) {
	var (
		rec       attendance.AttendanceRecord
		sessions  []byte
		anomalies []byte
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.WorkDate, &sessions, &rec.WorkTypeID,
		&rec.ActualWorkMinutes, &rec.BreakMinutes, &rec.OvertimeMinutes, &rec.LateMinutes, &rec.EarlyLeaveMinutes,
		&rec.Status, &anomalies, &rec.SourceID, &rec.EditReason, &rec.EditedBy, &rec.ApprovedBy, &rec.ApprovedAt,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt,
	)
	if err != nil {
		return attendance.AttendanceRecord{}, err
	}
	if err := json.Unmarshal(sessions, &rec.ClockRecords); err != nil {
		return attendance.AttendanceRecord{}, fmt.Errorf("decode clock_records of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(anomalies, &rec.Anomalies); err != nil {
		return attendance.AttendanceRecord{}, fmt.Errorf("decode anomalies of %s: %w", rec.ID, err)
	}
	return rec, nil
}

func encodeJSONColumns(rec attendance.AttendanceRecord) (string, string, error) {
	sessions := rec.ClockRecords
	if sessions == nil {
		sessions = []attendance.ClockSession{}
	}
	anomalies := rec.Anomalies
	if anomalies == nil {
		anomalies = []attendance.Anomaly{}
	}
	s, err := json.Marshal(sessions)
	if err != nil {
		return "", "", fmt.Errorf("encode clock_records: %w", err)
	}
	a, err := json.Marshal(anomalies)
	if err != nil {
		return "", "", fmt.Errorf("encode anomalies: %w", err)
	}
	return string(s), string(a), nil
}

// Create implements attendance.AttendanceRepository.
func (r *attendanceRepository) Create(ctx context.Context, rec attendance.AttendanceRecord) (attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, r.db)

	sessions, anomalies, err := encodeJSONColumns(rec)
	if err != nil {
		return attendance.AttendanceRecord{}, err
	}

	query := `
		INSERT INTO attendances (
			user_id, work_date, clock_records, work_type_id,
			actual_work_minutes, break_minutes, overtime_minutes, late_minutes, early_leave_minutes,
			status, anomalies, source_id, edit_reason, edited_by, approved_by, approved_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		) RETURNING id, version, created_at, updated_at
	`

	err = q.QueryRow(ctx, query,
		rec.UserID,
		rec.WorkDate,
		sessions,
		rec.WorkTypeID,
		rec.ActualWorkMinutes,
		rec.BreakMinutes,
		rec.OvertimeMinutes,
		rec.LateMinutes,
		rec.EarlyLeaveMinutes,
		rec.Status,
		anomalies,
		rec.SourceID,
		rec.EditReason,
		rec.EditedBy,
		rec.ApprovedBy,
		rec.ApprovedAt,
	).Scan(&rec.ID, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		switch constraintViolation(err) {
		case "attendances_root_day_key":
			return attendance.AttendanceRecord{}, attendance.ErrDuplicateDay
		case "attendances_source_key":
			return attendance.AttendanceRecord{}, attendance.ErrRecordSuperseded
		}
		return attendance.AttendanceRecord{}, fmt.Errorf("failed to create attendance: %w", err)
	}

	return rec, nil
}

// Update implements attendance.AttendanceRepository.
func (r *attendanceRepository) Update(ctx context.Context, rec attendance.AttendanceRecord) (attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, r.db)

	sessions, anomalies, err := encodeJSONColumns(rec)
	if err != nil {
		return attendance.AttendanceRecord{}, err
	}

	query := `
		UPDATE attendances a SET
			clock_records = $3,
			work_type_id = $4,
			actual_work_minutes = $5,
			break_minutes = $6,
			overtime_minutes = $7,
			late_minutes = $8,
			early_leave_minutes = $9,
			status = $10,
			anomalies = $11,
			version = a.version + 1,
			updated_at = NOW()
		WHERE a.id = $1
		  AND a.version = $2
		  AND a.deleted_at IS NULL
		  AND ` + notSuperseded + `
		RETURNING a.version, a.updated_at
	`

	err = q.QueryRow(ctx, query,
		rec.ID,
		rec.Version,
		sessions,
		rec.WorkTypeID,
		rec.ActualWorkMinutes,
		rec.BreakMinutes,
		rec.OvertimeMinutes,
		rec.LateMinutes,
		rec.EarlyLeaveMinutes,
		rec.Status,
		anomalies,
	).Scan(&rec.Version, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.AttendanceRecord{}, attendance.ErrConcurrentUpdate
		}
		return attendance.AttendanceRecord{}, fmt.Errorf("failed to update attendance: %w", err)
	}

	return rec, nil
}

// GetByID implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetByID(ctx context.Context, id string, forUpdate bool) (attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + attendanceColumns + ` FROM attendances a WHERE a.id = $1 AND a.deleted_at IS NULL` + forUpdateClause(forUpdate)

	rec, err := scanAttendance(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
			return attendance.AttendanceRecord{}, attendance.ErrAttendanceNotFound
		}
		return attendance.AttendanceRecord{}, fmt.Errorf("failed to get attendance by id: %w", err)
	}
	return rec, nil
}

// GetSuccessor implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetSuccessor(ctx context.Context, id string) (*attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + attendanceColumns + ` FROM attendances a WHERE a.source_id = $1 AND a.deleted_at IS NULL LIMIT 1`

	rec, err := scanAttendance(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance successor: %w", err)
	}
	return &rec, nil
}

// GetHeadByDate implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetHeadByDate(ctx context.Context, userID string, workDate time.Time, forUpdate bool) (*attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		WHERE a.user_id = $1
		  AND a.work_date = $2
		  AND a.deleted_at IS NULL
		  AND ` + notSuperseded + `
		ORDER BY a.created_at DESC
		LIMIT 1` + forUpdateClause(forUpdate)

	rec, err := scanAttendance(q.QueryRow(ctx, query, userID, workDate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance by user and date: %w", err)
	}
	return &rec, nil
}

// GetLatestHead implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetLatestHead(ctx context.Context, userID string, forUpdate bool) (*attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		WHERE a.user_id = $1
		  AND a.deleted_at IS NULL
		  AND ` + notSuperseded + `
		ORDER BY a.work_date DESC, a.created_at DESC
		LIMIT 1` + forUpdateClause(forUpdate)

	rec, err := scanAttendance(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest attendance: %w", err)
	}
	return &rec, nil
}

// ListStaleOpen implements attendance.AttendanceRepository.
func (r *attendanceRepository) ListStaleOpen(ctx context.Context, cutoff time.Time) ([]attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		WHERE a.work_date < $1::date
		  AND a.deleted_at IS NULL
		  AND jsonb_array_length(a.clock_records) > 0
		  AND (a.clock_records -> -1 ->> 'out_time') IS NULL
		  AND ` + notSuperseded + `
		ORDER BY a.work_date, a.user_id
	`

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale open attendances: %w", err)
	}
	defer rows.Close()

	var records []attendance.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendances: %w", err)
	}
	return records, nil
}
