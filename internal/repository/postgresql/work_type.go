package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/worktype"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type workTypeRepositoryImpl struct {
	db *database.DB
}

func NewWorkTypeRepository(db *database.DB) worktype.WorkTypeRepository {
	return &workTypeRepositoryImpl{db: db}
}

const workTypeColumns = `
	wt.id, wt.name, COALESCE(wt.scheduled_start, ''), COALESCE(wt.scheduled_end, ''),
	wt.grace_period_minutes, wt.overtime_threshold_minutes, wt.timezone,
	wt.created_at, wt.updated_at`

func scanWorkType(row pgx.Row) (worktype.WorkType, error) {
	var wt worktype.WorkType
	err := row.Scan(
		&wt.ID, &wt.Name, &wt.ScheduledStart, &wt.ScheduledEnd,
		&wt.GracePeriodMinutes, &wt.OvertimeThresholdMinutes, &wt.Timezone,
		&wt.CreatedAt, &wt.UpdatedAt,
	)
	return wt, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create implements worktype.WorkTypeRepository.
func (r *workTypeRepositoryImpl) Create(ctx context.Context, wt worktype.WorkType) (worktype.WorkType, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO work_types (
			name, scheduled_start, scheduled_end, grace_period_minutes, overtime_threshold_minutes, timezone
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		wt.Name,
		nullIfEmpty(wt.ScheduledStart),
		nullIfEmpty(wt.ScheduledEnd),
		wt.GracePeriodMinutes,
		wt.OvertimeThresholdMinutes,
		wt.Timezone,
	).Scan(&wt.ID, &wt.CreatedAt, &wt.UpdatedAt)
	if err != nil {
		if constraintViolation(err) == "work_types_name_key" {
			return worktype.WorkType{}, worktype.ErrWorkTypeExists
		}
		return worktype.WorkType{}, fmt.Errorf("failed to create work type: %w", err)
	}
	return wt, nil
}

// GetByID implements worktype.WorkTypeRepository.
func (r *workTypeRepositoryImpl) GetByID(ctx context.Context, id string) (worktype.WorkType, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + workTypeColumns + ` FROM work_types wt WHERE wt.id = $1`

	wt, err := scanWorkType(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
			return worktype.WorkType{}, worktype.ErrWorkTypeNotFound
		}
		return worktype.WorkType{}, fmt.Errorf("failed to get work type: %w", err)
	}
	return wt, nil
}

// Assign implements worktype.WorkTypeRepository.
func (r *workTypeRepositoryImpl) Assign(ctx context.Context, userID string, workTypeID string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO work_type_assignments (user_id, work_type_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET work_type_id = EXCLUDED.work_type_id, assigned_at = NOW()
	`

	if _, err := q.Exec(ctx, query, userID, workTypeID); err != nil {
		return fmt.Errorf("failed to assign work type: %w", err)
	}
	return nil
}

// GetAssigned implements worktype.WorkTypeRepository.
func (r *workTypeRepositoryImpl) GetAssigned(ctx context.Context, userID string) (worktype.WorkType, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + workTypeColumns + `
		FROM work_type_assignments a
		JOIN work_types wt ON wt.id = a.work_type_id
		WHERE a.user_id = $1
	`

	wt, err := scanWorkType(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
			return worktype.WorkType{}, worktype.ErrWorkTypeNotFound
		}
		return worktype.WorkType{}, fmt.Errorf("failed to get assigned work type: %w", err)
	}
	return wt, nil
}
