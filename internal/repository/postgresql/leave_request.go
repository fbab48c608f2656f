package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type leaveRequestRepositoryImpl struct {
	db *database.DB
}

func NewLeaveRequestRepository(db *database.DB) leave.LeaveRequestRepository {
	return &leaveRequestRepositoryImpl{db: db}
}

const leaveRequestColumns = `
	lr.id, lr.user_id, lr.leave_type_id, lr.start_date, lr.end_date, lr.units, lr.reason,
	lr.status, lr.decided_by, lr.decided_at, lr.rejection_reason,
	lr.created_at, lr.updated_at, lr.deleted_at`

func scanLeaveRequest(row pgx.Row) (leave.LeaveRequest, error) {
	var req leave.LeaveRequest
	err := row.Scan(
		&req.ID, &req.UserID, &req.LeaveTypeID, &req.StartDate, &req.EndDate, &req.Units, &req.Reason,
		&req.Status, &req.DecidedBy, &req.DecidedAt, &req.RejectionReason,
		&req.CreatedAt, &req.UpdatedAt, &req.DeletedAt,
	)
	return req, err
}

func collectLeaveRequests(rows pgx.Rows) ([]leave.LeaveRequest, error) {
	defer rows.Close()

	var requests []leave.LeaveRequest
	for rows.Next() {
		req, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leave requests: %w", err)
	}
	return requests, nil
}

// Create implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) Create(ctx context.Context, request leave.LeaveRequest) (leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO leave_requests (
			user_id, leave_type_id, start_date, end_date, units, reason, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		request.UserID,
		request.LeaveTypeID,
		request.StartDate,
		request.EndDate,
		request.Units,
		request.Reason,
		request.Status,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("failed to create leave request: %w", err)
	}

	return request, nil
}

// GetByID implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) GetByID(ctx context.Context, id string, forUpdate bool) (leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests lr WHERE lr.id = $1 AND lr.deleted_at IS NULL` + forUpdateClause(forUpdate)

	req, err := scanLeaveRequest(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
			return leave.LeaveRequest{}, leave.ErrLeaveRequestNotFound
		}
		return leave.LeaveRequest{}, fmt.Errorf("failed to get leave request: %w", err)
	}
	return req, nil
}

// Update implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) Update(ctx context.Context, request leave.LeaveRequest) (leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE leave_requests
		SET status = $2, decided_by = $3, decided_at = $4, rejection_reason = $5, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at
	`

	err := q.QueryRow(ctx, query,
		request.ID,
		request.Status,
		request.DecidedBy,
		request.DecidedAt,
		request.RejectionReason,
	).Scan(&request.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
			return leave.LeaveRequest{}, leave.ErrLeaveRequestNotFound
		}
		return leave.LeaveRequest{}, fmt.Errorf("failed to update leave request: %w", err)
	}
	return request, nil
}

// SoftDelete implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) SoftDelete(ctx context.Context, id string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `UPDATE leave_requests SET deleted_at = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	commandTag, err := q.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to delete leave request: %w", err)
	}
	if commandTag.RowsAffected() != 1 {
		return leave.ErrLeaveRequestNotFound
	}
	return nil
}

// ListByUser implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) ListByUser(ctx context.Context, userID string, filter leave.LeaveRequestFilter) ([]leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	whereClauses := []string{"lr.user_id = $1", "lr.deleted_at IS NULL"}
	args := []interface{}{userID}
	argIndex := 2

	if filter.Status != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("lr.status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests lr WHERE ` +
		strings.Join(whereClauses, " AND ") + ` ORDER BY lr.created_at DESC`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	return collectLeaveRequests(rows)
}

// ListByStatus implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) ListByStatus(ctx context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests lr
		WHERE lr.status = $1 AND lr.deleted_at IS NULL
		ORDER BY lr.created_at`

	rows, err := q.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests by status: %w", err)
	}
	return collectLeaveRequests(rows)
}
