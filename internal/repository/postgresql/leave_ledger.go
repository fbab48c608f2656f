package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type leaveLedgerRepositoryImpl struct {
	db *database.DB
}

func NewLeaveLedgerRepository(db *database.DB) leave.LedgerRepository {
	return &leaveLedgerRepositoryImpl{db: db}
}

const ledgerColumns = `user_id, leave_type_id, available_units, held_units, consumed_units, created_at, updated_at`

func scanLedgerEntry(row pgx.Row) (leave.LedgerEntry, error) {
	var e leave.LedgerEntry
	err := row.Scan(&e.UserID, &e.LeaveTypeID, &e.AvailableUnits, &e.HeldUnits, &e.ConsumedUnits, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// GetEntry implements leave.LedgerRepository.
func (r *leaveLedgerRepositoryImpl) GetEntry(ctx context.Context, userID, leaveTypeID string, forUpdate bool) (leave.LedgerEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + ledgerColumns + ` FROM leave_ledger WHERE user_id = $1 AND leave_type_id = $2` + forUpdateClause(forUpdate)

	e, err := scanLedgerEntry(q.QueryRow(ctx, query, userID, leaveTypeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leave.LedgerEntry{}, leave.ErrLedgerEntryNotFound
		}
		return leave.LedgerEntry{}, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return e, nil
}

// ListEntries implements leave.LedgerRepository.
func (r *leaveLedgerRepositoryImpl) ListEntries(ctx context.Context, userID string) ([]leave.LedgerEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + ledgerColumns + ` FROM leave_ledger WHERE user_id = $1 ORDER BY leave_type_id`

	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []leave.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

// Credit implements leave.LedgerRepository.
func (r *leaveLedgerRepositoryImpl) Credit(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) (leave.LedgerEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO leave_ledger (user_id, leave_type_id, available_units)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, leave_type_id) DO UPDATE
		SET available_units = leave_ledger.available_units + EXCLUDED.available_units,
		    updated_at = NOW()
		RETURNING ` + ledgerColumns

	e, err := scanLedgerEntry(q.QueryRow(ctx, query, userID, leaveTypeID, units))
	if err != nil {
		return leave.LedgerEntry{}, fmt.Errorf("failed to credit ledger entry: %w", err)
	}
	return e, nil
}

// MoveAvailableToHeld implements leave.LedgerRepository.
func (r *leaveLedgerRepositoryImpl) MoveAvailableToHeld(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE leave_ledger
		SET available_units = available_units - $1,
		    held_units = held_units + $1,
		    updated_at = NOW()
		WHERE user_id = $2 AND leave_type_id = $3
		  AND available_units >= $1
	`

	result, err := q.Exec(ctx, query, units, userID, leaveTypeID)
	if err != nil {
		return fmt.Errorf("failed to hold leave units: %w", err)
	}
	if result.RowsAffected() == 0 {
		return leave.ErrInsufficientBalance
	}
	return nil
}

// MoveHeldToConsumed implements leave.LedgerRepository.
func (r *leaveLedgerRepositoryImpl) MoveHeldToConsumed(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE leave_ledger
		SET held_units = held_units - $1,
		    consumed_units = consumed_units + $1,
		    updated_at = NOW()
		WHERE user_id = $2 AND leave_type_id = $3
		  AND held_units >= $1
	`

	result, err := q.Exec(ctx, query, units, userID, leaveTypeID)
	if err != nil {
		return fmt.Errorf("failed to consume held units: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("consume %s held units: %w", units.String(), leave.ErrNoActiveHold)
	}
	return nil
}

// MoveHeldToAvailable implements leave.LedgerRepository.
func (r *leaveLedgerRepositoryImpl) MoveHeldToAvailable(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE leave_ledger
		SET held_units = held_units - $1,
		    available_units = available_units + $1,
		    updated_at = NOW()
		WHERE user_id = $2 AND leave_type_id = $3
		  AND held_units >= $1
	`

	result, err := q.Exec(ctx, query, units, userID, leaveTypeID)
	if err != nil {
		return fmt.Errorf("failed to release held units: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("release %s held units: %w", units.String(), leave.ErrNoActiveHold)
	}
	return nil
}

const holdColumns = `request_id, user_id, leave_type_id, units_held, status, created_at, updated_at, resolved_at`

func scanHold(row pgx.Row) (leave.Hold, error) {
	var h leave.Hold
	err := row.Scan(&h.RequestID, &h.UserID, &h.LeaveTypeID, &h.UnitsHeld, &h.Status, &h.CreatedAt, &h.UpdatedAt, &h.ResolvedAt)
	return h, err
}

// CreateHold implements leave.LedgerRepository.
func (r *leaveLedgerRepositoryImpl) CreateHold(ctx context.Context, hold leave.Hold) (leave.Hold, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO leave_holds (request_id, user_id, leave_type_id, units_held, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + holdColumns

	h, err := scanHold(q.QueryRow(ctx, query, hold.RequestID, hold.UserID, hold.LeaveTypeID, hold.UnitsHeld, hold.Status))
	if err != nil {
		if constraintViolation(err) == "leave_holds_pkey" {
			return leave.Hold{}, leave.ErrHoldExists
		}
		return leave.Hold{}, fmt.Errorf("failed to create hold: %w", err)
	}
	return h, nil
}

// GetHold implements leave.LedgerRepository.
func (r *leaveLedgerRepositoryImpl) GetHold(ctx context.Context, requestID string, forUpdate bool) (leave.Hold, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + holdColumns + ` FROM leave_holds WHERE request_id = $1` + forUpdateClause(forUpdate)

	h, err := scanHold(q.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leave.Hold{}, leave.ErrNoActiveHold
		}
		return leave.Hold{}, fmt.Errorf("failed to get hold: %w", err)
	}
	return h, nil
}

// UpdateHoldStatus implements leave.LedgerRepository. Only a held hold can
// change status.
func (r *leaveLedgerRepositoryImpl) UpdateHoldStatus(ctx context.Context, requestID string, status leave.HoldStatus, at time.Time) (leave.Hold, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE leave_holds
		SET status = $2, resolved_at = $3, updated_at = NOW()
		WHERE request_id = $1 AND status = 'held'
		RETURNING ` + holdColumns

	h, err := scanHold(q.QueryRow(ctx, query, requestID, status, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leave.Hold{}, leave.ErrNoActiveHold
		}
		return leave.Hold{}, fmt.Errorf("failed to update hold status: %w", err)
	}
	return h, nil
}

// ListLeakedHolds implements leave.LedgerRepository.
func (r *leaveLedgerRepositoryImpl) ListLeakedHolds(ctx context.Context, cutoff time.Time) ([]leave.LeakedHold, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT h.request_id, h.user_id, h.leave_type_id, h.units_held, h.status,
		       h.created_at, h.updated_at, h.resolved_at,
		       lr.status, lr.deleted_at IS NOT NULL
		FROM leave_holds h
		LEFT JOIN leave_requests lr ON lr.id::text = h.request_id
		WHERE h.status = 'held'
		  AND h.created_at < $1
		  AND (lr.id IS NULL OR lr.deleted_at IS NOT NULL OR lr.status <> 'pending')
		ORDER BY h.created_at
	`

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaked holds: %w", err)
	}
	defer rows.Close()

	var leaked []leave.LeakedHold
	for rows.Next() {
		var (
			l       leave.LeakedHold
			deleted *bool
		)
		err := rows.Scan(
			&l.Hold.RequestID, &l.Hold.UserID, &l.Hold.LeaveTypeID, &l.Hold.UnitsHeld, &l.Hold.Status,
			&l.Hold.CreatedAt, &l.Hold.UpdatedAt, &l.Hold.ResolvedAt,
			&l.RequestStatus, &deleted,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaked hold: %w", err)
		}
		l.RequestDeleted = deleted != nil && *deleted
		leaked = append(leaked, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leaked holds: %w", err)
	}
	return leaked, nil
}
