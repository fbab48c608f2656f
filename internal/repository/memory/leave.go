package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/shopspring/decimal"
)

type ledgerRepository struct {
	store *Store
}

func NewLedgerRepository(store *Store) leave.LedgerRepository {
	return &ledgerRepository{store: store}
}

// GetEntry implements leave.LedgerRepository.
func (r *ledgerRepository) GetEntry(ctx context.Context, userID, leaveTypeID string, forUpdate bool) (leave.LedgerEntry, error) {
	defer r.store.lock(ctx)()

	e, ok := r.store.ledger[ledgerKey{userID, leaveTypeID}]
	if !ok {
		return leave.LedgerEntry{}, leave.ErrLedgerEntryNotFound
	}
	return e, nil
}

// ListEntries implements leave.LedgerRepository.
func (r *ledgerRepository) ListEntries(ctx context.Context, userID string) ([]leave.LedgerEntry, error) {
	defer r.store.lock(ctx)()

	var entries []leave.LedgerEntry
	for k, e := range r.store.ledger {
		if k.userID == userID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LeaveTypeID < entries[j].LeaveTypeID })
	return entries, nil
}

// Credit implements leave.LedgerRepository.
func (r *ledgerRepository) Credit(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) (leave.LedgerEntry, error) {
	defer r.store.lock(ctx)()

	now := r.store.now()
	key := ledgerKey{userID, leaveTypeID}
	e, ok := r.store.ledger[key]
	if !ok {
		e = leave.LedgerEntry{
			UserID:         userID,
			LeaveTypeID:    leaveTypeID,
			AvailableUnits: decimal.Zero,
			HeldUnits:      decimal.Zero,
			ConsumedUnits:  decimal.Zero,
			CreatedAt:      now,
		}
	}
	e.AvailableUnits = e.AvailableUnits.Add(units)
	e.UpdatedAt = now
	r.store.ledger[key] = e
	return e, nil
}

// move shifts units between two balance columns when the source covers them.
func (r *ledgerRepository) move(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal,
	from func(*leave.LedgerEntry) *decimal.Decimal, to func(*leave.LedgerEntry) *decimal.Decimal, short error) error {
	defer r.store.lock(ctx)()

	key := ledgerKey{userID, leaveTypeID}
	e, ok := r.store.ledger[key]
	if !ok || from(&e).LessThan(units) {
		return short
	}
	src, dst := from(&e), to(&e)
	*src = src.Sub(units)
	*dst = dst.Add(units)
	e.UpdatedAt = r.store.now()
	r.store.ledger[key] = e
	return nil
}

func available(e *leave.LedgerEntry) *decimal.Decimal { return &e.AvailableUnits }
func held(e *leave.LedgerEntry) *decimal.Decimal      { return &e.HeldUnits }
func consumed(e *leave.LedgerEntry) *decimal.Decimal  { return &e.ConsumedUnits }

// MoveAvailableToHeld implements leave.LedgerRepository.
func (r *ledgerRepository) MoveAvailableToHeld(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) error {
	return r.move(ctx, userID, leaveTypeID, units, available, held, leave.ErrInsufficientBalance)
}

// MoveHeldToConsumed implements leave.LedgerRepository.
func (r *ledgerRepository) MoveHeldToConsumed(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) error {
	return r.move(ctx, userID, leaveTypeID, units, held, consumed,
		fmt.Errorf("consume %s held units: %w", units.String(), leave.ErrNoActiveHold))
}

// MoveHeldToAvailable implements leave.LedgerRepository.
func (r *ledgerRepository) MoveHeldToAvailable(ctx context.Context, userID, leaveTypeID string, units decimal.Decimal) error {
	return r.move(ctx, userID, leaveTypeID, units, held, available,
		fmt.Errorf("release %s held units: %w", units.String(), leave.ErrNoActiveHold))
}

// CreateHold implements leave.LedgerRepository.
func (r *ledgerRepository) CreateHold(ctx context.Context, hold leave.Hold) (leave.Hold, error) {
	defer r.store.lock(ctx)()

	if _, exists := r.store.holds[hold.RequestID]; exists {
		return leave.Hold{}, leave.ErrHoldExists
	}
	now := r.store.now()
	hold.CreatedAt = now
	hold.UpdatedAt = now
	r.store.holds[hold.RequestID] = hold
	return hold, nil
}

// GetHold implements leave.LedgerRepository.
func (r *ledgerRepository) GetHold(ctx context.Context, requestID string, forUpdate bool) (leave.Hold, error) {
	defer r.store.lock(ctx)()

	h, ok := r.store.holds[requestID]
	if !ok {
		return leave.Hold{}, leave.ErrNoActiveHold
	}
	return h, nil
}

// UpdateHoldStatus implements leave.LedgerRepository.
func (r *ledgerRepository) UpdateHoldStatus(ctx context.Context, requestID string, status leave.HoldStatus, at time.Time) (leave.Hold, error) {
	defer r.store.lock(ctx)()

	h, ok := r.store.holds[requestID]
	if !ok || h.Status != leave.HoldStatusHeld {
		return leave.Hold{}, leave.ErrNoActiveHold
	}
	h.Status = status
	h.ResolvedAt = &at
	h.UpdatedAt = r.store.now()
	r.store.holds[requestID] = h
	return h, nil
}

// ListLeakedHolds implements leave.LedgerRepository.
func (r *ledgerRepository) ListLeakedHolds(ctx context.Context, cutoff time.Time) ([]leave.LeakedHold, error) {
	defer r.store.lock(ctx)()

	var leaked []leave.LeakedHold
	for _, h := range r.store.holds {
		if h.Status != leave.HoldStatusHeld || !h.CreatedAt.Before(cutoff) {
			continue
		}
		req, found := r.store.requests[h.RequestID]
		switch {
		case !found:
			leaked = append(leaked, leave.LeakedHold{Hold: h})
		case req.DeletedAt != nil || req.Status != leave.RequestStatusPending:
			status := req.Status
			leaked = append(leaked, leave.LeakedHold{Hold: h, RequestStatus: &status, RequestDeleted: req.DeletedAt != nil})
		}
	}
	sort.Slice(leaked, func(i, j int) bool { return leaked[i].Hold.CreatedAt.Before(leaked[j].Hold.CreatedAt) })
	return leaked, nil
}

type leaveRequestRepository struct {
	store *Store
}

func NewLeaveRequestRepository(store *Store) leave.LeaveRequestRepository {
	return &leaveRequestRepository{store: store}
}

// Create implements leave.LeaveRequestRepository.
func (r *leaveRequestRepository) Create(ctx context.Context, request leave.LeaveRequest) (leave.LeaveRequest, error) {
	defer r.store.lock(ctx)()

	now := r.store.now()
	request.ID = newID()
	request.CreatedAt = now
	request.UpdatedAt = now
	r.store.requests[request.ID] = request
	return request, nil
}

// GetByID implements leave.LeaveRequestRepository.
func (r *leaveRequestRepository) GetByID(ctx context.Context, id string, forUpdate bool) (leave.LeaveRequest, error) {
	defer r.store.lock(ctx)()

	req, ok := r.store.requests[id]
	if !ok || req.DeletedAt != nil {
		return leave.LeaveRequest{}, leave.ErrLeaveRequestNotFound
	}
	return req, nil
}

// Update implements leave.LeaveRequestRepository.
func (r *leaveRequestRepository) Update(ctx context.Context, request leave.LeaveRequest) (leave.LeaveRequest, error) {
	defer r.store.lock(ctx)()

	current, ok := r.store.requests[request.ID]
	if !ok || current.DeletedAt != nil {
		return leave.LeaveRequest{}, leave.ErrLeaveRequestNotFound
	}
	current.Status = request.Status
	current.DecidedBy = request.DecidedBy
	current.DecidedAt = request.DecidedAt
	current.RejectionReason = request.RejectionReason
	current.UpdatedAt = r.store.now()
	r.store.requests[current.ID] = current
	return current, nil
}

// SoftDelete implements leave.LeaveRequestRepository.
func (r *leaveRequestRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	defer r.store.lock(ctx)()

	req, ok := r.store.requests[id]
	if !ok || req.DeletedAt != nil {
		return leave.ErrLeaveRequestNotFound
	}
	req.DeletedAt = &at
	req.UpdatedAt = r.store.now()
	r.store.requests[id] = req
	return nil
}

// ListByUser implements leave.LeaveRequestRepository.
func (r *leaveRequestRepository) ListByUser(ctx context.Context, userID string, filter leave.LeaveRequestFilter) ([]leave.LeaveRequest, error) {
	defer r.store.lock(ctx)()

	var out []leave.LeaveRequest
	for _, req := range r.store.requests {
		if req.DeletedAt != nil || req.UserID != userID {
			continue
		}
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListByStatus implements leave.LeaveRequestRepository.
func (r *leaveRequestRepository) ListByStatus(ctx context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	defer r.store.lock(ctx)()

	var out []leave.LeaveRequest
	for _, req := range r.store.requests {
		if req.DeletedAt == nil && req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
