package leave

import (
	"context"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/audit"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/database"
	"github.com/google/uuid"
)

// RequestServiceImpl moves leave requests through their lifecycle and keeps
// the ledger in step: submit holds, approve finalizes, reject and cancel
// release. Each request change and its ledger call share one transaction.
type RequestServiceImpl struct {
	transactor database.Transactor
	leave.LeaveRequestRepository
	ledger   *LedgerServiceImpl
	notifier notification.Notifier
	recorder audit.Recorder
	now      func() time.Time
}

func NewRequestService(
	transactor database.Transactor,
	leaveRequestRepository leave.LeaveRequestRepository,
	ledger *LedgerServiceImpl,
	notifier notification.Notifier,
	recorder audit.Recorder,
) *RequestServiceImpl {
	return &RequestServiceImpl{
		transactor:             transactor,
		LeaveRequestRepository: leaveRequestRepository,
		ledger:                 ledger,
		notifier:               notifier,
		recorder:               recorder,
		now:                    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for decision timestamps.
func (r *RequestServiceImpl) SetClock(now func() time.Time) {
	r.now = now
}

// Submit implements leave.RequestService.
func (r *RequestServiceImpl) Submit(ctx context.Context, req leave.SubmitLeaveRequest) (leave.LeaveRequest, error) {
	if err := req.Validate(); err != nil {
		return leave.LeaveRequest{}, err
	}
	start, end := req.Dates()

	var (
		created leave.LeaveRequest
		hold    leave.Hold
	)
	err := r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = r.LeaveRequestRepository.Create(ctx, leave.LeaveRequest{
			UserID:      req.UserID,
			LeaveTypeID: req.LeaveTypeID,
			StartDate:   start,
			EndDate:     end,
			Units:       req.RequestedUnits(),
			Reason:      req.Reason,
			Status:      leave.RequestStatusPending,
		})
		if err != nil {
			return err
		}

		hold, _, err = r.ledger.hold(ctx, leave.HoldRequest{
			RequestID:   created.ID,
			UserID:      created.UserID,
			LeaveTypeID: created.LeaveTypeID,
			Units:       created.Units,
		})
		return err
	})
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	r.ledger.holdChanged(ctx, req.UserID, hold, "hold")
	r.audit(ctx, req.UserID, created, "submit", "")
	return created, nil
}

// Approve implements leave.RequestService.
func (r *RequestServiceImpl) Approve(ctx context.Context, req leave.DecideLeaveRequest) (leave.LeaveRequest, error) {
	if err := req.Validate(); err != nil {
		return leave.LeaveRequest{}, err
	}
	return r.transition(ctx, req.RequestID, req.DeciderID, leave.RequestStatusApproved,
		func(request leave.LeaveRequest) error {
			if request.UserID == req.DeciderID {
				return leave.ErrSelfApproval
			}
			return nil
		},
		func(request *leave.LeaveRequest, at time.Time) {
			request.DecidedBy = &req.DeciderID
			request.DecidedAt = &at
		},
	)
}

// Reject implements leave.RequestService.
func (r *RequestServiceImpl) Reject(ctx context.Context, req leave.DecideLeaveRequest) (leave.LeaveRequest, error) {
	if err := req.Validate(); err != nil {
		return leave.LeaveRequest{}, err
	}
	return r.transition(ctx, req.RequestID, req.DeciderID, leave.RequestStatusRejected,
		func(request leave.LeaveRequest) error {
			if request.UserID == req.DeciderID {
				return leave.ErrSelfApproval
			}
			return nil
		},
		func(request *leave.LeaveRequest, at time.Time) {
			request.DecidedBy = &req.DeciderID
			request.DecidedAt = &at
			if req.Reason != "" {
				request.RejectionReason = &req.Reason
			}
		},
	)
}

// Cancel implements leave.RequestService.
func (r *RequestServiceImpl) Cancel(ctx context.Context, requestID string, userID string) (leave.LeaveRequest, error) {
	return r.transition(ctx, requestID, userID, leave.RequestStatusCancelled,
		func(request leave.LeaveRequest) error {
			if request.UserID != userID {
				return leave.ErrNotRequestOwner
			}
			return nil
		},
		func(request *leave.LeaveRequest, at time.Time) {
			request.DecidedBy = &userID
			request.DecidedAt = &at
		},
	)
}

// transition moves a pending request to target and resolves its hold in the
// same transaction. A request already in target is returned unchanged after
// re-driving the idempotent ledger call.
func (r *RequestServiceImpl) transition(
	ctx context.Context,
	requestID, actorID string,
	target leave.RequestStatus,
	authorize func(leave.LeaveRequest) error,
	decide func(*leave.LeaveRequest, time.Time),
) (leave.LeaveRequest, error) {
	holdTarget := leave.HoldStatusReleased
	if target == leave.RequestStatusApproved {
		holdTarget = leave.HoldStatusFinalized
	}

	var (
		request  leave.LeaveRequest
		previous leave.RequestStatus
		hold     leave.Hold
		changed  bool
	)
	err := r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		request, err = r.LeaveRequestRepository.GetByID(ctx, requestID, true)
		if err != nil {
			return err
		}
		if err := authorize(request); err != nil {
			return err
		}
		previous = request.Status

		switch request.Status {
		case target:
			_, _, err = r.ledger.resolve(ctx, request.ID, holdTarget)
			return err
		case leave.RequestStatusPending:
		default:
			return leave.ErrRequestAlreadyProcessed
		}

		hold, _, err = r.ledger.resolve(ctx, request.ID, holdTarget)
		if err != nil {
			return err
		}

		request.Status = target
		decide(&request, r.now())
		request, err = r.LeaveRequestRepository.Update(ctx, request)
		changed = err == nil
		return err
	})
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	if !changed {
		return request, nil
	}

	r.ledger.holdChanged(ctx, actorID, hold, string(holdTarget))
	r.audit(ctx, actorID, request, string(target), previous)
	r.notify(ctx, actorID, request, previous)
	return request, nil
}

// Delete implements leave.RequestService. A pending request gives its
// units back before it disappears.
func (r *RequestServiceImpl) Delete(ctx context.Context, req leave.DeleteLeaveRequest) error {
	if req.RequestID == "" || req.ActorID == "" {
		return leave.ErrLeaveRequestNotFound
	}

	var (
		request  leave.LeaveRequest
		hold     leave.Hold
		released bool
	)
	err := r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		request, err = r.LeaveRequestRepository.GetByID(ctx, req.RequestID, true)
		if err != nil {
			return err
		}
		if !req.ActorIsManager && request.UserID != req.ActorID {
			return leave.ErrNotRequestOwner
		}

		if request.Status == leave.RequestStatusPending {
			hold, released, err = r.ledger.resolve(ctx, request.ID, leave.HoldStatusReleased)
			if err != nil {
				return err
			}
		}
		return r.LeaveRequestRepository.SoftDelete(ctx, request.ID, r.now())
	})
	if err != nil {
		return err
	}

	if released {
		r.ledger.holdChanged(ctx, req.ActorID, hold, string(leave.HoldStatusReleased))
	}
	r.audit(ctx, req.ActorID, request, "delete", request.Status)
	return nil
}

// Get implements leave.RequestService.
func (r *RequestServiceImpl) Get(ctx context.Context, id string) (leave.LeaveRequest, error) {
	return r.LeaveRequestRepository.GetByID(ctx, id, false)
}

// ListMine implements leave.RequestService.
func (r *RequestServiceImpl) ListMine(ctx context.Context, userID string, filter leave.LeaveRequestFilter) ([]leave.LeaveRequest, error) {
	return r.LeaveRequestRepository.ListByUser(ctx, userID, filter)
}

// ListPending implements leave.RequestService.
func (r *RequestServiceImpl) ListPending(ctx context.Context) ([]leave.LeaveRequest, error) {
	return r.LeaveRequestRepository.ListByStatus(ctx, leave.RequestStatusPending)
}

// notify hands the change to the notifier after commit.
func (r *RequestServiceImpl) notify(ctx context.Context, actorID string, request leave.LeaveRequest, previous leave.RequestStatus) {
	if r.notifier == nil {
		return
	}
	r.notifier.NotifyStatusChange(ctx, notification.StatusChange{
		ID:             uuid.Must(uuid.NewV7()).String(),
		RequestID:      request.ID,
		UserID:         request.UserID,
		LeaveTypeID:    request.LeaveTypeID,
		PreviousStatus: string(previous),
		Status:         string(request.Status),
		ActorID:        actorID,
		OccurredAt:     r.now(),
	})
}

func (r *RequestServiceImpl) audit(ctx context.Context, actorID string, request leave.LeaveRequest, action string, previous leave.RequestStatus) {
	slog.Info("leave request changed",
		"action", action,
		"request_id", request.ID,
		"user_id", request.UserID,
		"status", request.Status,
		"actor_id", actorID,
	)
	if r.recorder == nil {
		return
	}
	event := audit.Event{
		ID:         uuid.Must(uuid.NewV7()).String(),
		OccurredAt: r.now(),
		ActorID:    actorID,
		Entity:     audit.EntityLeaveRequest,
		EntityID:   request.ID,
		Action:     action,
		Detail: map[string]any{
			"previous_status": previous,
			"status":          request.Status,
			"units":           request.Units.String(),
			"leave_type_id":   request.LeaveTypeID,
		},
	}
	if err := r.recorder.Record(ctx, event); err != nil {
		slog.Error("failed to record audit event", "entity", event.Entity, "entity_id", event.EntityID, "error", err)
	}
}
