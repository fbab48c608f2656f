package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/leave"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type LeaveHandler interface {
	// Ledger
	MyBalances(w http.ResponseWriter, r *http.Request)
	UserBalances(w http.ResponseWriter, r *http.Request)
	Grant(w http.ResponseWriter, r *http.Request)
	GetHold(w http.ResponseWriter, r *http.Request)
	ListLeakedHolds(w http.ResponseWriter, r *http.Request)

	// Requests
	CreateRequest(w http.ResponseWriter, r *http.Request)
	GetMyRequests(w http.ResponseWriter, r *http.Request)
	ListPendingRequests(w http.ResponseWriter, r *http.Request)
	GetRequest(w http.ResponseWriter, r *http.Request)
	ApproveRequest(w http.ResponseWriter, r *http.Request)
	RejectRequest(w http.ResponseWriter, r *http.Request)
	CancelRequest(w http.ResponseWriter, r *http.Request)
	DeleteRequest(w http.ResponseWriter, r *http.Request)
}

type LeaveHandlerImpl struct {
	ledgerService  leave.LedgerService
	requestService leave.RequestService
}

func NewLeaveHandler(ledgerService leave.LedgerService, requestService leave.RequestService) LeaveHandler {
	return &LeaveHandlerImpl{
		ledgerService:  ledgerService,
		requestService: requestService,
	}
}

// MyBalances implements LeaveHandler.
func (l *LeaveHandlerImpl) MyBalances(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	balances, err := l.ledgerService.ListBalances(r.Context(), claims.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, balances)
}

// UserBalances implements LeaveHandler.
func (l *LeaveHandlerImpl) UserBalances(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		response.BadRequest(w, "User ID is required", nil)
		return
	}

	balances, err := l.ledgerService.ListBalances(r.Context(), userID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, balances)
}

// Grant implements LeaveHandler.
func (l *LeaveHandlerImpl) Grant(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req leave.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Grant decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.ActorID = claims.UserID

	entry, err := l.ledgerService.Grant(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Leave units granted", entry)
}

// GetHold implements LeaveHandler.
func (l *LeaveHandlerImpl) GetHold(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	hold, err := l.ledgerService.GetHold(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if hold.UserID != claims.UserID && !isManager(claims) {
		response.HandleError(w, leave.ErrNoActiveHold)
		return
	}
	response.Success(w, hold)
}

// ListLeakedHolds implements LeaveHandler.
func (l *LeaveHandlerImpl) ListLeakedHolds(w http.ResponseWriter, r *http.Request) {
	olderThan, ok := parseDuration(w, r, "older_than", 24*time.Hour)
	if !ok {
		return
	}

	leaked, err := l.ledgerService.ListLeakedHolds(r.Context(), olderThan)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, leaked)
}

// CreateRequest implements LeaveHandler.
func (l *LeaveHandlerImpl) CreateRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req leave.SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("CreateRequest decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	// the requester always comes from the token
	req.UserID = claims.UserID

	leaveRequest, err := l.requestService.Submit(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Leave request created successfully", leaveRequest)
}

// GetMyRequests implements LeaveHandler.
func (l *LeaveHandlerImpl) GetMyRequests(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var filter leave.LeaveRequestFilter
	if status := r.URL.Query().Get("status"); status != "" {
		allowed := []string{
			string(leave.RequestStatusPending),
			string(leave.RequestStatusApproved),
			string(leave.RequestStatusRejected),
			string(leave.RequestStatusCancelled),
		}
		if !validator.IsInSlice(status, allowed) {
			response.BadRequest(w, "Invalid status filter", map[string]string{"status": status})
			return
		}
		s := leave.RequestStatus(status)
		filter.Status = &s
	}

	requests, err := l.requestService.ListMine(r.Context(), claims.UserID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, requests)
}

// ListPendingRequests implements LeaveHandler.
func (l *LeaveHandlerImpl) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := l.requestService.ListPending(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, requests)
}

// GetRequest implements LeaveHandler.
func (l *LeaveHandlerImpl) GetRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	requestID := chi.URLParam(r, "id")
	if requestID == "" {
		response.BadRequest(w, "Request ID is required", nil)
		return
	}

	leaveRequest, err := l.requestService.Get(r.Context(), requestID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if leaveRequest.UserID != claims.UserID && !isManager(claims) {
		response.HandleError(w, leave.ErrLeaveRequestNotFound)
		return
	}
	response.Success(w, leaveRequest)
}

// ApproveRequest implements LeaveHandler.
func (l *LeaveHandlerImpl) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDecision(w, r)
	if !ok {
		return
	}

	leaveRequest, err := l.requestService.Approve(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Leave request approved successfully", leaveRequest)
}

// RejectRequest implements LeaveHandler.
func (l *LeaveHandlerImpl) RejectRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDecision(w, r)
	if !ok {
		return
	}

	leaveRequest, err := l.requestService.Reject(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Leave request rejected successfully", leaveRequest)
}

// CancelRequest implements LeaveHandler.
func (l *LeaveHandlerImpl) CancelRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	leaveRequest, err := l.requestService.Cancel(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Leave request cancelled successfully", leaveRequest)
}

// DeleteRequest implements LeaveHandler.
func (l *LeaveHandlerImpl) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	err := l.requestService.Delete(r.Context(), leave.DeleteLeaveRequest{
		RequestID:      chi.URLParam(r, "id"),
		ActorID:        claims.UserID,
		ActorIsManager: isManager(claims),
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Leave request deleted successfully", nil)
}

// decodeDecision reads the optional reason and fills in the decider.
func decodeDecision(w http.ResponseWriter, r *http.Request) (leave.DecideLeaveRequest, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return leave.DecideLeaveRequest{}, false
	}

	var req leave.DecideLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Error("decision decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return leave.DecideLeaveRequest{}, false
	}
	req.RequestID = chi.URLParam(r, "id")
	req.DeciderID = claims.UserID
	return req, true
}
