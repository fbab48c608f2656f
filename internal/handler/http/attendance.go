package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type AttendanceHandler interface {
	ClockIn(w http.ResponseWriter, r *http.Request)
	ClockOut(w http.ResponseWriter, r *http.Request)
	StartBreak(w http.ResponseWriter, r *http.Request)
	EndBreak(w http.ResponseWriter, r *http.Request)
	GetDay(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
	Diff(w http.ResponseWriter, r *http.Request)
	Correct(w http.ResponseWriter, r *http.Request)
	ListStale(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
}

func NewAttendanceHandler(attendanceService attendance.AttendanceService) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
	}
}

type clockEventFunc func(ctx context.Context, req attendance.ClockEventRequest) (attendance.ClockEventResponse, error)

// clockEvent decodes the optional body, pins the user to the caller and
// runs fn. An empty body is a clock event at server time.
func (h *attendanceHandlerImpl) clockEvent(w http.ResponseWriter, r *http.Request, message string, fn clockEventFunc) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req attendance.ClockEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Error("clock event decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.UserID = claims.UserID

	result, err := fn(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if !result.Applied {
		response.SuccessWithMessage(w, "No change", result)
		return
	}
	response.SuccessWithMessage(w, message, result)
}

// ClockIn implements AttendanceHandler.
func (h *attendanceHandlerImpl) ClockIn(w http.ResponseWriter, r *http.Request) {
	h.clockEvent(w, r, "Clock in successful", h.attendanceService.ClockIn)
}

// ClockOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) ClockOut(w http.ResponseWriter, r *http.Request) {
	h.clockEvent(w, r, "Clock out successful", h.attendanceService.ClockOut)
}

// StartBreak implements AttendanceHandler.
func (h *attendanceHandlerImpl) StartBreak(w http.ResponseWriter, r *http.Request) {
	h.clockEvent(w, r, "Break started", h.attendanceService.StartBreak)
}

// EndBreak implements AttendanceHandler.
func (h *attendanceHandlerImpl) EndBreak(w http.ResponseWriter, r *http.Request) {
	h.clockEvent(w, r, "Break ended", h.attendanceService.EndBreak)
}

// GetDay implements AttendanceHandler. Managers may pass user_id to read
// another employee's day.
func (h *attendanceHandlerImpl) GetDay(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	dateStr := r.URL.Query().Get("date")
	workDate, valid := validator.IsValidDate(dateStr)
	if !valid {
		response.BadRequest(w, "date must be in YYYY-MM-DD format", map[string]string{"date": dateStr})
		return
	}

	userID := claims.UserID
	if other := r.URL.Query().Get("user_id"); other != "" && other != userID {
		if !canViewAll(claims) {
			response.Forbidden(w, "Insufficient permissions to view another user's attendance")
			return
		}
		userID = other
	}

	record, err := h.attendanceService.GetDay(r.Context(), userID, workDate)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, record)
}

// Get implements AttendanceHandler.
func (h *attendanceHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	record, ok := h.readable(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	response.Success(w, record)
}

// History implements AttendanceHandler.
func (h *attendanceHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	record, ok := h.readable(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	history, err := h.attendanceService.History(r.Context(), record.ID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, history)
}

// Diff implements AttendanceHandler.
func (h *attendanceHandlerImpl) Diff(w http.ResponseWriter, r *http.Request) {
	record, ok := h.readable(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	diff, err := h.attendanceService.Diff(r.Context(), record.ID, r.URL.Query().Get("against"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, diff)
}

// Correct implements AttendanceHandler.
func (h *attendanceHandlerImpl) Correct(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req attendance.CorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Correct decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.RecordID = chi.URLParam(r, "id")
	req.EditorID = claims.UserID

	result, err := h.attendanceService.ApplyCorrection(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Correction applied", result)
}

// ListStale implements AttendanceHandler.
func (h *attendanceHandlerImpl) ListStale(w http.ResponseWriter, r *http.Request) {
	olderThan, ok := parseDuration(w, r, "older_than", 24*time.Hour)
	if !ok {
		return
	}

	records, err := h.attendanceService.ListStaleOpenDays(r.Context(), olderThan)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, records)
}

// readable loads a record the caller may see: their own, or any with the
// view-all permission.
func (h *attendanceHandlerImpl) readable(w http.ResponseWriter, r *http.Request, id string) (attendance.AttendanceRecord, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return attendance.AttendanceRecord{}, false
	}
	if id == "" {
		response.BadRequest(w, "Attendance ID is required", nil)
		return attendance.AttendanceRecord{}, false
	}

	record, err := h.attendanceService.GetRecord(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return attendance.AttendanceRecord{}, false
	}
	if record.UserID != claims.UserID && !canViewAll(claims) {
		// hide other users' records
		response.HandleError(w, attendance.ErrAttendanceNotFound)
		return attendance.AttendanceRecord{}, false
	}
	return record, true
}
