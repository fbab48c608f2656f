package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/worktype"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type WorkTypeHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Assign(w http.ResponseWriter, r *http.Request)
}

type workTypeHandlerImpl struct {
	workTypeService worktype.WorkTypeService
}

func NewWorkTypeHandler(workTypeService worktype.WorkTypeService) WorkTypeHandler {
	return &workTypeHandlerImpl{workTypeService: workTypeService}
}

// Create implements WorkTypeHandler.
func (h *workTypeHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req worktype.CreateWorkTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("CreateWorkType decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	created, err := h.workTypeService.Create(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Work type created successfully", created)
}

// Get implements WorkTypeHandler.
func (h *workTypeHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	wt, err := h.workTypeService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, wt)
}

// Assign implements WorkTypeHandler.
func (h *workTypeHandlerImpl) Assign(w http.ResponseWriter, r *http.Request) {
	req := worktype.AssignWorkTypeRequest{
		UserID:     chi.URLParam(r, "userID"),
		WorkTypeID: chi.URLParam(r, "id"),
	}
	if err := h.workTypeService.Assign(r.Context(), req); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Work type assigned successfully", nil)
}
