package appointments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dentacare/clinic-portal/internal/http/respond"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// Handler serves the admin appointment views.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// ListResponse is returned by List.
type ListResponse struct {
	Appointments []Appointment `json:"appointments"`
	Count        int           `json:"count"`
}

// List handles GET /admin/appointments?status=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" && raw != "all" {
		status, err := ParseStatus(raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respond.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	list, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		respond.Error(w, http.StatusBadGateway, "failed to load appointments")
		return
	}
	respond.JSON(w, http.StatusOK, ListResponse{Appointments: list, Count: len(list)})
}

// Dashboard handles GET /admin/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("failed to load dashboard", "error", err)
		respond.Error(w, http.StatusBadGateway, "failed to load dashboard")
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

// Confirm handles POST /admin/appointments/{appointmentID}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Confirm(r.Context(), chi.URLParam(r, "appointmentID"))
	h.writeTransition(w, appt, err)
}

// Cancel handles POST /admin/appointments/{appointmentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "appointmentID"))
	h.writeTransition(w, appt, err)
}

func (h *Handler) writeTransition(w http.ResponseWriter, appt *Appointment, err error) {
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, appt)
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(w, http.StatusConflict, "only pending appointments can be confirmed or cancelled")
	default:
		h.logger.Error("failed to update appointment", "error", err)
		respond.Error(w, http.StatusBadGateway, "failed to update appointment")
	}
}
