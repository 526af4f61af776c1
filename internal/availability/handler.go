package availability

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dentacare/clinic-portal/internal/catalog"
	"github.com/dentacare/clinic-portal/internal/dentists"
	"github.com/dentacare/clinic-portal/internal/http/respond"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// Handler serves slot availability to the public site.
type Handler struct {
	svc     *Service
	dentist dentists.Repository
	clock   catalog.Clock
	logger  *logging.Logger
}

func NewHandler(svc *Service, dentist dentists.Repository, clock catalog.Clock, logger *logging.Logger) *Handler {
	if clock == nil {
		clock = catalog.SystemClock{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, dentist: dentist, clock: clock, logger: logger}
}

// Get handles GET /api/dentists/{dentistID}/availability?date=YYYY-MM-DD.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	dentistID, err := dentists.ParseID(chi.URLParam(r, "dentistID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.dentist.Get(r.Context(), dentistID); err != nil {
		if errors.Is(err, dentists.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to load dentist", "error", err)
		respond.Error(w, http.StatusBadGateway, "failed to load dentist")
		return
	}

	day, err := catalog.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if err := catalog.CheckBookable(day, h.clock.Today()); err != nil {
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	avail, err := h.svc.Lookup(r.Context(), dentistID, catalog.FormatDate(day))
	if err != nil {
		h.logger.Error("availability lookup failed", "error", err, "dentist_id", dentistID)
		respond.Error(w, http.StatusBadGateway, "failed to load availability")
		return
	}
	respond.JSON(w, http.StatusOK, avail)
}
