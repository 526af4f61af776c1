package dentists

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dentacare/clinic-portal/internal/http/respond"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// Handler serves the public dentist roster.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/dentists.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list dentists", "error", err)
		respond.Error(w, http.StatusBadGateway, "failed to load dentists")
		return
	}
	if list == nil {
		list = []Dentist{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"dentists": list})
}

// Get handles GET /api/dentists/{dentistID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(chi.URLParam(r, "dentistID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid dentist id")
		return
	}
	d, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		respond.Error(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to load dentist", "error", err, "dentist_id", id)
		respond.Error(w, http.StatusBadGateway, "failed to load dentist")
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

// ParseID parses a positive dentist id from a path segment.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid dentist id")
	}
	return id, nil
}
