package schedule

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dentacare/clinic-portal/internal/catalog"
	"github.com/dentacare/clinic-portal/internal/dentists"
	"github.com/dentacare/clinic-portal/internal/http/respond"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// Handler serves the admin weekly slot grid.
type Handler struct {
	repo    Repository
	toggler *Toggler
	logger  *logging.Logger
}

func NewHandler(repo Repository, toggler *Toggler, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, toggler: toggler, logger: logger}
}

// GridDay is one weekday column of the grid.
type GridDay struct {
	Day   string          `json:"day"`
	Slots map[string]bool `json:"slots"`
}

// Grid is the Mon-Fri blocked-slot grid for one dentist.
type Grid struct {
	DentistID int64     `json:"dentist_id"`
	Slots     []string  `json:"slots"`
	Days      []GridDay `json:"days"`
}

// BuildGrid lays out blocked rows on the Mon-Fri grid.
func BuildGrid(dentistID int64, blocked []BlockedSlot) Grid {
	set := make(map[Cell]bool, len(blocked))
	for _, b := range blocked {
		set[b.Cell()] = true
	}
	grid := Grid{DentistID: dentistID, Slots: catalog.Slots()}
	for _, day := range catalog.AdminWeekdays() {
		col := GridDay{Day: day, Slots: make(map[string]bool, len(grid.Slots))}
		for _, slot := range grid.Slots {
			col.Slots[slot] = set[Cell{DentistID: dentistID, Day: day, Slot: slot}]
		}
		grid.Days = append(grid.Days, col)
	}
	return grid
}

// GetGrid handles GET /admin/dentists/{dentistID}/blocked-slots.
func (h *Handler) GetGrid(w http.ResponseWriter, r *http.Request) {
	dentistID, err := dentists.ParseID(chi.URLParam(r, "dentistID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	blocked, err := h.repo.ListForDentist(r.Context(), dentistID)
	if err != nil {
		h.logger.Error("failed to load blocked slots", "error", err, "dentist_id", dentistID)
		respond.Error(w, http.StatusBadGateway, "failed to load blocked slots")
		return
	}
	respond.JSON(w, http.StatusOK, BuildGrid(dentistID, blocked))
}

type toggleRequest struct {
	Day  string `json:"day"`
	Slot string `json:"slot"`
}

// Toggle handles POST /admin/dentists/{dentistID}/blocked-slots/toggle.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	dentistID, err := dentists.ParseID(chi.URLParam(r, "dentistID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	var req toggleRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.toggler.Toggle(r.Context(), Cell{DentistID: dentistID, Day: req.Day, Slot: req.Slot})
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, result)
	case errors.Is(err, ErrInvalidCell):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrToggleInFlight):
		respond.Error(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("failed to toggle slot", "error", err, "dentist_id", dentistID)
		respond.Error(w, http.StatusBadGateway, "failed to toggle slot")
	}
}
