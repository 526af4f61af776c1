package booking

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dentacare/clinic-portal/internal/appointments"
	"github.com/dentacare/clinic-portal/internal/catalog"
	"github.com/dentacare/clinic-portal/internal/changefeed"
	"github.com/dentacare/clinic-portal/internal/dentists"
	"github.com/dentacare/clinic-portal/internal/http/respond"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// Handler exposes booking sessions under /api/booking/sessions.
type Handler struct {
	svc      *Service
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewHandler builds the booking handler. checkOrigin may be nil to accept any
// origin on the live socket.
func NewHandler(svc *Service, checkOrigin func(*http.Request) bool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		svc:      svc,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: checkOrigin},
		logger:   logger,
	}
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Start)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/dentist", h.SelectDentist)
		r.Put("/date", h.SelectDate)
		r.Put("/slot", h.SelectSlot)
		r.Put("/service", h.SelectService)
		r.Put("/contact", h.SetContact)
		r.Post("/next", h.Next)
		r.Post("/back", h.Back)
		r.Post("/submit", h.Submit)
		r.Get("/live", h.Live)
	})
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	wiz, err := h.svc.Start(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, wiz)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.write(w)(h.svc.Get(r.Context(), sessionID(r)))
}

func (h *Handler) SelectDentist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DentistID int64 `json:"dentist_id"`
	}
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.write(w)(h.svc.SelectDentist(r.Context(), sessionID(r), body.DentistID))
}

func (h *Handler) SelectDate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date string `json:"date"`
	}
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.write(w)(h.svc.SelectDate(r.Context(), sessionID(r), body.Date))
}

func (h *Handler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Time string `json:"time"`
	}
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.write(w)(h.svc.SelectSlot(r.Context(), sessionID(r), body.Time))
}

func (h *Handler) SelectService(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Service string `json:"service"`
	}
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.write(w)(h.svc.SelectService(r.Context(), sessionID(r), body.Service))
}

func (h *Handler) SetContact(w http.ResponseWriter, r *http.Request) {
	var body Contact
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.write(w)(h.svc.SetContact(r.Context(), sessionID(r), body))
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.write(w)(h.svc.Next(r.Context(), sessionID(r)))
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	h.write(w)(h.svc.Back(r.Context(), sessionID(r)))
}

// SubmitFailure is returned when a submission fails after it started. Session
// carries the stored error message.
type SubmitFailure struct {
	Error   string  `json:"error"`
	Session *Wizard `json:"session"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	wiz, err := h.svc.Submit(r.Context(), sessionID(r))
	if err == nil {
		respond.JSON(w, http.StatusCreated, wiz)
		return
	}
	if !errors.Is(err, ErrSubmitFailed) || wiz == nil {
		h.fail(w, err)
		return
	}
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, appointments.ErrSlotTaken):
		status = http.StatusConflict
	case isValidation(err):
		status = http.StatusUnprocessableEntity
	}
	respond.JSON(w, status, SubmitFailure{Error: wiz.SubmitError, Session: wiz})
}

// Live streams the session with refreshed availability over a WebSocket.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("booking: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	closed := changefeed.ReadPump(conn)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		<-closed
		cancel()
	}()

	views := make(chan *Wizard, 4)
	go func() {
		defer close(views)
		err := h.svc.Watch(ctx, id, func(wiz *Wizard) {
			select {
			case views <- wiz:
			case <-ctx.Done():
			}
		})
		if err != nil {
			h.logger.Warn("booking watch ended", "error", err, "session_id", id)
		}
	}()
	changefeed.Pump(conn, closed, views, func(wiz *Wizard) any { return wiz })
}

func (h *Handler) write(w http.ResponseWriter) func(*Wizard, error) {
	return func(wiz *Wizard, err error) {
		if err != nil {
			h.fail(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, wiz)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, dentists.ErrNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrWrongStep), errors.Is(err, ErrStepIncomplete),
		errors.Is(err, ErrAlreadySubmitted), errors.Is(err, ErrSubmitInFlight),
		errors.Is(err, ErrSlotUnavailable):
		respond.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrDateRequired), errors.Is(err, ErrUnknownSlot),
		errors.Is(err, ErrUnknownService), errors.Is(err, catalog.ErrInvalidDate):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrPastDate), errors.Is(err, catalog.ErrWeekendDate):
		respond.Error(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("booking request failed", "error", err)
		respond.Error(w, http.StatusBadGateway, "failed to update booking")
	}
}

func isValidation(err error) bool {
	return errors.Is(err, appointments.ErrMissingPatient) ||
		errors.Is(err, appointments.ErrMissingDentist) ||
		errors.Is(err, appointments.ErrInvalidSlot) ||
		errors.Is(err, appointments.ErrInvalidService) ||
		errors.Is(err, catalog.ErrInvalidDate) ||
		errors.Is(err, catalog.ErrPastDate) ||
		errors.Is(err, catalog.ErrWeekendDate)
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}
