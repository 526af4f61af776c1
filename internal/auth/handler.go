package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dentacare/clinic-portal/internal/http/respond"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

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

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn handles POST /auth/sign-in. Only admins get a session back; anyone
// else is signed straight out again.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}
	sess, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !sess.IsAdmin() {
		if err := h.svc.SignOut(r.Context(), sess.Token); err != nil {
			h.logger.Error("failed to sign out non-admin", "error", err, "user_id", sess.UserID)
		}
		respond.Error(w, http.StatusForbidden, ErrAccessDenied.Error())
		return
	}
	respond.JSON(w, http.StatusOK, sess)
}

// SignOut handles POST /auth/sign-out.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		respond.Error(w, http.StatusUnauthorized, "missing authorization header")
		return
	}
	if err := h.svc.SignOut(r.Context(), token); err != nil {
		h.fail(w, err)
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}

// Session handles GET /auth/session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		respond.Error(w, http.StatusUnauthorized, "missing authorization header")
		return
	}
	sess, err := h.svc.Session(r.Context(), token)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, sess)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		respond.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrAccessDenied):
		respond.Error(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error("auth request failed", "error", err)
		respond.Error(w, http.StatusBadGateway, "authentication unavailable")
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
