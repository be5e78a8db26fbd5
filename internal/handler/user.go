package handler

import (
	"log/slog"
	"net/http"

	"github.com/sankalp/sankalp/internal/service"
)

// UserHandler serves the signed-in user's own profile.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleMe returns the current user.
//
// HTTP: GET /api/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), userID(r))
	if err != nil {
		fail(h.logger, w, r, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateMe changes name, email reminders or reminder time.
//
// HTTP: PATCH /api/me
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var upd service.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), userID(r), upd)
	if err != nil {
		fail(h.logger, w, r, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleDepositPaid records the commitment deposit.
//
// HTTP: POST /api/deposit-paid
func (h *UserHandler) HandleDepositPaid(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.MarkDepositPaid(r.Context(), userID(r))
	if err != nil {
		fail(h.logger, w, r, "mark deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
