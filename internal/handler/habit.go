package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sankalp/sankalp/internal/service"
)

type HabitHandler struct {
	habits *service.HabitService
	logger *slog.Logger
}

func NewHabitHandler(habits *service.HabitService, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{habits: habits, logger: logger}
}

// HandleList returns the user's habits in submission order.
//
// HTTP: GET /api/habits
func (h *HabitHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	habits, err := h.habits.List(r.Context(), userID(r))
	if err != nil {
		fail(h.logger, w, r, "list habits", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"habits": nonNil(habits)})
}

// HandleReplace swaps the whole habit list. Earlier habits and all their
// check-ins are deleted.
//
// HTTP: POST /api/habits {"habits": [...]}
func (h *HabitHandler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Habits []service.HabitInput `json:"habits"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	habits, err := h.habits.Replace(r.Context(), userID(r), body.Habits)
	if err != nil {
		fail(h.logger, w, r, "replace habits", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"habits": habits})
}

// HandleDelete removes one habit.
//
// HTTP: DELETE /api/habits/{id}
func (h *HabitHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.habits.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		fail(h.logger, w, r, "delete habit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil keeps empty lists as [] instead of null on the wire.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
