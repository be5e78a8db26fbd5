package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sankalp/sankalp/internal/service"
)

// CheckInHandler serves check-ins and daily logs.
type CheckInHandler struct {
	checkins *service.CheckInService
	logger   *slog.Logger
}

func NewCheckInHandler(checkins *service.CheckInService, logger *slog.Logger) *CheckInHandler {
	return &CheckInHandler{checkins: checkins, logger: logger}
}

// HandleRecord upserts a check-in and returns the refreshed streaks along
// with any badges it unlocked.
//
// HTTP: POST /api/checkins
func (h *CheckInHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var in service.CheckInInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.checkins.Record(r.Context(), userID(r), in)
	if err != nil {
		fail(h.logger, w, r, "record check-in", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleForDate lists one day's check-ins.
//
// HTTP: GET /api/checkins/{date}
func (h *CheckInHandler) HandleForDate(w http.ResponseWriter, r *http.Request) {
	checkins, err := h.checkins.ForDate(r.Context(), userID(r), chi.URLParam(r, "date"))
	if err != nil {
		fail(h.logger, w, r, "list check-ins", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkins": nonNil(checkins)})
}

// HandleDailyLog saves sleep and reflection for a day.
//
// HTTP: PUT /api/daily-log/{date}
func (h *CheckInHandler) HandleDailyLog(w http.ResponseWriter, r *http.Request) {
	var in service.DailyLogInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.checkins.SaveDailyLog(r.Context(), userID(r), chi.URLParam(r, "date"), in)
	if err != nil {
		fail(h.logger, w, r, "save daily log", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
