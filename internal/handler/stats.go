package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/service"
)

// StatsHandler serves the dashboard reads.
//
// DEGRADED RESPONSES:
// /stats, /streak/details and /streak/at-risk never fail. When the data
// cannot be loaded the error is logged and a zeroed body is returned with
// 200, so the dashboard shows zeros instead of an error page.
type StatsHandler struct {
	stats  *service.StatsService
	logger *slog.Logger
}

func NewStatsHandler(stats *service.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

// HTTP: GET /api/stats
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Stats(r.Context(), userID(r))
	if err != nil {
		h.degraded(r, "stats", err)
		st = service.ZeroStats()
	}
	writeJSON(w, http.StatusOK, st)
}

// HTTP: GET /api/streak/details
func (h *StatsHandler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	d, err := h.stats.Details(r.Context(), userID(r))
	if err != nil {
		h.degraded(r, "streak details", err)
		d = service.ZeroDetails()
	}
	writeJSON(w, http.StatusOK, d)
}

// HTTP: GET /api/streak/at-risk
func (h *StatsHandler) HandleAtRisk(w http.ResponseWriter, r *http.Request) {
	risk, err := h.stats.AtRisk(r.Context(), userID(r))
	if err != nil {
		h.degraded(r, "at-risk", err)
		risk = service.ZeroRisk()
	}
	writeJSON(w, http.StatusOK, risk)
}

// HandlePerformance reports one habit over ?days= (default 30).
//
// HTTP: GET /api/habits/{id}/performance
func (h *StatsHandler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, apperror.ValidationFailed("days", "days must be a positive integer"))
			return
		}
		days = n
	}

	p, err := h.stats.Performance(r.Context(), userID(r), chi.URLParam(r, "id"), days)
	if err != nil {
		fail(h.logger, w, r, "habit performance", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HTTP: GET /api/insights/prediction
func (h *StatsHandler) HandlePrediction(w http.ResponseWriter, r *http.Request) {
	p, err := h.stats.Prediction(r.Context(), userID(r))
	if err != nil {
		fail(h.logger, w, r, "prediction", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleBadges lists the catalog with the user's earned flags.
//
// HTTP: GET /api/badges
func (h *StatsHandler) HandleBadges(w http.ResponseWriter, r *http.Request) {
	badges, xp, err := h.stats.Badges(r.Context(), userID(r))
	if err != nil {
		fail(h.logger, w, r, "badges", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": badges, "xp": xp})
}

func (h *StatsHandler) degraded(r *http.Request, op string, err error) {
	h.logger.Error(op+" unavailable, serving zeroed response",
		slog.String("user_id", userID(r)),
		slog.String("error", err.Error()),
	)
}
