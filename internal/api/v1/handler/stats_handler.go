package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"catalyst/internal/middleware"
	"catalyst/internal/service"
)

type StatsHandler struct {
	stats service.StatsService
}

func NewStatsHandler(stats service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// RegisterRoutes mounts v1 stats routes
func (h *StatsHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/admin/stats", authMw(middleware.RequireAdmin(http.HandlerFunc(h.overview))))
}

// @Summary Usage statistics overview
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param days query int false "Days of daily rollups to include"
// @Success 200 {object} model.StatsOverview
// @Router /admin/stats [get]
func (h *StatsHandler) overview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	overview, err := h.stats.GetOverview(r.Context(), days)
	if err != nil {
		http.Error(w, "Failed to fetch stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(overview)
}
