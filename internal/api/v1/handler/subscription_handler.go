package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"catalyst/internal/api/v1/dto"
	"catalyst/internal/middleware"
	"catalyst/internal/repository"
	"catalyst/internal/service"
)

type SubscriptionHandler struct {
	subs  repository.SubscriptionRepository
	quota service.QuotaService
}

func NewSubscriptionHandler(subs repository.SubscriptionRepository, quota service.QuotaService) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs, quota: quota}
}

// RegisterRoutes mounts v1 subscription routes
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/subscriptions/me", authMw(http.HandlerFunc(h.getSubscription)))
	mux.Handle("/subscriptions/me/usage", authMw(http.HandlerFunc(h.getUsage)))
}

// @Summary Get the caller's subscription
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SubscriptionResponse
// @Router /subscriptions/me [get]
func (h *SubscriptionHandler) getSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	sub, err := h.subs.GetActiveByUserID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveSubscription) {
			http.Error(w, "No active subscription", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch subscription", http.StatusInternalServerError)
		return
	}

	resp := dto.SubscriptionResponse{
		ID:             sub.ID,
		PlanType:       sub.PlanType,
		Status:         sub.Status,
		StartDate:      sub.StartDate,
		EndDate:        sub.EndDate,
		Unlimited:      sub.MonthlyQuota.Unlimited(),
		CreditsBalance: sub.CreditsBalance,
	}
	if !resp.Unlimited {
		resp.MonthlyQuota = sub.MonthlyQuota.Limit()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// @Summary Get the caller's current-month usage
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.UsageResponse
// @Router /subscriptions/me/usage [get]
func (h *SubscriptionHandler) getUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	summary, err := h.quota.GetUsage(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveSubscription) {
			http.Error(w, "No active subscription", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch usage", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.UsageResponse{
		PlanType:       summary.PlanType,
		MonthlyQuota:   summary.MonthlyQuota,
		Unlimited:      summary.Unlimited,
		FreeQuotaUsed:  summary.FreeQuotaUsed,
		FreeQuotaLeft:  summary.FreeQuotaLeft,
		CreditsBalance: summary.CreditsBalance,
		TotalStocks:    summary.TotalStocks,
		CreditsUsed:    summary.CreditsUsed,
	})
}
