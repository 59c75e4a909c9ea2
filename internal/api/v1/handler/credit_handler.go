package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"catalyst/internal/api/v1/dto"
	"catalyst/internal/middleware"
	"catalyst/internal/model"
	"catalyst/internal/repository"
	"catalyst/internal/service"

	"github.com/go-playground/validator/v10"
)

type CreditHandler struct {
	credits  service.CreditService
	stripe   *service.StripeService
	validate *validator.Validate
}

func NewCreditHandler(credits service.CreditService, stripe *service.StripeService, v *validator.Validate) *CreditHandler {
	return &CreditHandler{credits: credits, stripe: stripe, validate: v}
}

// RegisterRoutes mounts v1 credit routes
func (h *CreditHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.HandleFunc("/credits/tiers", h.listTiers)
	mux.Handle("/credits/transactions", authMw(http.HandlerFunc(h.listTransactions)))
	mux.Handle("/credits/checkout", authMw(http.HandlerFunc(h.createCheckout)))
	mux.HandleFunc("/credits/stripe/webhook", h.stripeWebhook)
	mux.Handle("/admin/credits", authMw(middleware.RequireAdmin(http.HandlerFunc(h.adminGrant))))
}

// @Summary List purchasable credit packs
// @Tags credits
// @Produce json
// @Success 200 {array} model.CreditTier
// @Router /credits/tiers [get]
func (h *CreditHandler) listTiers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.credits.Tiers())
}

// @Summary List the caller's credit ledger
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.CreditTransaction
// @Router /credits/transactions [get]
func (h *CreditHandler) listTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txs, err := h.credits.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txs)
}

// @Summary Start a Stripe checkout for a credit pack
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CheckoutRequest true "Credit pack"
// @Success 200 {object} dto.CheckoutResponse
// @Router /credits/checkout [post]
func (h *CreditHandler) createCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req dto.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	url, err := h.stripe.CreateCheckoutSession(r.Context(), userID, req.TierID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownTier) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to create checkout session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.CheckoutResponse{URL: url})
}

// @Summary Grant credits to a user (manual adjustment)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.GrantRequest true "Grant"
// @Success 200 {object} dto.GrantResponse
// @Router /admin/credits [post]
func (h *CreditHandler) adminGrant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req dto.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	description := req.Description
	if description == "" {
		description = "manual grant by admin"
	}

	var newBalance int
	var err error
	if req.UserID != 0 {
		newBalance, err = h.credits.Grant(r.Context(), req.UserID, req.Amount, model.TxGrant, description)
	} else {
		newBalance, err = h.credits.GrantByEmail(r.Context(), req.Email, req.Amount, model.TxGrant, description)
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, repository.ErrNoActiveSubscription) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to grant credits", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.GrantResponse{NewBalance: newBalance})
}

// @Summary Stripe webhook endpoint
// @Tags credits
// @Router /credits/stripe/webhook [post]
func (h *CreditHandler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	h.stripe.HandleWebhook(w, r)
}
