package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"catalyst/internal/api/v1/dto"
	"catalyst/internal/middleware"
	"catalyst/internal/repository"
	"catalyst/internal/service"
	"catalyst/internal/util"

	"github.com/go-playground/validator/v10"
)

type TopupHandler struct {
	topups    service.TopupService
	validate  *validator.Validate
	jwtSecret string
}

func NewTopupHandler(topups service.TopupService, v *validator.Validate, jwtSecret string) *TopupHandler {
	return &TopupHandler{topups: topups, validate: v, jwtSecret: jwtSecret}
}

// RegisterRoutes mounts v1 top-up routes
func (h *TopupHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/topups", authMw(http.HandlerFunc(h.handleTopups)))
	// The token in the link is the credential; no session required.
	mux.Handle("/topups/review", http.HandlerFunc(h.quickReview))
	mux.Handle("/topups/", authMw(http.HandlerFunc(h.getTopup)))
	mux.Handle("/admin/topups", authMw(middleware.RequireAdmin(http.HandlerFunc(h.listPending))))
	mux.Handle("/admin/topups/", authMw(middleware.RequireAdmin(http.HandlerFunc(h.review))))
}

func (h *TopupHandler) handleTopups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submit(w, r)
	case http.MethodGet:
		h.listMine(w, r)
	default:
		http.NotFound(w, r)
	}
}

// @Summary Submit a manual top-up request
// @Tags topups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.TopupSubmitRequest true "Top-up details"
// @Success 201 {object} model.TopupRequest
// @Router /topups [post]
func (h *TopupHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req dto.TopupSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	email := middleware.EmailFromContext(r.Context())
	t, err := h.topups.Submit(r.Context(), userID, email, req.TierID, req.ReceiptFileKey)
	if err != nil {
		if errors.Is(err, service.ErrUnknownTier) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to submit top-up request", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(t)
}

// @Summary List the caller's top-up requests
// @Tags topups
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.TopupRequest
// @Router /topups [get]
func (h *TopupHandler) listMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ts, err := h.topups.ListMine(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, "Failed to list top-up requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ts)
}

// @Summary Get one of the caller's top-up requests
// @Tags topups
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} model.TopupRequest
// @Router /topups/{id} [get]
func (h *TopupHandler) getTopup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/topups/"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid request id", http.StatusBadRequest)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	t, err := h.topups.Get(r.Context(), id, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTopupNotFound), errors.Is(err, service.ErrNotRequestOwner):
			http.Error(w, "Top-up request not found", http.StatusNotFound)
		default:
			http.Error(w, "Failed to fetch top-up request", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(t)
}

// @Summary List pending top-up requests
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.TopupRequest
// @Router /admin/topups [get]
func (h *TopupHandler) listPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	ts, err := h.topups.ListPending(r.Context())
	if err != nil {
		http.Error(w, "Failed to list pending requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ts)
}

// review dispatches /admin/topups/{id}/approve and /admin/topups/{id}/reject.
func (h *TopupHandler) review(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/admin/topups/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "Invalid request id", http.StatusBadRequest)
		return
	}

	// The remark is optional, so an empty body is a valid review.
	var req dto.TopupReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	adminID := middleware.UserIDFromContext(r.Context())
	var t any
	switch parts[1] {
	case "approve":
		t, err = h.topups.Approve(r.Context(), id, adminID, req.Remark)
	case "reject":
		t, err = h.topups.Reject(r.Context(), id, adminID, req.Remark)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTopupNotFound):
			http.Error(w, "Top-up request not found", http.StatusNotFound)
		case errors.Is(err, repository.ErrTopupAlreadyReviewed):
			http.Error(w, "Top-up request already reviewed", http.StatusConflict)
		default:
			http.Error(w, "Failed to review top-up request", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(t)
}

// @Summary Review a top-up request via a one-time signed link
// @Tags topups
// @Produce json
// @Param token query string true "Signed review token"
// @Success 200 {object} model.TopupRequest
// @Router /topups/review [get]
func (h *TopupHandler) quickReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	claims, err := util.ValidateReviewToken(r.URL.Query().Get("token"), h.jwtSecret)
	if err != nil {
		http.Error(w, "Invalid or expired review token", http.StatusUnauthorized)
		return
	}

	var t any
	switch claims.Action {
	case "approve":
		t, err = h.topups.Approve(r.Context(), claims.RequestID, 0, "reviewed via one-time link")
	case "reject":
		t, err = h.topups.Reject(r.Context(), claims.RequestID, 0, "reviewed via one-time link")
	default:
		http.Error(w, "Invalid or expired review token", http.StatusUnauthorized)
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTopupNotFound):
			http.Error(w, "Top-up request not found", http.StatusNotFound)
		case errors.Is(err, repository.ErrTopupAlreadyReviewed):
			http.Error(w, "Top-up request already reviewed", http.StatusConflict)
		default:
			http.Error(w, "Failed to review top-up request", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(t)
}
