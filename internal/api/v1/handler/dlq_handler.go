package handler

import (
	"encoding/json"
	"net/http"

	"catalyst/internal/api/v1/dto"
	"catalyst/internal/service"

	"github.com/rs/zerolog"
)

type DLQHandler struct {
	service service.DLQService
	logger  zerolog.Logger
}

func NewDLQHandler(s service.DLQService, l zerolog.Logger) *DLQHandler {
	return &DLQHandler{service: s, logger: l}
}

// RegisterRoutes mounts the Pub/Sub dead-letter push endpoint behind the
// given push-auth middleware.
func (h *DLQHandler) RegisterRoutes(mux *http.ServeMux, pushAuthMw func(http.Handler) http.Handler) {
	mux.Handle("/dlq", pushAuthMw(http.HandlerFunc(h.recordDLQ)))
}

// @Summary Record a dead-lettered Pub/Sub message
// @Tags dlq
// @Accept json
// @Router /dlq [post]
func (h *DLQHandler) recordDLQ(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req dto.PubSubPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid Pub/Sub push payload", http.StatusBadRequest)
		return
	}
	if req.Message.MessageID == "" {
		http.Error(w, "Invalid Pub/Sub message format: missing message ID", http.StatusBadRequest)
		return
	}

	h.logger.Info().
		Str("messageId", req.Message.MessageID).
		Str("subscription", req.Subscription).
		Msg("Processing dead-letter queue message")

	if err := h.service.ProcessAndSave(r.Context(), &req); err != nil {
		// Still ack to Pub/Sub to prevent retries of a message that is already
		// dead-lettered. The error is logged for offline analysis.
		h.logger.Error().Err(err).Msg("Failed to save DLQ message to database")
	}

	w.WriteHeader(http.StatusNoContent)
}
