package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"catalyst/internal/config"
	"catalyst/internal/model"
	"catalyst/internal/pgmq"
	"catalyst/internal/util"

	"github.com/rs/zerolog"
)

// NotifyService enqueues webhook notifications through the outbox queue. A
// delivery worker drains the queue; a webhook outage therefore never blocks
// or fails the operation that triggered the notification.
type NotifyService interface {
	TopupSubmitted(ctx context.Context, t *model.TopupRequest)
	TopupReviewed(ctx context.Context, t *model.TopupRequest, approved bool, newBalance int)
	AnalysisCompleted(ctx context.Context, job *model.AnalysisJob)
	AnalysisFailed(ctx context.Context, job *model.AnalysisJob, reason string)
	PurchaseCompleted(ctx context.Context, email string, credits, newBalance int, orderNo string)
}

type notifyService struct {
	cfg    *config.Config
	queue  *pgmq.Client
	logger zerolog.Logger
}

// NewNotifyService creates a new NotifyService with a scoped logger.
func NewNotifyService(cfg *config.Config, queue *pgmq.Client, logger zerolog.Logger) NotifyService {
	return &notifyService{
		cfg:    cfg,
		queue:  queue,
		logger: logger.With().Str("service", "NotifyService").Logger(),
	}
}

// enqueue serializes the card into the outbox. Failures are logged but not
// propagated: losing a notification must never fail the caller's operation.
func (s *notifyService) enqueue(ctx context.Context, kind string, card feishuCard) {
	payload, err := json.Marshal(struct {
		Kind string     `json:"kind"`
		Card feishuCard `json:"card"`
	}{Kind: kind, Card: card})
	if err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Msg("Failed to marshal notification card")
		return
	}
	if err := s.queue.Send(ctx, s.cfg.NotifyQueueName, payload); err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Msg("Failed to enqueue notification")
		return
	}
	s.logger.Debug().Str("kind", kind).Msg("Enqueued notification")
}

func (s *notifyService) TopupSubmitted(ctx context.Context, t *model.TopupRequest) {
	approveURL, rejectURL := s.reviewLinks(t.ID)
	s.enqueue(ctx, "topup_submitted", topupSubmittedCard(t, approveURL, rejectURL))
}

// reviewLinks builds the one-time approve/reject links embedded in the
// approval card. A signing failure degrades to a card without buttons.
func (s *notifyService) reviewLinks(requestID int64) (string, string) {
	approveTok, err := util.CreateReviewToken(requestID, "approve", s.cfg.JWTSecret)
	if err != nil {
		s.logger.Error().Err(err).Int64("request_id", requestID).Msg("Failed to sign review token")
		return "", ""
	}
	rejectTok, err := util.CreateReviewToken(requestID, "reject", s.cfg.JWTSecret)
	if err != nil {
		s.logger.Error().Err(err).Int64("request_id", requestID).Msg("Failed to sign review token")
		return "", ""
	}
	base := s.cfg.AppBaseURL + "/v1/topups/review?token="
	return fmt.Sprintf("%s%s", base, url.QueryEscape(approveTok)),
		fmt.Sprintf("%s%s", base, url.QueryEscape(rejectTok))
}

func (s *notifyService) TopupReviewed(ctx context.Context, t *model.TopupRequest, approved bool, newBalance int) {
	s.enqueue(ctx, "topup_reviewed", topupReviewedCard(t, approved, newBalance))
}

func (s *notifyService) AnalysisCompleted(ctx context.Context, job *model.AnalysisJob) {
	s.enqueue(ctx, "analysis_completed", analysisCompletedCard(job))
}

func (s *notifyService) AnalysisFailed(ctx context.Context, job *model.AnalysisJob, reason string) {
	s.enqueue(ctx, "analysis_failed", analysisFailedCard(job, reason))
}

func (s *notifyService) PurchaseCompleted(ctx context.Context, email string, credits, newBalance int, orderNo string) {
	s.enqueue(ctx, "purchase_completed", purchaseCompletedCard(email, credits, newBalance, orderNo))
}
