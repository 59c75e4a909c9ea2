package service

import (
	"context"
	"errors"

	"catalyst/internal/metrics"
	"catalyst/internal/model"
	"catalyst/internal/repository"

	"github.com/rs/zerolog"
)

// ErrUnknownTier is returned when a top-up names a tier not in the catalog.
var ErrUnknownTier = errors.New("unknown credit tier")

// ErrNotRequestOwner is returned when a user reads someone else's request.
var ErrNotRequestOwner = errors.New("not request owner")

// TopupService manages the manual top-up flow: users submit a request with a
// payment receipt, admins approve or reject it.
type TopupService interface {
	Submit(ctx context.Context, userID int64, email, tierID string, receiptFileKey *string) (*model.TopupRequest, error)
	Get(ctx context.Context, id, userID int64) (*model.TopupRequest, error)
	ListMine(ctx context.Context, userID int64, limit int) ([]model.TopupRequest, error)
	ListPending(ctx context.Context) ([]model.TopupRequest, error)
	Approve(ctx context.Context, id, adminID int64, remark string) (*model.TopupRequest, error)
	Reject(ctx context.Context, id, adminID int64, remark string) (*model.TopupRequest, error)
}

type topupService struct {
	topups repository.TopupRepository
	subs   repository.SubscriptionRepository
	notify NotifyService
	logger zerolog.Logger
}

// NewTopupService creates a new TopupService with a scoped logger.
func NewTopupService(topups repository.TopupRepository, subs repository.SubscriptionRepository, notify NotifyService, logger zerolog.Logger) TopupService {
	return &topupService{
		topups: topups,
		subs:   subs,
		notify: notify,
		logger: logger.With().Str("service", "TopupService").Logger(),
	}
}

func (s *topupService) Submit(ctx context.Context, userID int64, email, tierID string, receiptFileKey *string) (*model.TopupRequest, error) {
	tier, ok := model.TierByID(tierID)
	if !ok {
		return nil, ErrUnknownTier
	}

	t := &model.TopupRequest{
		UserID:         userID,
		Email:          email,
		TierID:         tier.ID,
		TierName:       tier.Name,
		Credits:        tier.Credits,
		Price:          tier.Price,
		ReceiptFileKey: receiptFileKey,
	}
	if err := s.topups.Create(ctx, t); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("tier", tierID).Msg("Failed to create topup request")
		return nil, err
	}

	s.notify.TopupSubmitted(ctx, t)
	s.logger.Info().Int64("user_id", userID).Int64("request_id", t.ID).Str("tier", tierID).Msg("Submitted topup request")
	return t, nil
}

func (s *topupService) Get(ctx context.Context, id, userID int64) (*model.TopupRequest, error) {
	t, err := s.topups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrNotRequestOwner
	}
	return t, nil
}

func (s *topupService) ListMine(ctx context.Context, userID int64, limit int) ([]model.TopupRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.topups.ListByUser(ctx, userID, limit)
}

func (s *topupService) ListPending(ctx context.Context) ([]model.TopupRequest, error) {
	return s.topups.ListPending(ctx)
}

func (s *topupService) Approve(ctx context.Context, id, adminID int64, remark string) (*model.TopupRequest, error) {
	t, err := s.topups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sub, err := s.subs.GetActiveByUserID(ctx, t.UserID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", t.UserID).Msg("Failed to fetch subscription for topup approval")
		return nil, err
	}

	newBalance, err := s.topups.Approve(ctx, id, adminID, sub.ID, remark)
	if err != nil {
		if !errors.Is(err, repository.ErrTopupAlreadyReviewed) {
			s.logger.Error().Err(err).Int64("request_id", id).Msg("Failed to approve topup request")
		}
		return nil, err
	}

	metrics.CreditsGrantedTotal.WithLabelValues("topup").Add(float64(t.Credits))
	t.Status = model.TopupApproved
	if adminID != 0 {
		t.AdminID = &adminID
	}
	if remark != "" {
		t.AdminRemark = &remark
	}
	s.notify.TopupReviewed(ctx, t, true, newBalance)
	s.logger.Info().
		Int64("request_id", id).
		Int64("admin_id", adminID).
		Int("credits", t.Credits).
		Int("new_balance", newBalance).
		Msg("Approved topup request")
	return t, nil
}

func (s *topupService) Reject(ctx context.Context, id, adminID int64, remark string) (*model.TopupRequest, error) {
	t, err := s.topups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.topups.Reject(ctx, id, adminID, remark); err != nil {
		if !errors.Is(err, repository.ErrTopupAlreadyReviewed) {
			s.logger.Error().Err(err).Int64("request_id", id).Msg("Failed to reject topup request")
		}
		return nil, err
	}

	t.Status = model.TopupRejected
	if adminID != 0 {
		t.AdminID = &adminID
	}
	if remark != "" {
		t.AdminRemark = &remark
	}
	s.notify.TopupReviewed(ctx, t, false, 0)
	s.logger.Info().Int64("request_id", id).Int64("admin_id", adminID).Msg("Rejected topup request")
	return t, nil
}
