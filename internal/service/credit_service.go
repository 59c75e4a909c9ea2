package service

import (
	"context"

	"catalyst/internal/metrics"
	"catalyst/internal/model"
	"catalyst/internal/repository"

	"github.com/rs/zerolog"
)

// CreditService exposes the credit ledger and the purchasable tier catalog.
type CreditService interface {
	Tiers() []model.CreditTier
	ListTransactions(ctx context.Context, userID int64, limit int) ([]model.CreditTransaction, error)
	// Grant adds credits outside the purchase flow (admin adjustments, refunds).
	Grant(ctx context.Context, userID int64, amount int, txType, description string) (int, error)
	// GrantByEmail resolves the user by email before granting.
	GrantByEmail(ctx context.Context, email string, amount int, txType, description string) (int, error)
}

type creditService struct {
	credits repository.CreditRepository
	subs    repository.SubscriptionRepository
	users   repository.UserRepository
	logger  zerolog.Logger
}

// NewCreditService creates a new CreditService with a scoped logger.
func NewCreditService(credits repository.CreditRepository, subs repository.SubscriptionRepository, users repository.UserRepository, logger zerolog.Logger) CreditService {
	return &creditService{
		credits: credits,
		subs:    subs,
		users:   users,
		logger:  logger.With().Str("service", "CreditService").Logger(),
	}
}

func (s *creditService) Tiers() []model.CreditTier {
	return model.CreditTiers
}

func (s *creditService) ListTransactions(ctx context.Context, userID int64, limit int) ([]model.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	txs, err := s.credits.ListByUser(ctx, userID, limit)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to list credit transactions")
		return nil, err
	}
	return txs, nil
}

func (s *creditService) Grant(ctx context.Context, userID int64, amount int, txType, description string) (int, error) {
	sub, err := s.subs.GetActiveByUserID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch subscription for grant")
		return 0, err
	}

	newBalance, err := s.credits.GrantCredits(ctx, userID, sub.ID, amount, txType, description)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Int("amount", amount).Msg("Failed to grant credits")
		return 0, err
	}

	metrics.CreditsGrantedTotal.WithLabelValues(txType).Add(float64(amount))
	s.logger.Info().
		Int64("user_id", userID).
		Int("amount", amount).
		Str("type", txType).
		Int("new_balance", newBalance).
		Msg("Granted credits")
	return newBalance, nil
}

func (s *creditService) GrantByEmail(ctx context.Context, email string, amount int, txType, description string) (int, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	return s.Grant(ctx, u.ID, amount, txType, description)
}
