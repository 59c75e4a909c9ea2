package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalyst/internal/metrics"
	"catalyst/internal/model"
	"catalyst/internal/repository"

	"github.com/rs/zerolog"
)

// ErrNothingToAnalyze is returned when a batch contains no stocks.
var ErrNothingToAnalyze = errors.New("nothing_to_analyze")

// UsageSummary is the quota status returned to the dashboard.
type UsageSummary struct {
	PlanType       string `json:"plan_type"`
	MonthlyQuota   int    `json:"monthly_quota"`
	Unlimited      bool   `json:"unlimited"`
	FreeQuotaUsed  int    `json:"free_quota_used"`
	FreeQuotaLeft  int    `json:"free_quota_left"`
	CreditsBalance int    `json:"credits_balance"`
	TotalStocks    int    `json:"total_stocks"`
	CreditsUsed    int    `json:"credits_used"`
}

// QuotaService evaluates and reserves analysis allowances.
type QuotaService interface {
	// Evaluate reports whether a batch of stockCount analyses would be allowed,
	// without committing anything.
	Evaluate(ctx context.Context, userID int64, stockCount int) (*model.QuotaDecision, error)
	// Reserve atomically consumes quota and credits for a batch. Evaluate and
	// Reserve can disagree under concurrency; Reserve is the authority.
	Reserve(ctx context.Context, userID int64, stockCount int, jobID string) (*model.UsageReservation, *model.Subscription, error)
	GetUsage(ctx context.Context, userID int64) (*UsageSummary, error)
}

type quotaService struct {
	subs   repository.SubscriptionRepository
	usage  repository.UsageRepository
	logger zerolog.Logger
}

// NewQuotaService creates a new QuotaService with a scoped logger.
func NewQuotaService(subs repository.SubscriptionRepository, usage repository.UsageRepository, logger zerolog.Logger) QuotaService {
	return &quotaService{
		subs:   subs,
		usage:  usage,
		logger: logger.With().Str("service", "QuotaService").Logger(),
	}
}

func (s *quotaService) Evaluate(ctx context.Context, userID int64, stockCount int) (*model.QuotaDecision, error) {
	if stockCount <= 0 {
		return nil, ErrNothingToAnalyze
	}

	sub, err := s.subs.GetActiveByUserID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch subscription for quota check")
		return nil, err
	}

	if sub.MonthlyQuota.Unlimited() {
		return &model.QuotaDecision{Allowed: true, FreeQuotaUsed: stockCount}, nil
	}

	monthly, err := s.usage.MonthlyUsage(ctx, userID, sub.ID, startOfMonthUTC(time.Now()))
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to aggregate monthly usage")
		return nil, err
	}

	remaining := sub.MonthlyQuota.Limit() - monthly.FreeQuotaUsed
	if remaining < 0 {
		remaining = 0
	}
	freeUsed := stockCount
	if remaining < stockCount {
		freeUsed = remaining
	}
	creditsNeeded := stockCount - freeUsed

	decision := &model.QuotaDecision{
		Allowed:       creditsNeeded <= sub.CreditsBalance,
		FreeQuotaUsed: freeUsed,
		CreditsNeeded: creditsNeeded,
	}
	if !decision.Allowed {
		decision.CreditsShort = creditsNeeded - sub.CreditsBalance
		decision.Reason = fmt.Sprintf(
			"batch needs %d credits beyond the free quota but the balance holds %d; %d more required",
			creditsNeeded, sub.CreditsBalance, decision.CreditsShort,
		)
		metrics.QuotaDenialsTotal.Inc()
	}
	return decision, nil
}

func (s *quotaService) Reserve(ctx context.Context, userID int64, stockCount int, jobID string) (*model.UsageReservation, *model.Subscription, error) {
	if stockCount <= 0 {
		return nil, nil, ErrNothingToAnalyze
	}

	sub, err := s.subs.GetActiveByUserID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch subscription for reservation")
		return nil, nil, err
	}

	res, err := s.usage.ReserveUsage(ctx, userID, sub.ID, sub.MonthlyQuota, stockCount, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			metrics.QuotaDenialsTotal.Inc()
			return nil, nil, err
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Int("stock_count", stockCount).Msg("Failed to reserve usage")
		return nil, nil, err
	}

	if res.CreditsUsed > 0 {
		metrics.CreditsConsumedTotal.Add(float64(res.CreditsUsed))
	}
	s.logger.Info().
		Int64("user_id", userID).
		Int("stock_count", stockCount).
		Int("free_quota_used", res.UsedFreeQuota).
		Int("credits_used", res.CreditsUsed).
		Int("new_balance", res.NewBalance).
		Msg("Reserved analysis usage")
	return res, sub, nil
}

func (s *quotaService) GetUsage(ctx context.Context, userID int64) (*UsageSummary, error) {
	sub, err := s.subs.GetActiveByUserID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch subscription for usage summary")
		return nil, err
	}

	monthly, err := s.usage.MonthlyUsage(ctx, userID, sub.ID, startOfMonthUTC(time.Now()))
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to aggregate monthly usage")
		return nil, err
	}

	summary := &UsageSummary{
		PlanType:       sub.PlanType,
		Unlimited:      sub.MonthlyQuota.Unlimited(),
		FreeQuotaUsed:  monthly.FreeQuotaUsed,
		CreditsBalance: sub.CreditsBalance,
		TotalStocks:    monthly.TotalStocks,
		CreditsUsed:    monthly.CreditsUsed,
	}
	if !summary.Unlimited {
		summary.MonthlyQuota = sub.MonthlyQuota.Limit()
		summary.FreeQuotaLeft = summary.MonthlyQuota - monthly.FreeQuotaUsed
		if summary.FreeQuotaLeft < 0 {
			summary.FreeQuotaLeft = 0
		}
	}
	return summary, nil
}

// startOfMonthUTC returns the first instant of the month containing t, in UTC.
// Month boundaries are always computed in UTC so a user cannot shift their
// quota window by changing timezones.
func startOfMonthUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
