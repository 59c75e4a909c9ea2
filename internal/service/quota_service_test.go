package service

import (
	"context"
	"testing"
	"time"

	"catalyst/internal/model"
	"catalyst/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubRepo struct {
	sub *model.Subscription
	err error
}

func (f *fakeSubRepo) GetActiveByUserID(ctx context.Context, userID int64) (*model.Subscription, error) {
	return f.sub, f.err
}

func (f *fakeSubRepo) GetByUserID(ctx context.Context, userID int64) (*model.Subscription, error) {
	return f.sub, f.err
}

func (f *fakeSubRepo) UpdateStripeCustomerID(ctx context.Context, subscriptionID int64, customerID string) error {
	return nil
}

type fakeUsageRepo struct {
	monthly     *model.MonthlyUsage
	reservation *model.UsageReservation
	reserveErr  error

	monthlySubID   int64
	reservedStocks int
	reservedJobID  string
}

func (f *fakeUsageRepo) MonthlyUsage(ctx context.Context, userID, subscriptionID int64, since time.Time) (*model.MonthlyUsage, error) {
	f.monthlySubID = subscriptionID
	return f.monthly, nil
}

func (f *fakeUsageRepo) ReserveUsage(ctx context.Context, userID, subscriptionID int64, quota model.Quota, stockCount int, jobID string) (*model.UsageReservation, error) {
	f.reservedStocks = stockCount
	f.reservedJobID = jobID
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	return f.reservation, nil
}

func subscription(quota model.Quota, balance int) *model.Subscription {
	return &model.Subscription{
		ID:             7,
		UserID:         1,
		PlanType:       model.PlanFree,
		Status:         "active",
		MonthlyQuota:   quota,
		CreditsBalance: balance,
	}
}

func TestEvaluateWithinFreeQuota(t *testing.T) {
	subs := &fakeSubRepo{sub: subscription(model.LimitedQuota(5), 0)}
	usage := &fakeUsageRepo{monthly: &model.MonthlyUsage{}}
	svc := NewQuotaService(subs, usage, zerolog.Nop())

	d, err := svc.Evaluate(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.FreeQuotaUsed)
	assert.Equal(t, 0, d.CreditsNeeded)
	assert.Equal(t, 0, d.CreditsShort)
	// usage is aggregated for the active subscription only
	assert.Equal(t, int64(7), usage.monthlySubID)
}

func TestEvaluateSpillsIntoCredits(t *testing.T) {
	subs := &fakeSubRepo{sub: subscription(model.LimitedQuota(5), 10)}
	usage := &fakeUsageRepo{monthly: &model.MonthlyUsage{FreeQuotaUsed: 5, TotalStocks: 5}}
	svc := NewQuotaService(subs, usage, zerolog.Nop())

	d, err := svc.Evaluate(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.FreeQuotaUsed)
	assert.Equal(t, 2, d.CreditsNeeded)
}

func TestEvaluatePartialFreeQuota(t *testing.T) {
	subs := &fakeSubRepo{sub: subscription(model.LimitedQuota(5), 10)}
	usage := &fakeUsageRepo{monthly: &model.MonthlyUsage{FreeQuotaUsed: 3, TotalStocks: 3}}
	svc := NewQuotaService(subs, usage, zerolog.Nop())

	d, err := svc.Evaluate(context.Background(), 1, 4)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.FreeQuotaUsed)
	assert.Equal(t, 2, d.CreditsNeeded)
}

func TestEvaluateDeniedWhenBalanceShort(t *testing.T) {
	subs := &fakeSubRepo{sub: subscription(model.LimitedQuota(5), 1)}
	usage := &fakeUsageRepo{monthly: &model.MonthlyUsage{FreeQuotaUsed: 5, TotalStocks: 5}}
	svc := NewQuotaService(subs, usage, zerolog.Nop())

	d, err := svc.Evaluate(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, d.CreditsNeeded)
	assert.Equal(t, 1, d.CreditsShort)
	assert.NotEmpty(t, d.Reason)
}

func TestEvaluateUnlimitedPlan(t *testing.T) {
	subs := &fakeSubRepo{sub: subscription(model.UnlimitedQuota(), 0)}
	usage := &fakeUsageRepo{monthly: &model.MonthlyUsage{FreeQuotaUsed: 9999}}
	svc := NewQuotaService(subs, usage, zerolog.Nop())

	d, err := svc.Evaluate(context.Background(), 1, 500)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 500, d.FreeQuotaUsed)
	assert.Equal(t, 0, d.CreditsNeeded)
}

func TestEvaluateEmptyBatchRejected(t *testing.T) {
	svc := NewQuotaService(&fakeSubRepo{}, &fakeUsageRepo{}, zerolog.Nop())

	_, err := svc.Evaluate(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrNothingToAnalyze)

	_, _, err = svc.Reserve(context.Background(), 1, 0, "job-1")
	assert.ErrorIs(t, err, ErrNothingToAnalyze)
}

func TestReservePassesThroughRepository(t *testing.T) {
	subs := &fakeSubRepo{sub: subscription(model.LimitedQuota(5), 10)}
	usage := &fakeUsageRepo{reservation: &model.UsageReservation{UsedFreeQuota: 1, CreditsUsed: 2, NewBalance: 8}}
	svc := NewQuotaService(subs, usage, zerolog.Nop())

	res, sub, err := svc.Reserve(context.Background(), 1, 3, "job-42")
	require.NoError(t, err)
	assert.Equal(t, 2, res.CreditsUsed)
	assert.Equal(t, 8, res.NewBalance)
	assert.Equal(t, int64(7), sub.ID)
	assert.Equal(t, 3, usage.reservedStocks)
	assert.Equal(t, "job-42", usage.reservedJobID)
}

func TestReserveInsufficientCredits(t *testing.T) {
	subs := &fakeSubRepo{sub: subscription(model.LimitedQuota(5), 1)}
	usage := &fakeUsageRepo{reserveErr: repository.ErrInsufficientCredits}
	svc := NewQuotaService(subs, usage, zerolog.Nop())

	_, _, err := svc.Reserve(context.Background(), 1, 2, "job-1")
	assert.ErrorIs(t, err, repository.ErrInsufficientCredits)
}

func TestGetUsageSummary(t *testing.T) {
	subs := &fakeSubRepo{sub: subscription(model.LimitedQuota(5), 12)}
	usage := &fakeUsageRepo{monthly: &model.MonthlyUsage{TotalStocks: 8, FreeQuotaUsed: 5, CreditsUsed: 3}}
	svc := NewQuotaService(subs, usage, zerolog.Nop())

	s, err := svc.GetUsage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, s.MonthlyQuota)
	assert.Equal(t, 5, s.FreeQuotaUsed)
	assert.Equal(t, 0, s.FreeQuotaLeft)
	assert.Equal(t, 12, s.CreditsBalance)
	assert.Equal(t, 8, s.TotalStocks)
	assert.Equal(t, 3, s.CreditsUsed)
	assert.False(t, s.Unlimited)
	assert.Equal(t, int64(7), usage.monthlySubID)
}

func TestStartOfMonthUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	// 2025-03-01 03:00 in UTC+8 is still 2025-02-28 in UTC.
	got := startOfMonthUTC(time.Date(2025, 3, 1, 3, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), got)

	got = startOfMonthUTC(time.Date(2025, 3, 15, 12, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got)
}
