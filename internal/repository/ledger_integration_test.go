package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"catalyst/internal"
	"catalyst/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPool connects to the database named by TEST_DATABASE_URL and applies
// migrations. Tests using it create their own users so runs do not collide.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skip database integration test")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	require.NoError(t, internal.RunMigrations(db))
	require.NoError(t, db.Close())

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newTestAccount(t *testing.T, pool *pgxpool.Pool) (*model.User, *model.Subscription) {
	t.Helper()
	u := &model.User{
		Email:        fmt.Sprintf("ledger-%d@test.local", time.Now().UnixNano()),
		Name:         "Ledger Test",
		PasswordHash: "x",
		Role:         model.RoleUser,
	}
	sub, err := NewUserRepo(pool).CreateWithSubscription(context.Background(), u)
	require.NoError(t, err)
	return u, sub
}

func TestGrantCreditsLedger(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	u, sub := newTestAccount(t, pool)
	credits := NewCreditRepo(pool)

	balance, err := credits.GrantCredits(ctx, u.ID, sub.ID, 2000, model.TxGrant, "integration grant")
	require.NoError(t, err)
	assert.Equal(t, 2000, balance)

	txs, err := credits.ListByUser(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.TxGrant, txs[0].Type)
	assert.Equal(t, 2000, txs[0].Amount)
	assert.Equal(t, 2000, txs[0].Balance)
	assert.Equal(t, "completed", txs[0].Status)

	_, err = credits.GrantCredits(ctx, u.ID, sub.ID, 0, model.TxGrant, "zero")
	assert.ErrorIs(t, err, ErrInvalidGrantAmount)
}

func TestRefundDoesNotCountAsGranted(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	u, sub := newTestAccount(t, pool)
	credits := NewCreditRepo(pool)

	_, err := credits.GrantCredits(ctx, u.ID, sub.ID, 100, model.TxGrant, "seed")
	require.NoError(t, err)

	balance, err := credits.GrantCredits(ctx, u.ID, sub.ID, 10, model.TxRefund, "refund for failed analysis job j1")
	require.NoError(t, err)
	assert.Equal(t, 110, balance)

	active, err := NewSubscriptionRepo(pool).GetActiveByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 110, active.CreditsBalance)
	// the refund restored the balance but is not a lifetime grant
	assert.Equal(t, 100, active.CreditsGranted)
}

func TestReserveUsageSplitsQuotaAndCredits(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	u, sub := newTestAccount(t, pool)
	credits := NewCreditRepo(pool)
	usage := NewUsageRepo(pool)

	_, err := credits.GrantCredits(ctx, u.ID, sub.ID, 100, model.TxGrant, "seed")
	require.NoError(t, err)

	// free plan quota is 5, so 8 stocks split 5 free + 3 credits
	res, err := usage.ReserveUsage(ctx, u.ID, sub.ID, model.LimitedQuota(5), 8, "job-split")
	require.NoError(t, err)
	assert.Equal(t, 5, res.UsedFreeQuota)
	assert.Equal(t, 3, res.CreditsUsed)
	assert.Equal(t, 97, res.NewBalance)

	// quota is exhausted now, everything comes out of credits
	res, err = usage.ReserveUsage(ctx, u.ID, sub.ID, model.LimitedQuota(5), 7, "job-credits")
	require.NoError(t, err)
	assert.Equal(t, 0, res.UsedFreeQuota)
	assert.Equal(t, 7, res.CreditsUsed)
	assert.Equal(t, 90, res.NewBalance)

	monthly, err := usage.MonthlyUsage(ctx, u.ID, sub.ID, startOfMonthUTC(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 15, monthly.TotalStocks)
	assert.Equal(t, 5, monthly.FreeQuotaUsed)
	assert.Equal(t, 10, monthly.CreditsUsed)

	// records under this subscription do not leak into another one's window
	other, err := usage.MonthlyUsage(ctx, u.ID, sub.ID+1, startOfMonthUTC(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 0, other.TotalStocks)
	assert.Equal(t, 0, other.FreeQuotaUsed)
}

func TestReserveUsageInsufficientLeavesNoTrace(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	u, sub := newTestAccount(t, pool)
	credits := NewCreditRepo(pool)
	usage := NewUsageRepo(pool)

	_, err := credits.GrantCredits(ctx, u.ID, sub.ID, 2, model.TxGrant, "seed")
	require.NoError(t, err)

	_, err = usage.ReserveUsage(ctx, u.ID, sub.ID, model.LimitedQuota(0), 3, "job-denied")
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	// neither the balance nor the usage ledger moved
	active, err := NewSubscriptionRepo(pool).GetActiveByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, active.CreditsBalance)

	monthly, err := usage.MonthlyUsage(ctx, u.ID, sub.ID, startOfMonthUTC(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 0, monthly.TotalStocks)
}
