package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalyst/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInsufficientCredits is returned when a reservation needs more credits than the balance holds.
var ErrInsufficientCredits = errors.New("insufficient_credits")

// UsageRepository tracks analysis usage against free quota and credit balance.
type UsageRepository interface {
	// MonthlyUsage aggregates usage under one subscription since the given
	// instant. Scoping by subscription keeps a retired plan's records from
	// counting against a newer subscription's free quota.
	MonthlyUsage(ctx context.Context, userID, subscriptionID int64, since time.Time) (*model.MonthlyUsage, error)
	// ReserveUsage atomically consumes free quota and debits credits for a pending
	// analysis of stockCount stocks. The free-quota split is recomputed inside the
	// transaction so concurrent reservations cannot overspend. Returns
	// ErrInsufficientCredits and leaves no trace if the balance cannot cover the
	// portion beyond the free quota.
	ReserveUsage(ctx context.Context, userID, subscriptionID int64, quota model.Quota, stockCount int, jobID string) (*model.UsageReservation, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

// MonthlyUsage aggregates usage under one subscription since the given instant.
func (r *usageRepo) MonthlyUsage(ctx context.Context, userID, subscriptionID int64, since time.Time) (*model.MonthlyUsage, error) {
	const q = `
        SELECT COALESCE(SUM(stock_count), 0),
               COALESCE(SUM(free_quota_used), 0),
               COALESCE(SUM(credits_used), 0)
        FROM usage_records
        WHERE user_id = $1
          AND subscription_id = $2
          AND created_at >= $3
    `
	var u model.MonthlyUsage
	if err := r.pool.QueryRow(ctx, q, userID, subscriptionID, since).Scan(&u.TotalStocks, &u.FreeQuotaUsed, &u.CreditsUsed); err != nil {
		return nil, fmt.Errorf("aggregating usage for user %d: %w", userID, err)
	}
	return &u, nil
}

func (r *usageRepo) ReserveUsage(ctx context.Context, userID, subscriptionID int64, quota model.Quota, stockCount int, jobID string) (*model.UsageReservation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("starting transaction for usage reservation: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	freeUsed := stockCount
	creditsNeeded := 0
	if !quota.Unlimited() {
		monthStart := startOfMonthUTC(time.Now())
		var usedThisMonth int
		const usedQ = `
            SELECT COALESCE(SUM(free_quota_used), 0)
            FROM usage_records
            WHERE user_id = $1
              AND subscription_id = $2
              AND created_at >= $3
        `
		if err := tx.QueryRow(ctx, usedQ, userID, subscriptionID, monthStart).Scan(&usedThisMonth); err != nil {
			return nil, fmt.Errorf("counting free quota for user %d: %w", userID, err)
		}
		remaining := quota.Limit() - usedThisMonth
		if remaining < 0 {
			remaining = 0
		}
		if remaining < stockCount {
			freeUsed = remaining
		}
		creditsNeeded = stockCount - freeUsed
	}

	res := &model.UsageReservation{UsedFreeQuota: freeUsed, CreditsUsed: creditsNeeded}

	if creditsNeeded > 0 {
		const debitQ = `
            UPDATE subscriptions
            SET credits_balance = credits_balance - $1, updated_at = NOW()
            WHERE id = $2
              AND credits_balance >= $1
            RETURNING credits_balance
        `
		err := tx.QueryRow(ctx, debitQ, creditsNeeded, subscriptionID).Scan(&res.NewBalance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrInsufficientCredits
			}
			return nil, fmt.Errorf("debiting %d credits from subscription %d: %w", creditsNeeded, subscriptionID, err)
		}
	} else {
		const balanceQ = `SELECT credits_balance FROM subscriptions WHERE id = $1`
		if err := tx.QueryRow(ctx, balanceQ, subscriptionID).Scan(&res.NewBalance); err != nil {
			return nil, fmt.Errorf("reading balance for subscription %d: %w", subscriptionID, err)
		}
	}

	const recordQ = `
        INSERT INTO usage_records (user_id, subscription_id, stock_count, free_quota_used, credits_used, job_id)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	if _, err := tx.Exec(ctx, recordQ, userID, subscriptionID, stockCount, freeUsed, creditsNeeded, jobID); err != nil {
		return nil, fmt.Errorf("recording usage for user %d: %w", userID, err)
	}

	if creditsNeeded > 0 {
		const ledgerQ = `
            INSERT INTO credit_transactions (user_id, subscription_id, tx_type, amount, balance, status, description)
            VALUES ($1, $2, $3, $4, $5, 'completed', $6)
        `
		desc := fmt.Sprintf("analysis of %d stocks (%d beyond free quota)", stockCount, creditsNeeded)
		if _, err := tx.Exec(ctx, ledgerQ, userID, subscriptionID, model.TxConsume, -creditsNeeded, res.NewBalance, desc); err != nil {
			return nil, fmt.Errorf("recording consume transaction for user %d: %w", userID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing usage reservation for user %d: %w", userID, err)
	}
	return res, nil
}

// startOfMonthUTC returns the first instant of the month containing t, in UTC.
func startOfMonthUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
