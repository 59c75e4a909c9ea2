package repository

import (
	"context"
	"errors"
	"fmt"

	"catalyst/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoActiveSubscription is returned when the user has no usable subscription.
var ErrNoActiveSubscription = errors.New("no_active_subscription")

// SubscriptionRepository defines methods for accessing subscription data.
type SubscriptionRepository interface {
	// GetActiveByUserID returns the user's active, unexpired subscription.
	GetActiveByUserID(ctx context.Context, userID int64) (*model.Subscription, error)
	GetByUserID(ctx context.Context, userID int64) (*model.Subscription, error)
	UpdateStripeCustomerID(ctx context.Context, subscriptionID int64, customerID string) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `
        id, user_id, plan_type, status, start_date, end_date,
        monthly_quota, credits_balance, credits_granted,
        stripe_subscription_id, stripe_customer_id, created_at, updated_at
`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	var storedQuota int
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.PlanType,
		&s.Status,
		&s.StartDate,
		&s.EndDate,
		&storedQuota,
		&s.CreditsBalance,
		&s.CreditsGranted,
		&s.StripeSubscriptionID,
		&s.StripeCustomerID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.MonthlyQuota = model.QuotaFromStored(storedQuota)
	return &s, nil
}

// GetActiveByUserID returns the user's active, unexpired subscription.
func (r *subscriptionRepo) GetActiveByUserID(ctx context.Context, userID int64) (*model.Subscription, error) {
	const q = `
        SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1
          AND status = 'active'
          AND (end_date IS NULL OR end_date > NOW())
        ORDER BY created_at DESC
        LIMIT 1
    `
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("fetching active subscription for user %d: %w", userID, err)
	}
	return s, nil
}

// GetByUserID returns the user's most recent subscription regardless of status.
func (r *subscriptionRepo) GetByUserID(ctx context.Context, userID int64) (*model.Subscription, error) {
	const q = `
        SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT 1
    `
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("fetching subscription for user %d: %w", userID, err)
	}
	return s, nil
}

func (r *subscriptionRepo) UpdateStripeCustomerID(ctx context.Context, subscriptionID int64, customerID string) error {
	const q = `
        UPDATE subscriptions
        SET stripe_customer_id = $2, updated_at = NOW()
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, subscriptionID, customerID); err != nil {
		return fmt.Errorf("updating stripe customer for subscription %d: %w", subscriptionID, err)
	}
	return nil
}
