package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalyst/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmailTaken is returned when registering with an email that already has an account.
var ErrEmailTaken = errors.New("email_taken")

// ErrUserNotFound is returned when a user lookup matches no row.
var ErrUserNotFound = errors.New("user_not_found")

// UserRepository defines methods for accessing user accounts.
type UserRepository interface {
	// CreateWithSubscription atomically creates the user and their initial free-plan subscription.
	CreateWithSubscription(ctx context.Context, u *model.User) (*model.Subscription, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo creates a new UserRepository.
func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

// CreateWithSubscription atomically creates the user and their initial free-plan subscription.
// A user without a subscription row is never observable.
func (r *userRepo) CreateWithSubscription(ctx context.Context, u *model.User) (*model.Subscription, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("starting transaction for user creation: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const insertUserQ = `
        INSERT INTO users (email, name, password_hash, role)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at
    `
	err = tx.QueryRow(ctx, insertUserQ, u.Email, u.Name, u.PasswordHash, u.Role).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user %s: %w", u.Email, err)
	}

	quota := model.QuotaForPlan(model.PlanFree)
	endDate := time.Now().UTC().AddDate(0, 1, 0)
	const insertSubQ = `
        INSERT INTO subscriptions (user_id, plan_type, status, end_date, monthly_quota)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, start_date, created_at, updated_at
    `
	sub := &model.Subscription{
		UserID:       u.ID,
		PlanType:     model.PlanFree,
		Status:       model.SubscriptionActive,
		EndDate:      &endDate,
		MonthlyQuota: quota,
	}
	err = tx.QueryRow(ctx, insertSubQ, u.ID, sub.PlanType, sub.Status, endDate, quota.Stored()).
		Scan(&sub.ID, &sub.StartDate, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating subscription for user %d: %w", u.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing user creation for %s: %w", u.Email, err)
	}
	return sub, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `
        SELECT id, email, name, password_hash, role, created_at, updated_at
        FROM users
        WHERE email = $1
    `
	var u model.User
	err := r.pool.QueryRow(ctx, q, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching user by email: %w", err)
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const q = `
        SELECT id, email, name, password_hash, role, created_at, updated_at
        FROM users
        WHERE id = $1
    `
	var u model.User
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching user %d: %w", id, err)
	}
	return &u, nil
}
