package repository

import (
	"context"
	"errors"
	"fmt"

	"catalyst/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPurchaseNotFound is returned when no pending purchase matches the order number.
var ErrPurchaseNotFound = errors.New("purchase_not_found")

// ErrPurchaseAlreadyCompleted is returned when a purchase confirmation arrives twice.
var ErrPurchaseAlreadyCompleted = errors.New("purchase_already_completed")

// ErrInvalidGrantAmount is returned for zero or negative grant amounts.
var ErrInvalidGrantAmount = errors.New("invalid_grant_amount")

// CreditRepository manages the credit ledger and purchase lifecycle.
type CreditRepository interface {
	// GrantCredits atomically increases the balance and records a ledger entry.
	GrantCredits(ctx context.Context, userID, subscriptionID int64, amount int, txType, description string) (newBalance int, err error)
	// CreatePendingPurchase records a not-yet-paid credit purchase keyed by order number.
	CreatePendingPurchase(ctx context.Context, userID, subscriptionID int64, orderNo string, tier *model.CreditTier) error
	// CompletePurchase marks the purchase paid and grants its credits. Calling it
	// again for the same order is a no-op returning ErrPurchaseAlreadyCompleted.
	CompletePurchase(ctx context.Context, orderNo, paymentMethod, tradeNo string) (newBalance int, err error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.CreditTransaction, error)
}

type creditRepo struct {
	pool *pgxpool.Pool
}

// NewCreditRepo creates a new CreditRepository.
func NewCreditRepo(pool *pgxpool.Pool) CreditRepository {
	return &creditRepo{pool: pool}
}

// GrantCredits atomically increases the balance and records a ledger entry.
// The balance mutation and the ledger row commit or roll back together.
func (r *creditRepo) GrantCredits(ctx context.Context, userID, subscriptionID int64, amount int, txType, description string) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("starting transaction for credit grant: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	newBalance, err := grantCreditsTx(ctx, tx, userID, subscriptionID, amount, txType, description)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing credit grant for user %d: %w", userID, err)
	}
	return newBalance, nil
}

// grantCreditsTx applies a grant inside an existing transaction so callers can
// compose it with their own state changes.
func grantCreditsTx(ctx context.Context, tx pgx.Tx, userID, subscriptionID int64, amount int, txType, description string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidGrantAmount
	}
	// A refund returns previously consumed credits; only true grants count
	// toward the lifetime credits_granted total.
	granted := amount
	if txType == model.TxRefund {
		granted = 0
	}
	const updateQ = `
        UPDATE subscriptions
        SET credits_balance = credits_balance + $1,
            credits_granted = credits_granted + $2,
            updated_at = NOW()
        WHERE id = $3
        RETURNING credits_balance
    `
	var newBalance int
	if err := tx.QueryRow(ctx, updateQ, amount, granted, subscriptionID).Scan(&newBalance); err != nil {
		return 0, fmt.Errorf("granting %d credits to subscription %d: %w", amount, subscriptionID, err)
	}

	const ledgerQ = `
        INSERT INTO credit_transactions (user_id, subscription_id, tx_type, amount, balance, status, description)
        VALUES ($1, $2, $3, $4, $5, 'completed', $6)
    `
	if _, err := tx.Exec(ctx, ledgerQ, userID, subscriptionID, txType, amount, newBalance, description); err != nil {
		return 0, fmt.Errorf("recording grant transaction for user %d: %w", userID, err)
	}
	return newBalance, nil
}

// CreatePendingPurchase records a not-yet-paid credit purchase keyed by order number.
func (r *creditRepo) CreatePendingPurchase(ctx context.Context, userID, subscriptionID int64, orderNo string, tier *model.CreditTier) error {
	const q = `
        INSERT INTO credit_transactions (user_id, subscription_id, tx_type, amount, balance, order_no, status, description)
        VALUES ($1, $2, $3, $4, 0, $5, 'pending', $6)
    `
	desc := fmt.Sprintf("purchase %s (%d credits)", tier.Name, tier.Credits)
	if _, err := r.pool.Exec(ctx, q, userID, subscriptionID, model.TxGrant, tier.Credits, orderNo, desc); err != nil {
		return fmt.Errorf("creating pending purchase %s for user %d: %w", orderNo, userID, err)
	}
	return nil
}

func (r *creditRepo) CompletePurchase(ctx context.Context, orderNo, paymentMethod, tradeNo string) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("starting transaction for purchase completion: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// The pending-status guard makes repeated confirmations harmless.
	const completeQ = `
        UPDATE credit_transactions
        SET status = 'completed',
            payment_method = $2,
            trade_no = $3,
            completed_at = NOW()
        WHERE order_no = $1
          AND status = 'pending'
        RETURNING user_id, subscription_id, amount
    `
	var userID, subscriptionID int64
	var amount int
	err = tx.QueryRow(ctx, completeQ, orderNo, paymentMethod, tradeNo).Scan(&userID, &subscriptionID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			const existsQ = `SELECT status FROM credit_transactions WHERE order_no = $1`
			var status string
			if err := r.pool.QueryRow(ctx, existsQ, orderNo).Scan(&status); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return 0, ErrPurchaseNotFound
				}
				return 0, fmt.Errorf("checking purchase %s: %w", orderNo, err)
			}
			return 0, ErrPurchaseAlreadyCompleted
		}
		return 0, fmt.Errorf("completing purchase %s: %w", orderNo, err)
	}

	const updateQ = `
        UPDATE subscriptions
        SET credits_balance = credits_balance + $1,
            credits_granted = credits_granted + $1,
            updated_at = NOW()
        WHERE id = $2
        RETURNING credits_balance
    `
	var newBalance int
	if err := tx.QueryRow(ctx, updateQ, amount, subscriptionID).Scan(&newBalance); err != nil {
		return 0, fmt.Errorf("granting purchased credits for order %s: %w", orderNo, err)
	}

	const balanceQ = `UPDATE credit_transactions SET balance = $2 WHERE order_no = $1`
	if _, err := tx.Exec(ctx, balanceQ, orderNo, newBalance); err != nil {
		return 0, fmt.Errorf("snapshotting balance for order %s: %w", orderNo, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing purchase %s: %w", orderNo, err)
	}
	return newBalance, nil
}

func (r *creditRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]model.CreditTransaction, error) {
	const q = `
        SELECT id, user_id, subscription_id, tx_type, amount, balance, description,
               order_no, status, payment_method, trade_no, completed_at, created_at
        FROM credit_transactions
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var txs []model.CreditTransaction
	for rows.Next() {
		var t model.CreditTransaction
		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.SubscriptionID,
			&t.Type,
			&t.Amount,
			&t.Balance,
			&t.Description,
			&t.OrderNo,
			&t.Status,
			&t.PaymentMethod,
			&t.TradeNo,
			&t.CompletedAt,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions for user %d: %w", userID, err)
	}
	return txs, nil
}
