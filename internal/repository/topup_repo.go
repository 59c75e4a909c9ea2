package repository

import (
	"context"
	"errors"
	"fmt"

	"catalyst/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTopupNotFound is returned when no top-up request matches the id.
var ErrTopupNotFound = errors.New("topup_not_found")

// ErrTopupAlreadyReviewed is returned when approving or rejecting a request
// that already left the pending state.
var ErrTopupAlreadyReviewed = errors.New("topup_already_reviewed")

// TopupRepository manages manually reviewed top-up requests.
type TopupRepository interface {
	Create(ctx context.Context, t *model.TopupRequest) error
	GetByID(ctx context.Context, id int64) (*model.TopupRequest, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.TopupRequest, error)
	ListPending(ctx context.Context) ([]model.TopupRequest, error)
	// Approve flips a pending request to approved and grants its credits in one
	// transaction. Returns ErrTopupAlreadyReviewed if the request is no longer pending.
	Approve(ctx context.Context, id, adminID, subscriptionID int64, remark string) (newBalance int, err error)
	// Reject flips a pending request to rejected without touching the balance.
	Reject(ctx context.Context, id, adminID int64, remark string) error
}

type topupRepo struct {
	pool *pgxpool.Pool
}

// NewTopupRepo creates a new TopupRepository.
func NewTopupRepo(pool *pgxpool.Pool) TopupRepository {
	return &topupRepo{pool: pool}
}

func (r *topupRepo) Create(ctx context.Context, t *model.TopupRequest) error {
	const q = `
        INSERT INTO topup_requests (user_id, email, tier_id, tier_name, credits, price, receipt_file_key, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
        RETURNING id, status, created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q, t.UserID, t.Email, t.TierID, t.TierName, t.Credits, t.Price, t.ReceiptFileKey).
		Scan(&t.ID, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating topup request for user %d: %w", t.UserID, err)
	}
	return nil
}

const topupColumns = `
        id, user_id, email, tier_id, tier_name, credits, price,
        receipt_file_key, status, admin_id, admin_remark, created_at, updated_at
`

func scanTopup(row pgx.Row) (*model.TopupRequest, error) {
	var t model.TopupRequest
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Email,
		&t.TierID,
		&t.TierName,
		&t.Credits,
		&t.Price,
		&t.ReceiptFileKey,
		&t.Status,
		&t.AdminID,
		&t.AdminRemark,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *topupRepo) GetByID(ctx context.Context, id int64) (*model.TopupRequest, error) {
	const q = `SELECT ` + topupColumns + ` FROM topup_requests WHERE id = $1`
	t, err := scanTopup(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTopupNotFound
		}
		return nil, fmt.Errorf("fetching topup request %d: %w", id, err)
	}
	return t, nil
}

func (r *topupRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]model.TopupRequest, error) {
	const q = `
        SELECT ` + topupColumns + `
        FROM topup_requests
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing topup requests for user %d: %w", userID, err)
	}
	defer rows.Close()
	return collectTopups(rows)
}

func (r *topupRepo) ListPending(ctx context.Context) ([]model.TopupRequest, error) {
	const q = `
        SELECT ` + topupColumns + `
        FROM topup_requests
        WHERE status = 'pending'
        ORDER BY created_at ASC
    `
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing pending topup requests: %w", err)
	}
	defer rows.Close()
	return collectTopups(rows)
}

func collectTopups(rows pgx.Rows) ([]model.TopupRequest, error) {
	var out []model.TopupRequest
	for rows.Next() {
		t, err := scanTopup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning topup request: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating topup requests: %w", err)
	}
	return out, nil
}

func (r *topupRepo) Approve(ctx context.Context, id, adminID, subscriptionID int64, remark string) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("starting transaction for topup approval: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// The pending guard makes approved and rejected terminal states.
	// adminID 0 marks a one-time-link review; stored as NULL.
	const approveQ = `
        UPDATE topup_requests
        SET status = 'approved', admin_id = NULLIF($2, 0), admin_remark = $3, updated_at = NOW()
        WHERE id = $1
          AND status = 'pending'
        RETURNING user_id, credits, tier_name
    `
	var userID int64
	var credits int
	var tierName string
	err = tx.QueryRow(ctx, approveQ, id, adminID, remark).Scan(&userID, &credits, &tierName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := r.GetByID(ctx, id); err != nil {
				return 0, err
			}
			return 0, ErrTopupAlreadyReviewed
		}
		return 0, fmt.Errorf("approving topup request %d: %w", id, err)
	}

	desc := fmt.Sprintf("topup %s approved (request #%d)", tierName, id)
	newBalance, err := grantCreditsTx(ctx, tx, userID, subscriptionID, credits, model.TxGrant, desc)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing topup approval %d: %w", id, err)
	}
	return newBalance, nil
}

func (r *topupRepo) Reject(ctx context.Context, id, adminID int64, remark string) error {
	const q = `
        UPDATE topup_requests
        SET status = 'rejected', admin_id = NULLIF($2, 0), admin_remark = $3, updated_at = NOW()
        WHERE id = $1
          AND status = 'pending'
    `
	tag, err := r.pool.Exec(ctx, q, id, adminID, remark)
	if err != nil {
		return fmt.Errorf("rejecting topup request %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrTopupAlreadyReviewed
	}
	return nil
}
