package repository

import (
	"context"
	"fmt"

	"catalyst/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQRepository stores undeliverable push messages for inspection.
type DLQRepository interface {
	Create(ctx context.Context, message *model.DeadLetterMessage) error
}

type dlqRepo struct {
	pool *pgxpool.Pool
}

// NewDLQRepo creates a new DLQRepository.
func NewDLQRepo(pool *pgxpool.Pool) DLQRepository {
	return &dlqRepo{pool: pool}
}

func (r *dlqRepo) Create(ctx context.Context, message *model.DeadLetterMessage) error {
	const q = `
        INSERT INTO dead_letter_messages (subscription_name, message_id, payload, attributes, status)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := r.pool.Exec(ctx, q,
		message.SubscriptionName,
		message.MessageID,
		message.Payload,
		message.Attributes,
		message.Status,
	)
	if err != nil {
		return fmt.Errorf("storing dead letter message %s: %w", message.MessageID, err)
	}
	return nil
}
