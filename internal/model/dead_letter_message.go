package model

import "time"

// DeadLetterMessage is an undeliverable usage-event delivery captured for
// manual inspection and replay.
type DeadLetterMessage struct {
	ID               string    `db:"id"`
	SubscriptionName string    `db:"subscription_name"`
	MessageID        string    `db:"message_id"`
	Payload          string    `db:"payload"`    // JSON string
	Attributes       *string   `db:"attributes"` // JSON string, nullable
	Status           string    `db:"status"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}
