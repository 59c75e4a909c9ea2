package model

import "time"

// Subscription statuses.
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// Subscription is a user's plan membership plus their spendable credit
// balance. CreditsBalance is the authoritative balance; the credit
// transaction ledger is the audit trail, and every mutation of the balance
// commits together with its ledger row.
type Subscription struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	PlanType       string     `db:"plan_type" json:"plan_type"`
	Status         string     `db:"status" json:"status"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	MonthlyQuota   Quota      `json:"-"`
	CreditsBalance int        `db:"credits_balance" json:"credits_balance"`
	// CreditsGranted is the lifetime sum of grants, kept for audit only.
	CreditsGranted       int        `db:"credits_granted" json:"credits_granted"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	StripeCustomerID     *string    `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}
