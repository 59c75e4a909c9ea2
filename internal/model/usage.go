package model

import "time"

// UsageRecord is one append-only row per analysis batch, recording how the
// batch cost split between free quota and credits.
type UsageRecord struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	SubscriptionID int64     `db:"subscription_id" json:"subscription_id"`
	StockCount     int       `db:"stock_count" json:"stock_count"`
	FreeQuotaUsed  int       `db:"free_quota_used" json:"free_quota_used"`
	CreditsUsed    int       `db:"credits_used" json:"credits_used"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MonthlyUsage aggregates a subscription's usage records for the current
// calendar month.
type MonthlyUsage struct {
	TotalStocks   int `json:"total_stocks"`
	FreeQuotaUsed int `json:"free_quota_used"`
	CreditsUsed   int `json:"credits_used"`
}

// UsageReservation is the committed outcome of reserving a batch: how the
// cost decomposed and the credit balance after any debit.
type UsageReservation struct {
	UsedFreeQuota int `json:"used_free_quota"`
	CreditsUsed   int `json:"credits_used"`
	NewBalance    int `json:"new_balance"`
}
