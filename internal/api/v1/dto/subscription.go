package dto

import "time"

// SubscriptionResponse is the user's plan and credit position.
type SubscriptionResponse struct {
	ID             int64      `json:"id"`
	PlanType       string     `json:"plan_type"`
	Status         string     `json:"status"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	MonthlyQuota   int        `json:"monthly_quota"`
	Unlimited      bool       `json:"unlimited"`
	CreditsBalance int        `json:"credits_balance"`
}

// UsageResponse is the current month's quota consumption.
type UsageResponse struct {
	PlanType       string `json:"plan_type"`
	MonthlyQuota   int    `json:"monthly_quota"`
	Unlimited      bool   `json:"unlimited"`
	FreeQuotaUsed  int    `json:"free_quota_used"`
	FreeQuotaLeft  int    `json:"free_quota_left"`
	CreditsBalance int    `json:"credits_balance"`
	TotalStocks    int    `json:"total_stocks"`
	CreditsUsed    int    `json:"credits_used"`
}
