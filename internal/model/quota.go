package model

// Quota is a monthly analysis allowance. It is either a finite limit or
// unlimited; call sites must branch on Unlimited() instead of comparing the
// raw limit, so the unlimited case can never leak into arithmetic.
type Quota struct {
	limit     int
	unlimited bool
}

// UnlimitedQuotaSentinel is the value stored in subscriptions.monthly_quota
// for an unlimited plan.
const UnlimitedQuotaSentinel = -1

// LimitedQuota returns a quota of n analyses per calendar month.
func LimitedQuota(n int) Quota {
	return Quota{limit: n}
}

// UnlimitedQuota returns a quota with no monthly cap.
func UnlimitedQuota() Quota {
	return Quota{unlimited: true}
}

// QuotaFromStored converts the persisted monthly_quota column value into a
// Quota. Any negative value is treated as unlimited.
func QuotaFromStored(v int) Quota {
	if v < 0 {
		return UnlimitedQuota()
	}
	return LimitedQuota(v)
}

// Stored returns the column representation of the quota.
func (q Quota) Stored() int {
	if q.unlimited {
		return UnlimitedQuotaSentinel
	}
	return q.limit
}

// Unlimited reports whether the quota has no monthly cap.
func (q Quota) Unlimited() bool { return q.unlimited }

// Limit returns the monthly cap. Only meaningful when Unlimited() is false.
func (q Quota) Limit() int { return q.limit }

// Plan types mirror the subscriptions.plan_type column.
const (
	PlanFree       = "free"
	PlanBasic      = "basic"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// PlanQuotas maps plan types to their monthly free-analysis allowance.
// Unknown plans fall back to the free tier.
var PlanQuotas = map[string]Quota{
	PlanFree:       LimitedQuota(5),
	PlanBasic:      LimitedQuota(50),
	PlanPro:        LimitedQuota(200),
	PlanEnterprise: UnlimitedQuota(),
}

// QuotaForPlan returns the monthly quota for a plan type, defaulting to the
// free tier for unknown plans.
func QuotaForPlan(planType string) Quota {
	if q, ok := PlanQuotas[planType]; ok {
		return q
	}
	return PlanQuotas[PlanFree]
}

// QuotaDecision is the outcome of evaluating whether a batch of n analyses
// is permitted for a subscription.
type QuotaDecision struct {
	Allowed bool `json:"allowed"`
	// FreeQuotaUsed is how many of the requested analyses are covered by the
	// remaining free monthly quota.
	FreeQuotaUsed int `json:"free_quota_used"`
	// CreditsNeeded is how many credits the batch will consume (1 per stock
	// beyond the free quota).
	CreditsNeeded int `json:"credits_needed"`
	// CreditsShort is how many additional credits the user must acquire
	// before the batch would be allowed. Zero when Allowed.
	CreditsShort int    `json:"credits_short"`
	Reason       string `json:"reason,omitempty"`
}
