package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotaStoredRoundtrip(t *testing.T) {
	q := LimitedQuota(5)
	assert.False(t, q.Unlimited())
	assert.Equal(t, 5, q.Limit())
	assert.Equal(t, 5, q.Stored())
	assert.Equal(t, q, QuotaFromStored(q.Stored()))

	u := UnlimitedQuota()
	assert.True(t, u.Unlimited())
	assert.Equal(t, UnlimitedQuotaSentinel, u.Stored())
	assert.True(t, QuotaFromStored(u.Stored()).Unlimited())
}

func TestQuotaFromStoredNegativeIsUnlimited(t *testing.T) {
	assert.True(t, QuotaFromStored(-1).Unlimited())
	assert.True(t, QuotaFromStored(-42).Unlimited())
	assert.False(t, QuotaFromStored(0).Unlimited())
	assert.Equal(t, 0, QuotaFromStored(0).Limit())
}

func TestQuotaForPlan(t *testing.T) {
	assert.Equal(t, 5, QuotaForPlan(PlanFree).Limit())
	assert.Equal(t, 50, QuotaForPlan(PlanBasic).Limit())
	assert.Equal(t, 200, QuotaForPlan(PlanPro).Limit())
	assert.True(t, QuotaForPlan(PlanEnterprise).Unlimited())

	// Unknown plans fall back to free.
	assert.Equal(t, QuotaForPlan(PlanFree), QuotaForPlan("mystery"))
}
