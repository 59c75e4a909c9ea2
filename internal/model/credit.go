package model

import "time"

// Credit transaction types.
const (
	TxGrant   = "grant"
	TxConsume = "consume"
	TxRefund  = "refund"
)

// Credit transaction statuses. Pending rows are purchases awaiting payment
// confirmation; only completed rows count toward the balance.
const (
	TxPending   = "pending"
	TxCompleted = "completed"
)

// CreditTransaction is an append-only ledger line. Amount is signed (grants
// and refunds positive, consumption negative) and Balance is the balance
// snapshot after the transaction committed.
type CreditTransaction struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	SubscriptionID int64      `db:"subscription_id" json:"subscription_id"`
	Amount         int        `db:"amount" json:"amount"`
	Balance        int        `db:"balance" json:"balance"`
	Type           string     `db:"tx_type" json:"type"`
	Description    string     `db:"description" json:"description"`
	OrderNo        *string    `db:"order_no" json:"order_no,omitempty"`
	Status         string     `db:"status" json:"status"`
	PaymentMethod  *string    `db:"payment_method" json:"payment_method,omitempty"`
	TradeNo        *string    `db:"trade_no" json:"trade_no,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// CreditTier is a purchasable credit pack.
type CreditTier struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Credits   int     `json:"credits"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	UnitPrice float64 `json:"unit_price"`
	Popular   bool    `json:"popular"`
}

// CreditTiers is the purchasable credit-pack catalog.
var CreditTiers = []CreditTier{
	{ID: "credits_10", Name: "Starter Pack", Credits: 10, Price: 9.9, Currency: "CNY", UnitPrice: 0.99},
	{ID: "credits_50", Name: "Value Pack", Credits: 50, Price: 39.9, Currency: "CNY", UnitPrice: 0.798, Popular: true},
	{ID: "credits_100", Name: "Plus Pack", Credits: 100, Price: 69.9, Currency: "CNY", UnitPrice: 0.699},
	{ID: "credits_200", Name: "Pro Pack", Credits: 200, Price: 129.9, Currency: "CNY", UnitPrice: 0.65},
	{ID: "credits_500", Name: "Max Pack", Credits: 500, Price: 299.9, Currency: "CNY", UnitPrice: 0.6},
}

// TierByID looks up a purchasable credit tier.
func TierByID(id string) (CreditTier, bool) {
	for _, t := range CreditTiers {
		if t.ID == id {
			return t, true
		}
	}
	return CreditTier{}, false
}
