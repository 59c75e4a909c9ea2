package dto

// CheckoutRequest starts a Stripe checkout for a credit pack.
type CheckoutRequest struct {
	TierID string `json:"tier_id" validate:"required"`
}

// CheckoutResponse returns the hosted checkout URL.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// GrantRequest is an admin credit adjustment, addressed by user id or email.
type GrantRequest struct {
	UserID      int64  `json:"user_id" validate:"required_without=Email"`
	Email       string `json:"email" validate:"omitempty,email"`
	Amount      int    `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=500"`
}

// GrantResponse reports the balance after an admin grant.
type GrantResponse struct {
	NewBalance int `json:"new_balance"`
}
