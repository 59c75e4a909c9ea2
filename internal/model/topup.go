package model

import "time"

// Top-up request statuses. Pending requests transition once, to approved or
// rejected, and are terminal after that.
const (
	TopupPending  = "pending"
	TopupApproved = "approved"
	TopupRejected = "rejected"
)

// TopupRequest is a user-submitted, human-reviewed request to add credits
// backed by an off-platform payment receipt.
type TopupRequest struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Email          string    `db:"email" json:"email"`
	TierID         string    `db:"tier_id" json:"tier_id"`
	TierName       string    `db:"tier_name" json:"tier_name"`
	Credits        int       `db:"credits" json:"credits"`
	Price          float64   `db:"price" json:"price"`
	ReceiptFileKey *string   `db:"receipt_file_key" json:"receipt_file_key,omitempty"`
	Status         string    `db:"status" json:"status"`
	AdminID        *int64    `db:"admin_id" json:"admin_id,omitempty"`
	AdminRemark    *string   `db:"admin_remark" json:"admin_remark,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
