package dto

// TopupSubmitRequest creates a manual top-up request.
type TopupSubmitRequest struct {
	TierID         string  `json:"tier_id" validate:"required"`
	ReceiptFileKey *string `json:"receipt_file_key,omitempty"`
}

// TopupReviewRequest approves or rejects a pending top-up request.
type TopupReviewRequest struct {
	Remark string `json:"remark" validate:"max=500"`
}
