package dto

// QuotaCheckRequest asks whether a batch of the given size would be allowed.
type QuotaCheckRequest struct {
	StockCount int `json:"stock_count" validate:"required,min=1"`
}

// JobProgressEvent is one server-sent event on the job progress stream.
type JobProgressEvent struct {
	Type       string `json:"type"` // progress, completed, failed
	Status     string `json:"status"`
	StocksDone int    `json:"stocks_done"`
	StockCount int    `json:"stock_count"`
	Message    string `json:"message,omitempty"`
}
