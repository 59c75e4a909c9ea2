package model

import "time"

// Analysis job statuses.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// StockInfo is one row of an uploaded stock list.
type StockInfo struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// AnalysisJob is one queued batch of stock analyses.
type AnalysisJob struct {
	ID             string     `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	SubscriptionID int64      `db:"subscription_id" json:"subscription_id"`
	FileKey        string     `db:"file_key" json:"file_key"`
	FileName       string     `db:"file_name" json:"file_name"`
	StockCount     int        `db:"stock_count" json:"stock_count"`
	StocksDone     int        `db:"stocks_done" json:"stocks_done"`
	CreditsUsed    int        `db:"credits_used" json:"credits_used"`
	Status         string     `db:"status" json:"status"`
	ErrorDetails   *string    `db:"error_details" json:"error_details,omitempty"`
	SearchCount    int        `db:"search_count" json:"search_count"`
	TokenEstimate  int        `db:"token_estimate" json:"token_estimate"`
	DurationSecs   int        `db:"duration_secs" json:"duration_secs"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	StartedAt      *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt     *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// StockAnalysis is the per-stock catalyst analysis produced by the pipeline.
type StockAnalysis struct {
	ID                      int64     `db:"id" json:"-"`
	JobID                   string    `db:"job_id" json:"-"`
	Name                    string    `db:"name" json:"name"`
	Code                    string    `db:"code" json:"code"`
	Analysis                string    `db:"analysis" json:"analysis"`
	Catalysts               []string  `db:"catalysts" json:"catalysts"`
	ExpectedNews            []string  `db:"expected_news" json:"expectedNews"`
	BusinessInfo            string    `db:"business_info" json:"businessInfo"`
	OrderCertainty          int       `db:"order_certainty" json:"orderCertainty"`
	PerformanceContribution string    `db:"performance_contribution" json:"performanceContribution"`
	TechnicalBarriers       string    `db:"technical_barriers" json:"technicalBarriers"`
	ThemeRelevance          string    `db:"theme_relevance" json:"themeRelevance"`
	MarketPosition          string    `db:"market_position" json:"marketPosition"`
	IsCoreStock             bool      `db:"is_core_stock" json:"isCoreStock"`
	CatalystScore           int       `db:"catalyst_score" json:"catalystScore"`
	Sources                 []string  `db:"sources" json:"sources"`
	CreatedAt               time.Time `db:"created_at" json:"created_at"`
}
