package model

import "time"

// AnalysisStat is one completed analysis run, recorded for reporting.
type AnalysisStat struct {
	ID            int64     `db:"id" json:"id"`
	FileName      string    `db:"file_name" json:"file_name"`
	StockCount    int       `db:"stock_count" json:"stock_count"`
	SearchCount   int       `db:"search_count" json:"search_count"`
	TokenEstimate int       `db:"token_estimate" json:"token_estimate"`
	DurationSecs  int       `db:"duration_secs" json:"duration_secs"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// DailySummary is the per-day usage rollup.
type DailySummary struct {
	Date          string `db:"date" json:"date"`
	TotalAnalyses int    `db:"total_analyses" json:"total_analyses"`
	TotalStocks   int    `db:"total_stocks" json:"total_stocks"`
	TotalTokens   int    `db:"total_tokens" json:"total_tokens"`
}

// StatsOverview is the admin stats endpoint payload.
type StatsOverview struct {
	TotalAnalyses int            `json:"total_analyses"`
	TotalStocks   int            `json:"total_stocks"`
	TotalTokens   int            `json:"total_tokens"`
	Daily         []DailySummary `json:"daily"`
}
