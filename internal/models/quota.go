package models

import "time"

// APICallRecord is one remembered call against the rate-limited upstream API.
type APICallRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Query     string    `json:"query"`
}

// QuotaState is the persisted quota ledger. LastResetDate is a calendar date
// in "2006-01-02" form; usage resets lazily when it no longer matches today.
type QuotaState struct {
	DailyUsage    int             `json:"daily_usage"`
	LastResetDate string          `json:"last_reset_date"`
	CallHistory   []APICallRecord `json:"call_history"`
}

// QuotaInfo is a derived view of current quota consumption.
type QuotaInfo struct {
	Used       int    `json:"used"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	Percentage string `json:"percentage"`
	Status     string `json:"status"`
}

// DailyStats summarizes the retained call history, not lifetime totals.
type DailyStats struct {
	TotalCalls  int     `json:"total_calls"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}
