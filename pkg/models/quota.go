package models

import "time"

// QuotaStatus shows consumed calls against the period limit.
type QuotaStatus struct {
	Limit       int       `json:"limit"`
	Consumed    int       `json:"consumed"`
	Remaining   int       `json:"remaining"`
	PeriodStart time.Time `json:"period_start"`
}
