package models

import "time"

// CycleRecord is one row in the analysis-cycle ledger.
type CycleRecord struct {
	ID          int64     `json:"id"`
	CycleID     string    `json:"cycle_id"`
	Fingerprint string    `json:"fingerprint"`
	Outcome     string    `json:"outcome"`
	Detections  int       `json:"detections"`
	LatencyMs   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// CycleSummary aggregates ledger rows by outcome.
type CycleSummary struct {
	Outcome      string  `json:"outcome"`
	Count        int64   `json:"count"`
	Detections   int64   `json:"detections"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}
