package models

import "github.com/use-agent/pagequery/query"

// QueryResponse is the response for POST /api/v1/query.
type QueryResponse struct {
	// Success indicates whether the pipeline ran to completion.
	Success bool `json:"success"`

	// Records is the ordered result set, one record per scope root.
	Records []query.Record `json:"records"`

	// Count is len(Records), for convenience.
	Count int `json:"count"`

	// Driver names the driver that ran the pipeline: "browser" or "static".
	Driver string `json:"driver,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo provides duration breakdowns for the operation.
type TimingInfo struct {
	// TotalMs is the end-to-end request duration.
	TotalMs int64 `json:"total_ms"`

	// RunMs is the pipeline replay duration (navigation + extraction).
	RunMs int64 `json:"run_ms,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	PoolStats any    `json:"pool_stats,omitempty"`
	Version   string `json:"version"`
}
