package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// LedgerMetrics is returned by GET /v1/metrics/ledger.
type LedgerMetrics struct {
	Mutations       int64   `json:"mutations"`
	FailedMutations int64   `json:"failedMutations"`
	Conflicts       int64   `json:"conflicts"`
	StaleDiscards   int64   `json:"staleDiscards"`
	Resyncs         int64   `json:"resyncs"`
	ErrorRate       float64 `json:"errorRate"`
	CacheHitRate    float64 `json:"cacheHitRate"`
	BookVersion     uint64  `json:"bookVersion"`
	TripCount       int     `json:"tripCount"`
	Period          string  `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
