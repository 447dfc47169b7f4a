// Package smoke exercises a running gateway over HTTP and reports what it
// saw: every cached route, every view, the raw proxy and the health check.
package smoke

import "time"

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL string        // Base URL of the gateway
	Org     string        // Organization the gateway is configured for
	TopN    int           // N used for the view queries
	Rounds  int           // How many times the full plan is replayed
	Workers int           // Concurrent requests in flight
	Timeout time.Duration // Per-request timeout
	Report  string        // Output file for the JSON report
	Verbose bool          // Log every request
}

// Result is the outcome of one request.
type Result struct {
	Check     string        `json:"check"`
	Path      string        `json:"path"`
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration_ns"`
	RequestID string        `json:"request_id"`
	Error     string        `json:"error,omitempty"`
}

// Report summarizes a run.
type Report struct {
	BaseURL   string        `json:"base_url"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration_ns"`
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Results   []Result      `json:"results"`
}
