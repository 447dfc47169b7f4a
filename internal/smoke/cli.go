package smoke

import "os"

// ShowHelp prints usage information for the smoke tool.
func ShowHelp() {
	os.Stdout.WriteString(`cachegate smoke tool
====================

Hits a running gateway concurrently and checks every route it serves.

Usage:
  go run ./cmd/smoke [options]

Options:
  -url string
        Base URL of the gateway (default "http://localhost:8080")
  -org string
        Organization the gateway is configured for (default "Netflix")
  -top int
        N used for the /view/bottom queries (default 10)
  -rounds int
        How many times the plan is replayed (default 5)
  -workers int
        Concurrent requests (default CPU cores * 2)
  -timeout duration
        Per-request timeout (default 30s)
  -report string
        JSON report file (default: smoke_report_TIMESTAMP.json)
  -verbose
        Log every request
  -help
        Show this help message

Examples:
  go run ./cmd/smoke -url http://localhost:8080 -rounds 20 -workers 16
`)
}
