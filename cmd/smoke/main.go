package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/cachegate/internal/smoke"
	"github.com/okian/cachegate/pkg/logger"
)

// Default configuration constants.
const (
	defaultTopN        = 10
	defaultRounds      = 5
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:8080", "Base URL of the gateway")
		org     = flag.String("org", "Netflix", "Organization the gateway is configured for")
		topN    = flag.Int("top", defaultTopN, "N used for the view queries")
		rounds  = flag.Int("rounds", defaultRounds, "How many times the plan is replayed")
		workers = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent requests")
		timeout = flag.Duration("timeout", defaultTimeout, "Per-request timeout")
		report  = flag.String("report", "", "JSON report file (default: smoke_report_TIMESTAMP.json)")
		verbose = flag.Bool("verbose", false, "Log every request")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		smoke.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if *report == "" {
		*report = "smoke_report_" + time.Now().Format("20060102_150405") + ".json"
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &smoke.Config{
		BaseURL: *baseURL,
		Org:     *org,
		TopN:    *topN,
		Rounds:  *rounds,
		Workers: *workers,
		Timeout: *timeout,
		Report:  *report,
		Verbose: *verbose,
	}
	if _, err := smoke.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("smoke run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
