package smoke

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	directoryPermission = 0750
	requestIDHeader     = "X-Request-ID"
)

// Run checks health, replays the plan cfg.Rounds times with cfg.Workers
// requests in flight, writes the report and fails if any check failed.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	log := logger.Get().Named("smoke")
	client := &http.Client{Timeout: cfg.Timeout}
	plan := Plan(cfg.Org, cfg.TopN)

	log.Info(ctx, "starting smoke run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("org", cfg.Org),
		logger.Int("checks", len(plan)),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers),
	)

	report := &Report{BaseURL: cfg.BaseURL, StartTime: time.Now()}

	health := execute(ctx, client, cfg.BaseURL, plan[0])
	if health.Error != "" {
		return nil, errors.Newf(errors.CodeUnavailable, "gateway not healthy: %s", health.Error)
	}

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(plan)*cfg.Rounds)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for round := 0; round < cfg.Rounds; round++ {
		for _, check := range plan {
			g.Go(func() error {
				res := execute(gctx, client, cfg.BaseURL, check)
				if cfg.Verbose || res.Error != "" {
					log.Info(gctx, "check done",
						logger.String("check", res.Check),
						logger.Int("status", res.Status),
						logger.Duration("took", res.Duration),
						logger.String("request_id", res.RequestID),
						logger.String("error", res.Error),
					)
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	report.Results = results
	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	report.Total = len(results)
	for _, r := range results {
		if r.Error == "" {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if cfg.Report != "" {
		if err := writeReport(cfg.Report, report); err != nil {
			log.Warn(ctx, "failed to write report", logger.Error(err))
		} else {
			log.Info(ctx, "report written", logger.String("file", cfg.Report))
		}
	}

	log.Info(ctx, "smoke run finished",
		logger.Int("total", report.Total),
		logger.Int("passed", report.Passed),
		logger.Int("failed", report.Failed),
		logger.Duration("duration", report.Duration),
	)
	if report.Failed > 0 {
		return report, errors.Newf(errors.CodeSchemaFailed, "%d of %d checks failed", report.Failed, report.Total)
	}
	return report, nil
}

func execute(ctx context.Context, client *http.Client, baseURL string, check Check) Result {
	res := Result{Check: check.Name, Path: check.Path, RequestID: uuid.NewString()}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+check.Path, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set(requestIDHeader, res.RequestID)

	resp, err := client.Do(req)
	if err != nil {
		res.Error = err.Error()
		res.Duration = time.Since(start)
		return res
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	res.Status = resp.StatusCode
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if err := check.Validate(resp.StatusCode, resp.Header.Get("Content-Type"), body); err != nil {
		res.Error = err.Error()
	}
	return res
}

func writeReport(filename string, report *Report) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "create report directory")
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode report")
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "write report")
	}
	return nil
}
