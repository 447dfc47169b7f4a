// Package upstream fetches single resources from the GitHub REST API and
// reports pagination continuations.
package upstream

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v67/github"
	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/pkg/logger"
	"github.com/okian/cachegate/pkg/metrics"
	"github.com/okian/cachegate/pkg/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "cachegate/1"
)

// Request names one upstream resource.
type Request struct {
	// Path is relative to the base URL and may carry a query.
	Path string
	// SetKey, when set, marks a listing fill; a next page found in the
	// reply is reported against this key.
	SetKey string
}

// Response is a successful upstream reply.
type Response struct {
	Body   []byte
	Status int
	// Next is the continuation path announced by the Link header, if any.
	Next string
}

// ContinuationFunc receives the next page of a listing fill. It runs on
// its own goroutine.
type ContinuationFunc func(setKey, next string)

// Fetcher is what the rest of the service needs from upstream.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// Client is a Fetcher backed by go-github.
type Client struct {
	gh        *github.Client
	base      *url.URL
	transport http.RoundTripper
	userAgent string
	timeout   time.Duration
	limiter   rateLimiter
	onNext    ContinuationFunc
	logger    logger.Logger
}

type rateLimiter interface {
	Wait(ctx context.Context) error
}

// New builds a client for baseURL authenticating with token. Connections
// are not reused between calls.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, errors.Wrapf(ErrBaseURL, errors.CodeInvalidConfig, "%s: %q", ErrBaseURL.Message(), baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		base:      base,
		transport: &http.Transport{Proxy: http.ProxyFromEnvironment, DisableKeepAlives: true},
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,
		logger:    logger.Get().Named("upstream"),
	}
	WithRateLimit(20, 20)(c)
	for _, opt := range opts {
		opt(c)
	}

	httpClient := &http.Client{Transport: otelhttp.NewTransport(c.transport)}
	gh := github.NewClient(httpClient)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	gh.BaseURL = base
	gh.UserAgent = c.userAgent
	c.gh = gh

	return c, nil
}

// Fetch performs one GET. Failures are reported as ErrUnavailable with the
// path and status attached; nothing is retried.
func (c *Client) Fetch(ctx context.Context, req Request) (Response, error) {
	ctx, span := tracing.StartSpan(ctx, "upstream.fetch",
		attribute.String("upstream.path", req.Path),
		attribute.String("upstream.set_key", req.SetKey),
	)
	resp, err := c.fetch(ctx, req)
	tracing.End(span, err)
	if err != nil {
		return Response{}, err
	}

	if resp.Next != "" && req.SetKey != "" && c.onNext != nil {
		go c.onNext(req.SetKey, resp.Next)
	}
	return resp, nil
}

func (c *Client) fetch(ctx context.Context, req Request) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			metrics.RecordUpstreamError("rate_limiter")
			return Response{}, c.failure(req.Path, 0, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := c.gh.NewRequest(http.MethodGet, strings.TrimPrefix(req.Path, "/"), nil)
	if err != nil {
		metrics.RecordUpstreamError("request")
		return Response{}, c.failure(req.Path, 0, err)
	}

	start := time.Now()
	var body bytes.Buffer
	resp, err := c.gh.Do(ctx, httpReq, &body)
	elapsed := float64(time.Since(start).Milliseconds())

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	if err != nil {
		var accepted *github.AcceptedError
		if errors.As(err, &accepted) {
			body.Reset()
			body.Write(accepted.Raw)
		} else {
			kind := "transport"
			var ghErr *github.ErrorResponse
			var rlErr *github.RateLimitError
			switch {
			case errors.As(err, &rlErr):
				kind = "rate_limit"
			case errors.As(err, &ghErr):
				kind = "status"
			}
			metrics.RecordUpstreamRequest(statusClass(status), elapsed)
			metrics.RecordUpstreamError(kind)
			return Response{}, c.failure(req.Path, status, err)
		}
	}
	metrics.RecordUpstreamRequest(statusClass(status), elapsed)

	out := Response{Body: body.Bytes(), Status: status}
	if resp != nil && resp.Response != nil {
		if raw := nextLink(resp.Header.Values("Link")); raw != "" {
			if next, ok := relativePath(c.base, raw); ok {
				out.Next = next
			}
		}
	}

	c.logger.Debug(ctx, "upstream fetched",
		logger.String("path", req.Path),
		logger.Int("status", status),
		logger.Int("bytes", len(out.Body)),
		logger.String("next", out.Next),
	)
	return out, nil
}

func (c *Client) failure(path string, status int, cause error) error {
	msg := "GET " + path
	if status > 0 {
		msg += ": status " + strconv.Itoa(status)
	}
	return errors.WrapWithContext(ErrUnavailable, errors.CodeUnavailable, msg, map[string]interface{}{
		"path":   path,
		"status": status,
		"cause":  cause.Error(),
	})
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req Request) (Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
