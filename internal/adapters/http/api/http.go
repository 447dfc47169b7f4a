// Package api exposes the gateway over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/cachegate/internal/domain/model"
	"github.com/okian/cachegate/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Dependencies required by HTTP handlers. Every request goes through the
// dispatcher; handlers only translate between HTTP and model types.
type Dependencies interface {
	Dispatch(ctx context.Context, req model.Request) (model.Result, error)
}

// Server wires HTTP routes for the gateway.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	documentHandler *DocumentHandler
	setHandler      *SetHandler
	rankHandler     *RankHandler
	proxyHandler    *ProxyHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		documentHandler: NewDocumentHandler(deps),
		setHandler:      NewSetHandler(deps),
		rankHandler:     NewRankHandler(deps),
		proxyHandler:    NewProxyHandler(deps),
	}
}

// Register attaches all HTTP routes to mux. Anything not matched by a
// cached route is proxied upstream.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthcheck", MetricsMiddleware(s.healthHandler.HandleHealth, "healthcheck"))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /{$}", MetricsMiddleware(s.documentHandler.HandleGet, "document"))
	mux.HandleFunc("GET /orgs/{org}", MetricsMiddleware(s.documentHandler.HandleGet, "document"))
	mux.HandleFunc("GET /orgs/{org}/members", MetricsMiddleware(s.setHandler.HandleGet, "set"))
	mux.HandleFunc("GET /orgs/{org}/repos", MetricsMiddleware(s.setHandler.HandleGet, "set"))
	mux.HandleFunc("GET /view/bottom/{n}/{view}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))

	mux.HandleFunc("GET /", MetricsMiddleware(s.proxyHandler.HandleProxy, "proxy"))
}

// Handler returns the routed, instrumented handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return otelhttp.NewHandler(RequestIDMiddleware(mux), "cachegate")
}

// writeJSON encodes before writing the header so an unencodable value
// becomes a 500 rather than an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		metrics.RecordErrorByComponent("api", "encode_failed")
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeRaw(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// requestPath returns the path with its query, as the upstream sees it.
func requestPath(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}
