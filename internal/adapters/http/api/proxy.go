package api

import (
	"net/http"

	"github.com/okian/cachegate/internal/domain/model"
)

// ProxyHandler forwards uncached paths upstream.
type ProxyHandler struct {
	deps Dependencies
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(deps Dependencies) *ProxyHandler {
	return &ProxyHandler{deps: deps}
}

// HandleProxy relays the upstream body for any other GET.
func (h *ProxyHandler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Dispatch(r.Context(), model.Request{Kind: model.KindProxy, Path: requestPath(r)})
	if err != nil {
		writeError(w, "proxy", err)
		return
	}
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	writeRaw(w, status, "application/json; charset=utf-8", res.Document)
}
