package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/cachegate/internal/domain/model"
)

// SetHandler serves cached listings and single pages of them.
type SetHandler struct {
	deps Dependencies
}

// NewSetHandler creates a new set handler.
func NewSetHandler(deps Dependencies) *SetHandler {
	return &SetHandler{deps: deps}
}

// HandleGet handles GET /orgs/{org}/members and GET /orgs/{org}/repos.
// A ?page=N query asks for that page only.
func (h *SetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Dispatch(r.Context(), model.Request{Kind: model.KindSet, Path: requestPath(r)})
	if err != nil {
		writeError(w, "set", err)
		return
	}

	items := make([]json.RawMessage, 0, len(res.Members))
	for _, m := range res.Members {
		items = append(items, m)
	}
	writeJSON(w, http.StatusOK, items)
}
