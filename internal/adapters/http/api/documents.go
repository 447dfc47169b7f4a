package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/okian/cachegate/internal/domain/model"
)

// DocumentHandler serves single cached documents.
type DocumentHandler struct {
	deps Dependencies
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(deps Dependencies) *DocumentHandler {
	return &DocumentHandler{deps: deps}
}

// HandleGet handles GET / and GET /orgs/{org}. The document is keyed by
// the path alone and served pretty-printed.
func (h *DocumentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Dispatch(r.Context(), model.Request{Kind: model.KindKey, Path: r.URL.Path})
	if err != nil {
		writeError(w, "document", err)
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, res.Document, "", "  "); err != nil {
		writeRaw(w, http.StatusOK, "application/json; charset=utf-8", res.Document)
		return
	}
	pretty.WriteByte('\n')
	writeRaw(w, http.StatusOK, "application/json; charset=utf-8", pretty.Bytes())
}
