package api

import (
	"net/http"

	"github.com/okian/cachegate/internal/domain/model"
)

// RankHandler serves the bottom-N views.
type RankHandler struct {
	deps Dependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps Dependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /view/bottom/{n}/{view}. Rows are
// [name, value] pairs; before any view has data the reply is a plain
// text notice with status 200.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Dispatch(r.Context(), model.Request{Kind: model.KindRank, Path: r.URL.Path})
	if err != nil {
		writeError(w, "rank", err)
		return
	}
	if res.NotReady {
		writeRaw(w, http.StatusOK, "text/plain; charset=utf-8", []byte(model.NotReadyMessage))
		return
	}
	writeJSON(w, http.StatusOK, res.Rows)
}
