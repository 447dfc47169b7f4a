// Package model contains domain models passed between layers.
package model

import (
	"strings"

	"github.com/okian/cachegate/internal/domain/types"
)

// NotReadyMessage is returned to rank queries while no view has data.
const NotReadyMessage = "leader board not yet ready"

// Kind selects what a Request asks for.
type Kind int

const (
	// KindKey reads a single cached document.
	KindKey Kind = iota + 1
	// KindSet reads a cached listing, or one page of it.
	KindSet
	// KindRank reads a bottom-N view.
	KindRank
	// KindProxy forwards the path upstream without caching.
	KindProxy
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindSet:
		return "set"
	case KindRank:
		return "rank"
	case KindProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// Request is the message routed by the dispatcher.
type Request struct {
	Kind Kind
	// Path is the upstream-relative path, query included.
	Path string
	// SetKey is the canonical set the page belongs to. Empty means Path
	// without its query.
	SetKey string
}

// CanonicalKey returns the set key the request accumulates into.
func (r Request) CanonicalKey() string {
	if r.SetKey != "" {
		return r.SetKey
	}
	return StripQuery(r.Path)
}

// IsPage reports whether the request addresses one page of a larger set
// rather than the set itself.
func (r Request) IsPage() bool {
	return r.Path != r.CanonicalKey()
}

// Result is the reply to a Request. Which fields are set depends on Kind.
type Result struct {
	Document []byte
	Members  [][]byte
	Rows     []types.Row
	// NotReady is set on rank replies when no view data exists yet.
	NotReady bool
	// Status carries the upstream status code of proxied replies.
	Status int
}

// StripQuery removes the query string and fragment from path.
func StripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}
