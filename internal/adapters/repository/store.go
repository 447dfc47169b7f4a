// Package repository stores cached documents, listing sets and the sorted
// leaderboard views.
package repository

import "context"

// Member is one element of a cached listing set. ID is the element's stable
// key; adding a member with an existing ID replaces its payload.
type Member struct {
	ID      string
	Payload []byte
}

// ViewEntry is one scored element of a sorted view.
type ViewEntry struct {
	Key   string
	Score float64
}

// Store provides read/write access to the cache state.
type Store interface {
	// GetDocument returns the document cached under path.
	// Returns ErrNotFound when nothing is cached.
	GetDocument(ctx context.Context, path string) ([]byte, error)
	// PutDocument overwrites the document cached under path.
	PutDocument(ctx context.Context, path string, body []byte) error

	// GetMembers returns the payloads of the set, ordered by member ID.
	// Returns ErrNotFound when the set does not exist.
	GetMembers(ctx context.Context, key string) ([][]byte, error)
	// AddMembers merges members into the set, creating it if needed.
	AddMembers(ctx context.Context, key string, members []Member) error

	// ReplaceView atomically swaps the whole content of a view.
	ReplaceView(ctx context.Context, view string, entries []ViewEntry) error
	// RangeView returns the n lowest scored entries of a view in ascending
	// score order. Implementations may return extra entries tied with the
	// last score so callers can apply their own tie-break.
	RangeView(ctx context.Context, view string, n int) ([]ViewEntry, error)

	// Flush removes everything the store owns.
	Flush(ctx context.Context) error
	Close() error
}
