package model

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
)

// StableKey identifies a listing item across refreshes. Items carrying a
// scalar "id" field are keyed by it so volatile fields do not create
// duplicates; anything else is keyed by its content hash.
func StableKey(payload []byte) string {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err == nil && isScalar(probe.ID) {
		return "id:" + string(probe.ID)
	}
	sum := sha1.Sum(payload) //nolint:gosec
	return "sha1:" + hex.EncodeToString(sum[:])
}

func isScalar(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	switch raw[0] {
	case '{', '[':
		return false
	}
	return true
}
