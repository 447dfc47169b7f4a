// Package types contains common types used across the application
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Row is one ranked leaderboard line. It serializes as [name, value].
type Row struct {
	Name string
	// Score is the sortable value the row was ranked by.
	Score float64
	// Value is the rendered score: an int64 for numeric views or an
	// ISO-8601 instant string for timestamp views.
	Value any
}

// MarshalJSON renders the row as a two element array.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{r.Name, r.Value})
}

// UnmarshalJSON accepts [name, number] and [name, "instant"].
func (r *Row) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) != 2 {
		return fmt.Errorf("row: want 2 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &r.Name); err != nil {
		return fmt.Errorf("row name: %w", err)
	}

	raw := bytes.TrimSpace(parts[1])
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("row instant: %w", err)
		}
		r.Value = s
		r.Score = float64(ts.UnixMilli())
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("row score: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		r.Value = i
		r.Score = float64(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("row score: %w", err)
	}
	r.Value = f
	r.Score = f
	return nil
}
