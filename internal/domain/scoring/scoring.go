// Package scoring maps cached listing items to sortable per-view scores.
package scoring

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
)

// NameField holds the display name of a ranked item.
const NameField = "full_name"

const (
	instantLayout       = "2006-01-02T15:04:05Z07:00"
	instantLayoutMillis = "2006-01-02T15:04:05.000Z07:00"
)

type extractorKind int

const (
	numeric extractorKind = iota + 1
	timestamp
)

// Extractor reads one score out of a record. It is either a NumericField
// or a TimestampField.
type Extractor struct {
	kind  extractorKind
	field string
}

// NumericField scores by a numeric field, taken as is.
func NumericField(name string) Extractor {
	return Extractor{kind: numeric, field: name}
}

// TimestampField scores by an ISO-8601 field, as epoch milliseconds.
func TimestampField(name string) Extractor {
	return Extractor{kind: timestamp, field: name}
}

// Field returns the record field the extractor reads.
func (e Extractor) Field() string { return e.field }

// IsTimestamp reports whether scores are epoch milliseconds.
func (e Extractor) IsTimestamp() bool { return e.kind == timestamp }

// Score extracts the sortable score from r.
func (e Extractor) Score(r Record) (float64, error) {
	v, ok := r[e.field]
	if !ok || v == nil {
		return 0, errors.Wrapf(ErrMalformed, errors.CodeSchemaFailed, "field %q missing", e.field)
	}

	switch e.kind {
	case numeric:
		var s string
		switch n := v.(type) {
		case json.Number:
			s = n.String()
		case string:
			s = strings.TrimSpace(n)
		default:
			return 0, errors.Wrapf(ErrMalformed, errors.CodeSchemaFailed, "field %q is not numeric", e.field)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrMalformed, errors.CodeSchemaFailed, "field %q is not numeric", e.field)
		}
		return e.finite(f)
	case timestamp:
		s, ok := v.(string)
		if !ok {
			return 0, errors.Wrapf(ErrMalformed, errors.CodeSchemaFailed, "field %q is not a timestamp", e.field)
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return 0, errors.Wrapf(ErrMalformed, errors.CodeSchemaFailed, "field %q is not a timestamp", e.field)
		}
		return e.finite(float64(ts.UnixMilli()))
	default:
		return 0, errors.Newf(errors.CodeInternal, "extractor for %q has no kind", e.field)
	}
}

// finite rejects NaN and infinities; neither can be ranked or rendered.
func (e Extractor) finite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Wrapf(ErrMalformed, errors.CodeSchemaFailed, "field %q is not finite", e.field)
	}
	return f, nil
}

// Encode returns the canonical decimal form of a score.
func (e Extractor) Encode(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// Render converts a stored score to its reply value: an int64 for numeric
// views, an ISO-8601 instant for timestamp views.
func (e Extractor) Render(score float64) any {
	ms := int64(score)
	if e.kind != timestamp {
		if float64(ms) == score {
			return ms
		}
		return score
	}
	t := time.UnixMilli(ms).UTC()
	if ms%1000 == 0 {
		return t.Format(instantLayout)
	}
	return t.Format(instantLayoutMillis)
}

// Record is a decoded listing item. Numbers stay json.Number so integers
// keep their exact text.
type Record map[string]any

// Decode parses a raw listing item.
func Decode(payload []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var r Record
	if err := dec.Decode(&r); err != nil {
		return nil, errors.Wrap(err, errors.CodeSchemaFailed, ErrMalformed.Message())
	}
	if r == nil {
		return nil, errors.Wrap(ErrMalformed, errors.CodeSchemaFailed, "record is not an object")
	}
	return r, nil
}

// Name returns the record's display name.
func (r Record) Name() (string, error) {
	s, ok := r[NameField].(string)
	if !ok || s == "" {
		return "", errors.Wrapf(ErrMalformed, errors.CodeSchemaFailed, "field %q missing", NameField)
	}
	return s, nil
}
