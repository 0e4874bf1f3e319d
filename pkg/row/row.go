package row

import (
	"fmt"
	"strconv"
)

// Row holds the values of one row, positionally matching a Layout.
type Row []any

// Clone returns a shallow copy of the values.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)

	return out
}

// AddValue returns a row holding the values of r with v stored at position idx. The input row is
// not modified; the result grows as needed.
func AddValue(r Row, idx int, v any) Row {
	size := len(r)
	if idx >= size {
		size = idx + 1
	}
	out := make(Row, size)
	copy(out, r)
	out[idx] = v

	return out
}

// Record is a row together with the layout describing it.
type Record struct {
	Layout *Layout
	Values Row
}

// Get returns the value of the named field.
func (rec Record) Get(name string) (any, bool) {
	idx := rec.Layout.IndexOf(name)
	if idx < 0 || idx >= len(rec.Values) {
		return nil, false
	}

	return rec.Values[idx], true
}

// String renders the record values.
func (rec Record) String() string {
	return rec.Layout.Render(rec.Values)
}

// FormatValue renders a single value as text; nil renders as an empty string.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "Y"
		}

		return "N"
	default:
		return fmt.Sprint(val)
	}
}
