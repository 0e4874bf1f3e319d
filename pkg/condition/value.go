package condition

import (
	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/row"
)

// Value is a typed constant used as the right hand side of a leaf.
type Value struct {
	Name   string
	Type   row.Type
	Text   string
	IsNull bool
}

// NewStringValue returns a string constant.
func NewStringValue(text string) *Value {
	return &Value{Name: "constant", Type: row.TypeString, Text: text}
}

// Native converts the constant text to a Go value of its type.
func (v *Value) Native() (any, error) {
	if v == nil || v.IsNull {
		return nil, nil
	}

	n, err := row.ParseValue(v.Type, v.Text)
	if err != nil {
		return nil, errors.Wrap(err, "invalid constant")
	}

	return n, nil
}

func (v *Value) clone() *Value {
	if v == nil {
		return nil
	}
	out := *v

	return &out
}
