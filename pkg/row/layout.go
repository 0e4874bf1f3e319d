package row

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownType is returned when a type name cannot be parsed.
var ErrUnknownType = errors.New("unknown field type")

// Type is the value type of a field.
type Type int

const (
	TypeNone Type = iota
	TypeString
	TypeInteger
	TypeNumber
	TypeBoolean
)

var typeNames = map[Type]string{
	TypeNone:    "None",
	TypeString:  "String",
	TypeInteger: "Integer",
	TypeNumber:  "Number",
	TypeBoolean: "Boolean",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// ParseType returns the type with the given name, case insensitive.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}

	return TypeNone, errors.Wrapf(ErrUnknownType, "%q", name)
}

// Field describes one column of a row.
type Field struct {
	Name   string
	Type   Type
	Origin string
}

// Layout is the ordered set of fields of a row stream.
type Layout struct {
	fields []Field
	index  map[string]int
}

// NewLayout creates a layout with the given fields in order.
func NewLayout(fields ...Field) *Layout {
	l := &Layout{
		fields: make([]Field, 0, len(fields)+1),
		index:  make(map[string]int, len(fields)+1),
	}
	for _, f := range fields {
		l.Add(f)
	}

	return l
}

// Add appends a field at the end of the layout. When a field with the same name already exists the
// name lookup keeps pointing at the first one.
func (l *Layout) Add(f Field) {
	if _, ok := l.index[f.Name]; !ok {
		l.index[f.Name] = len(l.fields)
	}
	l.fields = append(l.fields, f)
}

// Len returns the number of fields.
func (l *Layout) Len() int {
	if l == nil {
		return 0
	}

	return len(l.fields)
}

// Field returns the field at position i.
func (l *Layout) Field(i int) Field {
	return l.fields[i]
}

// Fields returns a copy of the fields.
func (l *Layout) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)

	return out
}

// Names returns the field names in order.
func (l *Layout) Names() []string {
	out := make([]string, len(l.fields))
	for i, f := range l.fields {
		out[i] = f.Name
	}

	return out
}

// IndexOf returns the position of the named field or -1.
func (l *Layout) IndexOf(name string) int {
	if l == nil {
		return -1
	}
	if idx, ok := l.index[name]; ok {
		return idx
	}

	return -1
}

// Search returns the named field.
func (l *Layout) Search(name string) (Field, bool) {
	idx := l.IndexOf(name)
	if idx < 0 {
		return Field{}, false
	}

	return l.fields[idx], true
}

// Clone returns an independent copy of the layout.
func (l *Layout) Clone() *Layout {
	return NewLayout(l.fields...)
}

// Render formats the values of r the way they are shown in logs: "[v1], [v2]".
func (l *Layout) Render(r Row) string {
	var sb strings.Builder
	for i := range l.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('[')
		if i < len(r) {
			sb.WriteString(FormatValue(r[i]))
		}
		sb.WriteByte(']')
	}

	return sb.String()
}
