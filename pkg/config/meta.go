package config

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/askiada/go-filter-sequence/pkg/condition"
	"github.com/askiada/go-filter-sequence/pkg/row"
)

// LookupPrefix is prepended to the field name to build the registry key of a counter.
const LookupPrefix = "@@sequence:"

const (
	DefaultFieldName   = "fieldName"
	DefaultStartAt     = "1"
	DefaultIncrementBy = "1"
)

var metaValidate *validator.Validate

func init() {
	metaValidate = validator.New()

	_ = metaValidate.RegisterValidation("trimmed", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()

		return s == strings.TrimSpace(s)
	})
}

// Meta is the configuration of a sequence step. StartAt and IncrementBy are kept as text and may
// hold variable references resolved when the step starts.
type Meta struct {
	FieldName   string               `validate:"required,trimmed"`
	StartAt     string               `validate:"required"`
	IncrementBy string               `validate:"required"`
	Condition   *condition.Condition `validate:"required"`
}

// NewMeta returns a Meta holding the default settings.
func NewMeta() *Meta {
	m := &Meta{}
	m.SetDefault()

	return m
}

// SetDefault resets every setting to its default.
func (m *Meta) SetDefault() {
	m.FieldName = DefaultFieldName
	m.StartAt = DefaultStartAt
	m.IncrementBy = DefaultIncrementBy
	m.Condition = condition.New()
}

// Clone returns a copy with its own condition tree.
func (m *Meta) Clone() *Meta {
	out := *m
	out.Condition = m.Condition.Clone()

	return &out
}

// Validate checks the struct constraints of the settings.
func (m *Meta) Validate() error {
	err := metaValidate.Struct(m)
	if err != nil {
		return NewConfigurationError("validate", err)
	}

	return nil
}

// LookupName returns the registry key of the counter fed by this step.
func (m *Meta) LookupName() string {
	return LookupPrefix + m.FieldName
}

// OrphanFields returns the fields used by the condition that layout does not hold.
func (m *Meta) OrphanFields(layout *row.Layout) []string {
	orphans := []string{}
	if m.Condition == nil || layout == nil {
		return orphans
	}
	for _, name := range m.Condition.UsedFields() {
		if layout.IndexOf(name) < 0 {
			orphans = append(orphans, name)
		}
	}

	return orphans
}

// OutputLayout returns a copy of input with the integer sequence field appended.
func (m *Meta) OutputLayout(input *row.Layout, origin string) *row.Layout {
	out := input.Clone()
	out.Add(row.Field{Name: m.FieldName, Type: row.TypeInteger, Origin: origin})

	return out
}
