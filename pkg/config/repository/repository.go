// Package repository stores step settings as named attributes of a step id.
package repository

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/condition"
	"github.com/askiada/go-filter-sequence/pkg/config"
)

// Attribute names.
const (
	AttrFieldName   = "fieldName"
	AttrStartAt     = "start_at"
	AttrIncrementBy = "increment_by"
	AttrCondition   = "id_condition"
)

// AttributeStore reads and writes typed attributes of a step. The bool results report whether
// the attribute exists.
type AttributeStore interface {
	StepAttributeString(ctx context.Context, stepID, name string) (string, bool, error)
	StepAttributeInteger(ctx context.Context, stepID, name string) (int64, bool, error)
	SaveStepAttributeString(ctx context.Context, stepID, name, value string) error
	SaveStepAttributeInteger(ctx context.Context, stepID, name string, value int64) error
}

// ReadMeta loads the settings of stepID. StartAt and IncrementBy fall back to the integer
// attribute of the same name when no string attribute exists. Missing attributes keep their
// default value.
func ReadMeta(ctx context.Context, store AttributeStore, stepID string) (*config.Meta, error) {
	m := config.NewMeta()

	v, ok, err := store.StepAttributeString(ctx, stepID, AttrFieldName)
	if err != nil {
		return nil, config.NewConfigurationError("read "+stepID, err)
	}
	if ok {
		m.FieldName = v
	}

	for name, dst := range map[string]*string{AttrStartAt: &m.StartAt, AttrIncrementBy: &m.IncrementBy} {
		err = readNumeric(ctx, store, stepID, name, dst)
		if err != nil {
			return nil, config.NewConfigurationError("read "+stepID, err)
		}
	}

	v, ok, err = store.StepAttributeString(ctx, stepID, AttrCondition)
	if err != nil {
		return nil, config.NewConfigurationError("read "+stepID, err)
	}
	if ok && v != "" {
		m.Condition, err = condition.Parse([]byte(v))
		if err != nil {
			return nil, config.NewConfigurationError("read "+stepID, errors.Wrap(err, AttrCondition))
		}
	}

	return m, nil
}

func readNumeric(ctx context.Context, store AttributeStore, stepID, name string, dst *string) error {
	s, ok, err := store.StepAttributeString(ctx, stepID, name)
	if err != nil {
		return err
	}
	if ok {
		*dst = s

		return nil
	}

	n, ok, err := store.StepAttributeInteger(ctx, stepID, name)
	if err != nil {
		return err
	}
	if ok {
		*dst = strconv.FormatInt(n, 10)
	}

	return nil
}

// SaveMeta stores the settings of stepID. The condition is saved in its canonical XML form.
func SaveMeta(ctx context.Context, store AttributeStore, stepID string, m *config.Meta) error {
	cond, err := condition.MarshalIndent(m.Condition, "", "")
	if err != nil {
		return errors.Wrap(err, "unable to encode condition")
	}

	attrs := []struct{ name, value string }{
		{AttrFieldName, m.FieldName},
		{AttrStartAt, m.StartAt},
		{AttrIncrementBy, m.IncrementBy},
		{AttrCondition, string(cond)},
	}
	for _, a := range attrs {
		err = store.SaveStepAttributeString(ctx, stepID, a.name, a.value)
		if err != nil {
			return errors.Wrapf(err, "unable to save %s of step %s", a.name, stepID)
		}
	}

	return nil
}
