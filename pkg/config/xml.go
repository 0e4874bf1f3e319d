package config

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/condition"
	"github.com/askiada/go-filter-sequence/pkg/row"
)

// StepElement is the root element written by MarshalIndent.
const StepElement = "step"

type stepXML struct {
	FieldName   *string    `xml:"fieldName"`
	StartAt     *string    `xml:"start_at"`
	IncrementBy *string    `xml:"increment_by"`
	Compare     compareXML `xml:"compare"`
}

type compareXML struct {
	Condition *condition.Condition `xml:"condition"`
	Keys      []keyXML             `xml:"key"`
}

type keyXML struct {
	Name       string  `xml:"name"`
	Value      *string `xml:"value"`
	Field      string  `xml:"field"`
	Comparator string  `xml:"condition"`
}

type conditionReader struct {
	name string
	read func(compareXML) (*condition.Condition, bool, error)
}

// conditionReaders are tried in order, the first one accepting the <compare> element wins.
var conditionReaders = []conditionReader{
	{name: "canonical", read: readCanonical},
	{name: "single key", read: readSingleKey},
	{name: "key list", read: readKeyList},
}

func readCanonical(c compareXML) (*condition.Condition, bool, error) {
	if c.Condition == nil {
		return nil, false, nil
	}

	return c.Condition, true, nil
}

func readSingleKey(c compareXML) (*condition.Condition, bool, error) {
	if len(c.Keys) != 1 {
		return nil, false, nil
	}
	leaf, err := c.Keys[0].leaf()
	if err != nil {
		return nil, true, err
	}
	leaf.Operator = condition.OperatorNone

	return leaf, true, nil
}

func readKeyList(c compareXML) (*condition.Condition, bool, error) {
	out := condition.New()
	for i, key := range c.Keys {
		leaf, err := key.leaf()
		if err != nil {
			return nil, true, errors.Wrapf(err, "key %d", i)
		}
		if i > 0 {
			leaf.Operator = condition.OperatorOr
		}
		out.Children = append(out.Children, leaf)
	}

	return out, true, nil
}

func (k keyXML) leaf() (*condition.Condition, error) {
	fn, err := condition.ParseFunction(k.Comparator)
	if err != nil {
		return nil, err
	}
	exact := &condition.Value{Name: "value", Type: row.TypeString, IsNull: k.Value == nil}
	if k.Value != nil {
		exact.Text = *k.Value
	}

	return condition.NewLeaf(strings.TrimSpace(k.Name), fn, strings.TrimSpace(k.Field), exact), nil
}

func readCondition(c compareXML) (*condition.Condition, error) {
	for _, r := range conditionReaders {
		cond, ok, err := r.read(c)
		if err != nil {
			return nil, errors.Wrap(err, r.name)
		}
		if ok {
			return cond, nil
		}
	}

	return condition.New(), nil
}

// LoadXML reads the settings of a step. Missing elements keep their default value.
func LoadXML(data []byte) (*Meta, error) {
	var raw stepXML

	err := xml.Unmarshal(data, &raw)
	if err != nil {
		return nil, NewConfigurationError("load xml", err)
	}

	m := NewMeta()
	if raw.FieldName != nil {
		m.FieldName = strings.TrimSpace(*raw.FieldName)
	}
	if raw.StartAt != nil {
		m.StartAt = strings.TrimSpace(*raw.StartAt)
	}
	if raw.IncrementBy != nil {
		m.IncrementBy = strings.TrimSpace(*raw.IncrementBy)
	}

	m.Condition, err = readCondition(raw.Compare)
	if err != nil {
		return nil, NewConfigurationError("load xml", err)
	}

	return m, nil
}

// MarshalIndent writes the settings with the canonical condition form.
func (m *Meta) MarshalIndent(prefix, indent string) ([]byte, error) {
	cond := m.Condition
	if cond == nil {
		cond = condition.New()
	}
	raw := stepXML{
		FieldName:   &m.FieldName,
		StartAt:     &m.StartAt,
		IncrementBy: &m.IncrementBy,
		Compare:     compareXML{Condition: cond},
	}

	var buf bytes.Buffer

	enc := xml.NewEncoder(&buf)
	enc.Indent(prefix, indent)

	err := enc.EncodeElement(raw, xml.StartElement{Name: xml.Name{Local: StepElement}})
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode step")
	}

	err = enc.Flush()
	if err != nil {
		return nil, errors.Wrap(err, "unable to flush step")
	}

	return buf.Bytes(), nil
}
