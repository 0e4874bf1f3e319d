package condition

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/row"
)

// ElementName is the name of the canonical condition element.
const ElementName = "condition"

type xmlValue struct {
	Name   string `xml:"name"`
	Type   string `xml:"type"`
	Text   string `xml:"text"`
	IsNull string `xml:"isnull"`
}

type xmlConditions struct {
	Items []xmlCondition `xml:"condition"`
}

type xmlCondition struct {
	Negated    string         `xml:"negated"`
	Operator   string         `xml:"operator"`
	LeftValue  string         `xml:"leftvalue,omitempty"`
	Function   string         `xml:"function,omitempty"`
	RightValue string         `xml:"rightvalue,omitempty"`
	Value      *xmlValue      `xml:"value,omitempty"`
	Conditions *xmlConditions `xml:"conditions,omitempty"`
}

// MarshalXML writes the canonical form of the tree.
func (c *Condition) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	return enc.EncodeElement(toXML(c), start)
}

// UnmarshalXML reads the canonical form of a tree.
func (c *Condition) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	var raw xmlCondition

	err := dec.DecodeElement(&raw, &start)
	if err != nil {
		return errors.Wrap(err, "unable to decode condition")
	}

	parsed, err := fromXML(raw)
	if err != nil {
		return err
	}
	*c = *parsed

	return nil
}

func yn(b bool) string {
	if b {
		return "Y"
	}

	return "N"
}

func toXML(c *Condition) xmlCondition {
	if c == nil {
		c = New()
	}
	out := xmlCondition{
		Negated:  yn(c.Negated),
		Operator: c.Operator.String(),
	}
	if c.IsComposite() {
		out.Conditions = &xmlConditions{Items: make([]xmlCondition, len(c.Children))}
		for i, child := range c.Children {
			out.Conditions.Items[i] = toXML(child)
		}

		return out
	}
	if c.LeftField == "" {
		return out
	}
	out.LeftValue = c.LeftField
	out.Function = c.Function.String()
	out.RightValue = c.RightField
	if c.RightExact != nil {
		out.Value = &xmlValue{
			Name:   c.RightExact.Name,
			Type:   c.RightExact.Type.String(),
			Text:   c.RightExact.Text,
			IsNull: yn(c.RightExact.IsNull),
		}
	}

	return out
}

func fromXML(raw xmlCondition) (*Condition, error) {
	op, err := ParseOperator(raw.Operator)
	if err != nil {
		return nil, err
	}
	c := &Condition{
		Negated:  strings.EqualFold(strings.TrimSpace(raw.Negated), "Y"),
		Operator: op,
	}

	if raw.Conditions != nil && len(raw.Conditions.Items) > 0 {
		c.Children = make([]*Condition, len(raw.Conditions.Items))
		for i, item := range raw.Conditions.Items {
			child, err := fromXML(item)
			if err != nil {
				return nil, errors.Wrapf(err, "condition %d", i)
			}
			c.Children[i] = child
		}

		return c, nil
	}

	c.LeftField = strings.TrimSpace(raw.LeftValue)
	if c.LeftField == "" {
		return c, nil
	}
	c.Function, err = ParseFunction(raw.Function)
	if err != nil {
		return nil, err
	}
	c.RightField = strings.TrimSpace(raw.RightValue)
	if raw.Value != nil {
		v, err := valueFromXML(raw.Value)
		if err != nil {
			return nil, err
		}
		c.RightExact = v
	}

	return c, nil
}

func valueFromXML(raw *xmlValue) (*Value, error) {
	typ := row.TypeString
	if strings.TrimSpace(raw.Type) != "" {
		parsed, err := row.ParseType(strings.TrimSpace(raw.Type))
		if err != nil {
			return nil, errors.Wrap(err, "invalid constant")
		}
		typ = parsed
	}
	v := &Value{
		Name:   raw.Name,
		Type:   typ,
		Text:   raw.Text,
		IsNull: strings.EqualFold(strings.TrimSpace(raw.IsNull), "Y"),
	}
	if _, err := v.Native(); err != nil {
		return nil, errors.Wrap(err, "invalid constant")
	}

	return v, nil
}

// MarshalIndent returns the indented canonical XML of the tree.
func MarshalIndent(c *Condition, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer

	enc := xml.NewEncoder(&buf)
	enc.Indent(prefix, indent)

	err := enc.EncodeElement(toXML(c), xml.StartElement{Name: xml.Name{Local: ElementName}})
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode condition")
	}

	err = enc.Flush()
	if err != nil {
		return nil, errors.Wrap(err, "unable to flush condition")
	}

	return buf.Bytes(), nil
}

// Parse reads a tree from its canonical XML.
func Parse(data []byte) (*Condition, error) {
	c := New()

	err := xml.Unmarshal(data, c)
	if err != nil {
		return nil, err
	}

	return c, nil
}
