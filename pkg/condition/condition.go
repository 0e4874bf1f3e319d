package condition

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/row"
)

// ErrFieldNotFound is returned when a leaf references a field absent from the evaluated layout.
var ErrFieldNotFound = errors.New("field not found")

// Evaluator applies a comparison function to a left and a right value.
type Evaluator interface {
	Compare(fn Function, left, right any) (bool, error)
}

// Condition is a node of the condition tree. A node with children is a composite and ignores its
// leaf fields; a node without children is a leaf. A leaf without a left field is the empty
// condition.
type Condition struct {
	Negated  bool
	Operator Operator

	LeftField  string
	Function   Function
	RightField string
	RightExact *Value

	Children []*Condition

	positions *positions
}

type positions struct {
	left, right int
}

// New returns the empty condition.
func New() *Condition {
	return &Condition{}
}

// NewLeaf returns a leaf comparing left with either the right field or, when right is empty,
// the exact value.
func NewLeaf(left string, fn Function, right string, exact *Value) *Condition {
	return &Condition{
		LeftField:  left,
		Function:   fn,
		RightField: right,
		RightExact: exact,
	}
}

// NewComposite returns a composite node with the given children.
func NewComposite(children ...*Condition) *Condition {
	c := New()
	for _, child := range children {
		c.AddChild(child)
	}

	return c
}

// IsComposite reports whether the node has children.
func (c *Condition) IsComposite() bool {
	return c != nil && len(c.Children) > 0
}

// IsEmpty reports whether the tree has no leaves.
func (c *Condition) IsEmpty() bool {
	return c == nil || (!c.IsComposite() && c.LeftField == "")
}

// AddChild appends a child. When the node is still a non-empty leaf, the leaf is first moved into
// a child of its own so that no comparison is lost.
func (c *Condition) AddChild(child *Condition) {
	if !c.IsComposite() && c.LeftField != "" {
		current := NewLeaf(c.LeftField, c.Function, c.RightField, c.RightExact)
		current.Negated = c.Negated
		c.Negated = false
		c.LeftField, c.RightField, c.RightExact = "", "", nil
		c.Function = FunctionEqual
		c.Children = append(c.Children, current)
	}
	c.Children = append(c.Children, child)
}

// UsedFields returns every field name referenced by a leaf, left or right, once, in the order
// they are first met.
func (c *Condition) UsedFields() []string {
	seen := map[string]struct{}{}
	out := []string{}
	c.walk(func(n *Condition) {
		for _, name := range []string{n.LeftField, n.RightField} {
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	})

	return out
}

// Operators returns the operators of the direct children, or of the node itself when it is a leaf.
func (c *Condition) Operators() []Operator {
	if !c.IsComposite() {
		return []Operator{c.Operator}
	}
	out := make([]Operator, len(c.Children))
	for i, child := range c.Children {
		out[i] = child.Operator
	}

	return out
}

// Clone returns a deep copy of the tree without cached field positions.
func (c *Condition) Clone() *Condition {
	if c == nil {
		return nil
	}
	out := &Condition{
		Negated:    c.Negated,
		Operator:   c.Operator,
		LeftField:  c.LeftField,
		Function:   c.Function,
		RightField: c.RightField,
		RightExact: c.RightExact.clone(),
	}
	if len(c.Children) > 0 {
		out.Children = make([]*Condition, len(c.Children))
		for i, child := range c.Children {
			out.Children[i] = child.Clone()
		}
	}

	return out
}

// ClearFieldPositions forgets the field positions resolved by previous evaluations.
func (c *Condition) ClearFieldPositions() {
	c.walk(func(n *Condition) {
		n.positions = nil
	})
}

// Evaluate evaluates the tree against a row using DefaultEvaluator.
func (c *Condition) Evaluate(layout *row.Layout, values row.Row) (bool, error) {
	return c.EvaluateWith(DefaultEvaluator, layout, values)
}

// EvaluateWith evaluates the tree against a row. Field positions are resolved against layout on
// first use and cached until ClearFieldPositions is called.
func (c *Condition) EvaluateWith(ev Evaluator, layout *row.Layout, values row.Row) (bool, error) {
	if c == nil {
		return true, nil
	}

	var res bool

	switch {
	case c.IsComposite():
		got, err := c.evaluateChildren(ev, layout, values)
		if err != nil {
			return false, err
		}
		res = got
	case c.LeftField == "":
		res = true
	default:
		got, err := c.compare(ev, layout, values)
		if err != nil {
			return false, err
		}
		res = got
	}

	if c.Negated {
		res = !res
	}

	return res, nil
}

// evaluateChildren folds the children from left to right. A first child joined by NOT is
// negated. A run of XOR siblings is true when exactly one of its operands is true. A child is not
// evaluated once OR or AND has settled the result.
func (c *Condition) evaluateChildren(ev Evaluator, layout *row.Layout, values row.Row) (bool, error) {
	var (
		acc   bool
		inXor bool
		trues int
	)

	for i, child := range c.Children {
		op := child.Operator
		if i > 0 && op.settled(acc) {
			inXor = false

			continue
		}

		got, err := child.EvaluateWith(ev, layout, values)
		if err != nil {
			return false, err
		}

		switch {
		case i == 0:
			acc = got
			if op == OperatorNot {
				acc = !got
			}
		case op == OperatorXor:
			if !inXor {
				inXor = true
				trues = 0
				if acc {
					trues++
				}
			}
			if got {
				trues++
			}
			acc = trues == 1
		default:
			inXor = false
			acc = op.combine(acc, got)
		}
	}

	return acc, nil
}

func (c *Condition) compare(ev Evaluator, layout *row.Layout, values row.Row) (bool, error) {
	if c.positions == nil {
		pos := &positions{left: layout.IndexOf(c.LeftField), right: -1}
		if pos.left < 0 {
			return false, errors.Wrapf(ErrFieldNotFound, "left field %q", c.LeftField)
		}
		if c.RightField != "" {
			pos.right = layout.IndexOf(c.RightField)
			if pos.right < 0 {
				return false, errors.Wrapf(ErrFieldNotFound, "right field %q", c.RightField)
			}
		}
		c.positions = pos
	}

	left := valueAt(values, c.positions.left)

	var right any
	if c.positions.right >= 0 {
		right = valueAt(values, c.positions.right)
	} else if !c.Function.unary() {
		exact, err := c.RightExact.Native()
		if err != nil {
			return false, err
		}
		right = exact
	}

	ok, err := ev.Compare(c.Function, left, right)
	if err != nil {
		return false, errors.Wrapf(err, "%s", c.String())
	}

	return ok, nil
}

func valueAt(values row.Row, idx int) any {
	if idx < 0 || idx >= len(values) {
		return nil
	}

	return values[idx]
}

func (c *Condition) walk(fn func(*Condition)) {
	if c == nil {
		return
	}
	fn(c)
	for _, child := range c.Children {
		child.walk(fn)
	}
}

// String renders the tree in a readable infix form.
func (c *Condition) String() string {
	var sb strings.Builder
	c.render(&sb)

	return sb.String()
}

func (c *Condition) render(sb *strings.Builder) {
	if c == nil {
		return
	}
	if c.Negated {
		sb.WriteString("NOT ")
	}
	if c.IsComposite() {
		sb.WriteByte('(')
		for i, child := range c.Children {
			if i > 0 {
				sb.WriteString(" " + child.Operator.String() + " ")
			}
			child.render(sb)
		}
		sb.WriteByte(')')

		return
	}
	if c.LeftField == "" {
		sb.WriteString("<empty>")

		return
	}
	sb.WriteString(c.LeftField + " " + c.Function.String())
	if c.Function.unary() {
		return
	}
	switch {
	case c.RightField != "":
		sb.WriteString(" " + c.RightField)
	case c.RightExact != nil:
		sb.WriteString(" [" + c.RightExact.Text + "]")
	}
}
