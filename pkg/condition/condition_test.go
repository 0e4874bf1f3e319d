package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-filter-sequence/pkg/condition"
	"github.com/askiada/go-filter-sequence/pkg/row"
)

func testLayout() *row.Layout {
	return row.NewLayout(
		row.Field{Name: "id", Type: row.TypeInteger},
		row.Field{Name: "name", Type: row.TypeString},
		row.Field{Name: "limit", Type: row.TypeInteger},
	)
}

func leaf(left string, fn condition.Function, text string) *condition.Condition {
	return condition.NewLeaf(left, fn, "", condition.NewStringValue(text))
}

func withOperator(c *condition.Condition, op condition.Operator) *condition.Condition {
	c.Operator = op

	return c
}

func TestEvaluateLeaf(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		cond     *condition.Condition
		values   row.Row
		expected bool
	}{
		"equal constant":    {cond: leaf("name", condition.FunctionEqual, "bob"), values: row.Row{int64(1), "bob", int64(3)}, expected: true},
		"not equal":         {cond: leaf("name", condition.FunctionNotEqual, "bob"), values: row.Row{int64(1), "bob", int64(3)}, expected: false},
		"numeric larger":    {cond: leaf("id", condition.FunctionLarger, "10"), values: row.Row{int64(11), "x", int64(3)}, expected: true},
		"numeric smaller":   {cond: leaf("id", condition.FunctionSmaller, "10"), values: row.Row{int64(9), "x", int64(3)}, expected: true},
		"field vs field":    {cond: condition.NewLeaf("id", condition.FunctionSmallerEqual, "limit", nil), values: row.Row{int64(3), "x", int64(3)}, expected: true},
		"field larger than": {cond: condition.NewLeaf("id", condition.FunctionLarger, "limit", nil), values: row.Row{int64(3), "x", int64(3)}, expected: false},
		"is null":           {cond: condition.NewLeaf("name", condition.FunctionNull, "", nil), values: row.Row{int64(1), nil, int64(3)}, expected: true},
		"is not null":       {cond: condition.NewLeaf("name", condition.FunctionNotNull, "", nil), values: row.Row{int64(1), "", int64(3)}, expected: false},
		"in list":           {cond: leaf("name", condition.FunctionInList, "ann; bob;carl"), values: row.Row{int64(1), "bob", int64(3)}, expected: true},
		"contains":          {cond: leaf("name", condition.FunctionContains, "ob"), values: row.Row{int64(1), "bob", int64(3)}, expected: true},
		"starts with":       {cond: leaf("name", condition.FunctionStartsWith, "bo"), values: row.Row{int64(1), "bob", int64(3)}, expected: true},
		"ends with":         {cond: leaf("name", condition.FunctionEndsWith, "x"), values: row.Row{int64(1), "bob", int64(3)}, expected: false},
		"regexp full match": {cond: leaf("name", condition.FunctionRegexp, "b.b"), values: row.Row{int64(1), "bob", int64(3)}, expected: true},
		"regexp partial":    {cond: leaf("name", condition.FunctionRegexp, "b"), values: row.Row{int64(1), "bob", int64(3)}, expected: false},
		"like":              {cond: leaf("name", condition.FunctionLike, "b_%"), values: row.Row{int64(1), "bob", int64(3)}, expected: true},
		"true":              {cond: condition.NewLeaf("name", condition.FunctionTrue, "", nil), values: row.Row{int64(1), "Y", int64(3)}, expected: true},
		"null sorts first":  {cond: leaf("name", condition.FunctionSmaller, "a"), values: row.Row{int64(1), nil, int64(3)}, expected: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := tc.cond.Evaluate(testLayout(), tc.values)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestEvaluateComposite(t *testing.T) {
	t.Parallel()

	values := row.Row{int64(5), "bob", int64(3)}
	isFive := func() *condition.Condition { return leaf("id", condition.FunctionEqual, "5") }
	isSix := func() *condition.Condition { return leaf("id", condition.FunctionEqual, "6") }

	tcs := map[string]struct {
		cond     *condition.Condition
		expected bool
	}{
		"single child delegates": {cond: condition.NewComposite(isFive()), expected: true},
		"or":                     {cond: condition.NewComposite(isSix(), withOperator(isFive(), condition.OperatorOr)), expected: true},
		"and":                    {cond: condition.NewComposite(isSix(), withOperator(isFive(), condition.OperatorAnd)), expected: false},
		"xor one true":           {cond: condition.NewComposite(isSix(), withOperator(isFive(), condition.OperatorXor)), expected: true},
		"xor both true":          {cond: condition.NewComposite(isFive(), withOperator(isFive(), condition.OperatorXor)), expected: false},
		"and not":                {cond: condition.NewComposite(isFive(), withOperator(isSix(), condition.OperatorAndNot)), expected: true},
		"not joins as and not":   {cond: condition.NewComposite(isFive(), withOperator(isFive(), condition.OperatorNot)), expected: false},
		"or not":                 {cond: condition.NewComposite(isSix(), withOperator(isFive(), condition.OperatorOrNot)), expected: false},
		"xor three true": {cond: condition.NewComposite(
			isFive(), withOperator(isFive(), condition.OperatorXor), withOperator(isFive(), condition.OperatorXor),
		), expected: false},
		"xor one of three": {cond: condition.NewComposite(
			isSix(), withOperator(isFive(), condition.OperatorXor), withOperator(isSix(), condition.OperatorXor),
		), expected: true},
		"xor none of three": {cond: condition.NewComposite(
			isSix(), withOperator(isSix(), condition.OperatorXor), withOperator(isSix(), condition.OperatorXor),
		), expected: false},
		"xor run then and": {cond: condition.NewComposite(
			isFive(), withOperator(isSix(), condition.OperatorXor), withOperator(isSix(), condition.OperatorAnd),
		), expected: false},
		"not sole child":       {cond: condition.NewComposite(withOperator(isFive(), condition.OperatorNot)), expected: false},
		"not sole false child": {cond: condition.NewComposite(withOperator(isSix(), condition.OperatorNot)), expected: true},
		"not first child": {cond: condition.NewComposite(
			withOperator(isSix(), condition.OperatorNot), withOperator(isFive(), condition.OperatorAnd),
		), expected: true},
		"negated composite": {cond: func() *condition.Condition {
			c := condition.NewComposite(isFive())
			c.Negated = true

			return c
		}(), expected: false},
		"nested": {cond: condition.NewComposite(
			isSix(),
			withOperator(condition.NewComposite(isFive(), withOperator(leaf("name", condition.FunctionEqual, "bob"), condition.OperatorAnd)), condition.OperatorOr),
		), expected: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := tc.cond.Evaluate(testLayout(), values)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestEvaluateEmptyIsTrue(t *testing.T) {
	t.Parallel()

	got, err := condition.New().Evaluate(testLayout(), row.Row{int64(1), "a", int64(2)})
	require.NoError(t, err)
	assert.True(t, got)
	assert.True(t, condition.New().IsEmpty())
}

func TestEvaluateMissingField(t *testing.T) {
	t.Parallel()

	c := leaf("unknown", condition.FunctionEqual, "x")
	_, err := c.Evaluate(testLayout(), row.Row{int64(1), "a", int64(2)})
	require.ErrorIs(t, err, condition.ErrFieldNotFound)
}

func TestEvaluateInvalidRegexp(t *testing.T) {
	t.Parallel()

	c := leaf("name", condition.FunctionRegexp, "(")
	_, err := c.Evaluate(testLayout(), row.Row{int64(1), "a", int64(2)})
	require.Error(t, err)
}

func TestClearFieldPositions(t *testing.T) {
	t.Parallel()

	c := leaf("name", condition.FunctionEqual, "bob")

	got, err := c.Evaluate(testLayout(), row.Row{int64(1), "bob", int64(3)})
	require.NoError(t, err)
	assert.True(t, got)

	reordered := row.NewLayout(row.Field{Name: "name", Type: row.TypeString}, row.Field{Name: "id", Type: row.TypeInteger})

	// cached positions still point at the old layout
	got, err = c.Evaluate(reordered, row.Row{"bob", int64(1)})
	require.NoError(t, err)
	assert.False(t, got)

	c.ClearFieldPositions()

	got, err = c.Evaluate(reordered, row.Row{"bob", int64(1)})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestUsedFields(t *testing.T) {
	t.Parallel()

	c := condition.NewComposite(
		condition.NewLeaf("a", condition.FunctionEqual, "b", nil),
		withOperator(leaf("c", condition.FunctionEqual, "x"), condition.OperatorOr),
		withOperator(condition.NewLeaf("a", condition.FunctionEqual, "d", nil), condition.OperatorAnd),
	)

	assert.Equal(t, []string{"a", "b", "c", "d"}, c.UsedFields())
	assert.Empty(t, condition.New().UsedFields())
}

func TestAddChildPromotesLeaf(t *testing.T) {
	t.Parallel()

	c := leaf("id", condition.FunctionEqual, "5")
	c.Negated = true
	c.AddChild(withOperator(leaf("name", condition.FunctionEqual, "bob"), condition.OperatorOr))

	require.Len(t, c.Children, 2)
	assert.False(t, c.Negated)
	assert.Empty(t, c.LeftField)
	assert.True(t, c.Children[0].Negated)
	assert.Equal(t, "id", c.Children[0].LeftField)
	assert.Equal(t, []condition.Operator{condition.OperatorNone, condition.OperatorOr}, c.Operators())
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := condition.NewComposite(leaf("id", condition.FunctionEqual, "5"), withOperator(leaf("name", condition.FunctionEqual, "bob"), condition.OperatorOr))
	clone := orig.Clone()

	clone.Children[0].LeftField = "changed"
	clone.Children[1].RightExact.Text = "changed"
	clone.Children = append(clone.Children, leaf("limit", condition.FunctionEqual, "1"))

	assert.Equal(t, "id", orig.Children[0].LeftField)
	assert.Equal(t, "bob", orig.Children[1].RightExact.Text)
	assert.Len(t, orig.Children, 2)
}

func TestString(t *testing.T) {
	t.Parallel()

	c := condition.NewComposite(
		leaf("id", condition.FunctionEqual, "5"),
		withOperator(condition.NewLeaf("name", condition.FunctionNull, "", nil), condition.OperatorOr),
	)
	assert.Equal(t, "(id = [5] OR name IS NULL)", c.String())
	assert.Equal(t, "<empty>", condition.New().String())
}

func TestParseOperatorAndFunction(t *testing.T) {
	t.Parallel()

	op, err := condition.ParseOperator("and not")
	require.NoError(t, err)
	assert.Equal(t, condition.OperatorAndNot, op)

	op, err = condition.ParseOperator("")
	require.NoError(t, err)
	assert.Equal(t, condition.OperatorNone, op)

	_, err = condition.ParseOperator("NAND")
	require.ErrorIs(t, err, condition.ErrUnknownOperator)

	fn, err := condition.ParseFunction("is not null")
	require.NoError(t, err)
	assert.Equal(t, condition.FunctionNotNull, fn)

	_, err = condition.ParseFunction("~=")
	require.ErrorIs(t, err, condition.ErrUnknownFunction)
}

func TestEvaluateSkipsSettledChildren(t *testing.T) {
	t.Parallel()

	values := row.Row{int64(5), "bob", int64(3)}
	badRegexp := func(op condition.Operator) *condition.Condition {
		return withOperator(leaf("name", condition.FunctionRegexp, "("), op)
	}

	tcs := map[string]struct {
		cond     *condition.Condition
		expected bool
		wantErr  bool
	}{
		"true or":       {cond: condition.NewComposite(leaf("id", condition.FunctionEqual, "5"), badRegexp(condition.OperatorOr)), expected: true},
		"false and":     {cond: condition.NewComposite(leaf("id", condition.FunctionEqual, "6"), badRegexp(condition.OperatorAnd)), expected: false},
		"false and not": {cond: condition.NewComposite(leaf("id", condition.FunctionEqual, "6"), badRegexp(condition.OperatorAndNot)), expected: false},
		"false or":      {cond: condition.NewComposite(leaf("id", condition.FunctionEqual, "6"), badRegexp(condition.OperatorOr)), wantErr: true},
		"true xor":      {cond: condition.NewComposite(leaf("id", condition.FunctionEqual, "5"), badRegexp(condition.OperatorXor)), wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := tc.cond.Evaluate(testLayout(), values)
			if tc.wantErr {
				require.Error(t, err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}
