package condition

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/row"
)

// DefaultEvaluator is the Comparator used by Condition.Evaluate.
var DefaultEvaluator Evaluator = NewComparator()

// Comparator is the default Evaluator. Values are compared numerically when both sides are
// numbers, or when one side is a number and the other parses as one; otherwise they are compared
// by their text form. Nil and the empty string are null, and null sorts before any value.
type Comparator struct {
	patterns sync.Map // string -> *regexp.Regexp
}

// NewComparator returns a Comparator with an empty pattern cache.
func NewComparator() *Comparator {
	return &Comparator{}
}

// Compare implements Evaluator.
func (cmp *Comparator) Compare(fn Function, left, right any) (bool, error) {
	switch fn {
	case FunctionEqual:
		return compareValues(left, right) == 0, nil
	case FunctionNotEqual:
		return compareValues(left, right) != 0, nil
	case FunctionSmaller:
		return compareValues(left, right) < 0, nil
	case FunctionSmallerEqual:
		return compareValues(left, right) <= 0, nil
	case FunctionLarger:
		return compareValues(left, right) > 0, nil
	case FunctionLargerEqual:
		return compareValues(left, right) >= 0, nil
	case FunctionNull:
		return isNull(left), nil
	case FunctionNotNull:
		return !isNull(left), nil
	case FunctionTrue:
		return truthy(left), nil
	case FunctionInList:
		return inList(left, right), nil
	}

	if isNull(left) {
		return false, nil
	}
	l, r := row.FormatValue(left), row.FormatValue(right)

	switch fn {
	case FunctionContains:
		return strings.Contains(l, r), nil
	case FunctionStartsWith:
		return strings.HasPrefix(l, r), nil
	case FunctionEndsWith:
		return strings.HasSuffix(l, r), nil
	case FunctionRegexp:
		re, err := cmp.compile(r, r)
		if err != nil {
			return false, err
		}

		return re.MatchString(l), nil
	case FunctionLike:
		re, err := cmp.compile("like:"+r, likeToRegexp(r))
		if err != nil {
			return false, err
		}

		return re.MatchString(l), nil
	default:
		return false, errors.Wrapf(ErrUnknownFunction, "%d", int(fn))
	}
}

func (cmp *Comparator) compile(key, pattern string) (*regexp.Regexp, error) {
	if re, ok := cmp.patterns.Load(key); ok {
		return re.(*regexp.Regexp), nil //nolint:forcetypeassert
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
	}
	cmp.patterns.Store(key, re)

	return re, nil
}

func likeToRegexp(like string) string {
	var sb strings.Builder
	for _, r := range like {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	return sb.String()
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)

	return ok && s == ""
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToUpper(strings.TrimSpace(val)) {
		case "Y", "YES", "TRUE", "1":
			return true
		}

		return false
	default:
		if n, ok := toNumber(v); ok {
			return n != 0
		}

		return false
	}
}

func inList(left, right any) bool {
	list, ok := right.(string)
	if !ok {
		return compareValues(left, right) == 0
	}
	for _, entry := range strings.Split(list, ";") {
		if compareValues(left, strings.TrimSpace(entry)) == 0 {
			return true
		}
	}

	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func parseNumber(v any) (float64, bool) {
	if n, ok := toNumber(v); ok {
		return n, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)

	return n, err == nil
}

func compareValues(left, right any) int {
	ln, rn := isNull(left), isNull(right)
	switch {
	case ln && rn:
		return 0
	case ln:
		return -1
	case rn:
		return 1
	}

	if li, ok := left.(int64); ok {
		if ri, ok := right.(int64); ok {
			return compareOrdered(li, ri)
		}
	}

	_, lNum := toNumber(left)
	_, rNum := toNumber(right)
	if lNum || rNum {
		lf, lok := parseNumber(left)
		rf, rok := parseNumber(right)
		if lok && rok {
			return compareOrdered(lf, rf)
		}
	}

	if lb, ok := left.(bool); ok {
		if rb, ok := right.(bool); ok {
			return compareOrdered(boolRank(lb), boolRank(rb))
		}
	}

	return strings.Compare(row.FormatValue(left), row.FormatValue(right))
}

func boolRank(b bool) int {
	if b {
		return 1
	}

	return 0
}

func compareOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

var _ Evaluator = (*Comparator)(nil)
