package condition

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrUnknownFunction = errors.New("unknown function")
)

// Operator joins a condition to the result of its preceding siblings.
type Operator int

const (
	OperatorNone Operator = iota
	OperatorOr
	OperatorAnd
	OperatorNot
	OperatorOrNot
	OperatorAndNot
	OperatorXor
)

var operatorNames = []string{"-", "OR", "AND", "NOT", "OR NOT", "AND NOT", "XOR"}

func (o Operator) String() string {
	if int(o) >= 0 && int(o) < len(operatorNames) {
		return operatorNames[o]
	}

	return "?"
}

// ParseOperator parses an operator description. An empty description is OperatorNone.
func ParseOperator(desc string) (Operator, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return OperatorNone, nil
	}
	for i, name := range operatorNames {
		if strings.EqualFold(name, desc) {
			return Operator(i), nil
		}
	}

	return OperatorNone, errors.Wrapf(ErrUnknownOperator, "%q", desc)
}

// settled reports whether joining any operand with o leaves acc unchanged.
func (o Operator) settled(acc bool) bool {
	switch o {
	case OperatorOr, OperatorOrNot:
		return acc
	case OperatorAnd, OperatorAndNot, OperatorNot:
		return !acc
	default:
		return false
	}
}

// combine folds next into acc. XOR runs are folded by the composite.
func (o Operator) combine(acc, next bool) bool {
	switch o {
	case OperatorOr:
		return acc || next
	case OperatorAnd:
		return acc && next
	case OperatorNot, OperatorAndNot:
		return acc && !next
	case OperatorOrNot:
		return acc || !next
	default:
		return next
	}
}

// Function is the comparison applied by a leaf.
type Function int

const (
	FunctionEqual Function = iota
	FunctionNotEqual
	FunctionSmaller
	FunctionSmallerEqual
	FunctionLarger
	FunctionLargerEqual
	FunctionRegexp
	FunctionNull
	FunctionNotNull
	FunctionInList
	FunctionContains
	FunctionStartsWith
	FunctionEndsWith
	FunctionLike
	FunctionTrue
)

var functionNames = []string{
	"=", "<>", "<", "<=", ">", ">=", "REGEXP", "IS NULL", "IS NOT NULL",
	"IN LIST", "CONTAINS", "STARTS WITH", "ENDS WITH", "LIKE", "TRUE",
}

func (f Function) String() string {
	if int(f) >= 0 && int(f) < len(functionNames) {
		return functionNames[f]
	}

	return "?"
}

// unary reports whether the function ignores the right hand side.
func (f Function) unary() bool {
	return f == FunctionNull || f == FunctionNotNull || f == FunctionTrue
}

// ParseFunction parses a function description. An empty description is FunctionEqual.
func ParseFunction(desc string) (Function, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return FunctionEqual, nil
	}
	for i, name := range functionNames {
		if strings.EqualFold(name, desc) {
			return Function(i), nil
		}
	}

	return FunctionEqual, errors.Wrapf(ErrUnknownFunction, "%q", desc)
}
