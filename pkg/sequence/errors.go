package sequence

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotReady       = errors.New("stage is not ready")
	ErrAlreadyStarted = errors.New("stage was already initialised")
	ErrNoLayout       = errors.New("row has no layout")
)

// ValidationError is returned for the first row when the condition uses fields the input layout
// does not hold, or when the row comes without a layout.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return "fields not found in input layout: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EvaluationError is returned when the condition cannot be evaluated for a row.
type EvaluationError struct {
	Row string
	Err error
}

func (e *EvaluationError) Error() string {
	return "unable to evaluate condition for row " + e.Row + ": " + e.Err.Error()
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// NumericParseWarning reports a start or increment setting that is not an integer. It is logged,
// never returned: the setting falls back to 0.
type NumericParseWarning struct {
	Setting string
	Text    string
	Err     error
}

func (w *NumericParseWarning) Error() string {
	return "unable to parse " + w.Setting + " " + `"` + w.Text + `"` + " as an integer: " + w.Err.Error()
}

func (w *NumericParseWarning) Unwrap() error {
	return w.Err
}
