package config

import (
	"strconv"
	"strings"

	"github.com/askiada/go-filter-sequence/pkg/row"
)

// Severity of a check remark.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "ERROR"
	}

	return "OK"
}

// Remark is one result of Check.
type Remark struct {
	Severity Severity
	Message  string
}

// Check reviews the settings against the layout of the previous step and the names of the steps
// feeding this one.
func (m *Meta) Check(prev *row.Layout, inputs []string) []Remark {
	remarks := make([]Remark, 0, 4)

	if m.Condition.IsEmpty() {
		remarks = append(remarks, Remark{SeverityError, "no condition specified"})
	} else {
		remarks = append(remarks, Remark{SeverityOK, "condition specified"})
	}

	if prev.Len() > 0 {
		remarks = append(remarks, Remark{SeverityOK, "step is receiving " + strconv.Itoa(prev.Len()) + " fields"})

		orphans := m.OrphanFields(prev)
		if len(orphans) > 0 {
			remarks = append(remarks, Remark{SeverityError, "fields not found in previous step: " + strings.Join(orphans, ", ")})
		} else {
			remarks = append(remarks, Remark{SeverityOK, "all fields found in the input stream"})
		}
	} else {
		remarks = append(remarks, Remark{SeverityError, "could not read fields from previous step"})
	}

	if len(inputs) > 0 {
		remarks = append(remarks, Remark{SeverityOK, "step is receiving rows from " + strings.Join(inputs, ", ")})
	} else {
		remarks = append(remarks, Remark{SeverityError, "no input received from other steps"})
	}

	return remarks
}

// HasErrors reports whether any remark is an error.
func HasErrors(remarks []Remark) bool {
	for _, r := range remarks {
		if r.Severity == SeverityError {
			return true
		}
	}

	return false
}
