package row

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidValue is returned when a text cannot be converted to the type of its field.
var ErrInvalidValue = errors.New("invalid value")

// ParseValue converts text to the Go value of type t: int64, float64, bool or string.
func ParseValue(t Type, text string) (any, error) {
	switch t {
	case TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidValue, "%q is not an integer", text)
		}

		return n, nil
	case TypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidValue, "%q is not a number", text)
		}

		return n, nil
	case TypeBoolean:
		switch strings.ToUpper(strings.TrimSpace(text)) {
		case "Y", "TRUE", "1", "YES":
			return true, nil
		case "N", "FALSE", "0", "NO", "":
			return false, nil
		default:
			return nil, errors.Wrapf(ErrInvalidValue, "%q is not a boolean", text)
		}
	default:
		return text, nil
	}
}
