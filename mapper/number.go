package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Number is a form field that may arrive as a JSON number, a string or null.
// The raw text is kept and parsed on demand.
type Number string

// UnmarshalJSON accepts numbers, strings and null
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*n = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
	case len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')):
		*n = Number(data)
	default:
		return fmt.Errorf("form number must be a number, string or null, got %s", data)
	}
	return nil
}

// MarshalJSON writes parseable values as numbers and everything else as a string
func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("null"), nil
	}
	if v := n.Float(); v != nil && strings.TrimSpace(string(n)) == strconv.FormatFloat(*v, 'f', -1, 64) {
		return []byte(strconv.FormatFloat(*v, 'f', -1, 64)), nil
	}
	return json.Marshal(string(n))
}

var (
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
)

// Float parses the leading decimal number, so "120 mg/dL" reads as 120.
// Empty, unparsable and non-finite values give nil.
func (n Number) Float() *float64 {
	s := floatPrefix.FindString(strings.TrimSpace(string(n)))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Int parses the leading integer, so "2.7" reads as 2
func (n Number) Int() *int64 {
	s := intPrefix.FindString(strings.TrimSpace(string(n)))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
