package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a lenient numeric value. Catalog feeds carry prices and counts
// as JSON numbers, numeric strings or garbage; anything that does not parse
// leaves the Number unset instead of failing the whole record.
type Number struct {
	Value float64
	Valid bool
}

func NewNumber(v float64) Number { return Number{Value: v, Valid: true} }

func (n Number) Float64() (float64, bool) { return n.Value, n.Valid }

func (n Number) Int64() (int64, bool) {
	if !n.Valid {
		return 0, false
	}
	return int64(n.Value), true
}

// ParseNumber parses a decimal numeric string as a whole. Partial numbers
// ("5-10"), hex floats, NaN, infinities and values out of float64 range are
// rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if f, ok := ParseNumber(s); ok {
			*n = NewNumber(f)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = NewNumber(f)
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// FlexString accepts a JSON string or number. Identifiers exported from
// spreadsheets regularly arrive as numbers.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	*s = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return nil
	}
	*s = FlexString(num.String())
	return nil
}

func (s FlexString) String() string { return string(s) }

// StringList accepts a list of strings, a single string, or a list mixing
// strings and numbers.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	*l = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s != "" {
			*l = StringList{s}
		}
		return nil
	case '[':
		var raw []FlexString
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil
		}
		out := make(StringList, 0, len(raw))
		for _, r := range raw {
			if r != "" {
				out = append(out, string(r))
			}
		}
		*l = out
	}
	return nil
}

// unmarshalNameOr decodes b into obj unless it is a bare string, in which
// case the string is handed to setName.
func unmarshalNameOr(b []byte, obj any, setName func(string)) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		setName(s)
		return nil
	}
	return json.Unmarshal(b, obj)
}
