package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Number is a float64 that decodes leniently from JSON. Numbers and numeric
// strings are accepted; anything else, including empty strings, null and
// unparsable text, decodes as 0.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*n = 0
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		*n = ParseNumber(s)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			f = 0
		}
		*n = Number(f)
	}
	return nil
}

// ParseNumber converts form and query values the same way UnmarshalJSON
// treats strings.
func ParseNumber(s string) Number {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return Number(f)
}
