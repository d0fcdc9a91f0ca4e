package domain

import (
	"encoding/json"
	"math"
)

// LooseString reads a JSON string, or a number as its literal text.
// Anything else, including null, reads as "".
func LooseString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// LooseFloat reads a JSON number or a numeric string.
func LooseFloat(raw json.RawMessage) (float64, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil || n == "" {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// LooseInt reads a JSON number or a numeric string, rounded to an int.
func LooseInt(raw json.RawMessage) (int, bool) {
	f, ok := LooseFloat(raw)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}
