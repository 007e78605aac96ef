package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/reage-cli/internal/dates"
)

// CleanAmount strips currency symbols, thousands separators and whitespace
// from a money token. It reports false when no number remains.
func CleanAmount(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == '$', r == ',', r == ' ', r == '\t', r == ' ':
		default:
			return "", false
		}
	}
	out := b.String()
	if _, err := strconv.ParseFloat(out, 64); err != nil {
		return "", false
	}
	return out, true
}

// ParseAmount parses a money value, tolerating "$1,200.00" style input.
func ParseAmount(s string) (float64, bool) {
	clean, ok := CleanAmount(strings.TrimSpace(s))
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	return v, err == nil
}

// Amount returns the numeric value of a money field.
func (c CreditFields) Amount(f FieldName) (float64, bool) {
	v, ok := c.Get(f)
	if !ok {
		return 0, false
	}
	return ParseAmount(v)
}

// Date returns the calendar date held by a date field. Values that are not
// recognizable dates are treated as absent.
func (c CreditFields) Date(f FieldName) (time.Time, bool) {
	v, ok := c.Get(f)
	if !ok {
		return time.Time{}, false
	}
	return dates.Parse(v)
}
