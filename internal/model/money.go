package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// decimalPattern is plain decimal notation with an optional exponent.
// Hex floats, digit separators, NaN and Inf are not amounts.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// maxCents bounds |cents| so the result fits an int64.
const maxCents = 1 << 63

// ParseCents converts decimal string amounts (dollars) to cents (int64).
// Lenient: empty or unparseable input yields 0. Use ParseAmount when bad
// input must be rejected.
// Examples: "99.00" → 9900, "1234.56" → 123456, "" → 0
func ParseCents(s string) int64 {
	c, err := ParseAmount(s)
	if err != nil {
		return 0
	}
	return c
}

// ParseAmount converts a decimal amount in major units to cents.
// Empty input is zero. Anything else that is not a finite number is an error.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !decimalPattern.MatchString(s) {
		return 0, fmt.Errorf("parse amount %q: not a decimal number", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	cents := math.Round(f * 100)
	if math.IsNaN(cents) || math.Abs(cents) >= maxCents {
		return 0, fmt.Errorf("parse amount %q: out of range", s)
	}
	return int64(cents), nil
}

// FormatCents renders cents as a decimal string with two places.
// Examples: 2650 → "26.50", 5 → "0.05", -1000 → "-10.00"
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
