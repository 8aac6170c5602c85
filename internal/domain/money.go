package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a monetary amount in integer cents.
// Sums of Money are exact, so a running total and a full recompute agree.
type Money int64

// MaxMagnitude bounds any numeric input in whole units. Larger values are
// treated as unparsable so cent arithmetic stays inside int64.
const MaxMagnitude = 1e13

// Cents builds a Money from a cent count.
func Cents(c int64) Money { return Money(c) }

// MoneyFromFloat rounds f to the nearest cent, half away from zero.
// NaN, infinities and magnitudes above MaxMagnitude become zero.
func MoneyFromFloat(f float64) Money {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > MaxMagnitude {
		return 0
	}
	return Money(math.Round(f * 100))
}

// ParseMoney reads a decimal amount such as "1234.56", "1234,56",
// "1.234,56" or "1,234.56". When both separators appear the last one is the
// decimal mark; a lone comma is always decimal. Anything unparsable yields
// zero.
func ParseMoney(s string) Money {
	f, ok := parseDecimal(s)
	if !ok {
		return 0
	}
	return MoneyFromFloat(f)
}

// Cents returns the raw cent count.
func (m Money) Cents() int64 { return int64(m) }

// Float64 returns the amount in whole units.
func (m Money) Float64() float64 { return float64(m) / 100 }

// Mul multiplies the amount by an integer factor, saturating at the int64
// bounds instead of wrapping.
func (m Money) Mul(n int) Money {
	if m == 0 || n == 0 {
		return 0
	}
	p := m * Money(n)
	if p/Money(n) != m || (n == -1 && m == math.MinInt64) {
		if (m < 0) != (n < 0) {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return p
}

// DivRound divides the amount by n, rounding half away from zero.
// Division by zero yields zero.
func (m Money) DivRound(n int64) Money {
	if n == 0 {
		return 0
	}
	q, r := int64(m)/n, int64(m)%n
	if r == 0 {
		return Money(q)
	}
	if r < 0 {
		r = -r
	}
	absN := n
	if absN < 0 {
		absN = -absN
	}
	if 2*r >= absN {
		if (m < 0) != (n < 0) {
			q--
		} else {
			q++
		}
	}
	return Money(q)
}

// String formats the amount with two decimals, e.g. "-20.00".
func (m Money) String() string {
	sign := ""
	c := uint64(m)
	if m < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number, a numeric string or null.
// Unparsable content decodes to zero rather than failing the payload.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw RawNumber
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = raw.Money()
	return nil
}

// RawNumber is a numeric form field as the client sent it. It accepts JSON
// numbers, strings and null, and is coerced late so empty or garbage input
// can be told apart from an explicit zero.
type RawNumber string

// UnmarshalJSON keeps the textual form of a number or string.
func (n *RawNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*n = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = RawNumber(s)
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*n = ""
	default:
		*n = RawNumber(data)
	}
	return nil
}

// MarshalJSON writes the raw text back as a string.
func (n RawNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(n))
}

// IsBlank reports whether nothing but whitespace was supplied.
func (n RawNumber) IsBlank() bool { return strings.TrimSpace(string(n)) == "" }

// Money coerces the value to cents; unparsable input is zero.
func (n RawNumber) Money() Money { return ParseMoney(string(n)) }

// Float coerces the value to a finite float; unparsable input is zero.
func (n RawNumber) Float() float64 {
	f, ok := parseDecimal(string(n))
	if !ok {
		return 0
	}
	return f
}

// Int coerces the value to an integer, truncating any fraction.
// Values beyond MaxMagnitude are unparsable and yield zero.
func (n RawNumber) Int() int {
	return int(n.Float())
}

func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > MaxMagnitude {
		return 0, false
	}
	return f, true
}
