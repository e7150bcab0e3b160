// Package core holds the brokerage domain: entities, validation and the
// pure helpers used to render them (money, CPF, phone, statistics).
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in BRL cents.
type Money struct {
	Cents int64
}

// ParseBRL converts a Brazilian-formatted amount to cents.
//
// A comma is the decimal separator and dots group thousands ("1.234,56").
// Without a comma, a single dot followed by exactly three digits is read as a
// thousands separator ("1.234"), any other single dot as a decimal point
// ("1234.56"). A leading "R$" is ignored. The third decimal rounds half-up.
// Zero, negative and malformed values return ErrInvalidAmount.
//
//	ParseBRL("1.234,56") -> 123456, nil
//	ParseBRL("R$ 10")    -> 1000, nil
//	ParseBRL("12,345")   -> 1235, nil
func ParseBRL(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case strings.Count(s, ".") == 1:
		if i := strings.Index(s, "."); len(s)-i-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}

	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// FormatBRL renders cents as "R$ 1.234,56".
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	reais := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	for i, r := range reais {
		if i > 0 && (len(reais)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "R$ " + b.String() + "," + twoDigits(cents%100)
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

func (m Money) String() string {
	return FormatBRL(m.Cents)
}

// Add returns the sum of both amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Percent applies a rate in basis points, rounding half-up. The amount is
// split at 10000 cents so the product stays inside int64.
func (m Money) Percent(bps int) Money {
	b := int64(bps)
	return Money{Cents: m.Cents/10000*b + (m.Cents%10000*b+5000)/10000}
}

// Decimal renders the amount for form inputs, e.g. "1234,56".
func (m Money) Decimal() string {
	return strconv.FormatInt(m.Cents/100, 10) + "," + twoDigits(m.Cents%100)
}
