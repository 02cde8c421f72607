// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and their decimal representation.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//   ParseDecimalToCents("12.34") -> 1234, nil
//   ParseDecimalToCents("12,34") -> 1234, nil
//   ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//   ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseSalaryToCents is like ParseDecimalToCents but accepts zero, and an
// empty string means zero.
func ParseSalaryToCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return parseCents(s)
}

func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeAmount
	}
	if strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
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
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv >= maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
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
	return iv*100 + fracCents, nil
}

// Add returns the sum of two amounts.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// Sub returns m minus other. The result may be negative.
func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// String formats the amount with two decimals, e.g. 1250 -> "12.50".
// Use cents for calculations; this is for display only.
func (m Money) String() string {
	c := m.Cents
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
