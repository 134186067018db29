// Package core holds the domain model shared by the aggregation engine,
// the record sources and the HTTP layer.
//
// This file contains the conversions between user-entered decimal amounts,
// minor units (cents) and major units.
package core

import (
	"strconv"
	"strings"
)

// minorPerMajor is fixed: every supported currency has two decimal places.
const minorPerMajor = 100

// ParseDecimalToCents converts a positive decimal string to cents.
//
// Both "12.34" and "12,34" are accepted; a third decimal digit is rounded
// half-up. Zero, negative and malformed values return ErrInvalidAmount.
//
//	ParseDecimalToCents("12,34")  -> 1234
//	ParseDecimalToCents("12.345") -> 1235
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return 0, ErrInvalidAmount
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || iv > (1<<63-1)/minorPerMajor {
		return 0, ErrInvalidAmount
	}

	var frac int64
	switch {
	case len(fracPart) >= 2:
		frac = int64(fracPart[0]-'0')*10 + int64(fracPart[1]-'0')
		if len(fracPart) > 2 && fracPart[2] >= '5' {
			frac++
		}
	case len(fracPart) == 1:
		frac = int64(fracPart[0]-'0') * 10
	}

	cents := iv*minorPerMajor + frac
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// MajorUnits converts cents to major units for display.
func MajorUnits(cents int64) float64 {
	return float64(cents) / minorPerMajor
}

// FormatCents renders cents as "12.34" (negative values get a leading "-").
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	rem := strconv.FormatInt(cents%minorPerMajor, 10)
	if len(rem) < 2 {
		rem = "0" + rem
	}
	return sign + strconv.FormatInt(cents/minorPerMajor, 10) + "." + rem
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
