// Package normalize turns locale-ambiguous operator input — amounts typed
// with mixed thousands/decimal separators, dates in half a dozen shapes —
// into canonical values the rest of the system can trust.
package normalize

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrUnparseable marks input that cannot be read as an amount. Callers must
// treat it as absence, never as zero.
var ErrUnparseable = errors.New("unparseable amount")

const (
	maxIntegerDigits = 12
	maxMagnitude     = 1e12
)

// Amount parses a numeric token that may use either "." or "," as the
// decimal separator, with the other (if present) read as thousands grouping.
// When only one separator appears it is decimal only if exactly two digits
// follow it; otherwise it is grouping and discarded. The result is rounded
// to two decimal places.
func Amount(raw string) (float64, error) {
	cleaned := cleanAmount(raw)
	neg := strings.HasPrefix(cleaned, "-")
	if neg {
		cleaned = cleaned[1:]
	}
	if cleaned == "" {
		return 0, ErrUnparseable
	}

	dot := strings.LastIndex(cleaned, ".")
	comma := strings.LastIndex(cleaned, ",")

	var intPart, fracPart string
	switch {
	case dot >= 0 && comma >= 0:
		// Both present: the right-most one is the decimal separator.
		sep := dot
		if comma > dot {
			sep = comma
		}
		intPart = stripSeparators(cleaned[:sep])
		fracPart = stripSeparators(cleaned[sep+1:])
	case dot >= 0 || comma >= 0:
		sep := dot
		if comma >= 0 {
			sep = comma
		}
		if len(cleaned)-sep-1 == 2 {
			intPart = stripSeparators(cleaned[:sep])
			fracPart = cleaned[sep+1:]
		} else {
			intPart = stripSeparators(cleaned)
		}
	default:
		intPart = cleaned
	}

	if intPart == "" && fracPart == "" {
		return 0, ErrUnparseable
	}
	if len(intPart) > maxIntegerDigits {
		return 0, ErrUnparseable
	}

	v, err := strconv.ParseFloat(intPart+"."+orZero(fracPart), 64)
	if err != nil {
		return 0, ErrUnparseable
	}
	if v > maxMagnitude {
		return 0, ErrUnparseable
	}
	if neg {
		v = -v
	}
	return Round2(v), nil
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatAmount renders an amount the way it is written into the ledger:
// no trailing zeros, "." as decimal separator.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(Round2(v), 'f', -1, 64)
}

// cleanAmount keeps digits, ".", "," and a leading "-"; everything else
// (currency signs, spaces, letters) is stripped.
func cleanAmount(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripSeparators(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", "")
}

func orZero(frac string) string {
	if frac == "" {
		return "0"
	}
	return frac
}
