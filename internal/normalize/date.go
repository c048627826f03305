package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadDate marks input that cannot be read as a settlement date.
var ErrBadDate = errors.New("unrecognizable date")

// DateKey canonicalizes a date token to dd/mm/yyyy. Accepted shapes:
// yyyy-mm-dd (ISO), dd/mm/yyyy and dd/mm/yy, with "/", "-", "." or space as
// separator. Two-digit years are assumed in the 2000s.
func DateKey(raw string) (string, error) {
	parts := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return r == '/' || r == '-' || r == '.' || r == ' '
	})
	if len(parts) != 3 {
		return "", ErrBadDate
	}

	var day, month, year int
	var err error
	if len(parts[0]) == 4 {
		// ISO order: year first.
		year, month, day, err = atoi3(parts[0], parts[1], parts[2])
	} else {
		day, month, year, err = atoi3(parts[0], parts[1], parts[2])
		if err == nil && year < 100 {
			year += 2000
		}
	}
	if err != nil {
		return "", ErrBadDate
	}

	// time.Date normalizes overflow (31/02 becomes 02/03 or 03/03); a
	// round-trip mismatch means the calendar date never existed.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return "", ErrBadDate
	}
	return fmt.Sprintf("%02d/%02d/%04d", day, month, year), nil
}

// SameDateKey reports whether a raw ledger cell refers to the given
// canonical key, tolerating the cell being in any accepted date shape.
func SameDateKey(cell, key string) bool {
	if strings.TrimSpace(cell) == key {
		return true
	}
	got, err := DateKey(cell)
	return err == nil && got == key
}

func atoi3(a, b, c string) (int, int, int, error) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, 0, err
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, 0, err
	}
	z, err := strconv.Atoi(c)
	if err != nil {
		return 0, 0, 0, err
	}
	return x, y, z, nil
}
