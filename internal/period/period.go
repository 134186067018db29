// Package period identifies calendar months with a compact MMYYYY key and
// provides the calendar arithmetic the aggregation engine is built on.
//
// The MMYYYY ordering (month first) is the format of identifiers already
// persisted by every record store, so it must not be changed to YYYYMM.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key is a calendar month encoded as MMYYYY, e.g. "062024".
type Key string

const minYear = 1970

var (
	ErrInvalidPeriod = errors.New("invalid period")
	ErrMalformedKey  = errors.New("malformed period key")
)

// Encode builds the key for the given year and month (1-12).
func Encode(year, month int) (Key, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, month)
	}
	if year < minYear || year > 9999 {
		return "", fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, year)
	}
	return Key(fmt.Sprintf("%02d%04d", month, year)), nil
}

// MustEncode is like Encode but panics on invalid input. Meant for tests and constants.
func MustEncode(year, month int) Key {
	k, err := Encode(year, month)
	if err != nil {
		panic(err)
	}
	return k
}

// Decode returns the year and month encoded in key.
func Decode(key Key) (year, month int, err error) {
	s := string(key)
	if len(s) != 6 {
		return 0, 0, fmt.Errorf("%w: %q must be 6 digits", ErrMalformedKey, s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, fmt.Errorf("%w: %q must be 6 digits", ErrMalformedKey, s)
		}
	}

	// "06" -> "6"; "00" trims to "" and is rejected below
	monthPart := strings.TrimLeft(s[0:2], "0")
	month, err = strconv.Atoi(monthPart)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: %q has invalid month", ErrMalformedKey, s)
	}
	year, err = strconv.Atoi(s[2:6])
	if err != nil || year < minYear {
		return 0, 0, fmt.Errorf("%w: %q has invalid year", ErrMalformedKey, s)
	}
	return year, month, nil
}

// Parse validates s and returns it as a Key.
func Parse(s string) (Key, error) {
	k := Key(strings.TrimSpace(s))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Current returns the key of the current month in the local calendar.
func Current() Key {
	return CurrentIn(time.Local)
}

// CurrentIn returns the key of the current month in loc.
func CurrentIn(loc *time.Location) Key {
	return FromTime(time.Now().In(loc))
}

// FromTime returns the key of the month t falls in, using t's location.
func FromTime(t time.Time) Key {
	return Key(fmt.Sprintf("%02d%04d", int(t.Month()), t.Year()))
}

// FromMillis returns the key of the month an epoch-millisecond timestamp
// falls in, in loc.
func FromMillis(ms int64, loc *time.Location) Key {
	return FromTime(time.UnixMilli(ms).In(loc))
}

// Validate reports whether k decodes to a valid month.
func (k Key) Validate() error {
	_, _, err := Decode(k)
	return err
}

// Year returns the year of k, or 0 if k is malformed.
func (k Key) Year() int {
	y, _, err := Decode(k)
	if err != nil {
		return 0
	}
	return y
}

// Month returns the month of k (1-12), or 0 if k is malformed.
func (k Key) Month() int {
	_, m, err := Decode(k)
	if err != nil {
		return 0
	}
	return m
}

// Label returns a human readable name such as "June 2024".
func (k Key) Label() string {
	y, m, err := Decode(k)
	if err != nil {
		return string(k)
	}
	return fmt.Sprintf("%s %d", time.Month(m).String(), y)
}

// Previous returns the key of the month before k.
func (k Key) Previous() (Key, error) {
	y, m, err := Decode(k)
	if err != nil {
		return "", err
	}
	m--
	if m < 1 {
		m = 12
		y--
	}
	return Encode(y, m)
}

// Next returns the key of the month after k.
func (k Key) Next() (Key, error) {
	y, m, err := Decode(k)
	if err != nil {
		return "", err
	}
	m++
	if m > 12 {
		m = 1
		y++
	}
	return Encode(y, m)
}

func (k Key) String() string {
	return string(k)
}
