package period

import "time"

var monthLengths = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days of month (1-12). February has 29
// days when leap is true. Invalid months return 0.
func DaysInMonth(month int, leap bool) int {
	if month < 1 || month > 12 {
		return 0
	}
	if month == 2 && leap {
		return 29
	}
	return monthLengths[month-1]
}

// Days returns the number of days in the month identified by k.
func (k Key) Days() (int, error) {
	y, m, err := Decode(k)
	if err != nil {
		return 0, err
	}
	return DaysInMonth(m, IsLeapYear(y)), nil
}

// DaysOf returns midnight of every day of the month identified by k, in
// loc, in ascending order.
func DaysOf(k Key, loc *time.Location) ([]time.Time, error) {
	y, m, err := Decode(k)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	n := DaysInMonth(m, IsLeapYear(y))
	days := make([]time.Time, 0, n)
	for d := 1; d <= n; d++ {
		days = append(days, time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc))
	}
	return days, nil
}

// Bounds returns the half-open interval [start, end) covering the month
// identified by k, in loc.
func Bounds(k Key, loc *time.Location) (start, end time.Time, err error) {
	y, m, err := Decode(k)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	start = time.Date(y, time.Month(m), 1, 0, 0, 0, 0, loc)
	end = start.AddDate(0, 1, 0)
	return start, end, nil
}
