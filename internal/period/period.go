package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMonth is returned for month indexes outside 1..12.
var ErrInvalidMonth = errors.New("month must be between 1 and 12")

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// Window is the inclusive range of instants covered by one calendar month.
type Window struct {
	Year  int
	Month int
	Start time.Time
	End   time.Time
}

// IsLeap reports whether year has a February 29.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year, month int) int {
	switch month {
	case 2:
		if IsLeap(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// MonthOf returns the window for month (1-12) of year in the local zone.
// The end is the last day of the month at 23:59:59.999.
func MonthOf(year, month int) (Window, error) {
	if month < 1 || month > 12 {
		return Window{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	last := DaysIn(year, month)
	return Window{
		Year:  year,
		Month: month,
		Start: time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local),
		End:   time.Date(year, time.Month(month), last, 23, 59, 59, int(999*time.Millisecond), time.Local),
	}, nil
}

// Contains reports whether t falls inside the window, both ends included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Name is the lowercase Spanish month name, e.g. "marzo".
func (w Window) Name() string { return MonthName(w.Month) }

// MonthName returns the lowercase Spanish name of month, or "" when out of range.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}

// Label returns the capitalized month name, e.g. "Marzo".
func Label(month int) string {
	name := MonthName(month)
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
