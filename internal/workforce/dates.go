package workforce

import (
	"time"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid date "+s)
	}
	return t, nil
}

// Today truncates now to its UTC calendar date.
func Today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysInclusive counts calendar days from start to end, both included.
func DaysInclusive(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

// IsFutureDate reports whether date is strictly after today.
func IsFutureDate(date string, now time.Time) bool {
	d, err := ParseDate(date)
	if err != nil {
		return false
	}
	return d.After(Today(now))
}

// Overlap counts the days of [start, end] that fall inside [from, to].
func Overlap(start, end, from, to time.Time) int {
	if start.Before(from) {
		start = from
	}
	if end.After(to) {
		end = to
	}
	if end.Before(start) {
		return 0
	}
	return DaysInclusive(start, end)
}

// StartsAt is the shift's start instant. Times are read as UTC like every
// other date here; a shift without a start time starts at midnight.
func (s Shift) StartsAt() (time.Time, error) {
	if s.Start == "" {
		return ParseDate(s.Date)
	}
	t, err := time.Parse(DateLayout+" 15:04", s.Date+" "+s.Start)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid shift start "+s.Date+" "+s.Start)
	}
	return t, nil
}
