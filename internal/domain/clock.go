package domain

import (
	"fmt"
)

// MinutesPerDay is the number of minutes in one calendar day.
const MinutesPerDay = 24 * 60

// ParseError reports a malformed "HH:MM" wall-clock string.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid time %q: expected HH:MM", e.Input)
}

// ToMinutes parses a 24-hour "HH:MM" string into minutes since midnight.
func ToMinutes(hhmm string) (int, error) {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return 0, &ParseError{Input: hhmm}
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if hhmm[i] < '0' || hhmm[i] > '9' {
			return 0, &ParseError{Input: hhmm}
		}
	}
	hours := int(hhmm[0]-'0')*10 + int(hhmm[1]-'0')
	mins := int(hhmm[3]-'0')*10 + int(hhmm[4]-'0')
	if hours > 23 || mins > 59 {
		return 0, &ParseError{Input: hhmm}
	}
	return hours*60 + mins, nil
}

// FormatMinutes renders minutes since midnight as "HH:MM".
// The offset is normalized into [0, MinutesPerDay).
func FormatMinutes(m int) string {
	m %= MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// AddHours returns the wall-clock time the given number of hours after
// hhmm. The hour component wraps modulo 24 and the calendar date is never
// advanced, so "23:00" plus 2 hours yields "01:00" on the same date.
func AddHours(hhmm string, hours int) (string, error) {
	m, err := ToMinutes(hhmm)
	if err != nil {
		return "", err
	}
	return FormatMinutes(m + hours*60), nil
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share at least one minute. Touching endpoints do not
// overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
