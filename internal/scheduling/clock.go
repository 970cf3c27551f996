package scheduling

import (
	"errors"
	"fmt"
	"time"

	"barberbook/internal/models"
)

// MinutesPerDay is the exclusive upper bound of a day in minutes.
const MinutesPerDay = 24 * 60

var ErrInvalidClock = errors.New("invalid clock value, expected HH:MM")

// ParseClock converts "HH:MM" to minutes since midnight.
// "24:00" is accepted and maps to MinutesPerDay so a day can close at midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, okH := twoDigits(s[0:2])
	m, okM := twoDigits(s[3:5])
	if !okH || !okM || h > 24 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// FormatClock renders minutes since midnight as zero-padded "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses a calendar date in YYYY-MM-DD form as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(models.DateLayout, s)
}

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
