// Package scheduling computes bookable time slots. Every function here is
// pure: results depend only on the arguments.
package scheduling

import (
	"errors"
	"fmt"
	"time"

	"barberbook/internal/models"
)

// Interval is a half-open range [Start, End) in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether two half-open intervals share any minute.
// Touching intervals ([09:00,10:00) and [10:00,10:30)) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && i.End > o.Start
}

// Overlaps is the free-function form of Interval.Overlaps.
func Overlaps(a, b Interval) bool {
	return a.Overlaps(b)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s,%s)", FormatClock(i.Start), FormatClock(i.End))
}

// OpenInterval returns the professional's working window for date.
// ok is false when the weekday has no entry or the entry is malformed.
func OpenInterval(wh models.WorkingHours, date time.Time) (Interval, bool) {
	day := wh.For(date)
	if day == nil {
		return Interval{}, false
	}
	iv, err := dayInterval(day)
	if err != nil {
		return Interval{}, false
	}
	return iv, true
}

func dayInterval(day *models.DayHours) (Interval, error) {
	start, err := ParseClock(day.Start)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock(day.End)
	if err != nil {
		return Interval{}, err
	}
	if start >= end {
		return Interval{}, fmt.Errorf("start %s is not before end %s", day.Start, day.End)
	}
	return Interval{Start: start, End: end}, nil
}

// ValidateWorkingHours rejects unknown weekday keys and malformed or inverted windows.
func ValidateWorkingHours(wh models.WorkingHours) error {
	known := make(map[string]bool, len(models.Weekdays))
	for _, d := range models.Weekdays {
		known[d] = true
	}
	var errs []error
	for day, hours := range wh {
		if !known[day] {
			errs = append(errs, fmt.Errorf("unknown weekday %q", day))
			continue
		}
		if hours == nil {
			continue
		}
		if _, err := dayInterval(hours); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", day, err))
		}
	}
	return errors.Join(errs...)
}

// ServiceDuration resolves the duration of serviceID, falling back to
// models.DefaultServiceMinutes when the service is unknown.
func ServiceDuration(services map[string]*models.Service, serviceID string) int {
	if svc, ok := services[serviceID]; ok && svc != nil && svc.DurationMinutes > 0 {
		return svc.DurationMinutes
	}
	return models.DefaultServiceMinutes
}

// OccupiedIntervals maps appointments of one professional and one date to
// the time ranges they block. Cancelled appointments block nothing. The
// duration recorded on the appointment wins over the catalog so a later
// change to a service does not move existing bookings. An active row whose
// start cannot be read blocks the whole day.
func OccupiedIntervals(appointments []*models.Appointment, services map[string]*models.Service) []Interval {
	out := make([]Interval, 0, len(appointments))
	for _, a := range appointments {
		if a == nil || !a.IsActive() {
			continue
		}
		start, err := ParseClock(a.StartTime)
		if err != nil {
			out = append(out, Interval{Start: 0, End: MinutesPerDay})
			continue
		}
		d := a.DurationMinutes
		if d <= 0 {
			d = ServiceDuration(services, a.ServiceID)
		}
		out = append(out, Interval{Start: start, End: start + d})
	}
	return out
}

// UnreadableStarts returns the IDs of active appointments whose start time
// does not parse.
func UnreadableStarts(appointments []*models.Appointment) []string {
	var ids []string
	for _, a := range appointments {
		if a == nil || !a.IsActive() {
			continue
		}
		if _, err := ParseClock(a.StartTime); err != nil {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// GenerateSlots lists every step-aligned start inside open where a booking of
// duration minutes fits before close and overlaps nothing in occupied.
// Alignment is to midnight, so an 09:15 opening with step 30 starts at 09:30.
func GenerateSlots(open Interval, occupied []Interval, duration, step int) []string {
	slots := []string{}
	if duration <= 0 || open.End <= open.Start {
		return slots
	}
	if step <= 0 {
		step = models.DefaultSlotStepMinutes
	}

	first := ((open.Start + step - 1) / step) * step
	for s := first; s+duration <= open.End; s += step {
		candidate := Interval{Start: s, End: s + duration}
		if !conflicts(candidate, occupied) {
			slots = append(slots, FormatClock(s))
		}
	}
	return slots
}

// Conflicts reports whether candidate overlaps any occupied interval.
func Conflicts(candidate Interval, occupied []Interval) bool {
	return conflicts(candidate, occupied)
}

func conflicts(candidate Interval, occupied []Interval) bool {
	for _, o := range occupied {
		if candidate.Overlaps(o) {
			return true
		}
	}
	return false
}

// IsPastOrOutOfWindow reports whether date falls before today or more than
// maxAdvanceDays after it. Both are reduced to their calendar day in their
// own location before comparing.
func IsPastOrOutOfWindow(date, today time.Time, maxAdvanceDays int) bool {
	d := calendarDay(date)
	t := calendarDay(today)
	if d.Before(t) {
		return true
	}
	return d.After(t.AddDate(0, 0, maxAdvanceDays))
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
