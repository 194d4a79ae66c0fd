package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/scheduler"
)

var (
	// ErrInvalidClock indicates a wall-clock value that is not H:MM or HH:MM.
	ErrInvalidClock = errors.New("recurrence: time must use HH:mm format")
	// ErrInvalidWeekday indicates a day that is neither 0-6 nor a weekday name.
	ErrInvalidWeekday = errors.New("recurrence: day of week must be 0-6 or a weekday name")
	// ErrInvalidRange indicates a slot whose end is not after its start.
	ErrInvalidRange = errors.New("recurrence: end time must be after start time")
)

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock accepts H:MM or HH:MM.
func ParseClock(value string) (Clock, error) {
	hourPart, minutePart, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || len(hourPart) < 1 || len(hourPart) > 2 || len(minutePart) != 2 {
		return Clock{}, ErrInvalidClock
	}
	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, ErrInvalidClock
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, ErrInvalidClock
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// String renders the zero-padded HH:mm form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// Before reports whether c is earlier in the day than other.
func (c Clock) Before(other Clock) bool {
	return c.minutes() < other.minutes()
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts 0 (Sunday) through 6 (Saturday) or an English day name.
func ParseWeekday(value string) (time.Weekday, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if n, err := strconv.Atoi(value); err == nil {
		if n < 0 || n > 6 {
			return 0, ErrInvalidWeekday
		}
		return time.Weekday(n), nil
	}
	if day, ok := weekdayNames[value]; ok {
		return day, nil
	}
	return 0, ErrInvalidWeekday
}

// Slot is a weekly recurring window on one day of the week.
type Slot struct {
	Weekday time.Weekday
	Start   Clock
	End     Clock
}

// NewSlot parses both clock values and requires end > start.
func NewSlot(day time.Weekday, start, end string) (Slot, error) {
	if day < time.Sunday || day > time.Saturday {
		return Slot{}, ErrInvalidWeekday
	}
	startClock, err := ParseClock(start)
	if err != nil {
		return Slot{}, err
	}
	endClock, err := ParseClock(end)
	if err != nil {
		return Slot{}, err
	}
	if !startClock.Before(endClock) {
		return Slot{}, ErrInvalidRange
	}
	return Slot{Weekday: day, Start: startClock, End: endClock}, nil
}

// Overlaps reports whether two slots fall on the same weekday with
// overlapping half-open time ranges.
func (s Slot) Overlaps(other Slot) bool {
	if s.Weekday != other.Weekday {
		return false
	}
	return s.Start.minutes() < other.End.minutes() && other.Start.minutes() < s.End.minutes()
}

// Engine materializes weekly slots onto concrete dates.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine anchoring wall-clock times in loc.
// If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// Location returns the zone used to anchor wall-clock times.
func (e *Engine) Location() *time.Location {
	return e.location
}

// Occurrence returns the absolute window of slot on date. ok is false when
// the slot does not recur on that date's weekday.
func (e *Engine) Occurrence(slot Slot, date scheduler.Date) (scheduler.Interval, bool) {
	if date.IsZero() || slot.Weekday != date.Weekday() || !slot.Start.Before(slot.End) {
		return scheduler.Interval{}, false
	}
	return scheduler.Interval{
		Start: date.At(slot.Start.Hour, slot.Start.Minute, e.location),
		End:   date.At(slot.End.Hour, slot.End.Minute, e.location),
	}, true
}

// Combine anchors an HH:mm value on date.
func (e *Engine) Combine(date scheduler.Date, clock string) (time.Time, error) {
	c, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return date.At(c.Hour, c.Minute, e.location), nil
}
