package scheduler

import "time"

// Interval is a half-open time window [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the interval has a strictly positive length.
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether the two half-open intervals share any instant.
func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i.Start, i.End, other.Start, other.End)
}

// Overlaps applies the tie-break used by every conflict check: touching
// boundaries (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// OverlapsAny reports whether candidate overlaps at least one of the intervals.
func OverlapsAny(candidate Interval, intervals []Interval) bool {
	for _, interval := range intervals {
		if candidate.Overlaps(interval) {
			return true
		}
	}
	return false
}

// NextAvailableSlot scans forward one hour at a time, starting from now+1h
// truncated to the top of its hour, and returns the first window of the given number
// of hours that overlaps none of the occupied intervals. The occupied set must
// be finite; the scan ends once it passes the last occupied interval.
func NextAvailableSlot(now time.Time, occupied []Interval, hours int) Interval {
	if hours < 1 {
		hours = 1
	}
	length := time.Duration(hours) * time.Hour
	candidate := topOfHour(now.Add(time.Hour))
	for {
		window := Interval{Start: candidate, End: candidate.Add(length)}
		if !OverlapsAny(window, occupied) {
			return window
		}
		candidate = candidate.Add(time.Hour)
	}
}

// WholeHours rounds a duration up to whole hours with a minimum of one.
func WholeHours(d time.Duration) int {
	if d <= time.Hour {
		return 1
	}
	hours := int(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	return hours
}

func topOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
