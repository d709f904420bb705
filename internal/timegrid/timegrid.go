// Package timegrid provides interval arithmetic over wall-clock times
// at HH:MM granularity. All values are minutes since midnight in the
// branch's local time; no timezone conversion happens here.
package timegrid

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time expressed as minutes since midnight.
type Clock int

const minutesPerDay = 24 * 60

// ParseClock parses a "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %s", s)
	}

	return Clock(hour*60 + minute), nil
}

// String formats the clock as "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns the clock shifted forward by the given number of minutes.
// The result is capped at midnight; a booking never crosses a day boundary.
func (c Clock) Add(minutes int) Clock {
	v := int(c) + minutes
	if v > minutesPerDay {
		v = minutesPerDay
	}
	return Clock(v)
}

// Interval is a half-open-by-convention time range within a single day.
// Invariant: Start < End for any interval produced by this package.
type Interval struct {
	Start Clock
	End   Clock
}

// ParseInterval parses a "HH:MM-HH:MM" string.
func ParseInterval(s string) (Interval, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("invalid interval format: %s", s)
	}
	start, err := ParseClock(parts[0])
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return Interval{}, err
	}
	if start >= end {
		return Interval{}, fmt.Errorf("interval start must precede end: %s", s)
	}
	return Interval{Start: start, End: end}, nil
}

// String formats the interval as "HH:MM-HH:MM".
func (iv Interval) String() string {
	return iv.Start.String() + "-" + iv.End.String()
}

// Minutes returns the interval length in minutes.
func (iv Interval) Minutes() int {
	return int(iv.End - iv.Start)
}

// Overlaps reports whether two intervals strictly overlap.
// Touching intervals (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner Interval) bool {
	return outer.Start <= inner.Start && outer.End >= inner.End
}

// Subtract removes every busy range from the window and returns the
// remaining free sub-intervals, sorted by start. Busy ranges may be
// unsorted and may overlap each other. Ranges that exactly abut the
// window or each other are treated as disjoint.
func Subtract(window Interval, busy []Interval) []Interval {
	free := []Interval{window}
	if len(busy) == 0 {
		return free
	}

	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sortIntervals(sorted)

	for _, b := range sorted {
		next := free[:0:0]
		for _, f := range free {
			if b.End <= f.Start || b.Start >= f.End {
				next = append(next, f)
				continue
			}
			if f.Start < b.Start {
				next = append(next, Interval{Start: f.Start, End: b.Start})
			}
			if b.End < f.End {
				next = append(next, Interval{Start: b.End, End: f.End})
			}
		}
		free = next
		if len(free) == 0 {
			break
		}
	}

	return free
}

func sortIntervals(ivs []Interval) {
	// Insertion sort; busy lists are a handful of bookings per day.
	for i := 1; i < len(ivs); i++ {
		for j := i; j > 0 && ivs[j].Start < ivs[j-1].Start; j-- {
			ivs[j], ivs[j-1] = ivs[j-1], ivs[j]
		}
	}
}

// DayOfWeek returns the day-of-week index used by the schedule tables:
// Monday = 0 .. Sunday = 6.
func DayOfWeek(date time.Time) int {
	wd := int(date.Weekday()) // Sunday = 0
	return (wd + 6) % 7
}

// DateString formats a date as "YYYY-MM-DD".
func DateString(date time.Time) string {
	return date.Format("2006-01-02")
}

// ParseDate parses a "YYYY-MM-DD" calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
