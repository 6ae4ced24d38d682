package stats

import (
	"slices"
	"time"
)

// Streak counts consecutive calendar days with at least one event, walking
// backward from the day containing now.
//
// Dates are visited newest first with a cursor starting at today. A date equal
// to the cursor extends the streak and moves the cursor back one day. A date
// one day after the cursor also extends the streak and resets the cursor to
// the day before that date; this tolerates events stamped "tomorrow" by clock
// or timezone skew, and lets such a day count toward the streak. Any other
// date ends the walk.
func Streak(events []Event, now time.Time, loc *time.Location) int {
	if len(events) == 0 {
		return 0
	}
	return streakFromDays(activeDays(events, loc), dayNumber(now, loc))
}

// activeDays returns the distinct local dates with events as day numbers,
// newest first.
func activeDays(events []Event, loc *time.Location) []int64 {
	seen := make(map[int64]struct{}, len(events))
	days := make([]int64, 0, len(events))
	for _, e := range events {
		d := dayNumber(e.OccurredAt, loc)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	slices.Sort(days)
	slices.Reverse(days)
	return days
}

func streakFromDays(days []int64, today int64) int {
	streak := 0
	cursor := today
	for _, d := range days {
		switch d {
		case cursor:
			streak++
			cursor--
		case cursor + 1:
			streak++
			cursor = d - 1
		default:
			return streak
		}
	}
	return streak
}

// dayNumber returns the calendar date of t in loc as days since 1970-01-01.
// Civil dates are compared instead of instants because local midnight does
// not exist on some DST transition days.
func dayNumber(t time.Time, loc *time.Location) int64 {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}
