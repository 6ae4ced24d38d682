// Package stats computes dashboard statistics over a user's analysis events.
//
// Every function here is pure: callers load the events (already scoped to a
// single user) and pass the reference time and location explicitly.
package stats

import (
	"time"
)

// WeeksInTrend is the number of calendar weeks reported by WeeklyEmotions.
const WeeksInTrend = 8

// DayNames labels the weekly activity buckets, Monday first.
var DayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Event is the slice of an analysis the aggregations need.
type Event struct {
	Emotion    string
	Confidence float64
	OccurredAt time.Time
}

// EmotionCount is one row of the emotion distribution.
type EmotionCount struct {
	Emotion    string  `json:"emotion"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DayActivity is the number of analyses recorded on one weekday.
type DayActivity struct {
	Day           string `json:"day"`
	AnalysesCount int    `json:"analyses_count"`
}

// WeekEmotions counts emotions within one calendar week.
type WeekEmotions struct {
	WeekStart string         `json:"week_start"` // YYYY-MM-DD, a Monday
	Emotions  map[string]int `json:"emotions"`
}

// Balance sums analyses per polarity.
type Balance struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// Stats is the statistics bundle served to the dashboard.
type Stats struct {
	TotalAnalyses           int            `json:"total_analyses"`
	MostFrequentEmotion     *string        `json:"most_frequent_emotion"`
	AverageConfidence       float64        `json:"average_confidence"`
	Streak                  int            `json:"streak"`
	EmotionsDistribution    []EmotionCount `json:"emotions_distribution"`
	WeeklyActivity          []DayActivity  `json:"weekly_activity"`
	HourlyActivity          []int          `json:"hourly_activity"`
	WeeklyEmotions          []WeekEmotions `json:"weekly_emotions"`
	PositiveNegativeBalance Balance        `json:"positive_negative_balance"`
}

// Compute builds the full statistics bundle. now is the reference instant for
// "today" and "this week"; all calendar math happens in loc.
func Compute(events []Event, now time.Time, loc *time.Location) Stats {
	if len(events) == 0 {
		return Empty(now, loc)
	}
	if loc == nil {
		loc = time.Local
	}

	distribution, mostFrequent := Distribution(events)

	return Stats{
		TotalAnalyses:           len(events),
		MostFrequentEmotion:     mostFrequent,
		AverageConfidence:       AverageConfidence(events),
		Streak:                  Streak(events, now, loc),
		EmotionsDistribution:    distribution,
		WeeklyActivity:          WeeklyActivity(events, now, loc),
		HourlyActivity:          HourlyActivity(events, loc),
		WeeklyEmotions:          WeeklyEmotions(events, now, loc),
		PositiveNegativeBalance: PolarityBalance(events),
	}
}

// Empty returns the canonical statistics for a user with no analyses. Every
// bucket is present with zero values.
func Empty(now time.Time, loc *time.Location) Stats {
	if loc == nil {
		loc = time.Local
	}
	return Stats{
		TotalAnalyses:        0,
		MostFrequentEmotion:  nil,
		AverageConfidence:    0,
		Streak:               0,
		EmotionsDistribution: []EmotionCount{},
		WeeklyActivity:       WeeklyActivity(nil, now, loc),
		HourlyActivity:       HourlyActivity(nil, loc),
		WeeklyEmotions:       WeeklyEmotions(nil, now, loc),
	}
}

// Distribution groups events by emotion in first-encountered order.
// The most frequent emotion is the group with the highest count; ties go to
// the group encountered first. Returns a nil emotion for no events.
func Distribution(events []Event) ([]EmotionCount, *string) {
	dist := []EmotionCount{}
	if len(events) == 0 {
		return dist, nil
	}

	index := make(map[string]int)
	for _, e := range events {
		i, ok := index[e.Emotion]
		if !ok {
			i = len(dist)
			index[e.Emotion] = i
			dist = append(dist, EmotionCount{Emotion: e.Emotion})
		}
		dist[i].Count++
	}

	total := float64(len(events))
	best := 0
	for i := range dist {
		dist[i].Percentage = float64(dist[i].Count) / total * 100
		if dist[i].Count > dist[best].Count {
			best = i
		}
	}

	name := dist[best].Emotion
	return dist, &name
}

// AverageConfidence returns the mean confidence, or 0 for no events.
func AverageConfidence(events []Event) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for _, e := range events {
		sum += e.Confidence
	}
	return sum / float64(len(events))
}

// HourlyActivity counts events per local hour of day. Always 24 entries.
func HourlyActivity(events []Event, loc *time.Location) []int {
	hours := make([]int, 24)
	for _, e := range events {
		h := e.OccurredAt.In(loc).Hour()
		if h < 0 || h >= len(hours) {
			continue
		}
		hours[h]++
	}
	return hours
}

// WeeklyActivity counts events per weekday of the week containing now,
// [Monday 00:00, next Monday 00:00). Always 7 entries, Monday first.
func WeeklyActivity(events []Event, now time.Time, loc *time.Location) []DayActivity {
	start := StartOfWeek(now, loc)
	end := addDays(start, 7, loc)

	var counts [7]int
	for _, e := range events {
		t := e.OccurredAt.In(loc)
		if t.Before(start) || !t.Before(end) {
			continue
		}
		counts[weekdayIndex(t)]++
	}

	days := make([]DayActivity, len(DayNames))
	for i, name := range DayNames {
		days[i] = DayActivity{Day: name, AnalysesCount: counts[i]}
	}
	return days
}

// WeeklyEmotions counts emotions in each of the WeeksInTrend most recent
// calendar weeks, oldest first. Weeks without events carry an empty map.
func WeeklyEmotions(events []Event, now time.Time, loc *time.Location) []WeekEmotions {
	current := StartOfWeek(now, loc)
	first := addDays(current, -7*(WeeksInTrend-1), loc)

	weeks := make([]WeekEmotions, WeeksInTrend)
	starts := make([]time.Time, WeeksInTrend+1)
	for i := range weeks {
		starts[i] = addDays(first, 7*i, loc)
		weeks[i] = WeekEmotions{
			WeekStart: starts[i].Format(time.DateOnly),
			Emotions:  map[string]int{},
		}
	}
	starts[WeeksInTrend] = addDays(current, 7, loc)

	for _, e := range events {
		t := e.OccurredAt.In(loc)
		if t.Before(starts[0]) || !t.Before(starts[WeeksInTrend]) {
			continue
		}
		for i := range weeks {
			if !t.Before(starts[i]) && t.Before(starts[i+1]) {
				weeks[i].Emotions[e.Emotion]++
				break
			}
		}
	}
	return weeks
}

// StartOfWeek returns Monday 00:00 of the week containing t, in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()-weekdayIndex(t), 0, 0, 0, 0, loc)
}

// addDays returns the start of the local date n days after day. time.Date
// moves a nonexistent midnight forward, so the result is the first instant
// of that date.
func addDays(day time.Time, n int, loc *time.Location) time.Time {
	day = day.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day()+n, 0, 0, 0, 0, loc)
}

const secondsPerDay = 24 * 60 * 60

// weekdayIndex maps Monday..Sunday to 0..6.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
