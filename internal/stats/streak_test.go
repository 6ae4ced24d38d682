package stats

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestStreak(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   int
	}{
		{
			name:   "no events",
			events: nil,
			want:   0,
		},
		{
			name:   "today only",
			events: []Event{at(0, 9, "happy", 1)},
			want:   1,
		},
		{
			name: "today and yesterday with a gap",
			events: []Event{
				at(0, 9, "happy", 1),
				at(1, 9, "sad", 1),
				at(3, 9, "happy", 1),
			},
			want: 2,
		},
		{
			name: "multiple events on one day count once",
			events: []Event{
				at(0, 9, "happy", 1),
				at(0, 14, "sad", 1),
				at(1, 23, "happy", 1),
			},
			want: 2,
		},
		{
			name:   "nothing today",
			events: []Event{at(1, 9, "happy", 1), at(2, 9, "happy", 1)},
			want:   0,
		},
		{
			name: "event stamped tomorrow counts",
			events: []Event{
				at(-1, 9, "happy", 1),
				at(0, 9, "happy", 1),
				at(1, 9, "happy", 1),
			},
			want: 3,
		},
		{
			name:   "tomorrow alone counts",
			events: []Event{at(-1, 9, "happy", 1)},
			want:   1,
		},
		{
			name:   "two days ahead breaks",
			events: []Event{at(-2, 9, "happy", 1), at(0, 9, "happy", 1)},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Streak(tt.events, refNow, time.UTC); got != tt.want {
				t.Errorf("Streak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStreak_LocalDates(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	now := time.Date(2024, 3, 13, 1, 0, 0, 0, time.UTC) // 10:00 local on the 13th
	events := []Event{
		// 16:00 UTC on the 12th is 01:00 local on the 13th
		{Emotion: "happy", OccurredAt: time.Date(2024, 3, 12, 16, 0, 0, 0, time.UTC)},
		// 14:00 UTC on the 12th is 23:00 local on the 12th
		{Emotion: "happy", OccurredAt: time.Date(2024, 3, 12, 14, 0, 0, 0, time.UTC)},
	}

	if got := Streak(events, now, loc); got != 2 {
		t.Errorf("Streak() = %d, want 2", got)
	}
	if got := Streak(events, now, time.UTC); got != 0 {
		t.Errorf("Streak() in UTC = %d, want 0", got)
	}
}

func TestStreak_MidnightDSTTransition(t *testing.T) {
	// Clocks in Sao Paulo jumped from 00:00 to 01:00 on 2018-11-04.
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}
	events := []Event{
		{Emotion: "happy", OccurredAt: time.Date(2018, 11, 3, 12, 0, 0, 0, loc)},
		{Emotion: "happy", OccurredAt: time.Date(2018, 11, 4, 12, 0, 0, 0, loc)},
		{Emotion: "happy", OccurredAt: time.Date(2018, 11, 5, 12, 0, 0, 0, loc)},
	}

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"day after transition", time.Date(2018, 11, 5, 18, 0, 0, 0, loc), 3},
		{"transition day", time.Date(2018, 11, 4, 18, 0, 0, 0, loc), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Streak(events, tt.now, loc); got != tt.want {
				t.Errorf("Streak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStartOfWeek_MidnightDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}
	// Sunday of the transition; its own midnight does not exist.
	now := time.Date(2018, 11, 4, 10, 0, 0, 0, loc)
	want := time.Date(2018, 10, 29, 0, 0, 0, 0, loc)

	got := StartOfWeek(now, loc)
	if !got.Equal(want) {
		t.Errorf("StartOfWeek() = %v, want %v", got, want)
	}
	if h := got.In(loc).Hour(); h != 0 {
		t.Errorf("StartOfWeek() hour = %d, want 0", h)
	}
}
