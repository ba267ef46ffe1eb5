package clock

import (
	"testing"
	"time"
)

func TestStartOfDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	instant := time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)

	got := StartOfDay(instant, loc)
	want := time.Date(2026, 3, 9, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	c.Advance(2 * time.Hour)
	if !c.Now().Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("unexpected now %s", c.Now())
	}
}
