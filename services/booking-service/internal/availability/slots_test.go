package availability

import (
	"testing"
	"time"
)

var fullDay = Window{OpenMinute: 540, CloseMinute: 1080}

func TestEnumerateSlots_FullDay(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)

	slots := EnumerateSlots(fullDay, 45, 15, day, day)
	if len(slots) != 34 {
		t.Fatalf("expected 34 slots, got %d", len(slots))
	}
	if !slots[0].Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Format(time.RFC3339))
	}
	last := slots[len(slots)-1]
	if !last.Equal(day.Add(17*time.Hour + 15*time.Minute)) {
		t.Fatalf("expected last slot 17:15, got %s", last.Format(time.RFC3339))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].After(slots[i-1]) {
			t.Fatalf("slots not ascending at %d", i)
		}
	}
}

func TestEnumerateSlots_SkipsPastToday(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	now := day.Add(10*time.Hour + 5*time.Minute)

	slots := EnumerateSlots(Window{OpenMinute: 540, CloseMinute: 720}, 30, 15, day, now)
	if len(slots) == 0 {
		t.Fatal("expected some slots")
	}
	if !slots[0].Equal(day.Add(10*time.Hour + 15*time.Minute)) {
		t.Fatalf("expected first slot 10:15, got %s", slots[0].Format(time.RFC3339))
	}
	for _, s := range slots {
		if s.Before(now) {
			t.Fatalf("slot %s is before now", s.Format(time.RFC3339))
		}
	}
}

func TestEnumerateSlots_NowOnSlotIsKept(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	now := day.Add(9 * time.Hour)

	slots := EnumerateSlots(Window{OpenMinute: 540, CloseMinute: 600}, 15, 15, day, now)
	if len(slots) != 4 || !slots[0].Equal(now) {
		t.Fatalf("expected 4 slots starting at now, got %v", slots)
	}
}

func TestEnumerateSlots_FutureDayUntouchedPastDayEmpty(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	now := day.Add(15 * time.Hour)

	tomorrow := EnumerateSlots(fullDay, 45, 15, day.AddDate(0, 0, 1), now)
	if len(tomorrow) != 34 {
		t.Fatalf("expected tomorrow untouched (34 slots), got %d", len(tomorrow))
	}
	yesterday := EnumerateSlots(fullDay, 45, 15, day.AddDate(0, 0, -1), now)
	if len(yesterday) != 0 {
		t.Fatalf("expected no slots for a past day, got %d", len(yesterday))
	}
}

func TestEnumerateSlots_DegenerateInputs(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name        string
		window      Window
		duration    int
		granularity int
	}{
		{"duration exceeds span", Window{OpenMinute: 540, CloseMinute: 570}, 45, 15},
		{"empty window", Window{OpenMinute: 540, CloseMinute: 540}, 15, 15},
		{"zero duration", fullDay, 0, 15},
		{"zero granularity", fullDay, 30, 0},
	}
	for _, tc := range cases {
		if slots := EnumerateSlots(tc.window, tc.duration, tc.granularity, day, day); len(slots) != 0 {
			t.Fatalf("%s: expected no slots, got %d", tc.name, len(slots))
		}
	}
}

func TestEnumerateSlots_ExactFit(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	slots := EnumerateSlots(Window{OpenMinute: 540, CloseMinute: 585}, 45, 15, day, day)
	if len(slots) != 1 || !slots[0].Equal(day.Add(9*time.Hour)) {
		t.Fatalf("expected single 09:00 slot, got %v", slots)
	}
}

func TestStartOfDayKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	got := StartOfDay(time.Date(2026, 3, 4, 23, 30, 0, 0, loc))
	want := time.Date(2026, 3, 4, 0, 0, 0, 0, loc)
	if !got.Equal(want) || got.Location() != loc {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
