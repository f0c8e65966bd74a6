package availability

import "time"

// DefaultGranularityMinutes is the step between consecutive candidate starts.
const DefaultGranularityMinutes = 15

// EnumerateSlots returns candidate start instants for a booking of
// durationMins inside window on the day starting at dayStart, stepping by
// granularityMins from the opening minute. A candidate is admitted while it
// ends at or before the closing minute. Candidates starting before now are
// dropped, so only the current day is ever trimmed and earlier days are empty.
//
// dayStart must be local midnight in the location the window is expressed in.
func EnumerateSlots(window Window, durationMins, granularityMins int, dayStart, now time.Time) []time.Time {
	if durationMins <= 0 || granularityMins <= 0 {
		return nil
	}
	if window.Span() <= 0 || durationMins > window.Span() {
		return nil
	}

	var slots []time.Time
	for m := window.OpenMinute; m+durationMins <= window.CloseMinute; m += granularityMins {
		t := dayStart.Add(time.Duration(m) * time.Minute)
		if t.Before(now) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

// StartOfDay returns local midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
