package availability

import (
	"time"

	"github.com/chairup/chairup/services/booking-service/internal/model"
)

// Window is a day's open range in minutes from local midnight.
type Window struct {
	OpenMinute  int
	CloseMinute int
}

// Span is the window length in minutes.
func (w Window) Span() int {
	return w.CloseMinute - w.OpenMinute
}

// ResolveWindow returns the open window for date's weekday. ok is false when
// the location has no row for that weekday (closed). Rows for other locations
// must be filtered out by the caller.
func ResolveWindow(rows []model.WorkingHoursRow, date time.Time) (Window, bool) {
	weekday := int(date.Weekday())
	for _, row := range rows {
		if row.DayOfWeek != weekday {
			continue
		}
		if row.CloseMinute <= row.OpenMinute {
			return Window{}, false
		}
		return Window{OpenMinute: row.OpenMinute, CloseMinute: row.CloseMinute}, true
	}
	return Window{}, false
}
