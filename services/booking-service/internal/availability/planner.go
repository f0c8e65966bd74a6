package availability

import (
	"log/slog"
	"time"

	"github.com/chairup/chairup/services/booking-service/internal/model"
)

type Planner struct {
	logger          *slog.Logger
	granularityMins int
}

func NewPlanner(logger *slog.Logger, granularityMins int) *Planner {
	if granularityMins <= 0 {
		granularityMins = DefaultGranularityMinutes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{logger: logger, granularityMins: granularityMins}
}

// PlanRequest identifies what is being planned. Date may be any instant of
// the target day; its location defines the local calendar day.
type PlanRequest struct {
	ProviderID string
	ServiceID  string
	Date       time.Time
}

// Plan returns the bookable start instants for the request in ascending
// order. reservations may span providers and days; Plan narrows them itself.
// Anything that prevents planning (unknown provider, inactive service, closed
// day) yields an empty result rather than an error.
func (p *Planner) Plan(snap model.Snapshot, req PlanRequest, reservations []model.Reservation, now time.Time) []time.Time {
	provider, ok := snap.Provider(req.ProviderID)
	if !ok {
		return nil
	}
	svc, ok := snap.Service(req.ServiceID)
	if !ok || !svc.BookableBy(provider.ID) {
		return nil
	}

	dayStart := StartOfDay(req.Date)
	window, open := ResolveWindow(snap.Hours(provider.LocationID), dayStart)
	if !open {
		return nil
	}

	busy := p.BusyIntervals(snap, provider.ID, dayStart, reservations)
	candidates := EnumerateSlots(window, svc.DurationMinutes, p.granularityMins, dayStart, now)

	slots := make([]time.Time, 0, len(candidates))
	for _, start := range candidates {
		if Overlaps(start, start.Add(svc.Duration()), busy) {
			continue
		}
		slots = append(slots, start)
	}
	return slots
}

// BusyIntervals joins the provider's reservations starting on the day with
// their own service durations. A reservation whose service is missing from
// the snapshot blocks with zero length.
func (p *Planner) BusyIntervals(snap model.Snapshot, providerID string, dayStart time.Time, reservations []model.Reservation) []Interval {
	dayEnd := dayStart.AddDate(0, 0, 1)
	var busy []Interval
	for _, r := range reservations {
		if r.ProviderID != providerID {
			continue
		}
		if r.StartAt.Before(dayStart) || !r.StartAt.Before(dayEnd) {
			continue
		}
		var duration time.Duration
		if svc, ok := snap.Service(r.ServiceID); ok {
			duration = svc.Duration()
		} else {
			p.logger.Warn("unknown service duration for reservation; treating as zero",
				"reservation_id", r.ID,
				"service_id", r.ServiceID,
				"provider_id", providerID,
			)
		}
		busy = append(busy, Interval{Start: r.StartAt, End: r.StartAt.Add(duration)})
	}
	return busy
}

// DefaultHours builds a seven-day schedule from a single window. It is the
// fallback for locations that have no hours configured at all.
func DefaultHours(locationID string, w Window) []model.WorkingHoursRow {
	rows := make([]model.WorkingHoursRow, 0, 7)
	for wd := 0; wd <= 6; wd++ {
		rows = append(rows, model.WorkingHoursRow{
			LocationID:  locationID,
			DayOfWeek:   wd,
			OpenMinute:  w.OpenMinute,
			CloseMinute: w.CloseMinute,
		})
	}
	return rows
}
