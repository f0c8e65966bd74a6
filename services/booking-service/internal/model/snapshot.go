package model

import "sort"

// Snapshot is the read-only catalogue a planning or commit call works
// against: providers, services and working hours loaded once per session.
// Nothing in the booking path mutates it.
type Snapshot struct {
	providers map[string]Provider
	services  map[string]Service
	hours     map[string][]WorkingHoursRow
}

func NewSnapshot(providers []Provider, services []Service, hours []WorkingHoursRow) Snapshot {
	s := Snapshot{
		providers: make(map[string]Provider, len(providers)),
		services:  make(map[string]Service, len(services)),
		hours:     make(map[string][]WorkingHoursRow),
	}
	for _, p := range providers {
		s.providers[p.ID] = p
	}
	for _, svc := range services {
		s.services[svc.ID] = svc
	}
	for _, row := range hours {
		s.hours[row.LocationID] = append(s.hours[row.LocationID], row)
	}
	return s
}

func (s Snapshot) Provider(id string) (Provider, bool) {
	p, ok := s.providers[id]
	return p, ok
}

func (s Snapshot) Service(id string) (Service, bool) {
	svc, ok := s.services[id]
	return svc, ok
}

// Hours returns the working-hours rows of a location. The returned slice is
// shared; callers must not modify it.
func (s Snapshot) Hours(locationID string) []WorkingHoursRow {
	return s.hours[locationID]
}

// Services returns every service in the snapshot that the provider can take
// bookings for, shortest first.
func (s Snapshot) Services(providerID string) []Service {
	var out []Service
	for _, svc := range s.services {
		if svc.BookableBy(providerID) {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DurationMinutes != out[j].DurationMinutes {
			return out[i].DurationMinutes < out[j].DurationMinutes
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Catalog is the raw catalogue as read from a store, before it is frozen
// into a Snapshot.
type Catalog struct {
	Providers []Provider
	Services  []Service
	Hours     []WorkingHoursRow
}

func (c Catalog) Snapshot() Snapshot {
	return NewSnapshot(c.Providers, c.Services, c.Hours)
}
