package model

import "time"

type Provider struct {
	ID         string
	LocationID string
}

type Service struct {
	ID string
	// ProviderID is empty for services that are not assigned to a single provider.
	ProviderID      string
	Name            string
	DurationMinutes int
	PriceCents      int64
	Active          bool
}

// Duration is the service length as a time.Duration.
func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// BookableBy reports whether the service can be booked with the given provider.
func (s Service) BookableBy(providerID string) bool {
	return s.Active && s.DurationMinutes > 0 && (s.ProviderID == "" || s.ProviderID == providerID)
}

// WorkingHoursRow is one weekday of a location's schedule. Minutes count from
// local midnight; weekday 0 is Sunday.
type WorkingHoursRow struct {
	LocationID  string
	DayOfWeek   int
	OpenMinute  int
	CloseMinute int
}

type Reservation struct {
	ID         string
	LocationID string
	ProviderID string
	ServiceID  string
	CustomerID string
	StartAt    time.Time
	Notes      string
	CreatedAt  time.Time
}
