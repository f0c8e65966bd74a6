package storage

import (
	"encoding/json"
	"fmt"

	"github.com/chairup/chairup/services/booking-service/internal/model"
)

// Seed is the JSON layout of SEED_FILE for the in-memory store.
type Seed struct {
	Providers []struct {
		ID         string `json:"id"`
		LocationID string `json:"location_id"`
	} `json:"providers"`
	Services []struct {
		ID              string `json:"id"`
		ProviderID      string `json:"provider_id"`
		Name            string `json:"name"`
		DurationMinutes int    `json:"duration_minutes"`
		PriceCents      int64  `json:"price_cents"`
		Active          *bool  `json:"active"`
	} `json:"services"`
	Hours []struct {
		LocationID  string `json:"location_id"`
		Weekday     int    `json:"weekday"`
		OpenMinute  int    `json:"open_minute"`
		CloseMinute int    `json:"close_minute"`
	} `json:"hours"`
}

// LoadSeed adds the catalogue in raw to the store. Services are active unless
// the seed says otherwise.
func (s *MemoryStore) LoadSeed(raw []byte) error {
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	for _, p := range seed.Providers {
		s.PutProvider(model.Provider{ID: p.ID, LocationID: p.LocationID})
	}
	for _, svc := range seed.Services {
		active := svc.Active == nil || *svc.Active
		s.PutService(model.Service{
			ID:              svc.ID,
			ProviderID:      svc.ProviderID,
			Name:            svc.Name,
			DurationMinutes: svc.DurationMinutes,
			PriceCents:      svc.PriceCents,
			Active:          active,
		})
	}
	byLocation := map[string][]model.WorkingHoursRow{}
	for _, h := range seed.Hours {
		if h.Weekday < 0 || h.Weekday > 6 {
			return fmt.Errorf("seed hours for %s: weekday %d out of range", h.LocationID, h.Weekday)
		}
		byLocation[h.LocationID] = append(byLocation[h.LocationID], model.WorkingHoursRow{
			LocationID:  h.LocationID,
			DayOfWeek:   h.Weekday,
			OpenMinute:  h.OpenMinute,
			CloseMinute: h.CloseMinute,
		})
	}
	for loc, rows := range byLocation {
		s.SetHours(loc, rows)
	}
	return nil
}
