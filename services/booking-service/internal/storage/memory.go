package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chairup/chairup/services/booking-service/internal/availability"
	"github.com/chairup/chairup/services/booking-service/internal/booking"
	"github.com/chairup/chairup/services/booking-service/internal/model"
)

// MemoryStore keeps the catalogue and reservations in process. It backs
// local runs without DATABASE_URL and the booking tests. All reservation
// writes are serialised by one mutex, which makes AtomicInsert atomic.
type MemoryStore struct {
	mu                sync.Mutex
	providers         map[string]model.Provider
	services          map[string]model.Service
	hours             map[string][]model.WorkingHoursRow
	reservations      []model.Reservation
	atomicUnsupported bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers: map[string]model.Provider{},
		services:  map[string]model.Service{},
		hours:     map[string][]model.WorkingHoursRow{},
	}
}

// DisableAtomic makes AtomicInsert report booking.ErrAtomicUnsupported.
func (s *MemoryStore) DisableAtomic() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atomicUnsupported = true
}

func (s *MemoryStore) PutProvider(p model.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = p
}

func (s *MemoryStore) PutService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

// SetHours replaces a location's working hours.
func (s *MemoryStore) SetHours(locationID string, rows []model.WorkingHoursRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hours[locationID] = append([]model.WorkingHoursRow(nil), rows...)
}

func (s *MemoryStore) LoadCatalog(_ context.Context, providerID string) (model.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cat model.Catalog
	p, ok := s.providers[providerID]
	if !ok {
		return cat, nil
	}
	cat.Providers = []model.Provider{p}
	cat.Hours = append(cat.Hours, s.hours[p.LocationID]...)
	for _, svc := range s.services {
		cat.Services = append(cat.Services, svc)
	}
	return cat, nil
}

func (s *MemoryStore) ListReservations(_ context.Context, providerID string, from, to time.Time) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Reservation
	for _, r := range s.reservations {
		if r.ProviderID != providerID || r.StartAt.Before(from) || !r.StartAt.Before(to) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *MemoryStore) AtomicInsert(ctx context.Context, r model.Reservation, end time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.atomicUnsupported {
		return "", booking.ErrAtomicUnsupported
	}
	if availability.Overlaps(r.StartAt, end, s.busyLocked(r.ProviderID)) {
		return "", booking.ErrConflict
	}
	s.appendLocked(r)
	return r.ID, nil
}

func (s *MemoryStore) Insert(ctx context.Context, r model.Reservation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(r)
	return r.ID, nil
}

// Reservations returns a copy of every stored reservation.
func (s *MemoryStore) Reservations() []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Reservation(nil), s.reservations...)
}

func (s *MemoryStore) Ready(context.Context) error {
	return nil
}

func (s *MemoryStore) appendLocked(r model.Reservation) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.reservations = append(s.reservations, r)
}

func (s *MemoryStore) busyLocked(providerID string) []availability.Interval {
	var busy []availability.Interval
	for _, r := range s.reservations {
		if r.ProviderID != providerID {
			continue
		}
		var d time.Duration
		if svc, ok := s.services[r.ServiceID]; ok {
			d = svc.Duration()
		}
		busy = append(busy, availability.Interval{Start: r.StartAt, End: r.StartAt.Add(d)})
	}
	return busy
}
