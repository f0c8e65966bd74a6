package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chairup/chairup/libs/db"
	"github.com/chairup/chairup/services/booking-service/internal/booking"
	"github.com/chairup/chairup/services/booking-service/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// LoadCatalog reads the provider, its location's working hours, and every
// service the provider's reservations or bookings can reference. An unknown
// or malformed provider id yields an empty catalogue, not an error.
func (r *BookingRepository) LoadCatalog(ctx context.Context, providerID string) (model.Catalog, error) {
	var cat model.Catalog
	if !isUUID(providerID) {
		return cat, nil
	}

	var p model.Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, location_id::text
		FROM providers
		WHERE id = $1
	`, providerID).Scan(&p.ID, &p.LocationID)
	if err != nil {
		if IsNotFound(err) {
			return cat, nil
		}
		return cat, fmt.Errorf("load provider: %w", err)
	}
	cat.Providers = []model.Provider{p}

	hours, err := r.listHours(ctx, p.LocationID)
	if err != nil {
		return cat, err
	}
	cat.Hours = hours

	services, err := r.listServices(ctx, p.ID)
	if err != nil {
		return cat, err
	}
	cat.Services = services
	return cat, nil
}

func (r *BookingRepository) listHours(ctx context.Context, locationID string) ([]model.WorkingHoursRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT location_id::text, weekday, open_minute, close_minute
		FROM location_hours
		WHERE location_id = $1
		ORDER BY weekday ASC
	`, locationID)
	if err != nil {
		return nil, fmt.Errorf("list hours: %w", err)
	}
	defer rows.Close()

	var out []model.WorkingHoursRow
	for rows.Next() {
		var wh model.WorkingHoursRow
		if err := rows.Scan(&wh.LocationID, &wh.DayOfWeek, &wh.OpenMinute, &wh.CloseMinute); err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *BookingRepository) listServices(ctx context.Context, providerID string) ([]model.Service, error) {
	// Reservations can reference services of any duration, so the services
	// they point at are loaded alongside the provider's own.
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, COALESCE(provider_id::text, ''), name, duration_minutes, price_cents, active
		FROM services
		WHERE provider_id = $1
			OR provider_id IS NULL
			OR id IN (SELECT service_id FROM reservations WHERE provider_id = $1)
		ORDER BY duration_minutes ASC, id ASC
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.Active); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ListReservations returns the provider's reservations starting in [from, to).
func (r *BookingRepository) ListReservations(ctx context.Context, providerID string, from, to time.Time) ([]model.Reservation, error) {
	if !isUUID(providerID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, location_id::text, provider_id::text, service_id::text, customer_id,
			start_at, COALESCE(notes, ''), created_at
		FROM reservations
		WHERE provider_id = $1
			AND start_at >= $2
			AND start_at < $3
		ORDER BY start_at ASC
	`, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(
			&res.ID,
			&res.LocationID,
			&res.ProviderID,
			&res.ServiceID,
			&res.CustomerID,
			&res.StartAt,
			&res.Notes,
			&res.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// AtomicInsert books through book_reservation_atomic, which serialises
// bookings per provider and raises 23P01 on overlap.
func (r *BookingRepository) AtomicInsert(ctx context.Context, res model.Reservation, end time.Time) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		SELECT book_reservation_atomic($1, $2, $3, $4, $5, $6, $7, $8)::text
	`, res.ID, res.LocationID, res.ProviderID, res.ServiceID, res.CustomerID, res.StartAt, end, res.Notes).Scan(&id)
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

// Insert writes the reservation without any overlap check.
func (r *BookingRepository) Insert(ctx context.Context, res model.Reservation) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reservations
			(id, location_id, provider_id, service_id, customer_id, start_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text
	`, res.ID, res.LocationID, res.ProviderID, res.ServiceID, res.CustomerID, res.StartAt, res.Notes).Scan(&id)
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

// Ready reports whether the database answers.
func (r *BookingRepository) Ready(ctx context.Context) error {
	return db.ReadyCheck(r.pool)(ctx)
}

func classify(err error) error {
	switch {
	case IsConflict(err):
		return fmt.Errorf("%w: %v", booking.ErrConflict, err)
	case IsUnsupported(err):
		return fmt.Errorf("%w: %v", booking.ErrAtomicUnsupported, err)
	default:
		return err
	}
}

// Ids are uuid columns; anything else cannot match a row.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// IsUnsupported matches errors meaning the database cannot run the statement
// at all: a missing function or an unsupported feature.
func IsUnsupported(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "42883" || pgErr.Code == "0A000"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
