package outbox

import (
	"encoding/json"
	"time"

	"github.com/chairup/chairup/services/booking-service/internal/model"
)

// EventReservationCommitted doubles as the Kafka topic name.
const EventReservationCommitted = "booking.reservation.committed.v1"

// Event is the envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type ReservationCommitted struct {
	ReservationID string    `json:"reservation_id"`
	LocationID    string    `json:"location_id"`
	ProviderID    string    `json:"provider_id"`
	ServiceID     string    `json:"service_id"`
	CustomerID    string    `json:"customer_id"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	// CommitPath is "atomic" or "fallback". Fallback bookings skipped the
	// overlap check and may need review.
	CommitPath string `json:"commit_path"`
}

func NewReservationCommitted(r model.Reservation, end time.Time, path string) (Event, error) {
	payload, err := json.Marshal(ReservationCommitted{
		ReservationID: r.ID,
		LocationID:    r.LocationID,
		ProviderID:    r.ProviderID,
		ServiceID:     r.ServiceID,
		CustomerID:    r.CustomerID,
		StartAt:       r.StartAt.UTC(),
		EndAt:         end.UTC(),
		CommitPath:    path,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "reservation",
		AggregateID:   r.ID,
		EventType:     EventReservationCommitted,
		Payload:       payload,
	}, nil
}
