package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/chairup/chairup/services/booking-service/internal/model"
	"github.com/google/uuid"
)

var (
	// ErrConflict is returned by a Store when the reservation would overlap
	// another reservation of the same provider.
	ErrConflict = errors.New("time slot already booked")
	// ErrAtomicUnsupported is returned by Store.AtomicInsert when the store
	// cannot run the conditional insert at all.
	ErrAtomicUnsupported = errors.New("atomic reservation insert unsupported")

	errIdentityMissing = errors.New("customer identity required")
)

// Store persists reservations.
//
// AtomicInsert must create r only if no reservation of r.ProviderID overlaps
// [r.StartAt, end), as one operation from the store's point of view. Insert
// creates r unconditionally.
type Store interface {
	AtomicInsert(ctx context.Context, r model.Reservation, end time.Time) (string, error)
	Insert(ctx context.Context, r model.Reservation) (string, error)
}

type Reason string

const (
	ReasonIdentityMissing  Reason = "identity_missing"
	ReasonInvalidRequest   Reason = "invalid_request"
	ReasonConflict         Reason = "conflict"
	ReasonStoreUnavailable Reason = "store_unavailable"
)

// Path records which insert created the reservation.
type Path string

const (
	PathAtomic   Path = "atomic"
	PathFallback Path = "fallback"
)

// Outcome is either Committed with a reservation id or a rejection with a
// Reason and the error that caused it.
type Outcome struct {
	Committed     bool
	ReservationID string
	Path          Path
	Reason        Reason
	Err           error
}

func committed(id string, path Path) Outcome {
	return Outcome{Committed: true, ReservationID: id, Path: path}
}

func rejected(reason Reason, err error) Outcome {
	return Outcome{Reason: reason, Err: err}
}

// Message is the user-presentable text of a rejection.
func (o Outcome) Message() string {
	if o.Committed || o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

type Request struct {
	ProviderID string
	ServiceID  string
	CustomerID string
	StartAt    time.Time
	Notes      string
}

type Committer struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewCommitter(store Store, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the committer's time source.
func (c *Committer) WithClock(now func() time.Time) *Committer {
	c.now = now
	return c
}

// Commit books req against snap. The atomic insert is tried first; only when
// the store reports it unsupported is the unconditional insert used, which
// leaves a window where a concurrent booking can overlap.
//
// Commit never retries. If the store call fails ambiguously (for example a
// deadline expires after the insert reached the database) the reservation may
// exist; callers that retry must check for it first.
func (c *Committer) Commit(ctx context.Context, snap model.Snapshot, req Request) Outcome {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return rejected(ReasonIdentityMissing, errIdentityMissing)
	}

	provider, ok := snap.Provider(req.ProviderID)
	if !ok {
		return rejected(ReasonInvalidRequest, errors.New("unknown provider"))
	}
	svc, ok := snap.Service(req.ServiceID)
	if !ok || !svc.BookableBy(provider.ID) {
		return rejected(ReasonInvalidRequest, errors.New("service is not available for this provider"))
	}
	if req.StartAt.IsZero() || req.StartAt.Before(c.now()) {
		return rejected(ReasonInvalidRequest, errors.New("start time is in the past"))
	}

	res := model.Reservation{
		ID:         uuid.NewString(),
		LocationID: provider.LocationID,
		ProviderID: provider.ID,
		ServiceID:  svc.ID,
		CustomerID: customerID,
		StartAt:    req.StartAt,
		Notes:      strings.TrimSpace(req.Notes),
	}
	end := res.StartAt.Add(svc.Duration())

	id, err := c.store.AtomicInsert(ctx, res, end)
	switch {
	case err == nil:
		return committed(id, PathAtomic)
	case errors.Is(err, ErrConflict):
		return rejected(ReasonConflict, ErrConflict)
	case !errors.Is(err, ErrAtomicUnsupported):
		c.logger.Error("atomic reservation insert failed", "err", err, "provider_id", res.ProviderID)
		return rejected(ReasonStoreUnavailable, err)
	}

	c.logger.Warn("atomic reservation insert unsupported; using unconditional insert",
		"err", err,
		"provider_id", res.ProviderID,
		"start_at", res.StartAt.UTC().Format(time.RFC3339),
	)
	id, fallbackErr := c.store.Insert(ctx, res)
	if fallbackErr == nil {
		return committed(id, PathFallback)
	}
	if errors.Is(fallbackErr, ErrConflict) {
		return rejected(ReasonConflict, ErrConflict)
	}
	c.logger.Error("fallback reservation insert failed", "err", fallbackErr, "provider_id", res.ProviderID)
	return rejected(ReasonStoreUnavailable, mostSpecific(fallbackErr, err))
}

// mostSpecific picks the first error that carries a message.
func mostSpecific(errs ...error) error {
	for _, err := range errs {
		if err != nil && strings.TrimSpace(err.Error()) != "" {
			return err
		}
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return errors.New("reservation could not be stored")
}
