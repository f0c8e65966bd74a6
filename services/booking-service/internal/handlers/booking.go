package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chairup/chairup/services/booking-service/internal/availability"
	"github.com/chairup/chairup/services/booking-service/internal/booking"
	"github.com/chairup/chairup/services/booking-service/internal/identity"
	"github.com/chairup/chairup/services/booking-service/internal/idempotency"
	"github.com/chairup/chairup/services/booking-service/internal/matcher"
	"github.com/chairup/chairup/services/booking-service/internal/model"
	"github.com/chairup/chairup/services/booking-service/internal/outbox"
	"github.com/chairup/chairup/services/booking-service/internal/payments"
)

// Repository is what the handlers need from storage. Both the Postgres
// repository and the in-memory store satisfy it.
type Repository interface {
	booking.Store
	LoadCatalog(ctx context.Context, providerID string) (model.Catalog, error)
	ListReservations(ctx context.Context, providerID string, from, to time.Time) ([]model.Reservation, error)
}

type EventSink interface {
	Enqueue(ctx context.Context, evt outbox.Event) error
}

type Config struct {
	// DefaultWindow applies to locations with no working hours at all. Nil
	// leaves such locations closed.
	DefaultWindow   *availability.Window
	Location        *time.Location
	GranularityMins int
	Now             func() time.Time
}

type BookingHandler struct {
	repo        Repository
	planner     *availability.Planner
	committer   *booking.Committer
	events      EventSink
	idempotency idempotency.Store
	payments    payments.Linker
	matcher     *matcher.Matcher
	logger      *slog.Logger

	defaultWindow *availability.Window
	loc           *time.Location
	now           func() time.Time
}

func NewBookingHandler(repo Repository, events EventSink, idem idempotency.Store, linker payments.Linker, m *matcher.Matcher, logger *slog.Logger, cfg Config) *BookingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if linker == nil {
		linker = payments.Disabled{}
	}
	if m == nil {
		m = matcher.New(nil, logger)
	}
	return &BookingHandler{
		repo:          repo,
		planner:       availability.NewPlanner(logger, cfg.GranularityMins),
		committer:     booking.NewCommitter(repo, logger).WithClock(cfg.Now),
		events:        events,
		idempotency:   idem,
		payments:      linker,
		matcher:       m,
		logger:        logger,
		defaultWindow: cfg.DefaultWindow,
		loc:           cfg.Location,
		now:           cfg.Now,
	}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/services", h.Services)
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/match", h.Match)
	mux.HandleFunc("/api/v1/book", h.Book)
}

// snapshot loads the provider's catalogue. Locations without any configured
// hours get the default window on every weekday, if one is set.
func (h *BookingHandler) snapshot(ctx context.Context, providerID string) (model.Snapshot, error) {
	cat, err := h.repo.LoadCatalog(ctx, providerID)
	if err != nil {
		return model.Snapshot{}, err
	}
	if h.defaultWindow != nil && len(cat.Hours) == 0 {
		for _, p := range cat.Providers {
			cat.Hours = append(cat.Hours, availability.DefaultHours(p.LocationID, *h.defaultWindow)...)
		}
	}
	return cat.Snapshot(), nil
}

type serviceItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

func (h *BookingHandler) Services(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		http.Error(w, "provider_id is required", http.StatusBadRequest)
		return
	}

	snap, err := h.snapshot(r.Context(), providerID)
	if err != nil {
		h.logger.Error("load catalog failed", "err", err, "provider_id", providerID)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := []serviceItem{}
	for _, svc := range snap.Services(providerID) {
		resp = append(resp, serviceItem{
			ID:              svc.ID,
			Name:            svc.Name,
			DurationMinutes: svc.DurationMinutes,
			PriceCents:      svc.PriceCents,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if providerID == "" || serviceID == "" || dateStr == "" {
		http.Error(w, "provider_id, service_id, and date are required", http.StatusBadRequest)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, h.loc)
	if err != nil {
		http.Error(w, "invalid date (expected YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	snap, err := h.snapshot(ctx, providerID)
	if err != nil {
		h.logger.Error("load catalog failed", "err", err, "provider_id", providerID)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	reservations, err := h.repo.ListReservations(ctx, providerID, day, day.AddDate(0, 0, 1))
	if err != nil {
		h.logger.Error("list reservations failed", "err", err, "provider_id", providerID)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	starts := h.planner.Plan(snap, availability.PlanRequest{
		ProviderID: providerID,
		ServiceID:  serviceID,
		Date:       day,
	}, reservations, h.now())

	var duration time.Duration
	if svc, ok := snap.Service(serviceID); ok {
		duration = svc.Duration()
	}
	resp := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		resp = append(resp, slotItem{
			StartTime: s.Format(time.RFC3339),
			EndTime:   s.Add(duration).Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type bookRequest struct {
	ProviderID string `json:"provider_id"`
	ServiceID  string `json:"service_id"`
	StartAt    string `json:"start_at"`
	Notes      string `json:"notes"`
}

type bookResponse struct {
	ReservationID string `json:"reservation_id"`
	ProviderID    string `json:"provider_id"`
	ServiceID     string `json:"service_id"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	CommitPath    string `json:"commit_path"`
	PaymentURL    string `json:"payment_url,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

const idempotencyHeader = "Idempotency-Key"

// Book commits a reservation for the authenticated customer. With an
// Idempotency-Key, the first final answer is stored and replayed to retries,
// so a client that timed out can safely ask again.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.ProviderID == "" || req.ServiceID == "" || strings.TrimSpace(req.StartAt) == "" {
		http.Error(w, "provider_id, service_id, and start_at are required", http.StatusBadRequest)
		return
	}
	startAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartAt))
	if err != nil {
		http.Error(w, "invalid start_at", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	customerID := identity.CustomerID(ctx)

	// Keys are scoped per customer; anonymous requests are rejected by the
	// committer before any key is claimed.
	idemKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if idemKey != "" && customerID != "" && h.idempotency != nil {
		idemKey = customerID + ":" + idemKey
		rec, err := h.idempotency.Begin(ctx, idemKey)
		switch {
		case errors.Is(err, idempotency.ErrInProgress):
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
			return
		case err != nil:
			h.logger.Error("idempotency lookup failed", "err", err)
			http.Error(w, "idempotency store unavailable", http.StatusServiceUnavailable)
			return
		case rec != nil:
			if rec.Fingerprint != "" && rec.Fingerprint != fingerprint(req, startAt) {
				writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "idempotency key was used for a different request"})
				return
			}
			w.Header().Set("Idempotent-Replayed", "true")
			writeRaw(w, rec.Status, rec.Body)
			return
		}
	} else {
		idemKey = ""
	}

	status, body := h.book(ctx, customerID, req, startAt)
	if idemKey != "" {
		// The reservation may already exist; recording the answer must not
		// depend on the client still waiting for it.
		h.finishIdempotency(context.WithoutCancel(ctx), idemKey, status, body, fingerprint(req, startAt))
	}
	writeRaw(w, status, body)
}

// fingerprint identifies the booking a key was first used for.
func fingerprint(req bookRequest, startAt time.Time) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		req.ProviderID,
		req.ServiceID,
		startAt.UTC().Format(time.RFC3339),
		strings.TrimSpace(req.Notes),
	}, "\x00")))
	return hex.EncodeToString(sum[:])
}

func (h *BookingHandler) book(ctx context.Context, customerID string, req bookRequest, startAt time.Time) (int, []byte) {
	snap, err := h.snapshot(ctx, req.ProviderID)
	if err != nil {
		h.logger.Error("load catalog failed", "err", err, "provider_id", req.ProviderID)
		return marshal(http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Reason: string(booking.ReasonStoreUnavailable)})
	}

	outcome := h.committer.Commit(ctx, snap, booking.Request{
		ProviderID: req.ProviderID,
		ServiceID:  req.ServiceID,
		CustomerID: customerID,
		StartAt:    startAt,
		Notes:      req.Notes,
	})
	if !outcome.Committed {
		return marshal(statusFor(outcome.Reason), errorResponse{Error: outcome.Message(), Reason: string(outcome.Reason)})
	}

	provider, _ := snap.Provider(req.ProviderID)
	svc, _ := snap.Service(req.ServiceID)
	res := model.Reservation{
		ID:         outcome.ReservationID,
		LocationID: provider.LocationID,
		ProviderID: provider.ID,
		ServiceID:  svc.ID,
		CustomerID: customerID,
		StartAt:    startAt,
	}
	end := startAt.Add(svc.Duration())

	h.logger.Info("reservation committed",
		"reservation_id", res.ID,
		"provider_id", res.ProviderID,
		"service_id", res.ServiceID,
		"start_at", startAt.UTC().Format(time.RFC3339),
		"commit_path", string(outcome.Path),
	)
	h.publishCommitted(context.WithoutCancel(ctx), res, end, outcome.Path)

	resp := bookResponse{
		ReservationID: res.ID,
		ProviderID:    res.ProviderID,
		ServiceID:     res.ServiceID,
		StartAt:       startAt.Format(time.RFC3339),
		EndAt:         end.Format(time.RFC3339),
		CommitPath:    string(outcome.Path),
	}
	if svc.PriceCents > 0 {
		resp.PaymentURL = h.paymentLink(ctx, res, svc)
	}
	return marshal(http.StatusCreated, resp)
}

// publishCommitted records the event after the reservation exists. A failure
// here is logged; the booking itself stands.
func (h *BookingHandler) publishCommitted(ctx context.Context, res model.Reservation, end time.Time, path booking.Path) {
	if h.events == nil {
		return
	}
	evt, err := outbox.NewReservationCommitted(res, end, string(path))
	if err != nil {
		h.logger.Error("failed to build event payload", "err", err, "reservation_id", res.ID)
		return
	}
	if err := h.events.Enqueue(ctx, evt); err != nil {
		h.logger.Error("failed to write outbox event", "err", err, "reservation_id", res.ID)
	}
}

func (h *BookingHandler) paymentLink(ctx context.Context, res model.Reservation, svc model.Service) string {
	link, err := h.payments.PaymentLink(ctx, payments.LinkRequest{
		ReservationID: res.ID,
		CustomerID:    res.CustomerID,
		ServiceName:   svc.Name,
		AmountCents:   svc.PriceCents,
	})
	if err != nil {
		if !errors.Is(err, payments.ErrNotConfigured) {
			h.logger.Warn("payment link creation failed", "err", err, "reservation_id", res.ID)
		}
		return ""
	}
	return link
}

// finishIdempotency stores final answers. A store failure is not final, so
// the key is released and a retry runs the commit again.
func (h *BookingHandler) finishIdempotency(ctx context.Context, key string, status int, body []byte, fp string) {
	if status == http.StatusServiceUnavailable {
		if err := h.idempotency.Abandon(ctx, key); err != nil {
			h.logger.Warn("failed to release idempotency key", "err", err)
		}
		return
	}
	if err := h.idempotency.Complete(ctx, key, idempotency.Record{Status: status, Body: body, Fingerprint: fp}); err != nil {
		h.logger.Error("failed to finalize idempotency key", "err", err)
	}
}

func statusFor(reason booking.Reason) int {
	switch reason {
	case booking.ReasonIdentityMissing:
		return http.StatusUnauthorized
	case booking.ReasonInvalidRequest:
		return http.StatusUnprocessableEntity
	case booking.ReasonConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func marshal(status int, v any) (int, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		return http.StatusInternalServerError, []byte(`{"error":"failed to build response"}`)
	}
	return status, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	status, body := marshal(status, v)
	writeRaw(w, status, body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
