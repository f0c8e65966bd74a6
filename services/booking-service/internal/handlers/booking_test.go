package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chairup/chairup/services/booking-service/internal/availability"
	"github.com/chairup/chairup/services/booking-service/internal/identity"
	"github.com/chairup/chairup/services/booking-service/internal/idempotency"
	"github.com/chairup/chairup/services/booking-service/internal/model"
	"github.com/chairup/chairup/services/booking-service/internal/outbox"
	"github.com/chairup/chairup/services/booking-service/internal/storage"
)

// 2025-06-02 is a Monday.
var (
	testNow    = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mondayNine = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	store  *storage.MemoryStore
	events *outbox.Memory
	mux    *http.ServeMux
}

func newFixture(t *testing.T, defaultWindow *availability.Window) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := storage.NewMemoryStore()
	store.PutProvider(model.Provider{ID: "p1", LocationID: "loc1"})
	store.PutProvider(model.Provider{ID: "p2", LocationID: "loc2"})
	store.PutService(model.Service{ID: "s30", Name: "Classic Cut", DurationMinutes: 30, Active: true})
	store.PutService(model.Service{ID: "s45", ProviderID: "p1", Name: "Skin Fade", DurationMinutes: 45, PriceCents: 3500, Active: true})
	store.SetHours("loc1", []model.WorkingHoursRow{
		{LocationID: "loc1", DayOfWeek: int(time.Monday), OpenMinute: 9 * 60, CloseMinute: 12 * 60},
	})

	events := outbox.NewMemory(logger)
	h := NewBookingHandler(store, events, idempotency.NewMemoryStore(time.Hour), nil, nil, logger, Config{
		DefaultWindow: defaultWindow,
		Now:           func() time.Time { return testNow },
	})
	mux := http.NewServeMux()
	h.Register(mux)
	return &fixture{store: store, events: events, mux: mux}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rw := httptest.NewRecorder()
	f.mux.ServeHTTP(rw, req)
	return rw
}

func (f *fixture) book(t *testing.T, customerID, idemKey string, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/book", bytes.NewReader(raw))
	if customerID != "" {
		req = req.WithContext(identity.WithCustomerID(req.Context(), customerID))
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	return f.do(req)
}

func decodeSlots(t *testing.T, rw *httptest.ResponseRecorder) []slotItem {
	t.Helper()
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var slots []slotItem
	if err := json.Unmarshal(rw.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	return slots
}

func TestSlotsExcludeBookedIntervals(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.store.Insert(context.Background(), model.Reservation{
		ID: "r1", LocationID: "loc1", ProviderID: "p1", ServiceID: "s30", CustomerID: "c0",
		StartAt: mondayNine.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	slots := decodeSlots(t, f.do(httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?provider_id=p1&service_id=s30&date=2025-06-02", nil)))
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d: %+v", len(slots), slots)
	}
	if slots[0].StartTime != "2025-06-02T09:00:00Z" || slots[0].EndTime != "2025-06-02T09:30:00Z" {
		t.Fatalf("unexpected first slot %+v", slots[0])
	}
	for _, s := range slots {
		switch s.StartTime {
		case "2025-06-02T09:45:00Z", "2025-06-02T10:00:00Z", "2025-06-02T10:15:00Z":
			t.Fatalf("slot %s overlaps the 10:00 reservation", s.StartTime)
		}
	}
}

func TestSlotsClosedDayIsEmpty(t *testing.T) {
	f := newFixture(t, nil)
	rw := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?provider_id=p1&service_id=s30&date=2025-06-03", nil))
	if slots := decodeSlots(t, rw); len(slots) != 0 {
		t.Fatalf("expected no slots on a closed day, got %d", len(slots))
	}
	if got := rw.Body.String(); got != "[]" {
		t.Fatalf("expected empty json array, got %s", got)
	}
}

func TestSlotsDefaultWindowOnlyForUnconfiguredLocations(t *testing.T) {
	url := "/api/v1/public/slots?provider_id=p2&service_id=s30&date=2025-06-02"

	f := newFixture(t, nil)
	if slots := decodeSlots(t, f.do(httptest.NewRequest(http.MethodGet, url, nil))); len(slots) != 0 {
		t.Fatalf("expected closed location without default window, got %d slots", len(slots))
	}

	f = newFixture(t, &availability.Window{OpenMinute: 9 * 60, CloseMinute: 10 * 60})
	if slots := decodeSlots(t, f.do(httptest.NewRequest(http.MethodGet, url, nil))); len(slots) != 3 {
		t.Fatalf("expected 3 slots in the default window, got %d", len(slots))
	}
	// loc1 has hours configured, so Tuesday stays closed.
	tuesday := "/api/v1/public/slots?provider_id=p1&service_id=s30&date=2025-06-03"
	if slots := decodeSlots(t, f.do(httptest.NewRequest(http.MethodGet, tuesday, nil))); len(slots) != 0 {
		t.Fatalf("expected configured location to stay closed, got %d slots", len(slots))
	}
}

func TestSlotsValidatesQuery(t *testing.T) {
	f := newFixture(t, nil)
	for _, url := range []string{
		"/api/v1/public/slots?provider_id=p1&service_id=s30",
		"/api/v1/public/slots?provider_id=p1&service_id=s30&date=02-06-2025",
	} {
		if rw := f.do(httptest.NewRequest(http.MethodGet, url, nil)); rw.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", url, rw.Code)
		}
	}
}

func TestServicesListsBookableShortestFirst(t *testing.T) {
	f := newFixture(t, nil)
	rw := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/public/services?provider_id=p1", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var items []serviceItem
	if err := json.Unmarshal(rw.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 || items[0].ID != "s30" || items[1].ID != "s45" {
		t.Fatalf("unexpected services %+v", items)
	}

	rw = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/public/services?provider_id=p2", nil))
	if err := json.Unmarshal(rw.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].ID != "s30" {
		t.Fatalf("expected only the unassigned service for p2, got %+v", items)
	}
}

func TestBookRequiresIdentity(t *testing.T) {
	f := newFixture(t, nil)
	rw := f.book(t, "", "key-1", map[string]string{
		"provider_id": "p1", "service_id": "s30", "start_at": mondayNine.Format(time.RFC3339),
	})
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
	if n := len(f.store.Reservations()); n != 0 {
		t.Fatalf("expected no reservations, got %d", n)
	}
}

func TestBookCommitsThenRejectsOverlap(t *testing.T) {
	f := newFixture(t, nil)

	rw := f.book(t, "cust-1", "", map[string]string{
		"provider_id": "p1", "service_id": "s45", "start_at": mondayNine.Format(time.RFC3339),
	})
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp bookResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ReservationID == "" || resp.CommitPath != "atomic" || resp.EndAt != "2025-06-02T09:45:00Z" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.PaymentURL != "" {
		t.Fatalf("expected no payment url without a payment provider, got %s", resp.PaymentURL)
	}

	events := f.events.Events()
	if len(events) != 1 || events[0].EventType != outbox.EventReservationCommitted || events[0].AggregateID != resp.ReservationID {
		t.Fatalf("unexpected events %+v", events)
	}

	rw = f.book(t, "cust-2", "", map[string]string{
		"provider_id": "p1", "service_id": "s30", "start_at": mondayNine.Add(30 * time.Minute).Format(time.RFC3339),
	})
	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rw.Code)
	}
	var errResp errorResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Reason != "conflict" || errResp.Error != "time slot already booked" {
		t.Fatalf("unexpected error response %+v", errResp)
	}

	// Back-to-back is fine.
	rw = f.book(t, "cust-2", "", map[string]string{
		"provider_id": "p1", "service_id": "s30", "start_at": mondayNine.Add(45 * time.Minute).Format(time.RFC3339),
	})
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201 for adjacent booking, got %d", rw.Code)
	}
}

func TestBookReplaysIdempotentRetry(t *testing.T) {
	f := newFixture(t, nil)
	body := map[string]string{
		"provider_id": "p1", "service_id": "s30", "start_at": mondayNine.Format(time.RFC3339),
	}

	first := f.book(t, "cust-1", "retry-1", body)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	second := f.book(t, "cust-1", "retry-1", body)
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replay header")
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("expected identical bodies, got %s vs %s", first.Body.String(), second.Body.String())
	}
	if n := len(f.store.Reservations()); n != 1 {
		t.Fatalf("expected 1 reservation, got %d", n)
	}

	// Same key from another customer is a different request.
	third := f.book(t, "cust-2", "retry-1", body)
	if third.Code != http.StatusConflict {
		t.Fatalf("expected 409 for the other customer, got %d", third.Code)
	}
}

func TestBookFallbackPath(t *testing.T) {
	f := newFixture(t, nil)
	f.store.DisableAtomic()

	rw := f.book(t, "cust-1", "", map[string]string{
		"provider_id": "p1", "service_id": "s30", "start_at": mondayNine.Format(time.RFC3339),
	})
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rw.Code)
	}
	var resp bookResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CommitPath != "fallback" {
		t.Fatalf("expected fallback path, got %s", resp.CommitPath)
	}
}

func TestBookRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t, nil)
	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{"past start", map[string]string{"provider_id": "p1", "service_id": "s30", "start_at": testNow.Add(-time.Hour).Format(time.RFC3339)}, http.StatusUnprocessableEntity},
		{"unknown provider", map[string]string{"provider_id": "nope", "service_id": "s30", "start_at": mondayNine.Format(time.RFC3339)}, http.StatusUnprocessableEntity},
		{"service of another provider", map[string]string{"provider_id": "p2", "service_id": "s45", "start_at": mondayNine.Format(time.RFC3339)}, http.StatusUnprocessableEntity},
		{"bad timestamp", map[string]string{"provider_id": "p1", "service_id": "s30", "start_at": "tomorrow"}, http.StatusBadRequest},
		{"missing fields", map[string]string{"provider_id": "p1"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rw := f.book(t, "cust-1", "", tc.body); rw.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rw.Code)
		}
	}
	if n := len(f.store.Reservations()); n != 0 {
		t.Fatalf("expected no reservations, got %d", n)
	}
}

func TestMatchSuggestsService(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/match", bytes.NewBufferString(`{"provider_id":"p1","description":"skin fade, short top"}`))
	rw := f.do(req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var got struct {
		Source    string `json:"source"`
		ServiceID string `json:"service_id"`
		Minutes   int    `json:"minutes"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Source != "heuristic" || got.ServiceID != "s45" || got.Minutes != 45 {
		t.Fatalf("unexpected suggestion %+v", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/public/match", bytes.NewBufferString(`{"provider_id":"ghost","description":"fade"}`))
	if rw := f.do(req); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without services, got %d", rw.Code)
	}
}

// cancellingStore cancels the request context as soon as the reservation is
// written, like a client giving up while the answer is on its way.
type cancellingStore struct {
	*storage.MemoryStore
	cancel context.CancelFunc
}

func (s *cancellingStore) AtomicInsert(ctx context.Context, r model.Reservation, end time.Time) (string, error) {
	id, err := s.MemoryStore.AtomicInsert(ctx, r, end)
	s.cancel()
	return id, err
}

// ctxIdempotency fails on a done context the way a network-backed store does.
type ctxIdempotency struct {
	*idempotency.MemoryStore
}

func (s ctxIdempotency) Begin(ctx context.Context, key string) (*idempotency.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.Begin(ctx, key)
}

func (s ctxIdempotency) Complete(ctx context.Context, key string, rec idempotency.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Complete(ctx, key, rec)
}

type ctxEvents struct {
	*outbox.Memory
}

func (e ctxEvents) Enqueue(ctx context.Context, evt outbox.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.Memory.Enqueue(ctx, evt)
}

func TestBookRecordsAnswerAfterClientGoesAway(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := storage.NewMemoryStore()
	mem.PutProvider(model.Provider{ID: "p1", LocationID: "loc1"})
	mem.PutService(model.Service{ID: "s30", Name: "Classic Cut", DurationMinutes: 30, Active: true})

	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := outbox.NewMemory(logger)
	h := NewBookingHandler(&cancellingStore{MemoryStore: mem, cancel: cancel}, ctxEvents{events},
		ctxIdempotency{idempotency.NewMemoryStore(time.Hour)}, nil, nil, logger, Config{
			Now: func() time.Time { return testNow },
		})
	mux := http.NewServeMux()
	h.Register(mux)

	send := func(ctx context.Context) *httptest.ResponseRecorder {
		body := `{"provider_id":"p1","service_id":"s30","start_at":"` + mondayNine.Format(time.RFC3339) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/book", bytes.NewBufferString(body))
		req = req.WithContext(identity.WithCustomerID(ctx, "cust-1"))
		req.Header.Set("Idempotency-Key", "slow-1")
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, req)
		return rw
	}

	first := send(reqCtx)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	if n := len(events.Events()); n != 1 {
		t.Fatalf("expected the committed event to be recorded, got %d", n)
	}

	retry := send(context.Background())
	if retry.Code != http.StatusCreated || retry.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed 201, got %d: %s", retry.Code, retry.Body.String())
	}
	if retry.Body.String() != first.Body.String() {
		t.Fatalf("expected identical bodies, got %s vs %s", first.Body.String(), retry.Body.String())
	}
	if n := len(mem.Reservations()); n != 1 {
		t.Fatalf("expected 1 reservation, got %d", n)
	}
}

func TestBookRejectsKeyReusedForAnotherRequest(t *testing.T) {
	f := newFixture(t, nil)
	first := f.book(t, "cust-1", "reuse-1", map[string]string{
		"provider_id": "p1", "service_id": "s30", "start_at": mondayNine.Format(time.RFC3339),
	})
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	rw := f.book(t, "cust-1", "reuse-1", map[string]string{
		"provider_id": "p1", "service_id": "s30", "start_at": mondayNine.Add(2 * time.Hour).Format(time.RFC3339),
	})
	if rw.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a different request under the same key, got %d: %s", rw.Code, rw.Body.String())
	}
	if rw.Header().Get("Idempotent-Replayed") != "" {
		t.Fatal("expected no replay for a mismatched request")
	}

	// The same booking written with another offset is the same request.
	est := time.FixedZone("EST", -5*3600)
	rw = f.book(t, "cust-1", "reuse-1", map[string]string{
		"provider_id": "p1", "service_id": "s30", "start_at": mondayNine.In(est).Format(time.RFC3339),
	})
	if rw.Code != http.StatusCreated || rw.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay for the same instant, got %d", rw.Code)
	}
	if n := len(f.store.Reservations()); n != 1 {
		t.Fatalf("expected 1 reservation, got %d", n)
	}
}
