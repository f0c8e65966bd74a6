package outbox

import (
	"context"
	"log/slog"
	"sync"
)

// Memory collects events in process when no database is configured. Events
// are logged, never published.
type Memory struct {
	mu     sync.Mutex
	events []Event
	logger *slog.Logger
}

func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{logger: logger}
}

func (m *Memory) Enqueue(_ context.Context, evt Event) error {
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
	m.logger.Info("outbox event recorded", "event_type", evt.EventType, "aggregate_id", evt.AggregateID)
	return nil
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
