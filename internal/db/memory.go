package db

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/amirphl/cycle-trader/internal/journal"
	"github.com/amirphl/cycle-trader/internal/position"
)

// MemoryStorage keeps the ledger and journal in memory. Used in tests and
// when running without Postgres.
type MemoryStorage struct {
	mu sync.RWMutex

	trades []TradeRecord
	events []journal.Event
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		trades: make([]TradeRecord, 0, 256),
		events: make([]journal.Event, 0, 1024),
	}
}

// GetDB returns nil for in-memory storage (no SQL database).
func (m *MemoryStorage) GetDB() *sql.DB { return nil }

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) RecordOpen(_ context.Context, p position.Position) error {
	return m.record("open", p)
}

func (m *MemoryStorage) RecordClose(_ context.Context, p position.Position) error {
	return m.record("close", p)
}

func (m *MemoryStorage) record(event string, p position.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, TradeRecord{
		Event:      event,
		Position:   p,
		RecordedAt: time.Now().UTC(),
	})
	return nil
}

func (m *MemoryStorage) GetTrades(_ context.Context, symbol string, start, end time.Time) ([]TradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TradeRecord
	for _, r := range m.trades {
		if r.Position.Symbol != symbol {
			continue
		}
		if r.RecordedAt.Before(start) || r.RecordedAt.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStorage) LogEvent(_ context.Context, event journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStorage) GetEvents(_ context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []journal.Event
	for _, e := range m.events {
		if e.Type != eventType {
			continue
		}
		if e.Time.Before(start) || e.Time.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
