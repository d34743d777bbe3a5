// Package db
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/amirphl/cycle-trader/internal/journal"
	"github.com/amirphl/cycle-trader/internal/position"
)

// TradeRecord is one append-only ledger row: a position as it looked at an
// open or close event.
type TradeRecord struct {
	Event      string // "open" or "close"
	Position   position.Position
	RecordedAt time.Time
}

// Storage is the durable trade ledger plus the event journal. The bot runs
// with a nil Storage; every call site guards for it.
type Storage interface {
	GetDB() *sql.DB
	RecordOpen(ctx context.Context, p position.Position) error
	RecordClose(ctx context.Context, p position.Position) error
	GetTrades(ctx context.Context, symbol string, start, end time.Time) ([]TradeRecord, error)
	journal.Journaler
	Close() error
}

// Transaction context key
type txKey struct{}

// WithTransaction adds a transaction to the context.
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction retrieves a transaction from context, or returns nil if not present.
func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}
