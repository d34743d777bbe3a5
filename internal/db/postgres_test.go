package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/cycle-trader/internal/db/conf"
	"github.com/amirphl/cycle-trader/internal/journal"
	"github.com/amirphl/cycle-trader/internal/position"
)

func samplePosition() position.Position {
	return position.Position{
		ID:         "TRADE-11111111-2222-3333-4444-555555555555",
		Symbol:     "BTCUSDT",
		Side:       position.Buy,
		EntryPrice: 100,
		AmountBase: 1,
		CostUSD:    100,
		StopLoss:   98,
		TakeProfit: 103,
		Status:     position.StatusOpen,
		OpenedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestPostgresRecordAndGetTrades(t *testing.T) {
	cfg, cleanup := conf.NewTestConfig(t)
	defer cleanup()

	storage := NewPostgres(cfg.DB)
	ctx := context.Background()

	open := samplePosition()
	require.NoError(t, storage.RecordOpen(ctx, open))

	closed := open
	closed.Status = position.StatusClosed
	closed.ClosePrice = 103
	closed.ClosedAt = time.Now().UTC().Truncate(time.Microsecond)
	closed.RealizedProfit = 3
	closed.CloseReason = position.CloseTakeProfit
	require.NoError(t, storage.RecordClose(ctx, closed))

	records, err := storage.GetTrades(ctx, "BTCUSDT",
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "open", records[0].Event)
	assert.Equal(t, open.ID, records[0].Position.ID)
	assert.Equal(t, position.StatusOpen, records[0].Position.Status)
	assert.Zero(t, records[0].Position.ClosePrice)

	assert.Equal(t, "close", records[1].Event)
	assert.Equal(t, position.StatusClosed, records[1].Position.Status)
	assert.InDelta(t, 103.0, records[1].Position.ClosePrice, 1e-9)
	assert.InDelta(t, 3.0, records[1].Position.RealizedProfit, 1e-9)
	assert.Equal(t, position.CloseTakeProfit, records[1].Position.CloseReason)
}

func TestPostgresGetTradesFiltersSymbol(t *testing.T) {
	cfg, cleanup := conf.NewTestConfig(t)
	defer cleanup()

	storage := NewPostgres(cfg.DB)
	ctx := context.Background()

	btc := samplePosition()
	require.NoError(t, storage.RecordOpen(ctx, btc))

	eth := samplePosition()
	eth.ID = "TRADE-aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	eth.Symbol = "ETHUSDT"
	require.NoError(t, storage.RecordOpen(ctx, eth))

	records, err := storage.GetTrades(ctx, "ETHUSDT",
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ETHUSDT", records[0].Position.Symbol)
}

func TestPostgresJournal(t *testing.T) {
	cfg, cleanup := conf.NewTestConfig(t)
	defer cleanup()

	storage := NewPostgres(cfg.DB)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, storage.LogEvent(ctx, journal.Event{
		Time:        now,
		Type:        "symbol_switch",
		Description: "switched active symbol",
		Data:        map[string]any{"from": "BTCUSDT", "to": "ETHUSDT"},
	}))
	require.NoError(t, storage.LogEvent(ctx, journal.Event{
		Time:        now.Add(time.Second),
		Type:        "halt",
		Description: "daily drawdown exceeded",
	}))

	events, err := storage.GetEvents(ctx, "symbol_switch",
		now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "switched active symbol", events[0].Description)
	assert.Equal(t, "ETHUSDT", events[0].Data["to"])
}

func TestPostgresRecordInsideTransaction(t *testing.T) {
	cfg, cleanup := conf.NewTestConfig(t)
	defer cleanup()

	storage := NewPostgres(cfg.DB)

	tx, err := cfg.DB.Begin()
	require.NoError(t, err)
	ctx := WithTransaction(context.Background(), tx)

	require.NoError(t, storage.RecordOpen(ctx, samplePosition()))
	require.NoError(t, tx.Rollback())

	// Rolled back transaction must leave no rows behind
	records, err := storage.GetTrades(context.Background(), "BTCUSDT",
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, records)
}
