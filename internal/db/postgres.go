package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/amirphl/cycle-trader/internal/journal"
	"github.com/amirphl/cycle-trader/internal/position"
)

// Postgres is the lib/pq backed Storage.
type Postgres struct {
	db *sql.DB
}

// Open connects to Postgres and configures the pool.
func Open(connStr string, maxOpen, maxIdle int) (*Postgres, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if maxOpen > 0 {
		conn.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		conn.SetMaxIdleConns(maxIdle)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Postgres{db: conn}, nil
}

// NewPostgres wraps an existing connection. Used by tests.
func NewPostgres(conn *sql.DB) *Postgres {
	return &Postgres{db: conn}
}

func (p *Postgres) GetDB() *sql.DB { return p.db }

func (p *Postgres) Close() error { return p.db.Close() }

// executeWithTransaction executes a function with proper transaction
// management. If a transaction exists in context, it uses that; otherwise
// it creates a new one.
func (p *Postgres) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}
	return nil
}

func (p *Postgres) queryWithTransaction(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return p.db.QueryContext(ctx, query, args...)
}

func (p *Postgres) RecordOpen(ctx context.Context, pos position.Position) error {
	return p.record(ctx, "open", pos)
}

func (p *Postgres) RecordClose(ctx context.Context, pos position.Position) error {
	return p.record(ctx, "close", pos)
}

func (p *Postgres) record(ctx context.Context, event string, pos position.Position) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		var closePrice, realizedProfit sql.NullFloat64
		var closedAt sql.NullTime
		var closeReason sql.NullString
		if pos.Status == position.StatusClosed {
			closePrice = sql.NullFloat64{Float64: pos.ClosePrice, Valid: true}
			realizedProfit = sql.NullFloat64{Float64: pos.RealizedProfit, Valid: true}
			closedAt = sql.NullTime{Time: pos.ClosedAt, Valid: true}
			closeReason = sql.NullString{String: string(pos.CloseReason), Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
		INSERT INTO trades (trade_id, event, symbol, side, entry_price, amount_base, cost_usd,
			stop_loss, take_profit, status, is_manual, opened_at,
			close_price, closed_at, realized_profit, close_reason, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			pos.ID, event, pos.Symbol, string(pos.Side), pos.EntryPrice, pos.AmountBase, pos.CostUSD,
			pos.StopLoss, pos.TakeProfit, string(pos.Status), pos.IsManual, pos.OpenedAt,
			closePrice, closedAt, realizedProfit, closeReason, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to record %s for trade %s: %w", event, pos.ID, err)
		}
		return nil
	})
}

func (p *Postgres) GetTrades(ctx context.Context, symbol string, start, end time.Time) ([]TradeRecord, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT trade_id, event, symbol, side, entry_price, amount_base, cost_usd,
			stop_loss, take_profit, status, is_manual, opened_at,
			close_price, closed_at, realized_profit, close_reason, recorded_at
		FROM trades
		WHERE symbol=$1 AND recorded_at >= $2 AND recorded_at <= $3
		ORDER BY recorded_at ASC`,
		symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var records []TradeRecord
	for rows.Next() {
		var r TradeRecord
		var side, status string
		var closePrice, realizedProfit sql.NullFloat64
		var closedAt sql.NullTime
		var closeReason sql.NullString
		if err := rows.Scan(
			&r.Position.ID, &r.Event, &r.Position.Symbol, &side,
			&r.Position.EntryPrice, &r.Position.AmountBase, &r.Position.CostUSD,
			&r.Position.StopLoss, &r.Position.TakeProfit, &status, &r.Position.IsManual,
			&r.Position.OpenedAt, &closePrice, &closedAt, &realizedProfit, &closeReason,
			&r.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		r.Position.Side = position.Side(side)
		r.Position.Status = position.Status(status)
		if closePrice.Valid {
			r.Position.ClosePrice = closePrice.Float64
		}
		if closedAt.Valid {
			r.Position.ClosedAt = closedAt.Time.UTC()
		}
		if realizedProfit.Valid {
			r.Position.RealizedProfit = realizedProfit.Float64
		}
		if closeReason.Valid {
			r.Position.CloseReason = position.CloseReason(closeReason.String)
		}
		r.Position.OpenedAt = r.Position.OpenedAt.UTC()
		r.RecordedAt = r.RecordedAt.UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func (p *Postgres) LogEvent(ctx context.Context, event journal.Event) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		data, _ := json.Marshal(event.Data)
		_, err := tx.ExecContext(ctx, `INSERT INTO events (time, type, description, data) VALUES ($1,$2,$3,$4)`,
			event.Time, event.Type, event.Description, data)
		if err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

func (p *Postgres) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT time, type, description, data FROM events
		WHERE type=$1 AND time >= $2 AND time <= $3 ORDER BY time ASC`,
		eventType, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []journal.Event
	for rows.Next() {
		var e journal.Event
		var data []byte
		if err := rows.Scan(&e.Time, &e.Type, &e.Description, &data); err != nil {
			return nil, err
		}
		json.Unmarshal(data, &e.Data)
		e.Time = e.Time.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
