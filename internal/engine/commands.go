package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/cycle-trader/internal/position"
)

// ErrInvalidCommand rejects a command with a bad parameter. No state was
// mutated.
var ErrInvalidCommand = errors.New("invalid command")

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdSetTradeAmount
	cmdSetSymbol
	cmdToggleAlerts
	cmdManualTrade
	cmdSnapshot
)

type command struct {
	kind commandKind

	minutes   int
	amountUSD float64
	symbol    string
	side      position.Side

	reply chan result
}

type result struct {
	message  string
	snapshot *Report
	err      error
}

// PositionReport is an open position plus its P&L at the last known price.
type PositionReport struct {
	position.Position
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	UnrealizedPct float64 `json:"unrealized_pct"`
}

// Report is a consistent point-in-time view of the bot.
type Report struct {
	Status              string           `json:"status"` // running, paused or halted
	Running             bool             `json:"running"`
	Paused              bool             `json:"paused"`
	PausedUntil         *time.Time       `json:"paused_until,omitempty"`
	ActiveSymbol        string           `json:"active_symbol"`
	WatchList           []string         `json:"watch_list"`
	SentimentThreshold  float64          `json:"sentiment_threshold"`
	CurrentBalance      float64          `json:"current_balance"`
	DailyInitialBalance float64          `json:"daily_initial_balance"`
	TradeAmountUSD      float64          `json:"trade_amount_usd"`
	SendAlerts          bool             `json:"send_alerts"`
	OpenPositions       []PositionReport `json:"open_positions"`
}

// send delivers a command to the engine goroutine and waits for its reply.
func (e *Engine) send(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)
	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Pause stops trading. minutes <= 0 pauses indefinitely until Resume.
func (e *Engine) Pause(ctx context.Context, minutes int) (string, error) {
	res, err := e.send(ctx, command{kind: cmdPause, minutes: minutes})
	return res.message, err
}

// Resume clears a pause.
func (e *Engine) Resume(ctx context.Context) (string, error) {
	res, err := e.send(ctx, command{kind: cmdResume})
	return res.message, err
}

// SetTradeAmount changes the USD size of future entries.
func (e *Engine) SetTradeAmount(ctx context.Context, amountUSD float64) (string, error) {
	if amountUSD <= 0 {
		return "", fmt.Errorf("%w: trade amount must be positive", ErrInvalidCommand)
	}
	res, err := e.send(ctx, command{kind: cmdSetTradeAmount, amountUSD: amountUSD})
	return res.message, err
}

// SetSymbol changes the active trading symbol.
func (e *Engine) SetSymbol(ctx context.Context, symbol string) (string, error) {
	if symbol == "" {
		return "", fmt.Errorf("%w: symbol must not be empty", ErrInvalidCommand)
	}
	res, err := e.send(ctx, command{kind: cmdSetSymbol, symbol: symbol})
	return res.message, err
}

// ToggleAlerts flips notification delivery on or off.
func (e *Engine) ToggleAlerts(ctx context.Context) (string, error) {
	res, err := e.send(ctx, command{kind: cmdToggleAlerts})
	return res.message, err
}

// ManualTrade opens a position at the current price, bypassing the
// one-position-per-symbol gate. amountUSD <= 0 falls back to the configured
// trade amount.
func (e *Engine) ManualTrade(ctx context.Context, symbol string, side position.Side, amountUSD float64) (string, error) {
	if symbol == "" {
		return "", fmt.Errorf("%w: symbol must not be empty", ErrInvalidCommand)
	}
	if !side.Valid() {
		return "", fmt.Errorf("%w: side must be buy or sell", ErrInvalidCommand)
	}
	if amountUSD < 0 {
		return "", fmt.Errorf("%w: trade amount must not be negative", ErrInvalidCommand)
	}
	res, err := e.send(ctx, command{kind: cmdManualTrade, symbol: symbol, side: side, amountUSD: amountUSD})
	return res.message, err
}

// Snapshot returns the bot state with unrealized P&L per open position,
// computed at each position's last known evaluation price.
func (e *Engine) Snapshot(ctx context.Context) (*Report, error) {
	res, err := e.send(ctx, command{kind: cmdSnapshot})
	if err != nil {
		return nil, err
	}
	return res.snapshot, nil
}

// handle executes one command on the engine goroutine.
func (e *Engine) handle(ctx context.Context, cmd command) result {
	switch cmd.kind {
	case cmdPause:
		e.st.Paused = true
		e.st.PausedUntil = nil
		msg := "paused indefinitely"
		if cmd.minutes > 0 {
			until := e.now().UTC().Add(time.Duration(cmd.minutes) * time.Minute)
			e.st.PausedUntil = &until
			msg = fmt.Sprintf("paused until %s", until.Format(time.RFC3339))
		}
		e.logEvent(ctx, "pause", msg, nil)
		e.persist()
		return result{message: msg}

	case cmdResume:
		e.st.Paused = false
		e.st.PausedUntil = nil
		e.logEvent(ctx, "resume", "trading resumed by operator", nil)
		e.persist()
		return result{message: "resumed"}

	case cmdSetTradeAmount:
		if cmd.amountUSD <= 0 {
			return result{err: fmt.Errorf("%w: trade amount must be positive", ErrInvalidCommand)}
		}
		e.st.TradeAmountUSD = cmd.amountUSD
		e.persist()
		return result{message: fmt.Sprintf("trade amount set to %.2f USD", cmd.amountUSD)}

	case cmdSetSymbol:
		e.st.ActiveSymbol = cmd.symbol
		e.persist()
		return result{message: fmt.Sprintf("active symbol set to %s", cmd.symbol)}

	case cmdToggleAlerts:
		e.st.SendAlerts = !e.st.SendAlerts
		e.persist()
		if e.st.SendAlerts {
			return result{message: "alerts enabled"}
		}
		return result{message: "alerts disabled"}

	case cmdManualTrade:
		return e.handleManualTrade(ctx, cmd)

	case cmdSnapshot:
		return result{snapshot: e.report()}

	default:
		return result{err: fmt.Errorf("%w: unknown command", ErrInvalidCommand)}
	}
}

func (e *Engine) handleManualTrade(ctx context.Context, cmd command) result {
	snap, err := e.fetchSnapshot(ctx, cmd.symbol)
	if err != nil {
		return result{err: fmt.Errorf("no market data for %s: %w", cmd.symbol, err)}
	}
	e.lastPrices[cmd.symbol] = snap.Close

	amount := cmd.amountUSD
	if amount == 0 {
		amount = e.st.TradeAmountUSD
	}

	pos, err := e.openPosition(ctx, cmd.symbol, cmd.side, amount, snap, true)
	if err != nil {
		return result{err: err}
	}
	e.persist()
	return result{message: fmt.Sprintf("opened %s, %s %s at %.4f", pos.ID, pos.Side, pos.Symbol, pos.EntryPrice)}
}

func (e *Engine) report() *Report {
	e.syncState()

	open := e.book.Snapshot()
	reports := make([]PositionReport, 0, len(open))
	for _, p := range open {
		amount, pct := p.UnrealizedPnL(e.lastPrice(p.Symbol, p.EntryPrice))
		reports = append(reports, PositionReport{Position: p, UnrealizedPnL: amount, UnrealizedPct: pct})
	}

	var pausedUntil *time.Time
	if e.st.PausedUntil != nil {
		t := *e.st.PausedUntil
		pausedUntil = &t
	}
	watch := make([]string, len(e.st.WatchList))
	copy(watch, e.st.WatchList)

	status := "running"
	switch {
	case !e.st.Running:
		status = "halted"
	case e.st.Paused:
		status = "paused"
	}

	return &Report{
		Status:              status,
		Running:             e.st.Running,
		Paused:              e.st.Paused,
		PausedUntil:         pausedUntil,
		ActiveSymbol:        e.st.ActiveSymbol,
		WatchList:           watch,
		SentimentThreshold:  e.st.SentimentThreshold,
		CurrentBalance:      e.st.CurrentBalance,
		DailyInitialBalance: e.st.DailyInitialBalance,
		TradeAmountUSD:      e.st.TradeAmountUSD,
		SendAlerts:          e.st.SendAlerts,
		OpenPositions:       reports,
	}
}
