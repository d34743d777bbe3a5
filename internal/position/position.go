// Package position
package position

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidOrder is returned when an open is attempted with a
	// non-positive price or amount.
	ErrInvalidOrder = errors.New("invalid order: price and amount must be positive")

	// ErrUnknownPosition is returned when a close references an id that is
	// not in the open set (including already-closed positions).
	ErrUnknownPosition = errors.New("unknown or already closed position")
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Valid reports whether s is one of the two supported sides.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type CloseReason string

const (
	CloseStopLoss   CloseReason = "stop_loss"
	CloseTakeProfit CloseReason = "take_profit"
	CloseManual     CloseReason = "manual_close"
	CloseEmergency  CloseReason = "emergency"
)

// Position is a single trade. StopLoss and TakeProfit are fixed at open time
// and never mutated; RealizedProfit is written exactly once, on close.
type Position struct {
	ID         string    `json:"trade_id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	AmountBase float64   `json:"amount_base"`
	CostUSD    float64   `json:"cost_usd"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Status     Status    `json:"status"`
	IsManual   bool      `json:"is_manual"`
	OpenedAt   time.Time `json:"opened_at"`

	// Set on close only.
	ClosePrice     float64     `json:"close_price,omitempty"`
	ClosedAt       time.Time   `json:"closed_at,omitempty"`
	RealizedProfit float64     `json:"realized_profit,omitempty"`
	CloseReason    CloseReason `json:"close_reason,omitempty"`
}

// IsOpen reports whether the position is still in the open set.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// UnrealizedPnL returns the mark-to-market profit in USD and the fractional
// move relative to the entry price. Pure; reporting only, never drives
// balance updates.
func (p *Position) UnrealizedPnL(currentPrice float64) (amount, pct float64) {
	if p.Side == Buy {
		amount = (currentPrice - p.EntryPrice) * p.AmountBase
		pct = (currentPrice - p.EntryPrice) / p.EntryPrice
	} else {
		amount = (p.EntryPrice - currentPrice) * p.AmountBase
		pct = (p.EntryPrice - currentPrice) / p.EntryPrice
	}
	return amount, pct
}

// OpenRequest carries the parameters of a new position.
type OpenRequest struct {
	Symbol        string
	Side          Side
	Price         float64
	AmountUSD     float64
	StopLossPct   float64
	TakeProfitPct float64
	ATR           float64
	IsManual      bool
}

// halfATRFactor widens the take-profit in the direction of the trade by half
// the current ATR, a volatility allowance on top of the fixed percent.
const halfATRFactor = 0.5

// Book is the in-memory set of open positions plus the account balance the
// closes settle against. It is owned by the engine goroutine and is not safe
// for concurrent use.
type Book struct {
	open    []*Position
	balance float64
}

// NewBook creates a book with the given starting balance and restored open
// positions (insertion order preserved). Closed entries are ignored.
func NewBook(balance float64, restored []*Position) *Book {
	b := &Book{balance: balance}
	for _, p := range restored {
		if p != nil && p.IsOpen() {
			b.open = append(b.open, p)
		}
	}
	return b
}

// Balance returns the current account balance.
func (b *Book) Balance() float64 { return b.balance }

// Open creates a new position and appends it to the open set. It fails only
// on a non-positive price or amount, or an unknown side.
func (b *Book) Open(req OpenRequest) (*Position, error) {
	if req.Price <= 0 || req.AmountUSD <= 0 {
		return nil, fmt.Errorf("%w: price=%.8f amount=%.2f", ErrInvalidOrder, req.Price, req.AmountUSD)
	}
	if !req.Side.Valid() {
		return nil, fmt.Errorf("%w: side=%q", ErrInvalidOrder, req.Side)
	}

	var stopLoss, takeProfit float64
	if req.Side == Buy {
		stopLoss = req.Price * (1 - req.StopLossPct)
		takeProfit = req.Price*(1+req.TakeProfitPct) + req.ATR*halfATRFactor
	} else {
		stopLoss = req.Price * (1 + req.StopLossPct)
		takeProfit = req.Price*(1-req.TakeProfitPct) - req.ATR*halfATRFactor
	}

	p := &Position{
		ID:         "TRADE-" + uuid.NewString(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		EntryPrice: req.Price,
		AmountBase: req.AmountUSD / req.Price,
		CostUSD:    req.AmountUSD,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Status:     StatusOpen,
		IsManual:   req.IsManual,
		OpenedAt:   time.Now().UTC(),
	}
	b.open = append(b.open, p)
	return p, nil
}

// Close settles a position: computes realized P&L, applies it to the balance,
// and removes the position from the open set. Closing an unknown or already
// closed id is a no-op returning ErrUnknownPosition.
func (b *Book) Close(id string, closePrice float64, reason CloseReason) (*Position, error) {
	idx := -1
	for i, p := range b.open {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPosition, id)
	}

	p := b.open[idx]
	if p.Side == Buy {
		p.RealizedProfit = (closePrice - p.EntryPrice) * p.AmountBase
	} else {
		p.RealizedProfit = (p.EntryPrice - closePrice) * p.AmountBase
	}
	p.Status = StatusClosed
	p.ClosePrice = closePrice
	p.ClosedAt = time.Now().UTC()
	p.CloseReason = reason

	b.balance += p.RealizedProfit
	b.open = append(b.open[:idx], b.open[idx+1:]...)
	return p, nil
}

// OpenPositions returns the open positions in insertion order. The slice is
// a copy; the positions themselves are shared and must not be mutated by
// callers.
func (b *Book) OpenPositions() []*Position {
	out := make([]*Position, len(b.open))
	copy(out, b.open)
	return out
}

// OpenForSymbol returns the open positions for one symbol, insertion order.
func (b *Book) OpenForSymbol(symbol string) []*Position {
	var out []*Position
	for _, p := range b.open {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out
}

// HasOpenForSymbol reports whether any position is open for the symbol.
func (b *Book) HasOpenForSymbol(symbol string) bool {
	for _, p := range b.open {
		if p.Symbol == symbol {
			return true
		}
	}
	return false
}

// Snapshot returns deep copies of the open positions, for reporting.
func (b *Book) Snapshot() []Position {
	out := make([]Position, 0, len(b.open))
	for _, p := range b.open {
		out = append(out, *p)
	}
	return out
}
