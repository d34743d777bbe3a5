// Package engine runs the trading loop. One goroutine owns the bot state and
// the position book; the cycle logic and every operator command execute on
// that goroutine, serialized through a command channel.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/cycle-trader/internal/db"
	"github.com/amirphl/cycle-trader/internal/journal"
	"github.com/amirphl/cycle-trader/internal/logger"
	"github.com/amirphl/cycle-trader/internal/marketdata"
	"github.com/amirphl/cycle-trader/internal/notifier"
	"github.com/amirphl/cycle-trader/internal/position"
	"github.com/amirphl/cycle-trader/internal/risk"
	"github.com/amirphl/cycle-trader/internal/router"
	"github.com/amirphl/cycle-trader/internal/signal"
	"github.com/amirphl/cycle-trader/internal/state"
)

// Entry thresholds on the composite signal.
const (
	buySignalThreshold  = 0.75
	sellSignalThreshold = 0.25
)

// Config carries the trading parameters and loop timings.
type Config struct {
	DefaultSymbol      string
	WatchList          []string
	SentimentThreshold float64

	Lookback int

	InitialBalance      float64
	TradeAmountUSD      float64
	StopLossPct         float64
	TakeProfitPct       float64
	MaxDailyDrawdownPct float64

	CycleInterval   time.Duration // between full trading cycles
	PauseInterval   time.Duration // poll interval while paused or halted
	RetryInterval   time.Duration // wait after a market data failure
	RoutingInterval time.Duration // minimum gap between symbol routing checks

	ExternalCallTimeout time.Duration

	SendAlerts bool
}

func (c *Config) applyDefaults() {
	if c.CycleInterval <= 0 {
		c.CycleInterval = time.Hour
	}
	if c.PauseInterval <= 0 {
		c.PauseInterval = 60 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 300 * time.Second
	}
	if c.RoutingInterval <= 0 {
		c.RoutingInterval = time.Hour
	}
	if c.ExternalCallTimeout <= 0 {
		c.ExternalCallTimeout = 30 * time.Second
	}
	if c.Lookback <= 0 {
		c.Lookback = 200
	}
}

// Deps are the external collaborators. Storage may be nil to run without a
// durable ledger.
type Deps struct {
	Market  marketdata.Source
	Signals signal.Source
	Notify  notifier.Notifier
	Storage db.Storage
	Store   *state.Store
	Log     *logger.Logger
}

// Engine is the cycle scheduler plus the command surface. All fields below
// the command channel are owned by the Run goroutine and must not be touched
// from outside it.
type Engine struct {
	cfg  Config
	deps Deps

	commands chan command
	now      func() time.Time

	st         *state.BotState
	book       *position.Book
	riskC      *risk.Controller
	router     *router.Router
	lastPrices map[string]float64
}

// New builds an engine from config and a previously persisted state.
// A nil restored state starts from configured defaults.
func New(cfg Config, deps Deps, restored *state.BotState) *Engine {
	cfg.applyDefaults()
	if deps.Notify == nil {
		deps.Notify = notifier.Nop{}
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}

	st := restored
	if st == nil {
		st = &state.BotState{
			Running:             true,
			DailyInitialBalance: cfg.InitialBalance,
			CurrentBalance:      cfg.InitialBalance,
			LastDailyReset:      state.Today(),
			ActiveSymbol:        cfg.DefaultSymbol,
			WatchList:           cfg.WatchList,
			SentimentThreshold:  cfg.SentimentThreshold,
			TradeAmountUSD:      cfg.TradeAmountUSD,
			SendAlerts:          cfg.SendAlerts,
		}
	}
	if st.ActiveSymbol == "" {
		st.ActiveSymbol = cfg.DefaultSymbol
	}
	if len(st.WatchList) == 0 {
		st.WatchList = cfg.WatchList
	}
	if st.SentimentThreshold == 0 {
		st.SentimentThreshold = cfg.SentimentThreshold
	}

	return &Engine{
		cfg:        cfg,
		deps:       deps,
		commands:   make(chan command),
		now:        time.Now,
		st:         st,
		book:       position.NewBook(st.CurrentBalance, st.OpenPositions),
		riskC:      risk.NewController(cfg.MaxDailyDrawdownPct, deps.Log),
		router:     router.New(cfg.DefaultSymbol, cfg.RoutingInterval),
		lastPrices: make(map[string]float64),
	}
}

// lastPrice is the most recent close seen for symbol. Falls back to the
// entry price so an unseen symbol reports zero unrealized P&L.
func (e *Engine) lastPrice(symbol string, fallback float64) float64 {
	if price, ok := e.lastPrices[symbol]; ok {
		return price
	}
	return fallback
}

// Run executes cycles and serves commands until ctx is cancelled. State is
// persisted before returning.
func (e *Engine) Run(ctx context.Context) error {
	log := e.deps.Log.WithComponent("engine")
	log.Info("engine started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.persist()
			log.Info("engine stopped")
			return ctx.Err()
		case cmd := <-e.commands:
			cmd.reply <- e.handle(ctx, cmd)
		case <-timer.C:
			wait := e.cycle(ctx)
			e.persist()
			timer.Reset(wait)
		}
	}
}

// cycle runs one scheduler iteration and returns how long to wait before the
// next one.
func (e *Engine) cycle(ctx context.Context) time.Duration {
	now := e.now().UTC()
	log := e.deps.Log.WithComponent("cycle")

	// A halted bot does no trading but keeps serving commands and queries.
	if !e.st.Running {
		return e.cfg.PauseInterval
	}

	e.dailyReset(ctx, now)

	if e.st.Paused {
		if e.st.PausedUntil != nil && !now.Before(*e.st.PausedUntil) {
			e.st.Paused = false
			e.st.PausedUntil = nil
			log.Info("pause expired, resuming")
			e.notify(notifier.Event{
				Title:    "Resumed",
				Message:  "Pause window elapsed, trading resumed",
				Severity: notifier.SeverityInfo,
			})
		} else {
			return e.cfg.PauseInterval
		}
	}

	if e.router.Due(now) {
		e.routeSymbol(ctx, now)
	}

	symbol := e.st.ActiveSymbol
	snap, err := e.fetchSnapshot(ctx, symbol)
	if err != nil {
		log.WithError(err).Warnf("no market data for %s, retrying in %s", symbol, e.cfg.RetryInterval)
		return e.cfg.RetryInterval
	}
	e.lastPrices[symbol] = snap.Close

	sig, err := e.fetchSignal(ctx, symbol, snap)
	if err != nil {
		// The composite degrades failed sub-scores to neutral, so an error
		// here still comes with a usable value.
		log.WithError(err).WithField("symbol", symbol).Warn("signal degraded")
	}
	log.WithField("symbol", symbol).Infof("close=%.4f signal=%.4f", snap.Close, sig)

	e.evaluateRisk(ctx, symbol, snap.Close)

	if e.st.Running && !e.book.HasOpenForSymbol(symbol) {
		e.tryEntry(ctx, symbol, sig, snap, false)
	}

	return e.cfg.CycleInterval
}

// dailyReset rebases the drawdown reference once per calendar day.
func (e *Engine) dailyReset(ctx context.Context, now time.Time) {
	today := state.DateOf(now)
	if !today.After(e.st.LastDailyReset) {
		return
	}
	e.st.DailyInitialBalance = e.book.Balance()
	e.st.LastDailyReset = today

	e.deps.Log.WithComponent("cycle").
		Infof("daily reset, initial balance %.2f", e.st.DailyInitialBalance)
	e.logEvent(ctx, "daily_reset", "daily drawdown reference rebased", map[string]any{
		"daily_initial_balance": e.st.DailyInitialBalance,
	})
	e.notify(notifier.Event{
		Title:    "Daily Reset",
		Message:  "Drawdown reference rebased to current balance",
		Severity: notifier.SeverityInfo,
		Fields: []notifier.Field{
			{Name: "Balance", Value: fmt.Sprintf("%.2f USD", e.st.DailyInitialBalance), Inline: true},
		},
	})
}

// routeSymbol gathers sentiment for the watch list and applies the routing
// decision. Symbols without a score are skipped rather than treated neutral.
func (e *Engine) routeSymbol(ctx context.Context, now time.Time) {
	log := e.deps.Log.WithComponent("router")

	scores := make(map[string]float64, len(e.st.WatchList))
	for _, symbol := range e.st.WatchList {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.ExternalCallTimeout)
		score, err := e.deps.Signals.Sentiment(callCtx, symbol)
		cancel()
		if err != nil {
			log.WithError(err).WithField("symbol", symbol).Warn("sentiment unavailable")
			continue
		}
		scores[symbol] = score
	}

	dec := e.router.Evaluate(now, e.st.ActiveSymbol, e.st.WatchList, scores, e.st.SentimentThreshold)
	switch dec.Outcome {
	case router.OutcomeSwitch:
		prev := e.st.ActiveSymbol
		e.st.ActiveSymbol = dec.Symbol
		log.Infof("switching %s -> %s (sentiment %.2f)", prev, dec.Symbol, dec.Score)
		e.logEvent(ctx, "symbol_switch", "sentiment routing switched active symbol", map[string]any{
			"from": prev, "to": dec.Symbol, "score": dec.Score,
		})
		e.notify(notifier.Event{
			Title:    "Symbol Switch",
			Message:  fmt.Sprintf("Strong sentiment on %s", dec.Symbol),
			Severity: notifier.SeverityInfo,
			Fields: []notifier.Field{
				{Name: "From", Value: prev, Inline: true},
				{Name: "To", Value: dec.Symbol, Inline: true},
				{Name: "Sentiment", Value: fmt.Sprintf("%.2f", dec.Score), Inline: true},
			},
		})
	case router.OutcomeRevert:
		prev := e.st.ActiveSymbol
		e.st.ActiveSymbol = dec.Symbol
		log.Infof("no qualifying sentiment, reverting %s -> %s", prev, dec.Symbol)
		e.logEvent(ctx, "symbol_revert", "reverted to default symbol", map[string]any{
			"from": prev, "to": dec.Symbol,
		})
		e.notify(notifier.Event{
			Title:    "Symbol Revert",
			Message:  fmt.Sprintf("No strong sentiment, back to %s", dec.Symbol),
			Severity: notifier.SeverityInfo,
		})
	}
}

func (e *Engine) fetchSnapshot(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ExternalCallTimeout)
	defer cancel()
	return e.deps.Market.Fetch(callCtx, symbol, e.cfg.Lookback)
}

func (e *Engine) fetchSignal(ctx context.Context, symbol string, snap *marketdata.Snapshot) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ExternalCallTimeout)
	defer cancel()
	return e.deps.Signals.Signal(callCtx, symbol, snap)
}

// evaluateRisk closes triggered positions and applies the drawdown breaker.
func (e *Engine) evaluateRisk(ctx context.Context, symbol string, price float64) {
	res := e.riskC.Evaluate(e.book, symbol, price, e.st.DailyInitialBalance)

	for _, closed := range res.Closed {
		e.recordClose(ctx, closed)
		e.notify(closeEvent(closed))
	}
	e.syncState()

	if res.DrawdownBreached && e.st.Running {
		e.st.Running = false
		e.deps.Log.WithComponent("engine").
			Errorf("emergency halt, daily drawdown %.2f%%", res.Drawdown*100)
		e.logEvent(ctx, "halt", "daily drawdown limit exceeded", map[string]any{
			"drawdown":              res.Drawdown,
			"daily_initial_balance": e.st.DailyInitialBalance,
			"current_balance":       e.book.Balance(),
		})
		e.notify(notifier.Event{
			Title:    "EMERGENCY HALT",
			Message:  "Daily drawdown limit exceeded, trading stopped",
			Severity: notifier.SeverityCritical,
			Fields: []notifier.Field{
				{Name: "Drawdown", Value: fmt.Sprintf("%.2f%%", res.Drawdown*100), Inline: true},
				{Name: "Balance", Value: fmt.Sprintf("%.2f USD", e.book.Balance()), Inline: true},
			},
		})
		e.persist()
	}
}

// tryEntry opens a position when the signal is decisive. Manual trades take
// the same path with the chosen side already decided by the caller.
func (e *Engine) tryEntry(ctx context.Context, symbol string, sig float64, snap *marketdata.Snapshot, manual bool) {
	var side position.Side
	switch {
	case sig > buySignalThreshold:
		side = position.Buy
	case sig < sellSignalThreshold:
		side = position.Sell
	default:
		return
	}
	e.openPosition(ctx, symbol, side, e.st.TradeAmountUSD, snap, manual)
}

func (e *Engine) openPosition(ctx context.Context, symbol string, side position.Side, amountUSD float64, snap *marketdata.Snapshot, manual bool) (*position.Position, error) {
	pos, err := e.book.Open(position.OpenRequest{
		Symbol:        symbol,
		Side:          side,
		Price:         snap.Close,
		AmountUSD:     amountUSD,
		StopLossPct:   e.cfg.StopLossPct,
		TakeProfitPct: e.cfg.TakeProfitPct,
		ATR:           snap.ATR(),
		IsManual:      manual,
	})
	if err != nil {
		e.deps.Log.WithComponent("engine").WithError(err).WithField("symbol", symbol).Error("open rejected")
		return nil, err
	}
	e.syncState()

	e.deps.Log.WithComponent("engine").WithField("trade_id", pos.ID).WithField("symbol", symbol).
		Infof("opened %s at %.4f (SL %.4f, TP %.4f)", side, pos.EntryPrice, pos.StopLoss, pos.TakeProfit)
	e.recordOpen(ctx, pos)
	e.notify(openEvent(pos))
	return pos, nil
}

// syncState mirrors the book into the persisted state record.
func (e *Engine) syncState() {
	e.st.CurrentBalance = e.book.Balance()
	e.st.OpenPositions = e.book.OpenPositions()
}

func (e *Engine) persist() {
	if e.deps.Store == nil {
		return
	}
	e.syncState()
	if err := e.deps.Store.Save(e.st); err != nil {
		e.deps.Log.WithComponent("engine").WithError(err).Error("state save failed")
	}
}

// notify sends an event through the sink. Delivery failure is logged and
// swallowed, never propagated to the cycle or a command.
func (e *Engine) notify(event notifier.Event) {
	if !e.st.SendAlerts {
		return
	}
	if err := e.deps.Notify.Send(event); err != nil {
		e.deps.Log.WithComponent("notifier").WithError(err).Warn("notification failed")
	}
}

func (e *Engine) logEvent(ctx context.Context, eventType, description string, data map[string]any) {
	if e.deps.Storage == nil {
		return
	}
	err := e.deps.Storage.LogEvent(ctx, journal.Event{
		Time:        e.now().UTC(),
		Type:        eventType,
		Description: description,
		Data:        data,
	})
	if err != nil {
		e.deps.Log.WithComponent("journal").WithError(err).Warn("event log failed")
	}
}

func (e *Engine) recordOpen(ctx context.Context, pos *position.Position) {
	if e.deps.Storage == nil {
		return
	}
	if err := e.deps.Storage.RecordOpen(ctx, *pos); err != nil {
		e.deps.Log.WithComponent("ledger").WithError(err).WithField("trade_id", pos.ID).Warn("open record failed")
	}
}

func (e *Engine) recordClose(ctx context.Context, pos *position.Position) {
	if e.deps.Storage == nil {
		return
	}
	if err := e.deps.Storage.RecordClose(ctx, *pos); err != nil {
		e.deps.Log.WithComponent("ledger").WithError(err).WithField("trade_id", pos.ID).Warn("close record failed")
	}
}

func openEvent(p *position.Position) notifier.Event {
	title := "Position Opened"
	if p.IsManual {
		title = "Manual Position Opened"
	}
	return notifier.Event{
		Title:    title,
		Message:  fmt.Sprintf("%s %s at %.4f", p.Side, p.Symbol, p.EntryPrice),
		Severity: notifier.SeverityInfo,
		Fields: []notifier.Field{
			{Name: "Trade", Value: p.ID, Inline: false},
			{Name: "Cost", Value: fmt.Sprintf("%.2f USD", p.CostUSD), Inline: true},
			{Name: "Stop Loss", Value: fmt.Sprintf("%.4f", p.StopLoss), Inline: true},
			{Name: "Take Profit", Value: fmt.Sprintf("%.4f", p.TakeProfit), Inline: true},
		},
	}
}

func closeEvent(p *position.Position) notifier.Event {
	severity := notifier.SeveritySuccess
	if p.RealizedProfit < 0 {
		severity = notifier.SeverityWarning
	}
	return notifier.Event{
		Title:    "Position Closed",
		Message:  fmt.Sprintf("%s %s closed at %.4f (%s)", p.Side, p.Symbol, p.ClosePrice, p.CloseReason),
		Severity: severity,
		Fields: []notifier.Field{
			{Name: "Trade", Value: p.ID, Inline: false},
			{Name: "Realized P&L", Value: fmt.Sprintf("%.2f USD", p.RealizedProfit), Inline: true},
		},
	}
}
