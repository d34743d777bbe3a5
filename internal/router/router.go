// Package router
package router

import (
	"math"
	"time"
)

// Outcome of one routing evaluation.
type Outcome int

const (
	// OutcomeKeep leaves the active symbol unchanged.
	OutcomeKeep Outcome = iota
	// OutcomeSwitch moves to a watch-list symbol with strong sentiment.
	OutcomeSwitch
	// OutcomeRevert falls back to the default symbol because nothing on the
	// watch list qualifies.
	OutcomeRevert
)

// Decision is the result of a routing evaluation.
type Decision struct {
	Outcome Outcome
	Symbol  string  // symbol to trade after the decision
	Score   float64 // sentiment of the chosen symbol, only set on switch
}

// Router picks the active trading symbol from externally supplied sentiment
// scores. Checks are rate limited by a monotonic last-checked deadline
// rather than a wall-clock minute gate, so scheduler jitter cannot skip an
// hour.
type Router struct {
	defaultSymbol string
	interval      time.Duration
	lastCheck     time.Time
}

func New(defaultSymbol string, interval time.Duration) *Router {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Router{defaultSymbol: defaultSymbol, interval: interval}
}

// DefaultSymbol returns the configured fallback symbol.
func (r *Router) DefaultSymbol() string { return r.defaultSymbol }

// Due reports whether enough time has passed since the last evaluation.
// The first call is always due.
func (r *Router) Due(now time.Time) bool {
	return r.lastCheck.IsZero() || !now.Before(r.lastCheck.Add(r.interval))
}

// Evaluate decides the active symbol given per-symbol sentiment scores in
// [0,1]. A symbol qualifies when its score is at or beyond the threshold in
// either direction (>= threshold or <= 1-threshold); among qualifiers the
// one farthest from neutral wins, first-seen order breaking ties. Records
// the check time for the Due gate.
func (r *Router) Evaluate(now time.Time, active string, watchList []string, scores map[string]float64, threshold float64) Decision {
	r.lastCheck = now

	best := ""
	bestScore := 0.0
	bestDistance := -1.0
	for _, symbol := range watchList {
		score, ok := scores[symbol]
		if !ok {
			continue
		}
		if score < threshold && score > 1-threshold {
			continue
		}
		distance := math.Abs(score - 0.5)
		if distance > bestDistance {
			bestDistance = distance
			bestScore = score
			best = symbol
		}
	}

	switch {
	case best != "" && best != active:
		return Decision{Outcome: OutcomeSwitch, Symbol: best, Score: bestScore}
	case best != "":
		return Decision{Outcome: OutcomeKeep, Symbol: active}
	case active != r.defaultSymbol:
		return Decision{Outcome: OutcomeRevert, Symbol: r.defaultSymbol}
	default:
		return Decision{Outcome: OutcomeKeep, Symbol: active}
	}
}
