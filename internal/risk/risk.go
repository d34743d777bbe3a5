// Package risk
package risk

import (
	"github.com/amirphl/cycle-trader/internal/logger"
	"github.com/amirphl/cycle-trader/internal/position"
)

// Controller evaluates stop-loss/take-profit triggers per position and the
// portfolio-wide daily drawdown breaker.
type Controller struct {
	maxDailyDrawdownPct float64
	log                 *logger.Logger
}

func NewController(maxDailyDrawdownPct float64, log *logger.Logger) *Controller {
	return &Controller{maxDailyDrawdownPct: maxDailyDrawdownPct, log: log}
}

// Result is the outcome of one risk evaluation.
type Result struct {
	Closed           []*position.Position
	Drawdown         float64
	DrawdownBreached bool
}

// Evaluate checks every open position of the symbol against currentPrice
// and closes the triggered ones. For a single position the stop-loss check
// strictly precedes the take-profit check; at most one fires per
// evaluation. The drawdown check runs afterwards against the balance
// already updated by those closes. A non-positive dailyInitialBalance skips
// the drawdown check.
func (c *Controller) Evaluate(book *position.Book, symbol string, currentPrice, dailyInitialBalance float64) Result {
	var res Result

	for _, p := range book.OpenForSymbol(symbol) {
		reason, triggered := c.trigger(p, currentPrice)
		if !triggered {
			continue
		}
		closed, err := book.Close(p.ID, currentPrice, reason)
		if err != nil {
			// Cannot happen for a position just read from the open set,
			// but a close must never take down the cycle.
			c.log.WithComponent("risk").WithField("trade_id", p.ID).WithError(err).Error("close failed")
			continue
		}
		c.log.WithComponent("risk").WithField("trade_id", p.ID).
			Infof("%s hit at %.2f, realized %.2f", reason, currentPrice, closed.RealizedProfit)
		res.Closed = append(res.Closed, closed)
	}

	if dailyInitialBalance > 0 {
		res.Drawdown = (dailyInitialBalance - book.Balance()) / dailyInitialBalance
		if res.Drawdown > c.maxDailyDrawdownPct {
			res.DrawdownBreached = true
			c.log.WithComponent("risk").
				Errorf("daily drawdown %.2f%% exceeded limit %.2f%%", res.Drawdown*100, c.maxDailyDrawdownPct*100)
		}
	}
	return res
}

// trigger returns the close reason for the first matching rule, stop-loss
// before take-profit.
func (c *Controller) trigger(p *position.Position, price float64) (position.CloseReason, bool) {
	if p.Side == position.Buy {
		if price <= p.StopLoss {
			return position.CloseStopLoss, true
		}
		if price >= p.TakeProfit {
			return position.CloseTakeProfit, true
		}
		return "", false
	}
	if price >= p.StopLoss {
		return position.CloseStopLoss, true
	}
	if price <= p.TakeProfit {
		return position.CloseTakeProfit, true
	}
	return "", false
}
