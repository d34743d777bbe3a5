package signal

import (
	"context"
	"fmt"

	"github.com/amirphl/cycle-trader/internal/marketdata"
)

// TechnicalPredictor scores direction from MACD trend and the position of
// the close inside the Bollinger channel. It stands in for a model-backed
// predictor when none is configured.
type TechnicalPredictor struct{}

func NewTechnicalPredictor() *TechnicalPredictor {
	return &TechnicalPredictor{}
}

// Score starts neutral and shifts on each indicator that has an opinion.
// Missing indicators contribute nothing.
func (t *TechnicalPredictor) Score(_ context.Context, snap *marketdata.Snapshot) (float64, error) {
	score := neutral

	macdKey := fmt.Sprintf("MACD_%d_%d_%d", marketdata.MACDFast, marketdata.MACDSlow, marketdata.MACDSignal)
	macdsKey := fmt.Sprintf("MACDS_%d_%d_%d", marketdata.MACDFast, marketdata.MACDSlow, marketdata.MACDSignal)
	if macd, ok := snap.Indicator(macdKey); ok {
		if macds, ok := snap.Indicator(macdsKey); ok {
			if macd > macds {
				score += 0.2
			} else if macd < macds {
				score -= 0.2
			}
		}
	}

	if k, ok := snap.Indicator(fmt.Sprintf("STOCHK_%d", marketdata.StochasticPeriodK)); ok {
		switch {
		case k > 80:
			score -= 0.1 // overbought
		case k < 20:
			score += 0.1 // oversold
		}
	}

	upper, okU := snap.Indicator(fmt.Sprintf("BB_UPPER_%d", marketdata.BollingerPeriod))
	lower, okL := snap.Indicator(fmt.Sprintf("BB_LOWER_%d", marketdata.BollingerPeriod))
	if okU && okL && upper > lower {
		// Position in the channel, 0 at the lower band, 1 at the upper.
		pos := (snap.Close - lower) / (upper - lower)
		switch {
		case pos > 1:
			score -= 0.15 // stretched above the channel
		case pos < 0:
			score += 0.15 // stretched below the channel
		}
	}

	return clamp(score), nil
}
