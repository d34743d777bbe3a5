// Package signal
package signal

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/cycle-trader/internal/logger"
	"github.com/amirphl/cycle-trader/internal/marketdata"
)

// Source produces the scalar trading signal and per-symbol sentiment scores,
// both in [0,1]. 0.5 is neutral; >0.75 strong bullish, <0.25 strong bearish.
type Source interface {
	Signal(ctx context.Context, symbol string, snap *marketdata.Snapshot) (float64, error)
	Sentiment(ctx context.Context, symbol string) (float64, error)
}

// Predictor scores the short-term direction from market data. A model-backed
// implementation plugs in here; absent one, the score is neutral.
type Predictor interface {
	Score(ctx context.Context, snap *marketdata.Snapshot) (float64, error)
}

// HeadlineProvider returns recent news headlines for a query.
type HeadlineProvider interface {
	Headlines(ctx context.Context, query string) ([]string, error)
}

// Sub-score weights of the final signal.
const (
	weightModel = 0.7
	weightNews  = 0.2
	weightRSI   = 0.1
)

const neutral = 0.5

// Composite combines the model score, news sentiment and normalized RSI into
// the final signal. Any unavailable sub-score degrades to neutral rather
// than failing the cycle.
type Composite struct {
	predictor Predictor
	headlines HeadlineProvider
	log       *logger.Logger
}

func NewComposite(predictor Predictor, headlines HeadlineProvider, log *logger.Logger) *Composite {
	return &Composite{predictor: predictor, headlines: headlines, log: log}
}

func (c *Composite) Signal(ctx context.Context, symbol string, snap *marketdata.Snapshot) (float64, error) {
	model := neutral
	if c.predictor != nil {
		score, err := c.predictor.Score(ctx, snap)
		if err != nil {
			c.log.WithComponent("signal").Warnf("predictor failed for %s: %v", symbol, err)
		} else {
			model = clamp(score)
		}
	}

	news, err := c.Sentiment(ctx, symbol)
	if err != nil {
		news = neutral
	}

	rsiNorm := neutral
	if rsi, ok := snap.Indicator(fmt.Sprintf("RSI_%d", marketdata.RSIPeriod)); ok {
		rsiNorm = rsi / 100.0
	}

	sig := clamp(weightModel*model + weightNews*news + weightRSI*rsiNorm)
	c.log.WithComponent("signal").WithField("symbol", symbol).
		Debugf("model=%.2f news=%.2f rsi=%.2f -> signal=%.4f", model, news, rsiNorm, sig)
	return sig, nil
}

// Sentiment scores recent headlines for the symbol by keyword polarity.
// Provider failures return neutral with the error so callers can decide to
// log; the score is always usable.
func (c *Composite) Sentiment(ctx context.Context, symbol string) (float64, error) {
	if c.headlines == nil {
		return neutral, nil
	}
	headlines, err := c.headlines.Headlines(ctx, symbol)
	if err != nil {
		return neutral, fmt.Errorf("fetching headlines for %s: %w", symbol, err)
	}
	return ScoreHeadlines(headlines), nil
}

var positiveWords = []string{
	"gain", "bullish", "up", "high", "profit", "good", "strong", "growth", "rise", "positive", "success",
}

var negativeWords = []string{
	"loss", "bearish", "down", "low", "bad", "risk", "weak", "decline", "fall", "negative", "failure",
}

const wordWeight = 0.03

// ScoreHeadlines starts at neutral and moves the score by wordWeight for
// each polarity word present in each headline, clamped to [0,1].
func ScoreHeadlines(headlines []string) float64 {
	score := neutral
	for _, h := range headlines {
		content := strings.ToLower(h)
		for _, w := range positiveWords {
			if strings.Contains(content, w) {
				score += wordWeight
			}
		}
		for _, w := range negativeWords {
			if strings.Contains(content, w) {
				score -= wordWeight
			}
		}
	}
	return clamp(score)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
