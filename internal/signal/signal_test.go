package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/cycle-trader/internal/logger"
	"github.com/amirphl/cycle-trader/internal/marketdata"
)

type fixedPredictor struct {
	score float64
	err   error
}

func (p fixedPredictor) Score(context.Context, *marketdata.Snapshot) (float64, error) {
	return p.score, p.err
}

type fixedHeadlines struct {
	headlines []string
	err       error
}

func (h fixedHeadlines) Headlines(context.Context, string) ([]string, error) {
	return h.headlines, h.err
}

func TestScoreHeadlines(t *testing.T) {
	tests := []struct {
		name      string
		headlines []string
		want      float64
	}{
		{"no headlines stays neutral", nil, 0.5},
		{"one positive word", []string{"strong quarter"}, 0.53},
		{"one negative word", []string{"heavy loss reported"}, 0.47},
		{"mixed cancels out", []string{"strong growth but heavy loss and decline"}, 0.5 + 2*0.03 - 2*0.03},
		{"clamped at 1", []string{
			"gain bullish up high profit good strong growth rise positive success",
			"gain bullish up high profit good strong growth rise positive success",
		}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreHeadlines(tt.headlines), 1e-9)
		})
	}
}

func TestCompositeSignalWeights(t *testing.T) {
	snap := marketdata.NewStaticSnapshot("BTCUSDT", 100, map[string]float64{"RSI_14": 60})
	c := NewComposite(
		fixedPredictor{score: 0.8},
		fixedHeadlines{headlines: []string{"strong growth"}}, // 0.5 + 2*0.03 = 0.56
		logger.NewNop(),
	)

	got, err := c.Signal(context.Background(), "BTCUSDT", snap)
	require.NoError(t, err)
	want := 0.7*0.8 + 0.2*0.56 + 0.1*0.6
	assert.InDelta(t, want, got, 1e-9)
}

func TestCompositeDegradesToNeutral(t *testing.T) {
	// No predictor, failing headlines, no RSI in snapshot: fully neutral.
	snap := marketdata.NewStaticSnapshot("BTCUSDT", 100, nil)
	c := NewComposite(nil, fixedHeadlines{err: errors.New("api down")}, logger.NewNop())

	got, err := c.Signal(context.Background(), "BTCUSDT", snap)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestCompositePredictorFailureIsNeutral(t *testing.T) {
	snap := marketdata.NewStaticSnapshot("BTCUSDT", 100, map[string]float64{"RSI_14": 50})
	c := NewComposite(fixedPredictor{err: errors.New("model offline")}, nil, logger.NewNop())

	got, err := c.Signal(context.Background(), "BTCUSDT", snap)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestSentimentProviderFailure(t *testing.T) {
	c := NewComposite(nil, fixedHeadlines{err: errors.New("quota")}, logger.NewNop())
	score, err := c.Sentiment(context.Background(), "AAPL")
	assert.Error(t, err)
	assert.InDelta(t, 0.5, score, 1e-9)
}
