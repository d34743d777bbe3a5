package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/cycle-trader/internal/marketdata"
)

func TestTechnicalPredictorScore(t *testing.T) {
	p := NewTechnicalPredictor()

	tests := []struct {
		name       string
		close      float64
		indicators map[string]float64
		want       float64
	}{
		{
			name:       "no indicators stays neutral",
			close:      100,
			indicators: nil,
			want:       0.5,
		},
		{
			name:  "macd above signal is bullish",
			close: 100,
			indicators: map[string]float64{
				"MACD_12_26_9":  1.2,
				"MACDS_12_26_9": 0.8,
			},
			want: 0.7,
		},
		{
			name:  "macd below signal is bearish",
			close: 100,
			indicators: map[string]float64{
				"MACD_12_26_9":  -0.5,
				"MACDS_12_26_9": 0.1,
			},
			want: 0.3,
		},
		{
			name:  "overbought stochastic pulls the score down",
			close: 100,
			indicators: map[string]float64{
				"STOCHK_14": 92,
			},
			want: 0.4,
		},
		{
			name:  "oversold stochastic pulls the score up",
			close: 100,
			indicators: map[string]float64{
				"STOCHK_14": 8,
			},
			want: 0.6,
		},
		{
			name:  "close above the upper band pulls the score down",
			close: 120,
			indicators: map[string]float64{
				"BB_UPPER_20": 110,
				"BB_LOWER_20": 90,
			},
			want: 0.35,
		},
		{
			name:  "close below the lower band pulls the score up",
			close: 80,
			indicators: map[string]float64{
				"BB_UPPER_20": 110,
				"BB_LOWER_20": 90,
			},
			want: 0.65,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := marketdata.NewStaticSnapshot("BTCUSDT", tt.close, tt.indicators)
			got, err := p.Score(context.Background(), snap)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestHTTPHeadlineProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bitcoin", r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		json.NewEncoder(w).Encode(map[string]any{
			"articles": []map[string]string{
				{"title": "Bitcoin hits new high"},
				{"title": ""},
				{"title": "Market sees strong growth"},
			},
		})
	}))
	defer server.Close()

	p := NewHTTPHeadlineProvider(server.URL, "secret", 10)
	titles, err := p.Headlines(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bitcoin hits new high", "Market sees strong growth"}, titles)
}

func TestHTTPHeadlineProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewHTTPHeadlineProvider(server.URL, "", 5)
	_, err := p.Headlines(context.Background(), "bitcoin")
	assert.Error(t, err)
}
