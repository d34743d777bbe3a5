package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	wallex "github.com/wallexchange/wallex-go"

	"github.com/amirphl/cycle-trader/internal/logger"
	"github.com/amirphl/cycle-trader/internal/tfutils"
)

// WallexSource fetches OHLCV bars from the Wallex REST API.
type WallexSource struct {
	client    *wallex.Client
	timeframe string
	log       *logger.Logger
}

func NewWallexSource(apiKey, timeframe string, log *logger.Logger) (*WallexSource, error) {
	if !tfutils.IsValidTimeframe(timeframe) {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
	return &WallexSource{
		client:    wallex.New(wallex.ClientOptions{APIKey: apiKey}),
		timeframe: timeframe,
		log:       log,
	}, nil
}

// retry wraps a function with fixed-count retries and exponential backoff,
// capped at one minute. Transient REST failures are common enough that one
// shot per cycle would waste cycles.
func (w *WallexSource) retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	backoff := delay
	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		w.log.WithComponent("marketdata").Warnf("Wallex attempt %d/%d failed: %v, backing off %v", i, attempts, lastErr, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < time.Minute {
			backoff *= 2
			if backoff > time.Minute {
				backoff = time.Minute
			}
		}
	}
	return lastErr
}

func (w *WallexSource) Fetch(ctx context.Context, symbol string, lookback int) (*Snapshot, error) {
	if lookback <= 0 {
		lookback = 100
	}

	dur := tfutils.GetTimeframeDuration(w.timeframe)
	end := time.Now().UTC()
	start := end.Add(-time.Duration(lookback) * dur)

	var raw []*wallex.Candle
	err := w.retry(ctx, 3, 2*time.Second, func() error {
		var err error
		raw, err = w.client.Candles(normalizeSymbol(symbol), normalizeTimeframe(w.timeframe), start, end)
		if err != nil {
			return fmt.Errorf("fetching candles: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}

	candles := make([]Candle, 0, len(raw))
	for _, rc := range raw {
		c := Candle{Timestamp: rc.Timestamp.UTC()}
		var perr error
		if c.Open, perr = parsePrice(string(rc.Open)); perr != nil {
			continue
		}
		if c.High, perr = parsePrice(string(rc.High)); perr != nil {
			continue
		}
		if c.Low, perr = parsePrice(string(rc.Low)); perr != nil {
			continue
		}
		if c.Close, perr = parsePrice(string(rc.Close)); perr != nil {
			continue
		}
		c.Volume, _ = strconv.ParseFloat(string(rc.Volume), 64)
		if c.Close <= 0 || c.High < c.Low {
			continue // skip malformed bars
		}
		candles = append(candles, c)
	}

	if len(candles) > lookback {
		candles = candles[len(candles)-lookback:]
	}
	return BuildSnapshot(symbol, w.timeframe, candles)
}

func parsePrice(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", "/", "").Replace(symbol))
}

// normalizeTimeframe maps "1m"/"1h"/"1d" style timeframes onto Wallex
// resolutions (minutes as bare numbers).
func normalizeTimeframe(timeframe string) string {
	switch timeframe {
	case "1h":
		return "60"
	case "4h":
		return "240"
	case "1d":
		return "D"
	default:
		return strings.TrimSuffix(timeframe, "m")
	}
}
