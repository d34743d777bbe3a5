package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/cycle-trader/internal/engine"
	"github.com/amirphl/cycle-trader/internal/logger"
	"github.com/amirphl/cycle-trader/internal/position"
)

type stubController struct {
	report *engine.Report

	pausedMinutes int
	resumed       bool
	tradeAmount   float64
	symbol        string
	toggled       bool

	manualSymbol string
	manualSide   position.Side
	manualAmount float64
}

func (s *stubController) Pause(_ context.Context, minutes int) (string, error) {
	s.pausedMinutes = minutes
	return "paused", nil
}

func (s *stubController) Resume(context.Context) (string, error) {
	s.resumed = true
	return "resumed", nil
}

func (s *stubController) SetTradeAmount(_ context.Context, amountUSD float64) (string, error) {
	if amountUSD <= 0 {
		return "", engine.ErrInvalidCommand
	}
	s.tradeAmount = amountUSD
	return "ok", nil
}

func (s *stubController) SetSymbol(_ context.Context, symbol string) (string, error) {
	s.symbol = symbol
	return "ok", nil
}

func (s *stubController) ToggleAlerts(context.Context) (string, error) {
	s.toggled = true
	return "alerts enabled", nil
}

func (s *stubController) ManualTrade(_ context.Context, symbol string, side position.Side, amountUSD float64) (string, error) {
	if !side.Valid() {
		return "", engine.ErrInvalidCommand
	}
	s.manualSymbol = symbol
	s.manualSide = side
	s.manualAmount = amountUSD
	return "opened", nil
}

func (s *stubController) Snapshot(context.Context) (*engine.Report, error) {
	return s.report, nil
}

func newTestServer() (*Server, *stubController) {
	ctrl := &stubController{report: &engine.Report{Running: true, ActiveSymbol: "BTCUSDT"}}
	return NewServer(ctrl, logger.NewNop()), ctrl
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer()
	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer()
	rec := doJSON(t, srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report engine.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Running)
	assert.Equal(t, "BTCUSDT", report.ActiveSymbol)
}

func TestPause(t *testing.T) {
	srv, ctrl := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/pause", `{"minutes": 30}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, ctrl.pausedMinutes)

	// No body pauses indefinitely
	rec = doJSON(t, srv, http.MethodPost, "/api/pause", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, ctrl.pausedMinutes)
}

func TestResume(t *testing.T) {
	srv, ctrl := newTestServer()
	rec := doJSON(t, srv, http.MethodPost, "/api/resume", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ctrl.resumed)
}

func TestTradeAmount(t *testing.T) {
	srv, ctrl := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/trade-amount", `{"amount_usd": 250}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 250.0, ctrl.tradeAmount, 1e-9)

	// Invalid parameter maps to 400
	rec = doJSON(t, srv, http.MethodPost, "/api/trade-amount", `{"amount_usd": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetSymbol(t *testing.T) {
	srv, ctrl := newTestServer()
	rec := doJSON(t, srv, http.MethodPost, "/api/symbol", `{"symbol": "ETHUSDT"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ETHUSDT", ctrl.symbol)
}

func TestManualTrade(t *testing.T) {
	srv, ctrl := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/trade",
		`{"symbol": "BTCUSDT", "side": "sell", "amount_usd": 50}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTCUSDT", ctrl.manualSymbol)
	assert.Equal(t, position.Sell, ctrl.manualSide)
	assert.InDelta(t, 50.0, ctrl.manualAmount, 1e-9)

	rec = doJSON(t, srv, http.MethodPost, "/api/trade",
		`{"symbol": "BTCUSDT", "side": "hold"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleAlerts(t *testing.T) {
	srv, ctrl := newTestServer()
	rec := doJSON(t, srv, http.MethodPost, "/api/alerts/toggle", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ctrl.toggled)
}
