// Package state
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/amirphl/cycle-trader/internal/position"
)

// DateLayout is how LastDailyReset serializes: calendar date only, no zone
// ambiguity for the daily-reset comparison.
const DateLayout = "2006-01-02"

// Date is a calendar day. It marshals as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// Today returns the current calendar day in UTC.
func Today() Date {
	return DateOf(time.Now().UTC())
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// After reports whether d is a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("parsing date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// BotState is the durable record of the bot: balances, control flags, symbol
// routing configuration and the open positions. Per-position unrealized P&L
// is never persisted; it is recomputed on read.
type BotState struct {
	Running     bool       `json:"running"`
	Paused      bool       `json:"paused"`
	PausedUntil *time.Time `json:"paused_until,omitempty"` // nil while paused means indefinite

	DailyInitialBalance float64 `json:"daily_initial_balance"`
	CurrentBalance      float64 `json:"current_balance"`
	LastDailyReset      Date    `json:"last_daily_reset"`

	ActiveSymbol       string   `json:"active_symbol"`
	WatchList          []string `json:"watch_list"`
	SentimentThreshold float64  `json:"sentiment_threshold"`

	TradeAmountUSD float64 `json:"trade_amount_usd"`
	SendAlerts     bool    `json:"send_alerts"`

	OpenPositions []*position.Position `json:"open_positions"`
}

// Store persists BotState as a JSON file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes the state to disk. The write goes through a temp file and
// rename so a crash mid-write cannot truncate the previous snapshot.
func (s *Store) Save(st *BotState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bot state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write bot state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace bot state file: %w", err)
	}
	return nil
}

// Load reads the persisted state. A missing file returns (nil, nil) so the
// caller can fall back to configured defaults.
func (s *Store) Load() (*BotState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read bot state file: %w", err)
	}

	var st BotState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot state: %w", err)
	}
	return &st, nil
}
