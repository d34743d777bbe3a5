// Package config
package config

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

/*
YAML config example:
wallex_api_key: "..."
db_conn_str: "host=localhost port=5432 user=postgres dbname=cycle_trader sslmode=disable"
db_max_open: 10
db_max_idle: 5
discord_webhook_url: "https://discord.com/api/webhooks/..."
listen_addr: ":8080"
state_file: "bot_state.json"
symbol: "BTCUSDT"
watch_list: ["BTCUSDT", "ETHUSDT", "SOLUSDT"]
sentiment_threshold: 0.8
initial_balance: 10000
trade_amount_usd: 100
stop_loss_pct: 0.02
take_profit_pct: 0.03
max_daily_drawdown_pct: 0.05
timeframe: "1h"
lookback: 200
cycle_interval: 1h
pause_interval: 60s
retry_interval: 300s
routing_interval: 1h
send_alerts: true
log_level: "info"
log_format: "text"
log_file: ""
*/

type Config struct {
	WallexAPIKey      string `yaml:"wallex_api_key"`
	DBConnStr         string `yaml:"db_conn_str"`
	DBMaxOpen         int    `yaml:"db_max_open"`
	DBMaxIdle         int    `yaml:"db_max_idle"`
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
	NewsEndpoint      string `yaml:"news_endpoint"`
	NewsAPIKey        string `yaml:"news_api_key"`
	ListenAddr        string `yaml:"listen_addr"`
	StateFile         string `yaml:"state_file"`

	Symbol             string   `yaml:"symbol"`
	WatchList          []string `yaml:"watch_list"`
	SentimentThreshold float64  `yaml:"sentiment_threshold"`

	InitialBalance      float64 `yaml:"initial_balance"`
	TradeAmountUSD      float64 `yaml:"trade_amount_usd"`
	StopLossPct         float64 `yaml:"stop_loss_pct"`
	TakeProfitPct       float64 `yaml:"take_profit_pct"`
	MaxDailyDrawdownPct float64 `yaml:"max_daily_drawdown_pct"`

	Timeframe string `yaml:"timeframe"`
	Lookback  int    `yaml:"lookback"`

	CycleInterval   time.Duration `yaml:"cycle_interval"`
	PauseInterval   time.Duration `yaml:"pause_interval"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
	RoutingInterval time.Duration `yaml:"routing_interval"`

	NotificationRetries int           `yaml:"notification_retries"`
	NotificationDelay   time.Duration `yaml:"notification_delay"`
	SendAlerts          bool          `yaml:"send_alerts"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
}

// Load builds the configuration from flags, with an optional YAML file
// taking precedence and environment variables supplying secrets.
func Load() Config {
	symbol := flag.String("symbol", "BTCUSDT", "Default trading symbol")
	watchListFlag := flag.String("watch-list", "BTCUSDT,ETHUSDT", "Comma-separated symbols monitored for sentiment rotation")
	sentimentThreshold := flag.Float64("sentiment-threshold", 0.8, "Sentiment score needed to switch symbols (e.g., 0.8)")
	initialBalance := flag.Float64("initial-balance", 10000, "Starting balance in USD when no persisted state exists")
	tradeAmount := flag.Float64("trade-amount", 100, "Position size in USD per entry")
	stopLossPct := flag.Float64("stop-loss-pct", 0.02, "Stop loss fraction of entry price (e.g., 0.02 for 2%)")
	takeProfitPct := flag.Float64("take-profit-pct", 0.03, "Take profit fraction of entry price (e.g., 0.03 for 3%)")
	maxDrawdownPct := flag.Float64("max-daily-drawdown-pct", 0.05, "Daily drawdown fraction that halts trading (e.g., 0.05 for 5%)")
	timeframe := flag.String("timeframe", "1h", "Candle timeframe")
	lookback := flag.Int("lookback", 200, "Number of candles fetched per cycle")
	cycleInterval := flag.Duration("cycle-interval", time.Hour, "Wait between trading cycles (e.g., 1h)")
	pauseInterval := flag.Duration("pause-interval", 60*time.Second, "Poll interval while paused (e.g., 60s)")
	retryInterval := flag.Duration("retry-interval", 300*time.Second, "Wait after a market data failure (e.g., 300s)")
	routingInterval := flag.Duration("routing-interval", time.Hour, "Minimum gap between symbol routing checks (e.g., 1h)")
	notificationRetries := flag.Int("notification-retries", 3, "Number of notification send attempts")
	notificationDelay := flag.Duration("notification-delay", 5*time.Second, "Delay between notification retries (e.g., 5s)")
	sendAlerts := flag.Bool("send-alerts", true, "Send notifications to the configured webhook")
	listenAddr := flag.String("listen", ":8080", "HTTP listen address for the operator API")
	stateFile := flag.String("state-file", "bot_state.json", "Path of the persisted bot state")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	logFile := flag.String("log-file", "", "Log file path, empty for stdout")
	configFile := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			log.Fatalf("Failed to read config file: %v", err)
		}
		var fileCfg Config
		err = yaml.Unmarshal(data, &fileCfg)
		if err != nil {
			log.Fatalf("Failed to parse config file: %v", err)
		}
		fileCfg.fillSecrets()
		return fileCfg
	}

	cfg := Config{
		DBMaxOpen:           10,
		DBMaxIdle:           5,
		ListenAddr:          *listenAddr,
		StateFile:           *stateFile,
		Symbol:              *symbol,
		WatchList:           strings.Split(*watchListFlag, ","),
		SentimentThreshold:  *sentimentThreshold,
		InitialBalance:      *initialBalance,
		TradeAmountUSD:      *tradeAmount,
		StopLossPct:         *stopLossPct,
		TakeProfitPct:       *takeProfitPct,
		MaxDailyDrawdownPct: *maxDrawdownPct,
		Timeframe:           *timeframe,
		Lookback:            *lookback,
		CycleInterval:       *cycleInterval,
		PauseInterval:       *pauseInterval,
		RetryInterval:       *retryInterval,
		RoutingInterval:     *routingInterval,
		NotificationRetries: *notificationRetries,
		NotificationDelay:   *notificationDelay,
		SendAlerts:          *sendAlerts,
		LogLevel:            *logLevel,
		LogFormat:           *logFormat,
		LogFile:             *logFile,
	}
	cfg.fillSecrets()
	return cfg
}

// fillSecrets reads credentials from the environment when the file or flags
// left them empty.
func (c *Config) fillSecrets() {
	if c.WallexAPIKey == "" {
		c.WallexAPIKey = os.Getenv("WALLEX_API_KEY")
	}
	if c.DBConnStr == "" {
		c.DBConnStr = os.Getenv("DB_CONN_STR")
	}
	if c.DiscordWebhookURL == "" {
		c.DiscordWebhookURL = os.Getenv("DISCORD_WEBHOOK_URL")
	}
	if c.NewsAPIKey == "" {
		c.NewsAPIKey = os.Getenv("NEWS_API_KEY")
	}
}
