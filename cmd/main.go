package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/amirphl/cycle-trader/internal/api"
	"github.com/amirphl/cycle-trader/internal/config"
	"github.com/amirphl/cycle-trader/internal/db"
	"github.com/amirphl/cycle-trader/internal/engine"
	"github.com/amirphl/cycle-trader/internal/logger"
	"github.com/amirphl/cycle-trader/internal/marketdata"
	"github.com/amirphl/cycle-trader/internal/notifier"
	tradesignal "github.com/amirphl/cycle-trader/internal/signal"
	"github.com/amirphl/cycle-trader/internal/state"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable ledger is optional; the bot trades without it.
	var storage db.Storage
	if cfg.DBConnStr != "" {
		pg, err := db.Open(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
		if err != nil {
			log.WithError(err).Fatal("postgres connection failed")
		}
		defer pg.Close()
		storage = pg
	} else {
		log.Warn("no DB_CONN_STR, trade ledger disabled")
	}

	market, err := marketdata.NewWallexSource(cfg.WallexAPIKey, cfg.Timeframe, log)
	if err != nil {
		log.WithError(err).Fatal("market data source failed")
	}

	var headlines tradesignal.HeadlineProvider
	if cfg.NewsEndpoint != "" {
		headlines = tradesignal.NewHTTPHeadlineProvider(cfg.NewsEndpoint, cfg.NewsAPIKey, 10)
	}
	signals := tradesignal.NewComposite(tradesignal.NewTechnicalPredictor(), headlines, log)

	var notify notifier.Notifier = notifier.Nop{}
	if cfg.DiscordWebhookURL != "" {
		notify = notifier.NewRetrier(
			notifier.NewDiscordNotifier(cfg.DiscordWebhookURL),
			cfg.NotificationRetries, cfg.NotificationDelay)
	} else {
		log.Warn("no Discord webhook configured, notifications disabled")
	}

	store := state.NewStore(cfg.StateFile)
	restored, err := store.Load()
	if err != nil {
		log.WithError(err).Warn("state load failed, starting from defaults")
		restored = nil
	}
	if restored != nil {
		log.Infof("restored state: balance %.2f, %d open positions",
			restored.CurrentBalance, len(restored.OpenPositions))
	}

	eng := engine.New(engine.Config{
		DefaultSymbol:       cfg.Symbol,
		WatchList:           cfg.WatchList,
		SentimentThreshold:  cfg.SentimentThreshold,
		Lookback:            cfg.Lookback,
		InitialBalance:      cfg.InitialBalance,
		TradeAmountUSD:      cfg.TradeAmountUSD,
		StopLossPct:         cfg.StopLossPct,
		TakeProfitPct:       cfg.TakeProfitPct,
		MaxDailyDrawdownPct: cfg.MaxDailyDrawdownPct,
		CycleInterval:       cfg.CycleInterval,
		PauseInterval:       cfg.PauseInterval,
		RetryInterval:       cfg.RetryInterval,
		RoutingInterval:     cfg.RoutingInterval,
		SendAlerts:          cfg.SendAlerts,
	}, engine.Deps{
		Market:  market,
		Signals: signals,
		Notify:  notify,
		Storage: storage,
		Store:   store,
		Log:     log,
	}, restored)

	server := api.NewServer(eng, log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := server.Start(cfg.ListenAddr); err != nil {
			log.WithError(err).Error("api server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("api shutdown failed")
	}
	wg.Wait()
	log.Info("stopped")
}
