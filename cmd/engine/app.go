package main

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gnidc/Sheet-Manager-sub001/internal/backoff"
	"github.com/gnidc/Sheet-Manager-sub001/internal/broker"
	"github.com/gnidc/Sheet-Manager-sub001/internal/cache"
	"github.com/gnidc/Sheet-Manager-sub001/internal/config"
	"github.com/gnidc/Sheet-Manager-sub001/internal/db"
	"github.com/gnidc/Sheet-Manager-sub001/internal/execution"
	"github.com/gnidc/Sheet-Manager-sub001/internal/journal"
	"github.com/gnidc/Sheet-Manager-sub001/internal/logger"
	"github.com/gnidc/Sheet-Manager-sub001/internal/marketdata"
	gormrepository "github.com/gnidc/Sheet-Manager-sub001/internal/repository/gorm"
	"github.com/gnidc/Sheet-Manager-sub001/internal/runner"
	"github.com/gnidc/Sheet-Manager-sub001/internal/service"
	"github.com/gnidc/Sheet-Manager-sub001/internal/universe"
)

// app holds everything a command needs. Build it with bootstrap and release it with close.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	db       *db.DB
	store    *gormrepository.Store
	cache    cache.Store
	redis    *cache.RedisStore
	settings *service.SystemSettingsService
	journal  *journal.Journal
	executor *execution.Adapter
	runner   *runner.Runner
	location *time.Location
}

func loadConfig(path string, envOnly bool) (config.Config, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return config.Config{}, err
	}
	return config.Load(path, envOnly)
}

// bootstrap opens storage and assembles the engine. migrateOnly stops after the schema migration.
func bootstrap(cfg config.Config, migrateOnly bool) (*app, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log}

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		a.close()
		return nil, err
	}
	a.db = dbConn
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		a.close()
		return nil, err
	}
	if migrateOnly {
		return a, nil
	}

	a.store = gormrepository.New(dbConn.Gorm)
	a.settings = &service.SystemSettingsService{Repo: a.store}
	if err := a.settings.EnsureDefaultSwitches(context.Background()); err != nil {
		log.Warn("init default system switches failed", zap.Error(err))
	}

	a.location = time.UTC
	if tz := strings.TrimSpace(cfg.Runner.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			a.location = loc
		} else {
			log.Warn("unknown session timezone, using UTC", zap.String("timezone", tz), zap.Error(err))
		}
	}

	var lease cache.Locker
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		a.redis = cache.NewRedisStore(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.cache = a.redis
		lease = &cache.RedisLocker{Client: a.redis.Client, Prefix: "eq:lease:"}
	} else {
		a.cache = cache.NewMemoryStore()
	}

	hasAlpacaKeys := cfg.Alpaca.APIKey != "" && cfg.Alpaca.APISecret != ""

	var bars marketdata.Source
	switch strings.ToLower(strings.TrimSpace(cfg.DataSource.Kind)) {
	case "http":
		bars = marketdata.NewHTTPSource(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.DataSource.Timeout)
	default:
		if !hasAlpacaKeys {
			log.Warn("alpaca data source selected without credentials")
		}
		bars = marketdata.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.Feed)
	}
	prices := marketdata.NewProvider(bars, a.cache, marketdata.ProviderOptions{
		CallTimeout:   cfg.PriceHistory.CallTimeout,
		MaxAttempts:   cfg.PriceHistory.MaxAttempts,
		RetryDelay:    cfg.PriceHistory.RetryDelay,
		InterCallWait: cfg.PriceHistory.InterCallWait,
		CacheTTL:      cfg.PriceHistory.CacheTTL,
	}, logger.Component(log, "marketdata"))

	sim := broker.NewSimulator(decimal.NewFromFloat(cfg.Execution.SimulatorCash))
	brokers := map[string]broker.Broker{sim.Name(): sim}
	var live broker.Broker
	universeProvider := &universe.Provider{
		Cache:          a.cache,
		CacheTTL:       cfg.Universe.CacheTTL,
		DefaultIndices: cfg.Universe.DefaultIndices,
		Logger:         logger.Component(log, "universe"),
	}
	if hasAlpacaKeys {
		client := broker.NewAlpacaClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
		ab := broker.NewAlpacaBroker(client)
		live = ab
		brokers[ab.Name()] = ab
		if cfg.Universe.CheckTradable {
			universeProvider.Assets = universe.NewAlpacaAssets(client)
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Universe.Source)) {
	case "http":
		universeProvider.Source = universe.NewHTTPSource(cfg.Universe.BaseURL, cfg.Universe.APIKey, cfg.Universe.Timeout)
	default:
		universeProvider.Source = universe.DBSource{Repo: a.store}
	}

	selectBroker := func(ctx context.Context) broker.Broker {
		if live != nil && a.settings.ExecutorMode(ctx, cfg.Execution.Mode) == service.ModeLive {
			return live
		}
		return sim
	}
	if live == nil && strings.EqualFold(cfg.Execution.Mode, service.ModeLive) {
		log.Warn("live execution requested without alpaca credentials, orders go to the simulator")
	}

	run := runner.New(a.store, runner.Options{
		Workers:                cfg.Runner.Workers,
		TickTimeout:            cfg.Runner.TickTimeout,
		LeaseTTL:               cfg.Redis.LeaseTTL,
		DefaultPerSymbolCapPct: cfg.Risk.DefaultPerSymbolCapPct,
		DefaultPortfolioCapPct: cfg.Risk.DefaultPortfolioCapPct,
		Location:               a.location,
		SessionClose:           cfg.Runner.SessionClose,
	}, logger.Component(log, "runner"))
	a.executor = &execution.Adapter{
		Orders:  a.store,
		Ledger:  run.Positions,
		Select:  selectBroker,
		Brokers: brokers,
		Policy: backoff.Policy{
			MaxAttempts: cfg.Execution.MaxAttempts,
			BaseDelay:   cfg.Execution.BaseDelay,
			MaxDelay:    cfg.Execution.MaxDelay,
			Jitter:      cfg.Execution.Jitter,
			Retryable:   broker.Retryable,
		},
		CallTimeout: cfg.Execution.CallTimeout,
		OrderType:   cfg.Execution.OrderType,
		Logger:      logger.Component(log, "execution"),
	}
	run.Universe = universeProvider
	run.Prices = prices
	run.Executor = a.executor
	run.Settings = a.settings
	run.Lease = lease
	run.Balance = func(ctx context.Context) (decimal.Decimal, error) {
		return selectBroker(ctx).GetBalance(ctx)
	}
	a.runner = run
	a.journal = run.Journal
	return a, nil
}

func (a *app) close() {
	if a == nil {
		return
	}
	if a.redis != nil {
		_ = a.redis.Client.Close()
	}
	if a.db != nil {
		_ = db.Close(a.db)
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
