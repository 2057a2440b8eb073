package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	cronrunner "github.com/gnidc/Sheet-Manager-sub001/internal/cron"
	"github.com/gnidc/Sheet-Manager-sub001/internal/handler"
	"github.com/gnidc/Sheet-Manager-sub001/internal/runner"

	_ "github.com/gnidc/Sheet-Manager-sub001/docs"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "engine"
	app.Usage = "equity strategy engine"
	app.Version = Version

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Value:  "config/config.yaml",
			Usage:  "path to the yaml config",
			EnvVar: "EQ_CONFIG",
		},
		cli.BoolFlag{
			Name:   "env-only",
			Usage:  "read configuration from EQ_* environment variables only",
			EnvVar: "EQ_ENV_ONLY",
		},
	}
	app.Commands = []cli.Command{
		serveCMD,
		migrateCMD,
		tickCMD,
		syncOrdersCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the HTTP API and the optional cron schedule",
		Action:      serveAction,
		Description: `Serve the rule API. Ticks arrive from an external scheduler or from the in-process cron.`,
	}
	migrateCMD = cli.Command{
		Name:   "migrate",
		Usage:  "apply the database schema and exit",
		Action: migrateAction,
	}
	tickCMD = cli.Command{
		Name:   "tick",
		Usage:  "run one tick for a rule, or for every active rule",
		Action: tickAction,
		Flags: []cli.Flag{
			cli.Uint64Flag{Name: "rule", Usage: "rule id; 0 runs every active rule"},
			cli.StringFlag{Name: "tick-id", Usage: "tick id, reuse it to retry a tick idempotently"},
		},
	}
	syncOrdersCMD = cli.Command{
		Name:   "sync-orders",
		Usage:  "reconcile pending orders with the broker once",
		Action: syncOrdersAction,
	}
)

func configFrom(c *cli.Context) (string, bool) {
	return c.GlobalString("config"), c.GlobalBool("env-only")
}

func migrateAction(c *cli.Context) error {
	path, envOnly := configFrom(c)
	cfg, err := loadConfig(path, envOnly)
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg, true)
	if err != nil {
		return err
	}
	defer a.close()
	a.logger.Info("migration complete")
	return nil
}

func tickAction(c *cli.Context) error {
	path, envOnly := configFrom(c)
	cfg, err := loadConfig(path, envOnly)
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runner.TickOptions{TickID: strings.TrimSpace(c.String("tick-id")), Trigger: "cli"}
	var reports []runner.TickReport
	if id := c.Uint64("rule"); id > 0 {
		rep, err := a.runner.RunRule(ctx, id, opts)
		if err != nil {
			return err
		}
		reports = append(reports, rep)
	} else {
		reports, err = a.runner.RunActive(ctx, opts)
		if err != nil {
			return err
		}
	}
	for _, rep := range reports {
		a.logger.Info("tick done",
			zap.Uint64("rule_id", rep.RuleID),
			zap.String("tick_id", rep.TickID),
			zap.Int("buys", rep.Buys),
			zap.Int("sells", rep.Sells),
			zap.Int("holds", rep.Holds),
			zap.Int("skipped", rep.Skipped),
			zap.Int("failed", rep.Failed),
			zap.Bool("timed_out", rep.TimedOut),
			zap.String("error", rep.Error),
		)
	}
	return nil
}

func syncOrdersAction(c *cli.Context) error {
	path, envOnly := configFrom(c)
	cfg, err := loadConfig(path, envOnly)
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	rep, err := a.executor.SyncPending(context.Background(), cfg.Execution.StaleAfter)
	if err != nil {
		return err
	}
	a.logger.Info("order sync done",
		zap.Int("checked", rep.Checked),
		zap.Int("filled", rep.Filled),
		zap.Int("rejected", rep.Rejected),
		zap.Int("failed", rep.Failed),
		zap.Int("pending", rep.Pending),
	)
	return nil
}

func serveAction(c *cli.Context) error {
	path, envOnly := configFrom(c)
	cfg, err := loadConfig(path, envOnly)
	if err != nil {
		return err
	}
	a, err := bootstrap(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	deps := handler.RouterDeps{
		Env:     cfg.App.Env,
		DB:      a.db.Gorm,
		Repo:    a.store,
		Runner:  a.runner,
		Journal: a.journal,
		Logger:  logger,
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	engine := handler.NewRouter(deps)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx, a.location)
		jobs := cronrunner.Jobs{
			TickSpec:      cfg.Cron.Tick,
			OrderSyncSpec: cfg.Cron.OrderSync,
			TickTimeout:   cfg.Runner.TickTimeout,
			StaleAfter:    cfg.Execution.StaleAfter,
			Ticks:         a.runner,
			Orders:        a.executor,
			Settings:      a.settings,
			Logger:        logger,
		}
		if err := jobs.Register(cronRunner); err != nil {
			logger.Warn("cron register failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
