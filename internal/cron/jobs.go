package cronrunner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gnidc/Sheet-Manager-sub001/internal/execution"
	"github.com/gnidc/Sheet-Manager-sub001/internal/runner"
	"github.com/gnidc/Sheet-Manager-sub001/internal/service"
)

type TickRunner interface {
	RunActive(ctx context.Context, opts runner.TickOptions) ([]runner.TickReport, error)
}

type OrderSyncer interface {
	SyncPending(ctx context.Context, staleAfter time.Duration) (execution.SyncReport, error)
}

type Jobs struct {
	TickSpec      string
	OrderSyncSpec string
	TickTimeout   time.Duration
	StaleAfter    time.Duration

	Ticks    TickRunner
	Orders   OrderSyncer
	Settings *service.SystemSettingsService
	Logger   *zap.Logger
}

// Register adds the tick and order sync jobs that have a schedule.
func (j Jobs) Register(r *Runner) error {
	if j.Ticks != nil && j.TickSpec != "" {
		if _, err := r.Add("tick", j.TickSpec, j.TickTimeout, j.tick); err != nil {
			return err
		}
	}
	if j.Orders != nil && j.OrderSyncSpec != "" {
		if _, err := r.Add("order_sync", j.OrderSyncSpec, time.Minute, j.syncOrders); err != nil {
			return err
		}
	}
	return nil
}

func (j Jobs) tick(ctx context.Context) error {
	reports, err := j.Ticks.RunActive(ctx, runner.TickOptions{Trigger: "cron"})
	if errors.Is(err, runner.ErrRunnerDisabled) {
		return nil
	}
	if err != nil {
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("cron tick done", zap.Int("rules", len(reports)))
	}
	return nil
}

func (j Jobs) syncOrders(ctx context.Context) error {
	if !j.Settings.IsEnabled(ctx, service.FeatureOrderSync, true) {
		return nil
	}
	_, err := j.Orders.SyncPending(ctx, j.StaleAfter)
	return err
}
