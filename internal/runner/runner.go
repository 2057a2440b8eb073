// Package runner drives one tick of a strategy rule: universe, bars,
// evaluation, position ledger and order submission.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gnidc/Sheet-Manager-sub001/internal/cache"
	"github.com/gnidc/Sheet-Manager-sub001/internal/execution"
	"github.com/gnidc/Sheet-Manager-sub001/internal/journal"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/position"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
	"github.com/gnidc/Sheet-Manager-sub001/internal/service"
	"github.com/gnidc/Sheet-Manager-sub001/internal/universe"
)

var (
	ErrRuleBusy       = errors.New("rule tick already in flight")
	ErrRuleInactive   = errors.New("rule is not active")
	ErrRuleNotFound   = errors.New("rule not found")
	ErrRunnerDisabled = errors.New("runner disabled by feature switch")
)

type UniverseLoader interface {
	Load(ctx context.Context, ruleID uint64, tickID string, filter universe.Filter) ([]string, error)
}

type BarSource interface {
	GetBars(ctx context.Context, symbol string, lookback int) ([]models.PriceBar, error)
}

type Submitter interface {
	Submit(ctx context.Context, req execution.SubmitRequest) (execution.Result, error)
}

// BalanceFunc reports the tradable balance used when a rule has no allocation.
type BalanceFunc func(ctx context.Context) (decimal.Decimal, error)

type Options struct {
	Workers                int
	TickTimeout            time.Duration
	LeaseTTL               time.Duration
	DefaultPerSymbolCapPct float64
	DefaultPortfolioCapPct float64
	// Location decides where a trading session starts, for the same-day re-entry block.
	Location *time.Location
	// SessionClose is the session's closing time as an offset from local midnight.
	SessionClose time.Duration
}

type TickOptions struct {
	TickID  string
	Trigger string
}

type Runner struct {
	Repo      repository.Repository
	Universe  UniverseLoader
	Prices    BarSource
	Positions *position.Manager
	Executor  Submitter
	Balance   BalanceFunc
	Journal   *journal.Journal
	Settings  *service.SystemSettingsService
	// Lease is an optional cross-process lock, e.g. cache.RedisLocker.
	Lease   cache.Locker
	Options Options
	Logger  *zap.Logger

	local *cache.MemoryLocker
	now   func() time.Time
}

func New(repo repository.Repository, opts Options, logger *zap.Logger) *Runner {
	return &Runner{
		Repo:      repo,
		Positions: position.NewManager(repo, logger),
		Journal:   journal.New(repo, logger),
		Settings:  &service.SystemSettingsService{Repo: repo},
		Options:   opts,
		Logger:    logger,
		local:     cache.NewMemoryLocker(),
		now:       time.Now,
	}
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) workers() int {
	if r.Options.Workers <= 0 {
		return 4
	}
	return r.Options.Workers
}

func (r *Runner) tickTimeout() time.Duration {
	if r.Options.TickTimeout <= 0 {
		return 2 * time.Minute
	}
	return r.Options.TickTimeout
}

func (r *Runner) leaseTTL() time.Duration {
	if r.Options.LeaseTTL > 0 {
		return r.Options.LeaseTTL
	}
	return r.tickTimeout() + time.Minute
}

// acquire takes the in-process lock and, when configured, the shared lease.
func (r *Runner) acquire(ctx context.Context, ruleID uint64) (func(), error) {
	if r.local == nil {
		r.local = cache.NewMemoryLocker()
	}
	key := fmt.Sprintf("rule:%d", ruleID)
	release, ok, err := r.local.TryAcquire(ctx, key, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRuleBusy
	}
	if r.Lease == nil {
		return release, nil
	}
	leaseRelease, ok, err := r.Lease.TryAcquire(ctx, key, r.leaseTTL())
	if err != nil {
		release()
		return nil, fmt.Errorf("acquire rule lease: %w", err)
	}
	if !ok {
		release()
		return nil, ErrRuleBusy
	}
	return func() {
		leaseRelease()
		release()
	}, nil
}

func (r *Runner) enabled(ctx context.Context) bool {
	return r.Settings.IsEnabled(ctx, service.FeatureRunner, true)
}

// RunActive runs every active rule in id order, one after another. Busy and
// failing rules are logged and skipped.
func (r *Runner) RunActive(ctx context.Context, opts TickOptions) ([]TickReport, error) {
	if r == nil || r.Repo == nil {
		return nil, errors.New("runner not configured")
	}
	if !r.enabled(ctx) {
		return nil, ErrRunnerDisabled
	}
	status := models.RuleStatusActive
	asc := true
	rules, err := r.Repo.ListRules(ctx, repository.ListRulesParams{Status: &status, Limit: 500, OrderBy: "id", Asc: &asc})
	if err != nil {
		return nil, err
	}
	if opts.TickID == "" {
		opts.TickID = uuid.NewString()
	}
	reports := make([]TickReport, 0, len(rules))
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := r.RunRule(ctx, rule.ID, opts)
		if err != nil {
			if r.Logger != nil {
				r.Logger.Warn("rule tick skipped", zap.Uint64("rule_id", rule.ID), zap.Error(err))
			}
			if rep.RuleID == 0 {
				rep = TickReport{RuleID: rule.ID, TickID: opts.TickID}
			}
			rep.Error = err.Error()
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
