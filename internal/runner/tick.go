package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnidc/Sheet-Manager-sub001/internal/execution"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/position"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
	"github.com/gnidc/Sheet-Manager-sub001/internal/strategy"
	"github.com/gnidc/Sheet-Manager-sub001/internal/universe"
)

// TickReport summarizes one rule tick.
type TickReport struct {
	RuleID       uint64    `json:"rule_id"`
	TickID       string    `json:"tick_id"`
	Trigger      string    `json:"trigger,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Universe     int       `json:"universe"`
	Evaluated    int       `json:"evaluated"`
	NotEvaluated int       `json:"not_evaluated"`
	Buys         int       `json:"buys"`
	Sells        int       `json:"sells"`
	Holds        int       `json:"holds"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	DataGaps     int       `json:"data_gaps"`
	TimedOut     bool      `json:"timed_out"`
	Error        string    `json:"error,omitempty"`
}

// runContext is the state of one rule for the duration of one tick.
type runContext struct {
	rule        models.StrategyRule
	tickID      string
	eval        strategy.Evaluator
	caps        position.Caps
	ledger      *position.Ledger
	closedToday map[string]bool
	logs        []models.DecisionLog
	report      TickReport
}

type symbolResult struct {
	symbol    string
	signal    strategy.Signal
	evaluated bool
}

// RunRule runs a single tick for one rule. The rule is reloaded first, so a
// pause takes effect by the next tick; an in-flight tick finishes.
func (r *Runner) RunRule(ctx context.Context, ruleID uint64, opts TickOptions) (TickReport, error) {
	if r == nil || r.Repo == nil || r.Universe == nil || r.Prices == nil {
		return TickReport{}, errors.New("runner not configured")
	}
	if opts.TickID == "" {
		opts.TickID = uuid.NewString()
	}
	report := TickReport{RuleID: ruleID, TickID: opts.TickID, Trigger: opts.Trigger, StartedAt: r.clock()}
	if !r.enabled(ctx) {
		return report, ErrRunnerDisabled
	}

	release, err := r.acquire(ctx, ruleID)
	if err != nil {
		if r.Logger != nil && errors.Is(err, ErrRuleBusy) {
			r.Logger.Info("rule tick skipped, previous tick in flight", zap.Uint64("rule_id", ruleID), zap.String("tick_id", opts.TickID))
		}
		return report, err
	}
	defer release()

	rule, err := r.Repo.GetRule(ctx, ruleID)
	if err != nil {
		return report, err
	}
	if rule == nil {
		return report, ErrRuleNotFound
	}
	if !rule.IsActive() {
		return report, ErrRuleInactive
	}

	rc := &runContext{rule: *rule, tickID: opts.TickID, report: report}
	defer func() {
		r.flush(ctx, rc)
	}()

	ev, filter, err := r.prepare(ctx, rc)
	if err != nil {
		rc.report.Error = err.Error()
		rc.report.FinishedAt = r.clock()
		return rc.report, err
	}
	rc.eval = ev

	if err := r.loadState(ctx, rc); err != nil {
		rc.report.Error = err.Error()
		rc.report.FinishedAt = r.clock()
		return rc.report, err
	}
	if err := r.resolveCaps(ctx, rc); err != nil {
		rc.gap("", fmt.Sprintf("balance unavailable: %v", err))
		rc.report.FinishedAt = r.clock()
		return rc.report, nil
	}

	tickCtx, cancel := context.WithTimeout(ctx, r.tickTimeout())
	defer cancel()

	symbols, err := r.Universe.Load(tickCtx, rc.rule.ID, rc.tickID, filter)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warn("universe unavailable, tick skipped", zap.Uint64("rule_id", rule.ID), zap.Error(err))
		}
		rc.gap("", fmt.Sprintf("universe unavailable: %v", err))
		rc.report.TimedOut = errors.Is(tickCtx.Err(), context.DeadlineExceeded)
		rc.report.FinishedAt = r.clock()
		return rc.report, nil
	}
	rc.report.Universe = len(symbols)

	// Held symbols are always evaluated so exits still fire after a symbol
	// leaves the universe.
	symbols = mergeSymbols(symbols, rc.ledger.Symbols())

	results := r.evaluate(tickCtx, rc, symbols)
	rc.report.TimedOut = errors.Is(tickCtx.Err(), context.DeadlineExceeded)

	if err := r.apply(ctx, rc, results); err != nil {
		rc.report.Error = err.Error()
		rc.report.FinishedAt = r.clock()
		return rc.report, err
	}
	rc.report.FinishedAt = r.clock()

	if r.Logger != nil {
		r.Logger.Info("rule tick finished",
			zap.Uint64("rule_id", rule.ID),
			zap.String("tick_id", rc.tickID),
			zap.Int("universe", rc.report.Universe),
			zap.Int("evaluated", rc.report.Evaluated),
			zap.Int("buys", rc.report.Buys),
			zap.Int("sells", rc.report.Sells),
			zap.Int("skipped", rc.report.Skipped),
			zap.Int("failed", rc.report.Failed),
			zap.Int("data_gaps", rc.report.DataGaps),
			zap.Bool("timed_out", rc.report.TimedOut),
			zap.Duration("took", rc.report.FinishedAt.Sub(rc.report.StartedAt)),
		)
	}
	return rc.report, nil
}

// prepare builds the evaluator and filter. Malformed configuration moves the
// rule to error and flags it for review.
func (r *Runner) prepare(ctx context.Context, rc *runContext) (strategy.Evaluator, universe.Filter, error) {
	ev, err := strategy.Build(rc.rule)
	var filter universe.Filter
	if err == nil {
		filter, err = universe.ParseFilter(rc.rule.UniverseFilter)
		if err != nil {
			err = &strategy.ConfigError{Kind: rc.rule.Kind, Field: "universe_filter", Msg: err.Error()}
		}
	}
	if err == nil {
		return ev, filter, nil
	}

	var cfgErr *strategy.ConfigError
	if !errors.As(err, &cfgErr) {
		return nil, filter, err
	}
	if setErr := r.Repo.SetRuleStatus(ctx, rc.rule.ID, models.RuleStatusError, cfgErr.Error(), true); setErr != nil {
		return nil, filter, setErr
	}
	if r.Logger != nil {
		r.Logger.Error("rule configuration invalid, rule disabled",
			zap.Uint64("rule_id", rc.rule.ID),
			zap.String("kind", rc.rule.Kind),
			zap.Error(err),
		)
	}
	rc.record(models.DecisionLog{Action: strategy.ActionHold, Outcome: models.DecisionError, Reason: cfgErr.Error()}, nil)
	return nil, filter, err
}

// resolveCaps sizes the caps from the rule allocation or, without one, from
// the broker's free cash plus what the rule already has invested.
func (r *Runner) resolveCaps(ctx context.Context, rc *runContext) error {
	balance := decimal.Zero
	if !rc.rule.AllocatedBalance.IsPositive() {
		if r.Balance == nil {
			return errors.New("rule has no allocation and no broker balance is configured")
		}
		cash, err := r.Balance(ctx)
		if err != nil {
			return err
		}
		balance = cash.Add(rc.ledger.Snapshot().Total)
	}
	rc.caps = position.CapsFor(rc.rule, balance, r.Options.DefaultPerSymbolCapPct, r.Options.DefaultPortfolioCapPct)
	return nil
}

func (r *Runner) sessionStart(now time.Time) time.Time {
	loc := r.Options.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// sessionOpen reports whether the last bar is today's and the session has not
// closed yet, so its close is still moving.
func (r *Runner) sessionOpen(now time.Time, bars []models.PriceBar) bool {
	if r.Options.SessionClose <= 0 || len(bars) == 0 {
		return false
	}
	start := r.sessionStart(now)
	if bars[len(bars)-1].Time.Before(start) {
		return false
	}
	return now.Before(start.Add(r.Options.SessionClose))
}

func (r *Runner) loadState(ctx context.Context, rc *runContext) error {
	ledger, err := position.LoadLedger(ctx, r.Repo, rc.rule.ID)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	rc.ledger = ledger

	since := r.sessionStart(r.clock())
	closed := models.PositionStatusClosed
	ruleID := rc.rule.ID
	items, err := r.Repo.ListPositions(ctx, repository.ListPositionsParams{
		RuleID:      &ruleID,
		Status:      &closed,
		ClosedSince: &since,
		Limit:       500,
	})
	if err != nil {
		return fmt.Errorf("load closed positions: %w", err)
	}
	rc.closedToday = make(map[string]bool, len(items))
	for _, p := range items {
		rc.closedToday[strings.ToUpper(p.Symbol)] = true
	}
	return nil
}

// evaluate fetches bars and runs the evaluator with a bounded worker pool.
// Symbols not reached before ctx ends are left unevaluated.
func (r *Runner) evaluate(ctx context.Context, rc *runContext, symbols []string) []symbolResult {
	results := make([]symbolResult, len(symbols))
	g := new(errgroup.Group)
	g.SetLimit(r.workers())
	lookback := rc.eval.Lookback()
	for i, sym := range symbols {
		results[i].symbol = sym
		if ctx.Err() != nil {
			continue
		}
		i, sym := i, sym
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			bars, err := r.Prices.GetBars(ctx, sym, lookback)
			if err != nil && ctx.Err() != nil {
				return nil
			}
			sc := strategy.SymbolContext{
				Symbol:      sym,
				Bars:        bars,
				DataErr:     err,
				Position:    rc.ledger.Open(sym),
				ClosedToday: rc.closedToday[sym],
				SessionOpen: r.sessionOpen(r.clock(), bars),
			}
			results[i].signal = rc.eval.Evaluate(sc)
			results[i].evaluated = true
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// apply walks the results in ascending symbol order and feeds each signal
// through the position manager and the executor, one mutation at a time.
func (r *Runner) apply(ctx context.Context, rc *runContext, results []symbolResult) error {
	sort.Slice(results, func(i, j int) bool { return results[i].symbol < results[j].symbol })
	for _, res := range results {
		if !res.evaluated {
			rc.report.NotEvaluated++
			continue
		}
		rc.report.Evaluated++
		sig := res.signal
		if sig.Symbol == "" {
			sig.Symbol = res.symbol
		}

		switch {
		case sig.DataGap:
			rc.report.DataGaps++
			rc.record(signalLog(sig, models.DecisionDataGap, sig.Reason), sig)
			continue
		case sig.Action != strategy.ActionBuy && sig.Action != strategy.ActionSell:
			rc.report.Holds++
			rc.record(signalLog(sig, models.DecisionHold, sig.Reason), sig)
			continue
		}

		if ctx.Err() != nil {
			rc.report.Skipped++
			rc.record(signalLog(sig, models.DecisionSkipped, "tick cancelled before submission"), sig)
			continue
		}
		if err := r.execute(ctx, rc, sig, sig.Reason); err != nil {
			return err
		}
	}
	return nil
}

// execute applies one trade signal and submits the resulting order. Only
// errors that make the rest of the tick unsafe are returned.
func (r *Runner) execute(ctx context.Context, rc *runContext, sig strategy.Signal, reason string) error {
	d := r.Positions.Apply(rc.caps, sig, rc.ledger)
	if !d.Accepted {
		rc.report.Skipped++
		rc.record(decisionLog(sig, d, models.DecisionSkipped, d.Skip, nil), decisionDetails{Signal: sig, Decision: d})
		return nil
	}
	if r.Executor == nil {
		return errors.New("runner has no executor")
	}

	res, err := r.Executor.Submit(ctx, execution.SubmitRequest{TickID: rc.tickID, Decision: d})
	if err != nil {
		rc.report.Failed++
		rc.record(decisionLog(sig, d, models.DecisionFailed, err.Error(), res.Order), decisionDetails{Signal: sig, Decision: d})
		if r.Logger != nil {
			r.Logger.Error("order submission failed",
				zap.Uint64("rule_id", rc.rule.ID),
				zap.String("symbol", d.Symbol),
				zap.String("side", d.Side),
				zap.Error(err),
			)
		}
		// The ledger row may have moved under us; reload before the next symbol.
		ledger, lerr := position.LoadLedger(context.WithoutCancel(ctx), r.Repo, rc.rule.ID)
		if lerr != nil {
			return lerr
		}
		rc.ledger = ledger
		return nil
	}

	details := decisionDetails{Signal: sig, Decision: d, Duplicate: res.Duplicate}
	switch {
	case res.Duplicate:
		rc.report.Skipped++
		rc.record(decisionLog(sig, d, models.DecisionSkipped, res.Reason, res.Order), details)
	case res.Status() == models.OrderStatusFilled || res.Status() == models.OrderStatusPending:
		if d.Side == models.OrderSideBuy {
			rc.report.Buys++
		} else {
			rc.report.Sells++
		}
		rc.ledger.Track(res.Position)
		rc.record(decisionLog(sig, d, models.DecisionAccepted, reason, res.Order), details)
	default:
		rc.report.Failed++
		rc.ledger.Track(res.Position)
		rc.record(decisionLog(sig, d, models.DecisionFailed, res.Reason, res.Order), details)
	}
	return nil
}

func (r *Runner) flush(ctx context.Context, rc *runContext) {
	if r.Journal == nil || len(rc.logs) == 0 {
		return
	}
	if err := r.Journal.Record(context.WithoutCancel(ctx), rc.logs); err != nil && r.Logger != nil {
		r.Logger.Error("decision journal write failed", zap.Uint64("rule_id", rc.rule.ID), zap.Error(err))
	}
	rc.logs = nil
}

type decisionDetails struct {
	Signal    strategy.Signal   `json:"signal"`
	Decision  position.Decision `json:"decision"`
	Duplicate bool              `json:"duplicate,omitempty"`
}

func (rc *runContext) record(item models.DecisionLog, details any) {
	item.RuleID = rc.rule.ID
	item.TickID = rc.tickID
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			item.Details = raw
		}
	}
	rc.logs = append(rc.logs, item)
}

func (rc *runContext) gap(symbol, reason string) {
	rc.report.DataGaps++
	rc.record(models.DecisionLog{Symbol: symbol, Action: strategy.ActionHold, Outcome: models.DecisionDataGap, Reason: reason}, nil)
}

func signalLog(sig strategy.Signal, outcome, reason string) models.DecisionLog {
	score := sig.Score
	return models.DecisionLog{
		Symbol:  sig.Symbol,
		Action:  sig.Action,
		Outcome: outcome,
		Reason:  reason,
		Score:   &score,
	}
}

func decisionLog(sig strategy.Signal, d position.Decision, outcome, reason string, order *models.Order) models.DecisionLog {
	item := signalLog(sig, outcome, reason)
	if order != nil && order.ID > 0 {
		id := order.ID
		item.OrderID = &id
	}
	if item.Reason == "" && d.Skip != "" {
		item.Reason = d.Skip
	}
	return item
}

func mergeSymbols(universe, held []string) []string {
	seen := make(map[string]struct{}, len(universe)+len(held))
	out := make([]string, 0, len(universe)+len(held))
	for _, list := range [][]string{universe, held} {
		for _, s := range list {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
