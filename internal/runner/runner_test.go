package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnidc/Sheet-Manager-sub001/internal/backoff"
	"github.com/gnidc/Sheet-Manager-sub001/internal/broker"
	"github.com/gnidc/Sheet-Manager-sub001/internal/dbtest"
	"github.com/gnidc/Sheet-Manager-sub001/internal/execution"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
	gormrepository "github.com/gnidc/Sheet-Manager-sub001/internal/repository/gorm"
	"github.com/gnidc/Sheet-Manager-sub001/internal/strategy"
	"github.com/gnidc/Sheet-Manager-sub001/internal/universe"
)

type staticUniverse struct {
	symbols []string
	err     error
}

func (u staticUniverse) Load(context.Context, uint64, string, universe.Filter) ([]string, error) {
	return u.symbols, u.err
}

type fakeBars struct {
	mu    sync.Mutex
	bars  map[string][]models.PriceBar
	block map[string]bool
	calls map[string]int
}

func (f *fakeBars) GetBars(ctx context.Context, symbol string, _ int) ([]models.PriceBar, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[symbol]++
	blocked := f.block[symbol]
	bars, ok := f.bars[symbol]
	f.mu.Unlock()
	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if !ok {
		return nil, errors.New("no data")
	}
	return bars, nil
}

// gapUpBars is an 80-session uptrend whose last session opens 5% above the prior close.
func gapUpBars() []models.PriceBar {
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, 80)
	for i := range out {
		c := 50 + float64(i)*0.5
		out[i] = models.PriceBar{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	prev := out[78].Close
	out[79].Open = prev * 1.05
	out[79].High = 94
	out[79].Close = 94
	return out
}

func flatBars() []models.PriceBar {
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, 80)
	for i := range out {
		out[i] = models.PriceBar{Time: start.AddDate(0, 0, i), Open: 20, High: 20, Low: 20, Close: 20, Volume: 1000}
	}
	return out
}

type harness struct {
	runner *Runner
	store  *gormrepository.Store
	bars   *fakeBars
}

func newHarness(t *testing.T, symbols []string) *harness {
	t.Helper()
	store := dbtest.Store(t)
	sim := broker.NewSimulator(decimal.NewFromInt(10_000_000))
	bars := &fakeBars{bars: map[string][]models.PriceBar{
		"AAA": gapUpBars(),
		"BBB": flatBars(),
	}}
	r := New(store, Options{Workers: 2, TickTimeout: time.Second}, nil)
	r.Universe = staticUniverse{symbols: symbols}
	r.Prices = bars
	r.Executor = &execution.Adapter{
		Orders:  store,
		Ledger:  r.Positions,
		Brokers: map[string]broker.Broker{sim.Name(): sim},
		Policy:  backoff.Policy{MaxAttempts: 1},
	}
	r.now = func() time.Time { return time.Date(2026, 1, 19, 1, 0, 0, 0, time.UTC) }
	return &harness{runner: r, store: store, bars: bars}
}

func (h *harness) rule(t *testing.T, kind string, params string) *models.StrategyRule {
	t.Helper()
	rule := &models.StrategyRule{
		Name:             "test",
		Kind:             kind,
		Owner:            "ops",
		Params:           []byte(params),
		AllocatedBalance: decimal.NewFromInt(1_000_000),
		PerSymbolCapPct:  decimal.NewFromFloat(0.1),
		PortfolioCapPct:  decimal.NewFromFloat(0.5),
		Status:           models.RuleStatusActive,
	}
	require.NoError(t, h.store.CreateRule(context.Background(), rule))
	return rule
}

func (h *harness) orders(t *testing.T, ruleID uint64) []models.Order {
	t.Helper()
	items, err := h.store.ListOrders(context.Background(), repository.ListOrdersParams{RuleID: &ruleID})
	require.NoError(t, err)
	return items
}

func TestRunRule_EntryAndIdempotentRerun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"BBB", "AAA"})
	rule := h.rule(t, models.RuleKindGapMomentum, `{}`)

	rep, err := h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Universe)
	assert.Equal(t, 2, rep.Evaluated)
	assert.Equal(t, 1, rep.Buys)
	assert.Equal(t, 1, rep.Holds)
	assert.False(t, rep.TimedOut)

	pos, err := h.store.GetOpenPosition(ctx, rule.ID, "AAA")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 1, pos.Stage)
	// 30% of a 100k per-symbol cap at 94.
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(319)), "qty=%s", pos.Quantity)

	again, err := h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Buys)
	assert.Len(t, h.orders(t, rule.ID), 1, "rerunning a tick must not create a second order")

	logs, err := h.store.ListDecisionLogs(ctx, repository.ListDecisionLogsParams{RuleID: &rule.ID})
	require.NoError(t, err)
	assert.Len(t, logs, 4)
}

func TestRunRule_TimeoutReportsPartialTick(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAA", "BBB", "ZZZ"})
	h.bars.block = map[string]bool{"ZZZ": true}
	h.runner.Options.TickTimeout = 50 * time.Millisecond
	rule := h.rule(t, models.RuleKindGapMomentum, `{}`)

	rep, err := h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t1"})
	require.NoError(t, err)
	assert.True(t, rep.TimedOut)
	assert.Equal(t, 2, rep.Evaluated)
	assert.Equal(t, 1, rep.NotEvaluated)
	assert.Equal(t, 1, rep.Buys, "evaluated symbols are still applied")
}

func TestRunRule_BusyAndInactive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAA"})
	rule := h.rule(t, models.RuleKindGapMomentum, `{}`)

	release, err := h.runner.acquire(ctx, rule.ID)
	require.NoError(t, err)
	_, err = h.runner.RunRule(ctx, rule.ID, TickOptions{})
	assert.ErrorIs(t, err, ErrRuleBusy)
	release()

	_, err = h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t1"})
	require.NoError(t, err)

	require.NoError(t, h.store.SetRuleStatus(ctx, rule.ID, models.RuleStatusPaused, "operator", false))
	_, err = h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t2"})
	assert.ErrorIs(t, err, ErrRuleInactive)

	// Pausing leaves existing positions alone.
	pos, err := h.store.GetOpenPosition(ctx, rule.ID, "AAA")
	require.NoError(t, err)
	assert.NotNil(t, pos)
}

func TestRunRule_ConfigErrorDisablesRule(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAA"})
	rule := h.rule(t, models.RuleKindMultiFactor, `{"buy_score_threshold": 20, "sell_score_threshold": 40}`)

	_, err := h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t1"})
	var cfgErr *strategy.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	got, err := h.store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RuleStatusError, got.Status)
	assert.True(t, got.NeedsReview)

	logs, err := h.store.ListDecisionLogs(ctx, repository.ListDecisionLogsParams{RuleID: &rule.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.DecisionError, logs[0].Outcome)

	_, err = h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t2"})
	assert.ErrorIs(t, err, ErrRuleInactive, "not retried until an operator intervenes")
}

func TestRunRule_UniverseFailureSkipsTick(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.runner.Universe = staticUniverse{err: errors.New("upstream down")}
	rule := h.rule(t, models.RuleKindGapMomentum, `{}`)

	rep, err := h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.DataGaps)
	assert.Equal(t, 0, rep.Evaluated)
	assert.Empty(t, h.bars.calls)
	assert.Empty(t, h.orders(t, rule.ID))
}

func TestRunRule_MissingBarsIsDataGap(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAA", "NOPE"})
	rule := h.rule(t, models.RuleKindGapMomentum, `{}`)

	rep, err := h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.DataGaps)
	assert.Equal(t, 1, rep.Buys, "one symbol's failure does not abort the tick")
}

func TestRunRule_PortfolioCapSkips(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAA"})
	rule := h.rule(t, models.RuleKindGapMomentum, `{}`)
	rule.PortfolioCapPct = decimal.NewFromFloat(0.02)
	require.NoError(t, h.store.UpdateRuleCaps(ctx, rule.ID, repository.RuleCaps{PortfolioCapPct: &rule.PortfolioCapPct}))

	rep, err := h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Empty(t, h.orders(t, rule.ID))

	logs, err := h.store.ListDecisionLogs(ctx, repository.ListDecisionLogsParams{RuleID: &rule.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.DecisionSkipped, logs[0].Outcome)
	assert.Contains(t, logs[0].Reason, "cap reached")
}

func TestRunRule_BalanceFallbackKeepsCapsAcrossFills(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAA"})
	sim := broker.NewSimulator(decimal.NewFromInt(1_000_000))
	h.runner.Executor = &execution.Adapter{
		Orders:  h.store,
		Ledger:  h.runner.Positions,
		Brokers: map[string]broker.Broker{sim.Name(): sim},
		Policy:  backoff.Policy{MaxAttempts: 1},
	}
	h.runner.Balance = sim.GetBalance
	rule := &models.StrategyRule{
		Name:            "cash-backed",
		Kind:            models.RuleKindGapMomentum,
		Owner:           "ops",
		Params:          []byte(`{"first_fill_pct": 1.0}`),
		PerSymbolCapPct: decimal.NewFromFloat(0.45),
		PortfolioCapPct: decimal.NewFromFloat(0.5),
		Status:          models.RuleStatusActive,
	}
	require.NoError(t, h.store.CreateRule(ctx, rule))

	first, err := h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t1"})
	require.NoError(t, err)
	require.Equal(t, 1, first.Buys)
	pos, err := h.store.GetOpenPosition(ctx, rule.ID, "AAA")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.Invested.Equal(decimal.NewFromInt(449978)), "invested=%s", pos.Invested)

	second, err := h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t2"})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Buys)
	assert.Empty(t, second.Error)

	rc := &runContext{rule: *rule}
	require.NoError(t, h.runner.loadState(ctx, rc))
	require.NoError(t, h.runner.resolveCaps(ctx, rc))
	assert.True(t, rc.caps.Allocated.Equal(decimal.NewFromInt(1_000_000)), "allocated=%s", rc.caps.Allocated)
	assert.True(t, rc.caps.PerSymbol.Equal(decimal.NewFromInt(450_000)), "per_symbol=%s", rc.caps.PerSymbol)
	assert.True(t, rc.caps.Portfolio.Equal(decimal.NewFromInt(500_000)), "portfolio=%s", rc.caps.Portfolio)
	assert.False(t, rc.ledger.Snapshot().Total.GreaterThan(rc.caps.Portfolio))
	assert.False(t, pos.Invested.GreaterThan(rc.caps.PerSymbol))
}

func TestLiquidate_ClosesOpenPositions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAA"})
	rule := h.rule(t, models.RuleKindGapMomentum, `{}`)

	_, err := h.runner.RunRule(ctx, rule.ID, TickOptions{TickID: "t1"})
	require.NoError(t, err)
	require.NoError(t, h.store.SetRuleStatus(ctx, rule.ID, models.RuleStatusPaused, "wind down", false))

	rep, err := h.runner.Liquidate(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sells)

	open, err := h.store.ListOpenPositions(ctx, rule.ID)
	require.NoError(t, err)
	assert.Empty(t, open)

	closed, err := h.store.LastClosedPosition(ctx, rule.ID, "AAA")
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, exitLiquidate, closed.ExitReason)
}

func TestRunActive_SkipsPausedRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"BBB"})
	active := h.rule(t, models.RuleKindGapMomentum, `{}`)
	paused := h.rule(t, models.RuleKindGapMomentum, `{}`)
	require.NoError(t, h.store.SetRuleStatus(ctx, paused.ID, models.RuleStatusPaused, "", false))

	reports, err := h.runner.RunActive(ctx, TickOptions{TickID: "t1"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, active.ID, reports[0].RuleID)
	assert.Equal(t, 1, reports[0].Holds)
}

func TestMergeSymbols(t *testing.T) {
	got := mergeSymbols([]string{"b", "A"}, []string{"C", "a"})
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestSessionOpen(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	r := &Runner{Options: Options{Location: seoul, SessionClose: 15*time.Hour + 30*time.Minute}}
	today := []models.PriceBar{{Time: time.Date(2026, 3, 3, 0, 0, 0, 0, seoul), Close: 10}}
	yesterday := []models.PriceBar{{Time: time.Date(2026, 3, 2, 0, 0, 0, 0, seoul), Close: 10}}

	morning := time.Date(2026, 3, 3, 10, 5, 0, 0, seoul)
	afterClose := time.Date(2026, 3, 3, 15, 35, 0, 0, seoul)

	assert.True(t, r.sessionOpen(morning, today))
	assert.False(t, r.sessionOpen(afterClose, today))
	assert.False(t, r.sessionOpen(morning, yesterday), "no bar for today yet")
	assert.False(t, r.sessionOpen(morning, nil))

	r.Options.SessionClose = 0
	assert.False(t, r.sessionOpen(morning, today))
}
