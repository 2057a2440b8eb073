package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnidc/Sheet-Manager-sub001/internal/indicator"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

func aligned(price, ma5, ma10, ma20, ma60 float64) indicator.AlignmentResult {
	al := indicator.AlignmentResult{
		Price: price,
		MA5:   indicator.MA{Value: ma5, OK: true},
		MA10:  indicator.MA{Value: ma10, OK: true},
		MA20:  indicator.MA{Value: ma20, OK: true},
		MA60:  indicator.MA{Value: ma60, OK: true},
	}
	for _, ok := range []bool{ma5 > ma10, ma10 > ma20, ma20 > ma60, price > ma5} {
		if ok {
			al.Satisfied++
		}
	}
	al.Holds = al.Satisfied == 4
	return al
}

func openPosition(stage int, lastFill, avg float64) *models.Position {
	return &models.Position{
		RuleID:        1,
		Symbol:        "005930",
		Stage:         stage,
		Status:        models.PositionStatusOpen,
		LastFillPrice: decimal.NewFromFloat(lastFill),
		AvgEntryPrice: decimal.NewFromFloat(avg),
		OpenedAt:      time.Now(),
	}
}

func TestGapMomentum_Example1_FirstFill(t *testing.T) {
	g := &GapMomentum{Params: DefaultGapParams()}
	snap := indicator.Snapshot{Price: 103, Alignment: aligned(103, 102, 100, 97, 90), Gap: 5, GapOK: true}

	sig := g.decide(SymbolContext{Symbol: "005930"}, snap)
	assert.Equal(t, ActionBuy, sig.Action)
	assert.Equal(t, 1, sig.TargetStage)
	assert.InDelta(t, 0.30, sig.FillPct, 1e-9)
}

func TestGapMomentum_Example2_LadderAdd(t *testing.T) {
	g := &GapMomentum{Params: DefaultGapParams()}
	price := 103 * 1.01
	snap := indicator.Snapshot{Price: price, Alignment: aligned(price, 103, 101, 98, 91), Gap: 0.2, GapOK: true}

	sig := g.decide(SymbolContext{Symbol: "005930", Position: openPosition(1, 103, 103)}, snap)
	require.Equal(t, ActionBuy, sig.Action)
	assert.Equal(t, 2, sig.TargetStage)
	assert.InDelta(t, 0.20, sig.FillPct, 1e-9)
	assert.InDelta(t, 0.50, g.Params.CumulativeFill(2), 1e-9)

	below := indicator.Snapshot{Price: 103.5, Alignment: aligned(103.5, 103, 101, 98, 91)}
	sig = g.decide(SymbolContext{Symbol: "005930", Position: openPosition(1, 103, 103)}, below)
	assert.Equal(t, ActionHold, sig.Action, "less than one ladder step above the last fill")
}

func TestGapMomentum_LadderExactStep(t *testing.T) {
	g := &GapMomentum{Params: DefaultGapParams()}
	tests := []struct {
		last, price float64
	}{
		{last: 50.03, price: 50.5303},
		{last: 57.17, price: 57.7417},
		{last: 128.35, price: 129.6335},
	}
	for _, tt := range tests {
		snap := indicator.Snapshot{Price: tt.price, Alignment: aligned(tt.price, tt.last, tt.last-1, tt.last-3, tt.last-9)}
		sig := g.decide(SymbolContext{Symbol: "005930", Position: openPosition(1, tt.last, tt.last)}, snap)
		require.Equal(t, ActionBuy, sig.Action, "last=%v price=%v reason=%s", tt.last, tt.price, sig.Reason)
		assert.Equal(t, 2, sig.TargetStage)
	}

	snap := indicator.Snapshot{Price: 50.5302, Alignment: aligned(50.5302, 50.03, 49.03, 47.03, 41.03)}
	sig := g.decide(SymbolContext{Symbol: "005930", Position: openPosition(1, 50.03, 50.03)}, snap)
	assert.Equal(t, ActionHold, sig.Action, "one tick short of the step")
}

// sessionBars is an 80-session uptrend ending at close 89.5, plus one bar for
// the current session closing at today.
func sessionBars(today float64) []models.PriceBar {
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, 81)
	for i := 0; i < 80; i++ {
		c := 50 + float64(i)*0.5
		out[i] = models.PriceBar{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	out[80] = models.PriceBar{Time: start.AddDate(0, 0, 80), Open: 89.5, High: 90, Low: today, Close: today, Volume: 400}
	return out
}

func TestGapMomentum_ExitWaitsForSessionClose(t *testing.T) {
	g := &GapMomentum{Params: DefaultGapParams()}
	held := func() *models.Position { return openPosition(1, 88, 88) }

	// Mid-session dip below MA5: the completed sessions are still above it.
	sig := g.Evaluate(SymbolContext{Symbol: "A", Bars: sessionBars(85), Position: held(), SessionOpen: true})
	assert.Equal(t, ActionHold, sig.Action, sig.Reason)

	// The dip recovers and the session closes above MA5.
	sig = g.Evaluate(SymbolContext{Symbol: "A", Bars: sessionBars(90), Position: held()})
	assert.NotEqual(t, ActionSell, sig.Action, sig.Reason)

	// The session closes below MA5.
	sig = g.Evaluate(SymbolContext{Symbol: "A", Bars: sessionBars(85), Position: held()})
	assert.Equal(t, ActionSell, sig.Action)
	assert.Equal(t, "ma5_break", sig.ExitReason)

	// A close below MA5 in the last completed session exits on the next
	// session's first tick, whatever the live price does.
	bars := sessionBars(85)
	bars = append(bars, models.PriceBar{Time: bars[80].Time.AddDate(0, 0, 1), Open: 92, High: 92, Low: 92, Close: 92, Volume: 100})
	sig = g.Evaluate(SymbolContext{Symbol: "A", Bars: bars, Position: held(), SessionOpen: true})
	assert.Equal(t, ActionSell, sig.Action)
	assert.InDelta(t, 92, sig.Price, 1e-9, "orders are sized at the live price")
}

func TestGapMomentum_Example3_ExitBelowMA5(t *testing.T) {
	g := &GapMomentum{Params: DefaultGapParams()}
	for _, stage := range []int{1, 3, 5} {
		snap := indicator.Snapshot{Price: 98, Alignment: aligned(98, 99, 100, 97, 90)}
		sig := g.decide(SymbolContext{Symbol: "005930", Position: openPosition(stage, 100, 100)}, snap)
		assert.Equal(t, ActionSell, sig.Action, "stage %d", stage)
		assert.Equal(t, "ma5_break", sig.ExitReason)
	}

	// No SELL while price stays above MA5.
	snap := indicator.Snapshot{Price: 100, Alignment: aligned(100, 99, 100, 97, 90)}
	sig := g.decide(SymbolContext{Symbol: "005930", Position: openPosition(2, 100, 100)}, snap)
	assert.NotEqual(t, ActionSell, sig.Action)
}

func TestGapMomentum_StageMaxedAndClipped(t *testing.T) {
	g := &GapMomentum{Params: DefaultGapParams()}
	price := 120.0
	snap := indicator.Snapshot{Price: price, Alignment: aligned(price, 110, 105, 100, 90)}

	// Stage 4 holds 90%; the next add is clipped to 10%.
	sig := g.decide(SymbolContext{Symbol: "A", Position: openPosition(4, 100, 100)}, snap)
	require.Equal(t, ActionBuy, sig.Action)
	assert.InDelta(t, 0.10, sig.FillPct, 1e-9)
	assert.Equal(t, 5, sig.TargetStage)

	sig = g.decide(SymbolContext{Symbol: "A", Position: openPosition(5, 100, 100)}, snap)
	assert.Equal(t, ActionHold, sig.Action)
	assert.Equal(t, "stage maxed", sig.Reason)
}

func TestGapMomentum_EntryGuards(t *testing.T) {
	g := &GapMomentum{Params: DefaultGapParams()}
	good := aligned(103, 102, 100, 97, 90)

	tests := []struct {
		name   string
		sc     SymbolContext
		snap   indicator.Snapshot
		reason string
	}{
		{name: "gap too small", snap: indicator.Snapshot{Price: 103, Alignment: good, Gap: 2.9, GapOK: true}},
		{name: "gap too large", snap: indicator.Snapshot{Price: 103, Alignment: good, Gap: 7.1, GapOK: true}},
		{name: "not aligned", snap: indicator.Snapshot{Price: 103, Alignment: aligned(103, 102, 100, 101, 90), Gap: 5, GapOK: true}},
		{name: "reentry", sc: SymbolContext{ClosedToday: true}, snap: indicator.Snapshot{Price: 103, Alignment: good, Gap: 5, GapOK: true}, reason: "reentry blocked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := g.decide(tt.sc, tt.snap)
			assert.Equal(t, ActionHold, sig.Action)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, sig.Reason)
			}
		})
	}
	// Gap bounds are inclusive.
	for _, gap := range []float64{3, 7} {
		sig := g.decide(SymbolContext{}, indicator.Snapshot{Price: 103, Alignment: good, Gap: gap, GapOK: true})
		assert.Equal(t, ActionBuy, sig.Action, "gap=%v", gap)
	}
}

func TestEvaluators_DataGapNeverSells(t *testing.T) {
	evs := []Evaluator{
		&GapMomentum{Params: DefaultGapParams()},
		&MultiFactor{Params: DefaultMultiFactorParams()},
	}
	for _, ev := range evs {
		sig := ev.Evaluate(SymbolContext{Symbol: "A", Position: openPosition(2, 100, 100), DataErr: errors.New("timeout")})
		assert.Equal(t, ActionHold, sig.Action, ev.Kind())
		assert.True(t, sig.DataGap, ev.Kind())
		assert.NotEmpty(t, sig.Warnings, ev.Kind())

		sig = ev.Evaluate(SymbolContext{Symbol: "A", Position: openPosition(2, 100, 100)})
		assert.Equal(t, ActionHold, sig.Action, ev.Kind())
		assert.True(t, sig.DataGap, ev.Kind())
	}
}

func TestMultiFactor_Example4_BuyThenSell(t *testing.T) {
	m := &MultiFactor{Params: DefaultMultiFactorParams()}

	// trend 100 + rsi 100 + bollinger 50 + volume 10 + gap 100 = 360 / 5 = 72
	up := indicator.Snapshot{
		Price:       103,
		Alignment:   aligned(103, 102, 100, 97, 90),
		RSI:         50,
		Bollinger:   0,
		BollingerOK: true,
		VolumeRatio: 1.2,
		Gap:         5,
		GapOK:       true,
	}
	sig := m.decide(SymbolContext{Symbol: "A"}, up)
	assert.InDelta(t, 72, sig.Score, 1e-6)
	assert.Equal(t, ActionBuy, sig.Action)
	assert.InDelta(t, 1.0, sig.FillPct, 1e-9)

	// trend 0 + rsi 100 + bollinger 0 + volume 40 + gap 0 = 140 / 5 = 28
	down := indicator.Snapshot{
		Price:       101,
		Alignment:   aligned(101, 102, 103, 104, 105),
		RSI:         50,
		Bollinger:   1,
		BollingerOK: true,
		VolumeRatio: 1.8,
		Gap:         -1,
		GapOK:       true,
	}
	sig = m.decide(SymbolContext{Symbol: "A", Position: openPosition(1, 103, 103)}, down)
	assert.InDelta(t, 28, sig.Score, 1e-6)
	assert.Equal(t, ActionSell, sig.Action)
	assert.Equal(t, "score_exit", sig.ExitReason)
}

func TestMultiFactor_StopsTakePriority(t *testing.T) {
	m := &MultiFactor{Params: DefaultMultiFactorParams()}
	strong := indicator.Snapshot{Alignment: aligned(0, 102, 100, 97, 90), RSI: 50, BollingerOK: true, VolumeRatio: 3, Gap: 5, GapOK: true}

	strong.Price = 94
	sig := m.decide(SymbolContext{Symbol: "A", Position: openPosition(1, 100, 100)}, strong)
	assert.Equal(t, ActionSell, sig.Action)
	assert.Equal(t, "stop_loss", sig.ExitReason)

	strong.Price = 116
	sig = m.decide(SymbolContext{Symbol: "A", Position: openPosition(1, 100, 100)}, strong)
	assert.Equal(t, ActionSell, sig.Action)
	assert.Equal(t, "take_profit", sig.ExitReason)

	strong.Price = 103
	sig = m.decide(SymbolContext{Symbol: "A", Position: openPosition(1, 100, 100)}, strong)
	assert.Equal(t, ActionHold, sig.Action, "no second BUY with a position open")
}

func TestMultiFactor_CompositeAlwaysBounded(t *testing.T) {
	m := &MultiFactor{Params: DefaultMultiFactorParams()}
	inf := math.Inf(1)
	nan := math.NaN()
	snaps := []indicator.Snapshot{
		{},
		{RSI: nan, Bollinger: nan, BollingerOK: true, VolumeRatio: nan, Gap: nan, GapOK: true},
		{RSI: inf, Bollinger: -inf, BollingerOK: true, VolumeRatio: inf, Gap: inf, GapOK: true},
		{RSI: -50, Bollinger: -9, BollingerOK: true, VolumeRatio: 1000, Gap: 1000, GapOK: true},
		{RSI: 150, Bollinger: 9, BollingerOK: true, VolumeRatio: -1, Gap: -1000, GapOK: true},
	}
	for i, s := range snaps {
		f := m.Factors(s)
		for name, v := range f {
			assert.False(t, math.IsNaN(v), "case %d factor %s", i, name)
			assert.GreaterOrEqual(t, v, 0.0, "case %d factor %s", i, name)
			assert.LessOrEqual(t, v, 100.0, "case %d factor %s", i, name)
		}
		c := m.Composite(f)
		assert.GreaterOrEqual(t, c, 0.0, "case %d", i)
		assert.LessOrEqual(t, c, 100.0, "case %d", i)
	}

	// Degenerate bars: flat prices, zero volume.
	bars := make([]models.PriceBar, 80)
	for i := range bars {
		bars[i] = models.PriceBar{Time: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i), Open: 10, High: 10, Low: 10, Close: 10}
	}
	sig := m.Evaluate(SymbolContext{Symbol: "FLAT", Bars: bars})
	assert.GreaterOrEqual(t, sig.Score, 0.0)
	assert.LessOrEqual(t, sig.Score, 100.0)
}

func TestBuild(t *testing.T) {
	ev, err := Build(models.StrategyRule{Kind: models.RuleKindGapMomentum, Params: []byte(`{"gap_min_pct":2}`)})
	require.NoError(t, err)
	g, ok := ev.(*GapMomentum)
	require.True(t, ok)
	assert.Equal(t, 2.0, g.Params.GapMinPct)
	assert.Equal(t, 7.0, g.Params.GapMaxPct, "unset fields keep defaults")

	ev, err = Build(models.StrategyRule{Kind: models.RuleKindMultiFactor})
	require.NoError(t, err)
	assert.Equal(t, 80, ev.Lookback())

	bad := []models.StrategyRule{
		{Kind: "martingale"},
		{Kind: models.RuleKindGapMomentum, Params: []byte(`{"gap_min_pct":8}`)},
		{Kind: models.RuleKindGapMomentum, Params: []byte(`{"first_fill_pct":0}`)},
		{Kind: models.RuleKindGapMomentum, Params: []byte(`{"gap_min":3}`)},
		{Kind: models.RuleKindMultiFactor, Params: []byte(`{"buy_score_threshold":20}`)},
		{Kind: models.RuleKindMultiFactor, Params: []byte(`{"weights":{"trend":0,"rsi":0,"bollinger":0,"volume":0,"gap":0}}`)},
		{Kind: models.RuleKindMultiFactor, Params: []byte(`{"volume_cap_ratio":1}`)},
		{Kind: models.RuleKindMultiFactor, Params: []byte(`not json`)},
	}
	for _, rule := range bad {
		_, err := Build(rule)
		var cfgErr *ConfigError
		assert.True(t, errors.As(err, &cfgErr), "kind=%s params=%s err=%v", rule.Kind, rule.Params, err)
	}
}

func TestNormalizeParams(t *testing.T) {
	raw, err := NormalizeParams(models.RuleKindGapMomentum, []byte(`{"lookback":100}`))
	require.NoError(t, err)
	p, err := ParseGapParams(raw)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Lookback)
	assert.Equal(t, 0.3, p.FirstFillPct)
}
