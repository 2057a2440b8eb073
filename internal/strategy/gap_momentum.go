package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gnidc/Sheet-Manager-sub001/internal/indicator"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

const fillEpsilon = 1e-9

type GapParams struct {
	GapMinPct     float64 `json:"gap_min_pct"`
	GapMaxPct     float64 `json:"gap_max_pct"`
	LadderStepPct float64 `json:"ladder_step_pct"`
	FirstFillPct  float64 `json:"first_fill_pct"`
	AddFillPct    float64 `json:"add_fill_pct"`
	MaxFillPct    float64 `json:"max_fill_pct"`
	Lookback      int     `json:"lookback"`
}

func DefaultGapParams() GapParams {
	return GapParams{
		GapMinPct:     3,
		GapMaxPct:     7,
		LadderStepPct: 1,
		FirstFillPct:  0.30,
		AddFillPct:    0.20,
		MaxFillPct:    1.0,
		Lookback:      80,
	}
}

func ParseGapParams(raw []byte) (GapParams, error) {
	p := DefaultGapParams()
	if err := decodeOver(models.RuleKindGapMomentum, raw, &p); err != nil {
		return GapParams{}, err
	}
	if err := p.Validate(); err != nil {
		return GapParams{}, err
	}
	return p, nil
}

func (p GapParams) Validate() error {
	kind := models.RuleKindGapMomentum
	switch {
	case p.GapMinPct < 0:
		return configErr(kind, "gap_min_pct", "must be >= 0")
	case p.GapMaxPct <= p.GapMinPct:
		return configErr(kind, "gap_max_pct", "must be greater than gap_min_pct")
	case p.LadderStepPct <= 0:
		return configErr(kind, "ladder_step_pct", "must be > 0")
	case p.MaxFillPct <= 0 || p.MaxFillPct > 1:
		return configErr(kind, "max_fill_pct", "must be in (0,1]")
	case p.FirstFillPct <= 0 || p.FirstFillPct > p.MaxFillPct:
		return configErr(kind, "first_fill_pct", "must be in (0,max_fill_pct]")
	case p.AddFillPct <= 0 || p.AddFillPct > p.MaxFillPct:
		return configErr(kind, "add_fill_pct", "must be in (0,max_fill_pct]")
	case p.Lookback < 61:
		return configErr(kind, "lookback", "must be >= 61 to cover MA60 and the gap")
	}
	return nil
}

// CumulativeFill is the fraction of the per-symbol cap committed after stage.
func (p GapParams) CumulativeFill(stage int) float64 {
	if stage <= 0 {
		return 0
	}
	v := p.FirstFillPct + float64(stage-1)*p.AddFillPct
	if v > p.MaxFillPct {
		v = p.MaxFillPct
	}
	return v
}

// GapMomentum buys aligned gap-ups, ladders in on +step moves from the last
// fill and exits fully on a close below MA5.
type GapMomentum struct {
	Params GapParams
}

func (g *GapMomentum) Kind() string { return models.RuleKindGapMomentum }

func (g *GapMomentum) Lookback() int { return g.Params.Lookback }

func (g *GapMomentum) Evaluate(sc SymbolContext) Signal {
	if sc.DataErr != nil {
		return dataGap(sc, "price data unavailable: "+sc.DataErr.Error())
	}
	if len(sc.Bars) == 0 {
		return dataGap(sc, "price data unavailable")
	}
	snap := indicator.Compute(sc.Bars, indicator.Settings{})
	if sc.hasPosition() && sc.SessionOpen {
		// The last bar is still forming; the exit waits for a completed close.
		closed := indicator.Compute(sc.Bars[:len(sc.Bars)-1], indicator.Settings{})
		return g.manage(sc, snap, closed)
	}
	return g.decide(sc, snap)
}

func (g *GapMomentum) decide(sc SymbolContext, snap indicator.Snapshot) Signal {
	p := g.Params
	al := snap.Alignment
	factors := snapshotFactors(snap)

	if sc.hasPosition() {
		return g.manage(sc, snap, snap)
	}

	if sc.ClosedToday {
		return hold(sc, "reentry blocked")
	}
	if !al.MA60.OK {
		return dataGap(sc, "insufficient history for MA60")
	}
	if !al.Holds {
		s := hold(sc, fmt.Sprintf("ma alignment %d/4", al.Satisfied))
		s.Factors = factors
		return s
	}
	if !snap.GapOK {
		return dataGap(sc, "gap unavailable")
	}
	if snap.Gap < p.GapMinPct || snap.Gap > p.GapMaxPct {
		s := hold(sc, fmt.Sprintf("gap %.2f%% outside [%.2f,%.2f]", snap.Gap, p.GapMinPct, p.GapMaxPct))
		s.Factors = factors
		return s
	}
	return Signal{
		Symbol:      sc.Symbol,
		Action:      ActionBuy,
		Score:       snap.Gap,
		Reason:      fmt.Sprintf("aligned gap-up %.2f%%", snap.Gap),
		TargetStage: 1,
		FillPct:     p.FirstFillPct,
		Price:       snap.Price,
		Factors:     factors,
	}
}

// manage handles a held symbol. closed is the snapshot as of the last
// completed session and drives the MA5 exit; live drives the ladder.
func (g *GapMomentum) manage(sc SymbolContext, live, closed indicator.Snapshot) Signal {
	p := g.Params
	pos := sc.Position
	factors := snapshotFactors(live)

	ma5 := closed.Alignment.MA5
	if !ma5.OK {
		return dataGap(sc, "insufficient history for MA5")
	}
	if closed.Price < ma5.Value {
		return Signal{
			Symbol:     sc.Symbol,
			Action:     ActionSell,
			Reason:     fmt.Sprintf("close %.2f below MA5 %.2f", closed.Price, ma5.Value),
			Price:      live.Price,
			Factors:    factors,
			ExitReason: "ma5_break",
		}
	}

	committed := p.CumulativeFill(pos.Stage)
	if committed >= p.MaxFillPct-fillEpsilon {
		s := hold(sc, "stage maxed")
		s.Factors = factors
		return s
	}
	if trigger, ok := p.ladderTrigger(pos.LastFillPrice); ok && live.Alignment.Holds &&
		decimal.NewFromFloat(live.Price).Round(6).GreaterThanOrEqual(trigger) {
		fill := p.AddFillPct
		if committed+fill > p.MaxFillPct {
			fill = p.MaxFillPct - committed
		}
		last := pos.LastFillPrice.InexactFloat64()
		return Signal{
			Symbol:      sc.Symbol,
			Action:      ActionBuy,
			Score:       (live.Price/last - 1) * 100,
			Reason:      fmt.Sprintf("price %.2f >= %s (+%.2f%% from last fill)", live.Price, trigger.StringFixed(2), p.LadderStepPct),
			TargetStage: pos.Stage + 1,
			FillPct:     fill,
			Price:       live.Price,
			Factors:     factors,
		}
	}
	s := hold(sc, "no ladder trigger")
	s.Factors = factors
	return s
}

// ladderTrigger is the price one ladder step above the last fill. A move of
// exactly one step qualifies.
func (p GapParams) ladderTrigger(lastFill decimal.Decimal) (decimal.Decimal, bool) {
	if !lastFill.IsPositive() {
		return decimal.Zero, false
	}
	step := decimal.NewFromFloat(p.LadderStepPct).Div(decimal.NewFromInt(100))
	return lastFill.Mul(decimal.NewFromInt(1).Add(step)), true
}
