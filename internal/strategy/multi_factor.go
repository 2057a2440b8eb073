package strategy

import (
	"fmt"
	"math"

	"github.com/gnidc/Sheet-Manager-sub001/internal/indicator"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

type Weights struct {
	Trend     float64 `json:"trend"`
	RSI       float64 `json:"rsi"`
	Bollinger float64 `json:"bollinger"`
	Volume    float64 `json:"volume"`
	Gap       float64 `json:"gap"`
}

func (w Weights) sum() float64 {
	return w.Trend + w.RSI + w.Bollinger + w.Volume + w.Gap
}

type MultiFactorParams struct {
	Weights            Weights `json:"weights"`
	BuyScoreThreshold  float64 `json:"buy_score_threshold"`
	SellScoreThreshold float64 `json:"sell_score_threshold"`
	StopLossPct        float64 `json:"stop_loss_pct"`
	TakeProfitPct      float64 `json:"take_profit_pct"`
	VolumeCapRatio     float64 `json:"volume_cap_ratio"`
	GapCeilingPct      float64 `json:"gap_ceiling_pct"`
	RSIPeriod          int     `json:"rsi_period"`
	BollingerPeriod    int     `json:"bollinger_period"`
	BollingerK         float64 `json:"bollinger_k"`
	EntryFillPct       float64 `json:"entry_fill_pct"`
	Lookback           int     `json:"lookback"`
}

func DefaultMultiFactorParams() MultiFactorParams {
	return MultiFactorParams{
		Weights:            Weights{Trend: 1, RSI: 1, Bollinger: 1, Volume: 1, Gap: 1},
		BuyScoreThreshold:  70,
		SellScoreThreshold: 30,
		StopLossPct:        5,
		TakeProfitPct:      15,
		VolumeCapRatio:     3,
		GapCeilingPct:      5,
		RSIPeriod:          14,
		BollingerPeriod:    20,
		BollingerK:         2,
		EntryFillPct:       1.0,
		Lookback:           80,
	}
}

func ParseMultiFactorParams(raw []byte) (MultiFactorParams, error) {
	p := DefaultMultiFactorParams()
	if err := decodeOver(models.RuleKindMultiFactor, raw, &p); err != nil {
		return MultiFactorParams{}, err
	}
	if err := p.Validate(); err != nil {
		return MultiFactorParams{}, err
	}
	return p, nil
}

func (p MultiFactorParams) Validate() error {
	kind := models.RuleKindMultiFactor
	w := p.Weights
	named := []struct {
		name string
		v    float64
	}{{"trend", w.Trend}, {"rsi", w.RSI}, {"bollinger", w.Bollinger}, {"volume", w.Volume}, {"gap", w.Gap}}
	for _, n := range named {
		if n.v < 0 || math.IsNaN(n.v) || math.IsInf(n.v, 0) {
			return configErr(kind, "weights."+n.name, "must be a finite number >= 0")
		}
	}
	switch {
	case w.sum() <= 0:
		return configErr(kind, "weights", "at least one weight must be > 0")
	case p.BuyScoreThreshold <= 0 || p.BuyScoreThreshold > 100:
		return configErr(kind, "buy_score_threshold", "must be in (0,100]")
	case p.SellScoreThreshold < 0 || p.SellScoreThreshold >= p.BuyScoreThreshold:
		return configErr(kind, "sell_score_threshold", "must be in [0,buy_score_threshold)")
	case p.StopLossPct <= 0 || p.StopLossPct >= 100:
		return configErr(kind, "stop_loss_pct", "must be in (0,100)")
	case p.TakeProfitPct <= 0:
		return configErr(kind, "take_profit_pct", "must be > 0")
	case p.VolumeCapRatio <= 1:
		return configErr(kind, "volume_cap_ratio", "must be > 1")
	case p.GapCeilingPct <= 0:
		return configErr(kind, "gap_ceiling_pct", "must be > 0")
	case p.RSIPeriod < 2:
		return configErr(kind, "rsi_period", "must be >= 2")
	case p.BollingerPeriod < 2:
		return configErr(kind, "bollinger_period", "must be >= 2")
	case p.BollingerK <= 0:
		return configErr(kind, "bollinger_k", "must be > 0")
	case p.EntryFillPct <= 0 || p.EntryFillPct > 1:
		return configErr(kind, "entry_fill_pct", "must be in (0,1]")
	case p.Lookback < 60 || p.Lookback <= p.RSIPeriod || p.Lookback < p.BollingerPeriod:
		return configErr(kind, "lookback", "must cover MA60 and the rsi/bollinger periods")
	}
	return nil
}

// MultiFactor scores five factors in [0,100] and trades on the weighted composite.
type MultiFactor struct {
	Params MultiFactorParams
}

func (m *MultiFactor) Kind() string { return models.RuleKindMultiFactor }

func (m *MultiFactor) Lookback() int { return m.Params.Lookback }

func (m *MultiFactor) Evaluate(sc SymbolContext) Signal {
	if sc.DataErr != nil {
		return dataGap(sc, "price data unavailable: "+sc.DataErr.Error())
	}
	if len(sc.Bars) == 0 {
		return dataGap(sc, "price data unavailable")
	}
	snap := indicator.Compute(sc.Bars, indicator.Settings{
		RSIPeriod:       m.Params.RSIPeriod,
		BollingerPeriod: m.Params.BollingerPeriod,
		BollingerK:      m.Params.BollingerK,
	})
	return m.decide(sc, snap)
}

// Factors returns each factor score; all are within [0,100].
func (m *MultiFactor) Factors(s indicator.Snapshot) map[string]float64 {
	p := m.Params
	out := map[string]float64{
		"trend": clamp(float64(s.Alignment.Satisfied)/4*100, 0, 100),
		"rsi":   clamp(100-2*math.Abs(finite(s.RSI)-50), 0, 100),
	}
	if s.BollingerOK {
		out["bollinger"] = clamp((1-finite(s.Bollinger))/2*100, 0, 100)
	} else {
		out["bollinger"] = 0
	}
	out["volume"] = clamp((finite(s.VolumeRatio)-1)/(p.VolumeCapRatio-1), 0, 1) * 100
	if s.GapOK && finite(s.Gap) > 0 {
		out["gap"] = clamp(s.Gap/p.GapCeilingPct, 0, 1) * 100
	} else {
		out["gap"] = 0
	}
	return out
}

// Composite is the weighted average of the factors, clamped to [0,100].
func (m *MultiFactor) Composite(factors map[string]float64) float64 {
	w := m.Params.Weights
	total := w.sum()
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0
	}
	score := w.Trend*finite(factors["trend"]) +
		w.RSI*finite(factors["rsi"]) +
		w.Bollinger*finite(factors["bollinger"]) +
		w.Volume*finite(factors["volume"]) +
		w.Gap*finite(factors["gap"])
	return clamp(score/total, 0, 100)
}

func (m *MultiFactor) decide(sc SymbolContext, snap indicator.Snapshot) Signal {
	p := m.Params
	factors := m.Factors(snap)
	score := m.Composite(factors)
	factors["composite"] = score

	sell := func(reason, exit string) Signal {
		return Signal{Symbol: sc.Symbol, Action: ActionSell, Score: score, Reason: reason, Price: snap.Price, Factors: factors, ExitReason: exit}
	}

	if sc.hasPosition() {
		avg, _ := sc.Position.AvgEntryPrice.Float64()
		if avg > 0 && snap.Price > 0 {
			change := (snap.Price/avg - 1) * 100
			factors["pnl_pct"] = change
			if change <= -p.StopLossPct {
				return sell(fmt.Sprintf("stop loss %.2f%% <= -%.2f%%", change, p.StopLossPct), "stop_loss")
			}
			if change >= p.TakeProfitPct {
				return sell(fmt.Sprintf("take profit %.2f%% >= %.2f%%", change, p.TakeProfitPct), "take_profit")
			}
		}
		if score <= p.SellScoreThreshold {
			return sell(fmt.Sprintf("composite %.1f <= %.1f", score, p.SellScoreThreshold), "score_exit")
		}
		s := hold(sc, fmt.Sprintf("composite %.1f, holding", score))
		s.Score = score
		s.Factors = factors
		return s
	}

	if score >= p.BuyScoreThreshold {
		if sc.ClosedToday {
			s := hold(sc, "reentry blocked")
			s.Score = score
			s.Factors = factors
			return s
		}
		return Signal{
			Symbol:      sc.Symbol,
			Action:      ActionBuy,
			Score:       score,
			Reason:      fmt.Sprintf("composite %.1f >= %.1f", score, p.BuyScoreThreshold),
			TargetStage: 1,
			FillPct:     p.EntryFillPct,
			Price:       snap.Price,
			Factors:     factors,
		}
	}
	s := hold(sc, fmt.Sprintf("composite %.1f", score))
	s.Score = score
	s.Factors = factors
	return s
}
