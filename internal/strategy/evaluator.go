// Package strategy turns one symbol's price history into a BUY/SELL/HOLD signal.
package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/gnidc/Sheet-Manager-sub001/internal/indicator"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// Evaluator is one strategy kind with its validated parameters.
type Evaluator interface {
	Kind() string
	// Lookback is how many daily bars Evaluate needs.
	Lookback() int
	Evaluate(sc SymbolContext) Signal
}

// SymbolContext is everything an evaluator may look at for one symbol on one tick.
type SymbolContext struct {
	Symbol   string
	Bars     []models.PriceBar
	DataErr  error
	Position *models.Position
	// ClosedToday is set when a position for the same rule and symbol closed this session.
	ClosedToday bool
	// SessionOpen is set when the last bar belongs to a session that has not closed yet.
	SessionOpen bool
}

func (sc SymbolContext) hasPosition() bool {
	return sc.Position != nil && sc.Position.IsOpen()
}

// Signal is the evaluator output for one symbol. It is journaled, never persisted as state.
type Signal struct {
	Symbol      string  `json:"symbol"`
	Action      string  `json:"action"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason,omitempty"`
	TargetStage int     `json:"target_stage,omitempty"`
	// FillPct is the fraction of the per-symbol cap this BUY commits.
	FillPct    float64            `json:"fill_pct,omitempty"`
	Price      float64            `json:"price,omitempty"`
	Factors    map[string]float64 `json:"factors,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
	DataGap    bool               `json:"data_gap,omitempty"`
	ExitReason string             `json:"exit_reason,omitempty"`
}

func hold(sc SymbolContext, reason string) Signal {
	return Signal{Symbol: sc.Symbol, Action: ActionHold, Reason: reason}
}

// dataGap never sells on missing data; an open position is simply held.
func dataGap(sc SymbolContext, reason string) Signal {
	s := hold(sc, reason)
	s.DataGap = true
	if sc.hasPosition() {
		s.Warnings = append(s.Warnings, "holding open position through data gap")
	}
	return s
}

// ConfigError reports malformed rule parameters. The rule is parked for review.
type ConfigError struct {
	Kind  string
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s params: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s params: %s: %s", e.Kind, e.Field, e.Msg)
}

func configErr(kind, field, format string, args ...any) *ConfigError {
	return &ConfigError{Kind: kind, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Build returns the evaluator for a rule, or a *ConfigError.
func Build(rule models.StrategyRule) (Evaluator, error) {
	switch rule.Kind {
	case models.RuleKindGapMomentum:
		p, err := ParseGapParams(rule.Params)
		if err != nil {
			return nil, err
		}
		return &GapMomentum{Params: p}, nil
	case models.RuleKindMultiFactor:
		p, err := ParseMultiFactorParams(rule.Params)
		if err != nil {
			return nil, err
		}
		return &MultiFactor{Params: p}, nil
	default:
		return nil, configErr(rule.Kind, "kind", "unknown strategy kind %q", rule.Kind)
	}
}

// NormalizeParams validates raw params for kind and returns them merged over the defaults.
func NormalizeParams(kind string, raw []byte) (json.RawMessage, error) {
	var v any
	switch kind {
	case models.RuleKindGapMomentum:
		p, err := ParseGapParams(raw)
		if err != nil {
			return nil, err
		}
		v = p
	case models.RuleKindMultiFactor:
		p, err := ParseMultiFactorParams(raw)
		if err != nil {
			return nil, err
		}
		v = p
	default:
		return nil, configErr(kind, "kind", "unknown strategy kind %q", kind)
	}
	return json.Marshal(v)
}

// decodeOver unmarshals raw on top of dst, which already holds the defaults.
func decodeOver(kind string, raw []byte, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return configErr(kind, "", "%v", err)
	}
	return nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	v = finite(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func snapshotFactors(s indicator.Snapshot) map[string]float64 {
	out := map[string]float64{
		"price":        s.Price,
		"rsi":          s.RSI,
		"volume_ratio": s.VolumeRatio,
		"satisfied":    float64(s.Alignment.Satisfied),
	}
	if s.Alignment.MA5.OK {
		out["ma5"] = s.Alignment.MA5.Value
	}
	if s.GapOK {
		out["gap_pct"] = s.Gap
	}
	return out
}
