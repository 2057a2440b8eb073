package runner

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/position"
	"github.com/gnidc/Sheet-Manager-sub001/internal/strategy"
)

const exitLiquidate = "liquidate"

// Liquidate submits a full-exit SELL for every open position of a rule. It is
// the operator path for winding a rule down and works on paused rules too.
func (r *Runner) Liquidate(ctx context.Context, ruleID uint64) (TickReport, error) {
	if r == nil || r.Repo == nil {
		return TickReport{}, errors.New("runner not configured")
	}
	report := TickReport{RuleID: ruleID, TickID: "liquidate-" + uuid.NewString(), Trigger: exitLiquidate, StartedAt: r.clock()}

	release, err := r.acquire(ctx, ruleID)
	if err != nil {
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
	ledger, err := position.LoadLedger(ctx, r.Repo, rule.ID)
	if err != nil {
		return report, err
	}

	rc := &runContext{rule: *rule, tickID: report.TickID, ledger: ledger, report: report}
	defer r.flush(ctx, rc)

	for _, sym := range ledger.Symbols() {
		pos := ledger.Open(sym)
		rc.report.Evaluated++
		sig := strategy.Signal{
			Symbol:     sym,
			Action:     strategy.ActionSell,
			Reason:     "operator liquidation",
			Price:      r.exitPrice(ctx, pos),
			ExitReason: exitLiquidate,
		}
		if err := r.execute(ctx, rc, sig, sig.Reason); err != nil {
			rc.report.Error = err.Error()
			rc.report.FinishedAt = r.clock()
			return rc.report, err
		}
	}
	rc.report.FinishedAt = r.clock()
	if r.Logger != nil {
		r.Logger.Info("rule liquidated",
			zap.Uint64("rule_id", rule.ID),
			zap.Int("positions", rc.report.Evaluated),
			zap.Int("sells", rc.report.Sells),
			zap.Int("failed", rc.report.Failed),
		)
	}
	return rc.report, nil
}

// exitPrice is the latest close, or the last fill when no bars are available.
func (r *Runner) exitPrice(ctx context.Context, pos *models.Position) float64 {
	fallback, _ := pos.LastFillPrice.Float64()
	if r.Prices == nil {
		return fallback
	}
	bars, err := r.Prices.GetBars(ctx, pos.Symbol, 1)
	if err != nil || len(bars) == 0 || bars[len(bars)-1].Close <= 0 {
		return fallback
	}
	return bars[len(bars)-1].Close
}
