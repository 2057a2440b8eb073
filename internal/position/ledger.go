// Package position owns the per-rule position ledger and its exposure caps.
package position

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

// Snapshot is the committed exposure of one rule.
type Snapshot struct {
	Total    decimal.Decimal            `json:"total"`
	BySymbol map[string]decimal.Decimal `json:"by_symbol"`
}

// Ledger is a rule's open positions for the duration of one tick. Positions
// with pending orders are included, so in-flight entries count toward caps.
type Ledger struct {
	RuleID uint64
	open   map[string]models.Position
}

func NewLedger(ruleID uint64, open []models.Position) *Ledger {
	l := &Ledger{RuleID: ruleID, open: make(map[string]models.Position, len(open))}
	for _, p := range open {
		if p.RuleID == ruleID && p.IsOpen() {
			l.open[strings.ToUpper(p.Symbol)] = p
		}
	}
	return l
}

func LoadLedger(ctx context.Context, repo repository.PositionRepository, ruleID uint64) (*Ledger, error) {
	items, err := repo.ListOpenPositions(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	return NewLedger(ruleID, items), nil
}

// Open returns a copy of the open position for symbol, or nil.
func (l *Ledger) Open(symbol string) *models.Position {
	if l == nil {
		return nil
	}
	p, ok := l.open[strings.ToUpper(symbol)]
	if !ok {
		return nil
	}
	return &p
}

// Symbols lists symbols with open positions, ascending.
func (l *Ledger) Symbols() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.open))
	for s := range l.open {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) Snapshot() Snapshot {
	out := Snapshot{Total: decimal.Zero, BySymbol: map[string]decimal.Decimal{}}
	if l == nil {
		return out
	}
	for sym, p := range l.open {
		out.BySymbol[sym] = p.Invested
		out.Total = out.Total.Add(p.Invested)
	}
	return out
}

// Track records the committed state of a position: open rows replace the
// entry, anything else drops it from the exposure set.
func (l *Ledger) Track(p *models.Position) {
	if l == nil || p == nil || p.RuleID != l.RuleID {
		return
	}
	sym := strings.ToUpper(p.Symbol)
	if p.IsOpen() {
		l.open[sym] = *p
		return
	}
	if cur, ok := l.open[sym]; ok && cur.ID == p.ID {
		delete(l.open, sym)
	}
}

// Caps are the absolute exposure limits of a rule for one tick.
type Caps struct {
	Allocated decimal.Decimal `json:"allocated"`
	PerSymbol decimal.Decimal `json:"per_symbol"`
	Portfolio decimal.Decimal `json:"portfolio"`
}

// CapsFor derives caps from the rule. A zero allocation falls back to balance;
// zero percentages fall back to the defaults.
func CapsFor(rule models.StrategyRule, balance decimal.Decimal, defaultSymbolPct, defaultPortfolioPct float64) Caps {
	allocated := rule.AllocatedBalance
	if !allocated.IsPositive() {
		allocated = balance
	}
	if allocated.IsNegative() {
		allocated = decimal.Zero
	}
	symPct := rule.PerSymbolCapPct
	if !symPct.IsPositive() {
		symPct = decimal.NewFromFloat(defaultSymbolPct)
	}
	portPct := rule.PortfolioCapPct
	if !portPct.IsPositive() {
		portPct = decimal.NewFromFloat(defaultPortfolioPct)
	}
	return Caps{
		Allocated: allocated,
		PerSymbol: allocated.Mul(symPct),
		Portfolio: allocated.Mul(portPct),
	}
}
