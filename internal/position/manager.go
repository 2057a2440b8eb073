package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
	"github.com/gnidc/Sheet-Manager-sub001/internal/strategy"
)

const (
	SkipCapSymbol    = "cap reached (per-symbol)"
	SkipCapPortfolio = "cap reached (portfolio)"
	SkipBelowOne     = "below one share"
	SkipNoPosition   = "no position"
	SkipStaleStage   = "stage already applied"
	SkipInvalidPrice = "invalid price"
	SkipNotTradable  = "not a trade signal"
)

var (
	ErrNoPosition  = errors.New("no open position")
	ErrStaleLedger = errors.New("position changed since evaluation")
)

// IsCapSkip reports whether a skip reason is an exposure cap rejection.
func IsCapSkip(reason string) bool {
	return strings.HasPrefix(reason, "cap reached")
}

// Decision is the position manager's verdict on one signal.
type Decision struct {
	Accepted   bool            `json:"accepted"`
	Skip       string          `json:"skip,omitempty"`
	RuleID     uint64          `json:"rule_id"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side,omitempty"`
	Stage      int             `json:"stage,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Amount     decimal.Decimal `json:"amount"`
	Candidate  decimal.Decimal `json:"candidate"`
	ExitReason string          `json:"exit_reason,omitempty"`
}

type Manager struct {
	Repo   repository.Repository
	Logger *zap.Logger

	now func() time.Time
}

func NewManager(repo repository.Repository, logger *zap.Logger) *Manager {
	return &Manager{Repo: repo, Logger: logger, now: time.Now}
}

func (m *Manager) clock() time.Time {
	if m != nil && m.now != nil {
		return m.now().UTC()
	}
	return time.Now().UTC()
}

// Apply checks a signal against the ledger and caps. It has no side effects;
// rejections come back as skipped decisions, never as errors.
func (m *Manager) Apply(caps Caps, sig strategy.Signal, l *Ledger) Decision {
	d := Decision{Symbol: strings.ToUpper(sig.Symbol), Quantity: decimal.Zero, Amount: decimal.Zero, Candidate: decimal.Zero}
	if l != nil {
		d.RuleID = l.RuleID
	}
	price := decimal.NewFromFloat(sig.Price)
	d.Price = price
	pos := l.Open(d.Symbol)

	switch sig.Action {
	case strategy.ActionSell:
		d.Side = models.OrderSideSell
		if pos == nil || !pos.Quantity.IsPositive() {
			d.Skip = SkipNoPosition
			return d
		}
		if !price.IsPositive() {
			d.Skip = SkipInvalidPrice
			return d
		}
		d.Stage = pos.Stage
		d.Quantity = pos.Quantity
		d.Amount = pos.Quantity.Mul(price)
		d.ExitReason = sig.ExitReason
		if d.ExitReason == "" {
			d.ExitReason = "signal"
		}
		d.Accepted = true
		return d

	case strategy.ActionBuy:
		d.Side = models.OrderSideBuy
		if !price.IsPositive() {
			d.Skip = SkipInvalidPrice
			return d
		}
		invested := decimal.Zero
		stage := 0
		if pos != nil {
			invested = pos.Invested
			stage = pos.Stage
		}
		if sig.TargetStage <= stage {
			d.Skip = SkipStaleStage
			return d
		}
		d.Stage = sig.TargetStage

		candidate := caps.PerSymbol.Mul(decimal.NewFromFloat(sig.FillPct)).Round(8)
		d.Candidate = candidate
		if !candidate.IsPositive() || invested.Add(candidate).GreaterThan(caps.PerSymbol) {
			d.Skip = SkipCapSymbol
			return d
		}
		if l.Snapshot().Total.Add(candidate).GreaterThan(caps.Portfolio) {
			d.Skip = SkipCapPortfolio
			return d
		}
		qty := candidate.Div(price).Floor()
		if qty.LessThan(decimal.NewFromInt(1)) {
			d.Skip = SkipBelowOne
			return d
		}
		d.Quantity = qty
		d.Amount = qty.Mul(price)
		d.Accepted = true
		return d
	}

	d.Skip = SkipNotTradable
	return d
}

// Commit applies an accepted decision to the position row and inserts the
// pending order in one transaction. The order keeps the pre-mutation row so a
// failed submission can be undone.
func (m *Manager) Commit(ctx context.Context, d Decision, order *models.Order) (*models.Position, error) {
	if m == nil || m.Repo == nil {
		return nil, errors.New("position manager not configured")
	}
	if !d.Accepted || order == nil {
		return nil, fmt.Errorf("commit %s: decision not accepted", d.Symbol)
	}
	now := m.clock()
	var out *models.Position
	err := m.Repo.InTx(ctx, func(tx *gorm.DB) error {
		cur, err := m.Repo.LockOpenPositionTx(ctx, tx, d.RuleID, d.Symbol)
		if err != nil {
			return err
		}
		before := datatypes.JSON("null")
		if cur != nil {
			raw, err := json.Marshal(cur)
			if err != nil {
				return err
			}
			before = raw
		}

		var next models.Position
		switch d.Side {
		case models.OrderSideBuy:
			next, err = applyBuy(cur, d, now)
		case models.OrderSideSell:
			next, err = applySell(cur, d, now)
		default:
			err = fmt.Errorf("unknown side %q", d.Side)
		}
		if err != nil {
			return err
		}
		if err := m.Repo.SavePositionTx(ctx, tx, &next); err != nil {
			return err
		}

		order.RuleID = d.RuleID
		order.PositionID = next.ID
		order.Symbol = d.Symbol
		order.Side = d.Side
		order.Stage = d.Stage
		order.Quantity = d.Quantity
		order.PriceHint = d.Price
		order.Amount = d.Amount
		order.Status = models.OrderStatusPending
		order.PositionBefore = before
		if err := m.Repo.InsertOrderTx(ctx, tx, order); err != nil {
			return err
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.Logger != nil {
		m.Logger.Info("position mutation committed",
			zap.Uint64("rule_id", d.RuleID),
			zap.String("symbol", d.Symbol),
			zap.String("side", d.Side),
			zap.Int("stage", d.Stage),
			zap.String("amount", d.Amount.StringFixed(2)),
			zap.Uint64("order_id", order.ID),
		)
	}
	return out, nil
}

func applyBuy(cur *models.Position, d Decision, now time.Time) (models.Position, error) {
	if cur == nil {
		if d.Stage != 1 {
			return models.Position{}, fmt.Errorf("%w: %s has no open position for stage %d", ErrStaleLedger, d.Symbol, d.Stage)
		}
		return models.Position{
			RuleID:        d.RuleID,
			Symbol:        d.Symbol,
			Stage:         1,
			Invested:      d.Amount,
			Quantity:      d.Quantity,
			AvgEntryPrice: d.Price,
			LastFillPrice: d.Price,
			Status:        models.PositionStatusOpen,
			RealizedPnL:   decimal.Zero,
			OpenedAt:      now,
		}, nil
	}
	if d.Stage != cur.Stage+1 {
		return models.Position{}, fmt.Errorf("%w: %s at stage %d, decision for stage %d", ErrStaleLedger, d.Symbol, cur.Stage, d.Stage)
	}
	next := *cur
	next.Stage = d.Stage
	next.Invested = cur.Invested.Add(d.Amount)
	next.Quantity = cur.Quantity.Add(d.Quantity)
	if next.Quantity.IsPositive() {
		next.AvgEntryPrice = cur.AvgEntryPrice.Mul(cur.Quantity).Add(d.Price.Mul(d.Quantity)).Div(next.Quantity).Round(6)
	}
	next.LastFillPrice = d.Price
	return next, nil
}

func applySell(cur *models.Position, d Decision, now time.Time) (models.Position, error) {
	if cur == nil {
		return models.Position{}, fmt.Errorf("%w: %s", ErrNoPosition, d.Symbol)
	}
	next := *cur
	next.Status = models.PositionStatusClosed
	next.RealizedPnL = cur.RealizedPnL.Add(d.Price.Sub(cur.AvgEntryPrice).Mul(cur.Quantity))
	next.ExitReason = d.ExitReason
	next.ClosedAt = &now
	return next, nil
}

// Rollback marks a pending order terminal and undoes its position mutation.
// Terminal orders are left alone and repository.ErrStaleOrder is returned.
func (m *Manager) Rollback(ctx context.Context, orderID uint64, status, reason string, attempts int) (*models.Position, error) {
	if m == nil || m.Repo == nil {
		return nil, errors.New("position manager not configured")
	}
	if status != models.OrderStatusRejected && status != models.OrderStatusFailed {
		return nil, fmt.Errorf("rollback: invalid terminal status %q", status)
	}
	now := m.clock()
	var restored *models.Position
	err := m.Repo.InTx(ctx, func(tx *gorm.DB) error {
		order, err := m.Repo.LockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("rollback: order %d not found", orderID)
		}
		updates := map[string]any{
			"status":         status,
			"failure_reason": reason,
		}
		if attempts > 0 {
			updates["attempts"] = attempts
		}
		if err := m.Repo.UpdatePendingOrderTx(ctx, tx, orderID, updates); err != nil {
			return err
		}
		pos, err := m.Repo.LockPositionTx(ctx, tx, order.PositionID)
		if err != nil {
			return err
		}
		if pos == nil {
			return nil
		}
		next, err := undo(*pos, *order, now)
		if err != nil {
			return err
		}
		if err := m.Repo.SavePositionTx(ctx, tx, &next); err != nil {
			return err
		}
		restored = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.Logger != nil {
		m.Logger.Warn("position mutation rolled back",
			zap.Uint64("order_id", orderID),
			zap.String("status", status),
			zap.String("reason", reason),
		)
	}
	return restored, nil
}

// undo reverses one order's mutation. When the row still reflects exactly this
// order the stored snapshot is restored; otherwise a later stage landed on top
// and only this order's amounts are backed out.
func undo(pos models.Position, order models.Order, now time.Time) (models.Position, error) {
	var before *models.Position
	if len(order.PositionBefore) > 0 && string(order.PositionBefore) != "null" {
		before = &models.Position{}
		if err := json.Unmarshal(order.PositionBefore, before); err != nil {
			return pos, fmt.Errorf("decode position snapshot: %w", err)
		}
	}

	switch order.Side {
	case models.OrderSideBuy:
		if !pos.IsOpen() {
			return pos, fmt.Errorf("%w: position %d is %s", ErrStaleLedger, pos.ID, pos.Status)
		}
		if pos.Stage == order.Stage {
			if before == nil {
				pos.Status = models.PositionStatusVoid
				pos.ExitReason = "entry_not_filled"
				pos.ClosedAt = &now
				return pos, nil
			}
			return restore(pos, *before), nil
		}
		pos.Invested = pos.Invested.Sub(order.Amount)
		remaining := pos.Quantity.Sub(order.Quantity)
		if remaining.IsPositive() {
			pos.AvgEntryPrice = pos.AvgEntryPrice.Mul(pos.Quantity).Sub(order.PriceHint.Mul(order.Quantity)).Div(remaining).Round(6)
		}
		pos.Quantity = remaining
		return pos, nil

	case models.OrderSideSell:
		if pos.Status != models.PositionStatusClosed || before == nil {
			return pos, fmt.Errorf("%w: position %d is %s", ErrStaleLedger, pos.ID, pos.Status)
		}
		return restore(pos, *before), nil
	}
	return pos, fmt.Errorf("unknown side %q", order.Side)
}

// Fill is what the broker executed for one order. Zero fields fall back to
// the order's quantity and price hint.
type Fill struct {
	Quantity decimal.Decimal
	Price    decimal.Decimal
	// Note is kept as the order's failure reason, e.g. why the rest was canceled.
	Note string
}

// Settle marks a pending order filled and rewrites its position mutation to
// the executed quantity and price. A partial buy keeps only the filled shares;
// a partial sell leaves the remainder open.
func (m *Manager) Settle(ctx context.Context, orderID uint64, fill Fill) (*models.Position, error) {
	if m == nil || m.Repo == nil {
		return nil, errors.New("position manager not configured")
	}
	now := m.clock()
	var settled *models.Position
	var qty, price decimal.Decimal
	err := m.Repo.InTx(ctx, func(tx *gorm.DB) error {
		order, err := m.Repo.LockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("settle: order %d not found", orderID)
		}
		qty, price = fill.Quantity, fill.Price
		if !qty.IsPositive() || qty.GreaterThan(order.Quantity) {
			qty = order.Quantity
		}
		if !price.IsPositive() {
			price = order.PriceHint
		}
		updates := map[string]any{
			"status":       models.OrderStatusFilled,
			"filled_at":    now,
			"filled_qty":   qty,
			"filled_price": price,
		}
		if fill.Note != "" {
			updates["failure_reason"] = fill.Note
		}
		if err := m.Repo.UpdatePendingOrderTx(ctx, tx, orderID, updates); err != nil {
			return err
		}
		pos, err := m.Repo.LockPositionTx(ctx, tx, order.PositionID)
		if err != nil {
			return err
		}
		if pos == nil {
			return nil
		}
		next, err := settle(*pos, *order, qty, price)
		if err != nil {
			return err
		}
		if err := m.Repo.SavePositionTx(ctx, tx, &next); err != nil {
			return err
		}
		settled = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.Logger != nil {
		m.Logger.Info("order settled",
			zap.Uint64("order_id", orderID),
			zap.String("filled_qty", qty.String()),
			zap.String("filled_price", price.String()),
			zap.String("note", fill.Note),
		)
	}
	return settled, nil
}

// settle replaces the tentative amounts the order committed with the executed
// ones. Later stages stacked on the row are left as they are.
func settle(pos models.Position, order models.Order, qty, price decimal.Decimal) (models.Position, error) {
	switch order.Side {
	case models.OrderSideBuy:
		if !pos.IsOpen() {
			// Closed since; its realized figures stand.
			return pos, nil
		}
		cost := pos.AvgEntryPrice.Mul(pos.Quantity).Sub(order.PriceHint.Mul(order.Quantity)).Add(price.Mul(qty))
		pos.Invested = pos.Invested.Sub(order.Amount).Add(qty.Mul(price))
		pos.Quantity = pos.Quantity.Sub(order.Quantity).Add(qty)
		if pos.Quantity.IsPositive() {
			pos.AvgEntryPrice = cost.Div(pos.Quantity).Round(6)
		}
		if pos.Stage == order.Stage {
			pos.LastFillPrice = price
		}
		return pos, nil

	case models.OrderSideSell:
		if pos.Status != models.PositionStatusClosed {
			return pos, fmt.Errorf("%w: position %d is %s", ErrStaleLedger, pos.ID, pos.Status)
		}
		var before models.Position
		if len(order.PositionBefore) == 0 || string(order.PositionBefore) == "null" {
			return pos, fmt.Errorf("settle: order %d has no position snapshot", order.ID)
		}
		if err := json.Unmarshal(order.PositionBefore, &before); err != nil {
			return pos, fmt.Errorf("decode position snapshot: %w", err)
		}
		realized := before.RealizedPnL.Add(price.Sub(before.AvgEntryPrice).Mul(qty))
		remaining := before.Quantity.Sub(qty)
		if !remaining.IsPositive() {
			pos.RealizedPnL = realized
			return pos, nil
		}
		pos = restore(pos, before)
		if before.Quantity.IsPositive() {
			pos.Invested = before.Invested.Mul(remaining).Div(before.Quantity).Round(6)
		}
		pos.Quantity = remaining
		pos.RealizedPnL = realized
		return pos, nil
	}
	return pos, fmt.Errorf("unknown side %q", order.Side)
}

func restore(pos, before models.Position) models.Position {
	pos.Stage = before.Stage
	pos.Invested = before.Invested
	pos.Quantity = before.Quantity
	pos.AvgEntryPrice = before.AvgEntryPrice
	pos.LastFillPrice = before.LastFillPrice
	pos.Status = before.Status
	pos.RealizedPnL = before.RealizedPnL
	pos.ExitReason = before.ExitReason
	pos.ClosedAt = before.ClosedAt
	return pos
}
