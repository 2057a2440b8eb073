// Package execution submits accepted decisions to the broker at most once.
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gnidc/Sheet-Manager-sub001/internal/backoff"
	"github.com/gnidc/Sheet-Manager-sub001/internal/broker"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/position"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

// Ledger is the part of the position manager the adapter drives.
type Ledger interface {
	Commit(ctx context.Context, d position.Decision, order *models.Order) (*models.Position, error)
	Rollback(ctx context.Context, orderID uint64, status, reason string, attempts int) (*models.Position, error)
	Settle(ctx context.Context, orderID uint64, fill position.Fill) (*models.Position, error)
}

// BrokerSelector picks the broker for new orders (dry-run or live).
type BrokerSelector func(ctx context.Context) broker.Broker

type Adapter struct {
	Orders      repository.OrderRepository
	Ledger      Ledger
	Select      BrokerSelector
	Brokers     map[string]broker.Broker
	Policy      backoff.Policy
	CallTimeout time.Duration
	OrderType   string
	Logger      *zap.Logger

	now func() time.Time
}

type SubmitRequest struct {
	TickID   string
	Decision position.Decision
}

// Result describes what happened to one submission.
type Result struct {
	Order     *models.Order
	Position  *models.Position
	Duplicate bool
	Reason    string
}

// Status is the order status, or "" when nothing was recorded.
func (r Result) Status() string {
	if r.Order == nil {
		return ""
	}
	return r.Order.Status
}

// IdempotencyKey identifies one decision: rule, symbol, side, ladder stage and tick.
func IdempotencyKey(ruleID uint64, symbol, side string, stage int, tickID string) string {
	return fmt.Sprintf("%d:%s:%s:%d:%s", ruleID, strings.ToUpper(symbol), side, stage, tickID)
}

func (a *Adapter) clock() time.Time {
	if a.now != nil {
		return a.now().UTC()
	}
	return time.Now().UTC()
}

func (a *Adapter) pick(ctx context.Context) broker.Broker {
	if a.Select != nil {
		if b := a.Select(ctx); b != nil {
			return b
		}
	}
	for _, b := range a.Brokers {
		return b
	}
	return nil
}

// Submit commits the decision to the ledger and places the order. Broker
// failures are reported in the Result and undone in the ledger; the error
// return is reserved for persistence failures.
func (a *Adapter) Submit(ctx context.Context, req SubmitRequest) (Result, error) {
	if a == nil || a.Orders == nil || a.Ledger == nil {
		return Result{}, errors.New("execution adapter not configured")
	}
	d := req.Decision
	if !d.Accepted {
		return Result{}, fmt.Errorf("submit %s: decision not accepted", d.Symbol)
	}
	b := a.pick(ctx)
	if b == nil {
		return Result{}, errors.New("no broker configured")
	}

	key := IdempotencyKey(d.RuleID, d.Symbol, d.Side, d.Stage, req.TickID)
	if existing, err := a.Orders.GetOrderByIdempotencyKey(ctx, key); err != nil {
		return Result{}, err
	} else if existing != nil {
		return Result{Order: existing, Duplicate: true, Reason: "already submitted for this tick"}, nil
	}
	if pending, err := a.Orders.FindPendingOrder(ctx, d.RuleID, d.Symbol, d.Side, d.Stage); err != nil {
		return Result{}, err
	} else if pending != nil {
		return Result{Order: pending, Duplicate: true, Reason: "pending order in flight"}, nil
	}

	orderType := a.OrderType
	if orderType == "" {
		orderType = "market"
	}
	order := &models.Order{
		ClientOrderID:  uuid.NewString(),
		IdempotencyKey: key,
		TickID:         req.TickID,
		OrderType:      orderType,
		Venue:          b.Name(),
	}
	pos, err := a.Ledger.Commit(ctx, d, order)
	if err != nil {
		return Result{}, fmt.Errorf("commit %s %s: %w", d.Side, d.Symbol, err)
	}

	// Bookkeeping after this point must survive the tick deadline.
	persistCtx := context.WithoutCancel(ctx)

	brokerReq := broker.OrderRequest{
		ClientOrderID: order.ClientOrderID,
		Symbol:        d.Symbol,
		Side:          d.Side,
		Type:          orderType,
		Quantity:      d.Quantity,
		PriceHint:     d.Price,
	}
	var ack broker.Ack
	attempts, err := a.policy().Do(ctx, func(ctx context.Context, attempt int) error {
		callCtx := ctx
		if a.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, a.CallTimeout)
			defer cancel()
		}
		got, err := b.PlaceOrder(callCtx, brokerReq)
		if err != nil {
			if a.Logger != nil {
				a.Logger.Warn("order submission attempt failed",
					zap.Uint64("order_id", order.ID),
					zap.String("symbol", d.Symbol),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			}
			return err
		}
		ack = got
		return nil
	})
	if err != nil {
		status := models.OrderStatusFailed
		if errors.Is(err, broker.ErrRejected) {
			status = models.OrderStatusRejected
		}
		return a.undo(persistCtx, order, status, err.Error(), attempts, pos)
	}

	if ack.Status == broker.StatusRejected && !ack.FilledQty.IsPositive() {
		reason := ack.Reason
		if reason == "" {
			reason = "rejected by broker"
		}
		return a.undo(persistCtx, order, models.OrderStatusRejected, reason, attempts, pos)
	}

	updates := map[string]any{
		"broker_ref":   ack.BrokerRef,
		"attempts":     attempts,
		"submitted_at": a.clock(),
	}
	if err := a.Orders.UpdatePendingOrderTx(persistCtx, nil, order.ID, updates); err != nil {
		return Result{Order: order, Position: pos}, fmt.Errorf("record ack for order %d: %w", order.ID, err)
	}
	if fill, ok := executed(ack); ok {
		settled, err := a.Ledger.Settle(persistCtx, order.ID, fill)
		if err != nil {
			return Result{Order: order, Position: pos}, fmt.Errorf("settle order %d: %w", order.ID, err)
		}
		if settled != nil {
			pos = settled
		}
	}
	fresh, err := a.Orders.GetOrderByID(persistCtx, order.ID)
	if err == nil && fresh != nil {
		order = fresh
	}
	if a.Logger != nil {
		a.Logger.Info("order submitted",
			zap.Uint64("order_id", order.ID),
			zap.Uint64("rule_id", d.RuleID),
			zap.String("symbol", d.Symbol),
			zap.String("side", d.Side),
			zap.Int("stage", d.Stage),
			zap.String("status", order.Status),
			zap.String("venue", order.Venue),
			zap.Int("attempts", attempts),
		)
	}
	return Result{Order: order, Position: pos}, nil
}

// executed reports the fill carried by a terminal ack. A rejected ack only
// counts when part of the order went through before the broker gave up.
func executed(ack broker.Ack) (position.Fill, bool) {
	fill := position.Fill{Quantity: ack.FilledQty}
	if ack.FilledPrice != nil {
		fill.Price = *ack.FilledPrice
	}
	switch {
	case ack.Status == broker.StatusFilled:
		return fill, true
	case ack.Status == broker.StatusRejected && ack.FilledQty.IsPositive():
		reason := ack.Reason
		if reason == "" {
			reason = "rejected"
		}
		fill.Note = fmt.Sprintf("%s after partial fill of %s", reason, ack.FilledQty.String())
		return fill, true
	}
	return position.Fill{}, false
}

func (a *Adapter) undo(ctx context.Context, order *models.Order, status, reason string, attempts int, pos *models.Position) (Result, error) {
	restored, err := a.Ledger.Rollback(ctx, order.ID, status, reason, attempts)
	if err != nil {
		if a.Logger != nil {
			a.Logger.Error("rollback failed",
				zap.Uint64("order_id", order.ID),
				zap.String("status", status),
				zap.Error(err),
			)
		}
		return Result{Order: order, Position: pos, Reason: reason}, fmt.Errorf("rollback order %d: %w", order.ID, err)
	}
	order.Status = status
	order.FailureReason = reason
	order.Attempts = attempts
	return Result{Order: order, Position: restored, Reason: reason}, nil
}

func (a *Adapter) policy() backoff.Policy {
	p := a.Policy
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Retryable == nil {
		p.Retryable = broker.Retryable
	}
	return p
}
