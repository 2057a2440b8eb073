package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gnidc/Sheet-Manager-sub001/internal/broker"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

const (
	defaultSyncBatch = 200
	// Orders without a broker ref older than this never reached the broker.
	defaultStaleAfter = 10 * time.Minute
)

type SyncReport struct {
	Checked  int `json:"checked"`
	Filled   int `json:"filled"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
	Pending  int `json:"pending"`
	Errors   int `json:"errors"`
}

// SyncPending polls the broker for every pending order and settles the ones
// that reached a terminal state. Fills settle the position at the executed
// quantity and price; rejections with nothing filled roll it back.
func (a *Adapter) SyncPending(ctx context.Context, staleAfter time.Duration) (SyncReport, error) {
	var rep SyncReport
	if a == nil || a.Orders == nil || a.Ledger == nil {
		return rep, errors.New("execution adapter not configured")
	}
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	items, err := a.Orders.ListPendingOrders(ctx, nil, defaultSyncBatch)
	if err != nil {
		return rep, err
	}
	now := a.clock()
	for i := range items {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		order := items[i]
		rep.Checked++
		outcome, err := a.syncOne(ctx, &order, now, staleAfter)
		if err != nil {
			rep.Errors++
			if a.Logger != nil {
				a.Logger.Warn("order sync failed", zap.Uint64("order_id", order.ID), zap.Error(err))
			}
			continue
		}
		switch outcome {
		case models.OrderStatusFilled:
			rep.Filled++
		case models.OrderStatusRejected:
			rep.Rejected++
		case models.OrderStatusFailed:
			rep.Failed++
		default:
			rep.Pending++
		}
	}
	if a.Logger != nil && rep.Checked > 0 {
		a.Logger.Info("pending orders synced",
			zap.Int("checked", rep.Checked),
			zap.Int("filled", rep.Filled),
			zap.Int("rejected", rep.Rejected),
			zap.Int("failed", rep.Failed),
			zap.Int("errors", rep.Errors),
		)
	}
	return rep, nil
}

func (a *Adapter) syncOne(ctx context.Context, order *models.Order, now time.Time, staleAfter time.Duration) (string, error) {
	if order.BrokerRef == "" {
		if now.Sub(order.CreatedAt) < staleAfter {
			return models.OrderStatusPending, nil
		}
		return a.settleRollback(ctx, order, models.OrderStatusFailed, "never submitted to broker")
	}

	b := a.Brokers[order.Venue]
	if b == nil {
		return "", fmt.Errorf("no broker for venue %q", order.Venue)
	}
	callCtx := ctx
	if a.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.CallTimeout)
		defer cancel()
	}
	ack, err := b.GetOrder(callCtx, order.BrokerRef)
	if errors.Is(err, broker.ErrOrderNotFound) {
		return a.settleRollback(ctx, order, models.OrderStatusFailed, "order unknown to broker")
	}
	if err != nil {
		return "", err
	}

	if fill, ok := executed(ack); ok {
		_, err := a.Ledger.Settle(ctx, order.ID, fill)
		if errors.Is(err, repository.ErrStaleOrder) {
			return models.OrderStatusPending, nil
		}
		if err != nil {
			return "", err
		}
		return models.OrderStatusFilled, nil
	}
	switch ack.Status {
	case broker.StatusRejected:
		reason := ack.Reason
		if reason == "" {
			reason = "rejected by broker"
		}
		return a.settleRollback(ctx, order, models.OrderStatusRejected, reason)
	default:
		return models.OrderStatusPending, nil
	}
}

func (a *Adapter) settleRollback(ctx context.Context, order *models.Order, status, reason string) (string, error) {
	_, err := a.Ledger.Rollback(ctx, order.ID, status, reason, 0)
	if errors.Is(err, repository.ErrStaleOrder) {
		return models.OrderStatusPending, nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}
