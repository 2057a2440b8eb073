// Package broker is the narrow surface the engine needs from a brokerage.
package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrTransient covers network failures, 5xx and rate limits. Callers may retry.
	ErrTransient = errors.New("broker temporarily unavailable")
	// ErrRejected is a terminal refusal (invalid symbol, market closed, lot size).
	ErrRejected          = errors.New("order rejected by broker")
	ErrInsufficientFunds = fmt.Errorf("%w: insufficient funds", ErrRejected)
	ErrOrderNotFound     = errors.New("broker order not found")
)

const (
	StatusAccepted = "accepted"
	StatusFilled   = "filled"
	StatusRejected = "rejected"
)

type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          string
	Type          string
	Quantity      decimal.Decimal
	// PriceHint is the evaluation price; it becomes the limit price for limit orders.
	PriceHint decimal.Decimal
}

// Ack is the broker's view of an order right after submission or on a poll.
type Ack struct {
	BrokerRef   string
	Status      string
	FilledQty   decimal.Decimal
	FilledPrice *decimal.Decimal
	Reason      string
}

type Broker interface {
	Name() string
	PlaceOrder(ctx context.Context, req OrderRequest) (Ack, error)
	GetOrder(ctx context.Context, brokerRef string) (Ack, error)
	GetBalance(ctx context.Context) (decimal.Decimal, error)
}

// Retryable reports whether err is worth another submission attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
