package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

// AlpacaBroker places orders through the Alpaca trading API.
type AlpacaBroker struct {
	client *alpaca.Client
}

func NewAlpacaClient(apiKey, apiSecret, baseURL string) *alpaca.Client {
	return alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
}

func NewAlpacaBroker(client *alpaca.Client) *AlpacaBroker {
	return &AlpacaBroker{client: client}
}

func (b *AlpacaBroker) Name() string { return "alpaca" }

func (b *AlpacaBroker) PlaceOrder(ctx context.Context, req OrderRequest) (Ack, error) {
	qty := req.Quantity
	in := alpaca.PlaceOrderRequest{
		Symbol:        strings.ToUpper(req.Symbol),
		Qty:           &qty,
		Side:          alpaca.Side(strings.ToLower(req.Side)),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: req.ClientOrderID,
	}
	if strings.EqualFold(req.Type, "limit") && req.PriceHint.IsPositive() {
		limit := req.PriceHint
		in.Type = alpaca.Limit
		in.LimitPrice = &limit
	}

	order, err := call(ctx, func() (*alpaca.Order, error) { return b.client.PlaceOrder(in) })
	if err != nil {
		// A retry after a lost response collides on client_order_id; the first submission stands.
		if isDuplicateClientID(err) {
			existing, lookupErr := call(ctx, func() (*alpaca.Order, error) {
				return b.client.GetOrderByClientOrderID(req.ClientOrderID)
			})
			if lookupErr == nil {
				return ackFromOrder(existing), nil
			}
		}
		return Ack{}, classify(err)
	}
	return ackFromOrder(order), nil
}

func (b *AlpacaBroker) GetOrder(ctx context.Context, brokerRef string) (Ack, error) {
	order, err := call(ctx, func() (*alpaca.Order, error) { return b.client.GetOrder(brokerRef) })
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Ack{}, ErrOrderNotFound
		}
		return Ack{}, classify(err)
	}
	return ackFromOrder(order), nil
}

func (b *AlpacaBroker) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	acct, err := call(ctx, func() (*alpaca.Account, error) { return b.client.GetAccount() })
	if err != nil {
		return decimal.Zero, classify(err)
	}
	if acct.Cash.LessThan(acct.BuyingPower) {
		return acct.Cash, nil
	}
	return acct.BuyingPower, nil
}

// call runs a context-free SDK call and gives up when ctx ends.
func call[T any](ctx context.Context, fn func() (*T, error)) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type result struct {
		v   *T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrTransient, ctx.Err())
	case r := <-ch:
		if r.err == nil && r.v == nil {
			return nil, fmt.Errorf("%w: empty response", ErrTransient)
		}
		return r.v, r.err
	}
}

func ackFromOrder(o *alpaca.Order) Ack {
	ack := Ack{BrokerRef: o.ID, FilledQty: o.FilledQty, FilledPrice: o.FilledAvgPrice}
	switch strings.ToLower(o.Status) {
	case "filled":
		ack.Status = StatusFilled
	case "rejected", "canceled", "expired", "done_for_day", "stopped", "suspended":
		ack.Status = StatusRejected
		ack.Reason = o.Status
	default:
		ack.Status = StatusAccepted
	}
	return ack
}

func isDuplicateClientID(err error) bool {
	var apiErr *alpaca.APIError
	return errors.As(err, &apiErr) &&
		apiErr.StatusCode == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(apiErr.Message), "client_order_id")
}

func classify(err error) error {
	if errors.Is(err, ErrTransient) {
		return err
	}
	var apiErr *alpaca.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	msg := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrTransient, apiErr.Message)
	case strings.Contains(msg, "insufficient") || strings.Contains(msg, "buying power"):
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, apiErr.Message)
	default:
		return fmt.Errorf("%w: %d %s", ErrRejected, apiErr.StatusCode, apiErr.Message)
	}
}
