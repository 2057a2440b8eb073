package broker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_FillsAndTracksCash(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(decimal.NewFromInt(1000))

	ack, err := sim.PlaceOrder(ctx, OrderRequest{ClientOrderID: "c1", Symbol: "A", Side: "buy", Quantity: decimal.NewFromInt(3), PriceHint: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, ack.Status)
	bal, _ := sim.GetBalance(ctx)
	assert.True(t, bal.Equal(decimal.NewFromInt(700)), "balance=%s", bal)

	again, err := sim.PlaceOrder(ctx, OrderRequest{ClientOrderID: "c1", Symbol: "A", Side: "buy", Quantity: decimal.NewFromInt(3), PriceHint: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.Equal(t, ack.BrokerRef, again.BrokerRef, "same client order id is not filled twice")
	bal, _ = sim.GetBalance(ctx)
	assert.True(t, bal.Equal(decimal.NewFromInt(700)))

	_, err = sim.PlaceOrder(ctx, OrderRequest{ClientOrderID: "c2", Symbol: "A", Side: "buy", Quantity: decimal.NewFromInt(8), PriceHint: decimal.NewFromInt(100)})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.True(t, errors.Is(err, ErrRejected), "insufficient funds is a rejection")
	assert.False(t, Retryable(err))

	got, err := sim.GetOrder(ctx, ack.BrokerRef)
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, got.Status)
	_, err = sim.GetOrder(ctx, "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "network", err: errors.New("connection reset"), want: ErrTransient},
		{name: "rate limit", err: &alpaca.APIError{StatusCode: 429, Message: "too many requests"}, want: ErrTransient},
		{name: "server", err: &alpaca.APIError{StatusCode: 503, Message: "unavailable"}, want: ErrTransient},
		{name: "buying power", err: &alpaca.APIError{StatusCode: 403, Message: "insufficient buying power"}, want: ErrInsufficientFunds},
		{name: "invalid symbol", err: &alpaca.APIError{StatusCode: 422, Message: "asset not found"}, want: ErrRejected},
		{name: "wrapped api error", err: fmt.Errorf("place: %w", &alpaca.APIError{StatusCode: 400, Message: "bad qty"}), want: ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.True(t, errors.Is(got, tt.want), "got=%v want=%v", got, tt.want)
		})
	}
	assert.True(t, Retryable(classify(errors.New("eof"))))
}

func TestAckFromOrder(t *testing.T) {
	price := decimal.NewFromInt(10)
	assert.Equal(t, StatusFilled, ackFromOrder(&alpaca.Order{ID: "1", Status: "filled", FilledAvgPrice: &price}).Status)
	assert.Equal(t, StatusAccepted, ackFromOrder(&alpaca.Order{ID: "2", Status: "new"}).Status)
	assert.Equal(t, StatusAccepted, ackFromOrder(&alpaca.Order{ID: "3", Status: "partially_filled"}).Status)
	rej := ackFromOrder(&alpaca.Order{ID: "4", Status: "canceled"})
	assert.Equal(t, StatusRejected, rej.Status)
	assert.Equal(t, "canceled", rej.Reason)
}
