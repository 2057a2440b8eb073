package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Simulator fills every order immediately at its price hint. It backs the
// dry-run executor mode and keeps a cash balance in memory.
type Simulator struct {
	mu     sync.Mutex
	cash   decimal.Decimal
	orders map[string]Ack
	byCID  map[string]string
}

func NewSimulator(cash decimal.Decimal) *Simulator {
	return &Simulator{cash: cash, orders: map[string]Ack{}, byCID: map[string]string{}}
}

func (s *Simulator) Name() string { return "simulator" }

func (s *Simulator) PlaceOrder(ctx context.Context, req OrderRequest) (Ack, error) {
	if err := ctx.Err(); err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if strings.TrimSpace(req.Symbol) == "" || !req.Quantity.IsPositive() {
		return Ack{}, fmt.Errorf("%w: invalid order", ErrRejected)
	}
	if !req.PriceHint.IsPositive() {
		return Ack{}, fmt.Errorf("%w: missing price", ErrRejected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.byCID[req.ClientOrderID]; ok && req.ClientOrderID != "" {
		return s.orders[ref], nil
	}
	amount := req.Quantity.Mul(req.PriceHint)
	switch strings.ToLower(req.Side) {
	case "buy":
		if amount.GreaterThan(s.cash) {
			return Ack{}, fmt.Errorf("%w: need %s have %s", ErrInsufficientFunds, amount.StringFixed(2), s.cash.StringFixed(2))
		}
		s.cash = s.cash.Sub(amount)
	case "sell":
		s.cash = s.cash.Add(amount)
	default:
		return Ack{}, fmt.Errorf("%w: unknown side %q", ErrRejected, req.Side)
	}
	price := req.PriceHint
	ack := Ack{
		BrokerRef:   "sim-" + uuid.NewString(),
		Status:      StatusFilled,
		FilledQty:   req.Quantity,
		FilledPrice: &price,
	}
	s.orders[ack.BrokerRef] = ack
	if req.ClientOrderID != "" {
		s.byCID[req.ClientOrderID] = ack.BrokerRef
	}
	return ack, nil
}

func (s *Simulator) GetOrder(ctx context.Context, brokerRef string) (Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ack, ok := s.orders[brokerRef]
	if !ok {
		return Ack{}, ErrOrderNotFound
	}
	return ack, nil
}

func (s *Simulator) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cash, nil
}
