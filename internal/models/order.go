package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	OrderSideBuy  = "buy"
	OrderSideSell = "sell"

	OrderStatusPending  = "pending"
	OrderStatusFilled   = "filled"
	OrderStatusRejected = "rejected"
	OrderStatusFailed   = "failed"
)

// Order is one submission to the brokerage. Terminal orders are never updated.
type Order struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleID     uint64 `gorm:"not null;index:idx_orders_rule_symbol" json:"rule_id"`
	PositionID uint64 `gorm:"not null;default:0;index" json:"position_id"`
	Symbol     string `gorm:"type:varchar(20);not null;index:idx_orders_rule_symbol" json:"symbol"`

	Side      string `gorm:"type:varchar(10);not null" json:"side"`
	OrderType string `gorm:"type:varchar(20);not null;default:'market'" json:"order_type"`
	Stage     int    `gorm:"not null;default:0" json:"stage"`

	Quantity    decimal.Decimal  `gorm:"type:numeric(30,10);not null" json:"quantity"`
	PriceHint   decimal.Decimal  `gorm:"type:numeric(20,6);not null" json:"price_hint"`
	Amount      decimal.Decimal  `gorm:"type:numeric(30,10);not null" json:"amount"`
	FilledPrice *decimal.Decimal `gorm:"type:numeric(20,6)" json:"filled_price,omitempty"`
	FilledQty   *decimal.Decimal `gorm:"type:numeric(30,10)" json:"filled_qty,omitempty"`

	Status         string `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Venue          string `gorm:"type:varchar(20)" json:"venue,omitempty"`
	BrokerRef      string `gorm:"type:varchar(100);index" json:"broker_ref,omitempty"`
	ClientOrderID  string `gorm:"type:varchar(64);not null;uniqueIndex" json:"client_order_id"`
	IdempotencyKey string `gorm:"type:varchar(200);not null;uniqueIndex" json:"idempotency_key"`
	TickID         string `gorm:"type:varchar(64);index" json:"tick_id"`
	Attempts       int    `gorm:"not null;default:0" json:"attempts"`
	FailureReason  string `gorm:"type:text" json:"failure_reason,omitempty"`

	// PositionBefore is the ledger row as it was before this order's mutation.
	PositionBefore datatypes.JSON `json:"-"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	FilledAt    *time.Time `json:"filled_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusRejected, OrderStatusFailed:
		return true
	default:
		return false
	}
}
