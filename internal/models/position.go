package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
	// PositionStatusVoid marks an entry whose opening order never filled.
	PositionStatusVoid = "void"
)

// Position is one (rule, symbol) holding. Closed positions are kept for reporting.
type Position struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleID uint64 `gorm:"not null;index:idx_positions_rule_symbol" json:"rule_id"`
	Symbol string `gorm:"type:varchar(20);not null;index:idx_positions_rule_symbol" json:"symbol"`

	Stage         int             `gorm:"not null;default:0" json:"stage"`
	Invested      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"invested"`
	Quantity      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"quantity"`
	AvgEntryPrice decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"avg_entry_price"`
	LastFillPrice decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"last_fill_price"`

	Status      string          `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	RealizedPnL decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,10);not null;default:0" json:"realized_pnl"`
	ExitReason  string          `gorm:"type:varchar(50)" json:"exit_reason,omitempty"`
	OpenedAt    time.Time       `gorm:"not null" json:"opened_at"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

func (p Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}
