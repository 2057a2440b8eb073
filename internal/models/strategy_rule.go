package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	RuleKindGapMomentum = "gap_momentum"
	RuleKindMultiFactor = "multi_factor"

	RuleStatusActive = "active"
	RuleStatusPaused = "paused"
	RuleStatusError  = "error"
)

// StrategyRule is a user-owned trading configuration. Rules are never deleted;
// deactivation moves Status away from active.
type StrategyRule struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Name  string `gorm:"type:varchar(100);not null" json:"name"`
	Kind  string `gorm:"type:varchar(30);not null;index" json:"kind"`
	Owner string `gorm:"type:varchar(100);not null;index" json:"owner"`

	UniverseFilter datatypes.JSON `json:"universe_filter"`
	Params         datatypes.JSON `gorm:"not null" json:"params"`

	// AllocatedBalance of zero means "use the broker's available balance".
	AllocatedBalance decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"allocated_balance"`
	PerSymbolCapPct  decimal.Decimal `gorm:"type:numeric(10,6);not null;default:0.1" json:"per_symbol_cap_pct"`
	PortfolioCapPct  decimal.Decimal `gorm:"type:numeric(10,6);not null;default:0.5" json:"portfolio_cap_pct"`

	Status       string `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	StatusReason string `gorm:"type:text" json:"status_reason,omitempty"`
	NeedsReview  bool   `gorm:"not null;default:false" json:"needs_review"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StrategyRule) TableName() string {
	return "strategy_rules"
}

func (r StrategyRule) IsActive() bool {
	return r.Status == RuleStatusActive
}
