package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	DecisionAccepted = "accepted"
	DecisionSkipped  = "skipped"
	DecisionFailed   = "failed"
	DecisionDataGap  = "data_gap"
	DecisionError    = "error"
	DecisionHold     = "hold"
)

// DecisionLog is the audit trail of every evaluation outcome per rule.
type DecisionLog struct {
	ID      uint64   `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleID  uint64   `gorm:"not null;index:idx_decisions_rule_created" json:"rule_id"`
	TickID  string   `gorm:"type:varchar(64);index" json:"tick_id"`
	Symbol  string   `gorm:"type:varchar(20);index" json:"symbol,omitempty"`
	Action  string   `gorm:"type:varchar(10);not null" json:"action"`
	Outcome string   `gorm:"type:varchar(20);not null;index" json:"outcome"`
	Reason  string   `gorm:"type:text" json:"reason,omitempty"`
	Score   *float64 `json:"score,omitempty"`
	OrderID *uint64  `json:"order_id,omitempty"`

	Details datatypes.JSON `json:"details,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_decisions_rule_created" json:"created_at"`
}

func (DecisionLog) TableName() string {
	return "decision_logs"
}
