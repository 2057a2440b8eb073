package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

// ErrStaleOrder is returned when a status transition targets an order that is no longer pending.
var ErrStaleOrder = errors.New("order is not pending")

type RuleRepository interface {
	CreateRule(ctx context.Context, item *models.StrategyRule) error
	GetRule(ctx context.Context, id uint64) (*models.StrategyRule, error)
	ListRules(ctx context.Context, params ListRulesParams) ([]models.StrategyRule, error)
	UpdateRuleParams(ctx context.Context, id uint64, params []byte) error
	UpdateRuleCaps(ctx context.Context, id uint64, caps RuleCaps) error
	SetRuleStatus(ctx context.Context, id uint64, status string, reason string, needsReview bool) error
}

type PositionRepository interface {
	GetPositionByID(ctx context.Context, id uint64) (*models.Position, error)
	GetOpenPosition(ctx context.Context, ruleID uint64, symbol string) (*models.Position, error)
	ListOpenPositions(ctx context.Context, ruleID uint64) ([]models.Position, error)
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.Position, error)
	LastClosedPosition(ctx context.Context, ruleID uint64, symbol string) (*models.Position, error)

	// Tx variants run inside InTx; LockPositionTx takes a row lock where the dialect supports it.
	LockPositionTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Position, error)
	LockOpenPositionTx(ctx context.Context, tx *gorm.DB, ruleID uint64, symbol string) (*models.Position, error)
	SavePositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error
}

type OrderRepository interface {
	GetOrderByID(ctx context.Context, id uint64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	FindPendingOrder(ctx context.Context, ruleID uint64, symbol string, side string, stage int) (*models.Order, error)
	ListPendingOrders(ctx context.Context, ruleID *uint64, limit int) ([]models.Order, error)
	ListOrders(ctx context.Context, params ListOrdersParams) ([]models.Order, error)

	LockOrderTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Order, error)
	InsertOrderTx(ctx context.Context, tx *gorm.DB, item *models.Order) error
	// UpdatePendingOrderTx applies updates only while the order is pending.
	// It returns ErrStaleOrder when the order already reached a terminal status.
	UpdatePendingOrderTx(ctx context.Context, tx *gorm.DB, id uint64, updates map[string]any) error
}

type DecisionRepository interface {
	InsertDecisionLogs(ctx context.Context, items []models.DecisionLog) error
	ListDecisionLogs(ctx context.Context, params ListDecisionLogsParams) ([]models.DecisionLog, error)
}

type UniverseRepository interface {
	ListConstituents(ctx context.Context, indices []string) ([]models.IndexConstituent, error)
	ReplaceConstituents(ctx context.Context, indexCode string, items []models.IndexConstituent) error
}

type SettingsRepository interface {
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	ListSystemSettings(ctx context.Context) ([]models.SystemSetting, error)
}

// Repository is the persistence surface the engine treats as the source of truth across ticks.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	RuleRepository
	PositionRepository
	OrderRepository
	DecisionRepository
	UniverseRepository
	SettingsRepository
}

type RuleCaps struct {
	AllocatedBalance *decimal.Decimal
	PerSymbolCapPct  *decimal.Decimal
	PortfolioCapPct  *decimal.Decimal
}

type ListRulesParams struct {
	Status  *string
	Kind    *string
	Owner   *string
	Limit   int
	Offset  int
	OrderBy string
	Asc     *bool
}

type ListPositionsParams struct {
	RuleID      *uint64
	Symbol      *string
	Status      *string
	ClosedSince *time.Time
	Limit       int
	Offset      int
	OrderBy     string
	Asc         *bool
}

type ListOrdersParams struct {
	RuleID  *uint64
	Symbol  *string
	Status  *string
	Since   *time.Time
	Limit   int
	Offset  int
	OrderBy string
	Asc     *bool
}

type ListDecisionLogsParams struct {
	RuleID  *uint64
	TickID  *string
	Outcome *string
	Since   *time.Time
	Limit   int
	Offset  int
	Asc     *bool
}
