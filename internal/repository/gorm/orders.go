package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

func (s *Store) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	return firstOrder(s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	return firstOrder(s.db.WithContext(ctx).Where("idempotency_key = ?", key))
}

func (s *Store) FindPendingOrder(ctx context.Context, ruleID uint64, symbol string, side string, stage int) (*models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstOrder(s.db.WithContext(ctx).
		Where("rule_id = ? AND symbol = ? AND side = ? AND stage = ? AND status = ?",
			ruleID, strings.TrimSpace(symbol), side, stage, models.OrderStatusPending).
		Order("id desc"))
}

func (s *Store) ListPendingOrders(ctx context.Context, ruleID *uint64, limit int) ([]models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("status = ?", models.OrderStatusPending)
	if ruleID != nil && *ruleID > 0 {
		query = query.Where("rule_id = ?", *ruleID)
	}
	var items []models.Order
	if err := query.Order("id asc").Limit(normalizeLimit(limit, 200)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListOrders(ctx context.Context, params repository.ListOrdersParams) ([]models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if params.RuleID != nil && *params.RuleID > 0 {
		query = query.Where("rule_id = ?", *params.RuleID)
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.ToUpper(strings.TrimSpace(*params.Symbol)))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Order
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) LockOrderTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Order, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	return firstOrder(forUpdate(s.conn(ctx, tx)).Where("id = ?", id))
}

func (s *Store) InsertOrderTx(ctx context.Context, tx *gorm.DB, item *models.Order) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Create(item).Error
}

func (s *Store) UpdatePendingOrderTx(ctx context.Context, tx *gorm.DB, id uint64, updates map[string]any) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	if updates == nil {
		updates = map[string]any{}
	}
	updates["updated_at"] = time.Now().UTC()
	res := s.conn(ctx, tx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrStaleOrder
	}
	return nil
}

func firstOrder(query *gorm.DB) (*models.Order, error) {
	var item models.Order
	err := query.Model(&models.Order{}).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
