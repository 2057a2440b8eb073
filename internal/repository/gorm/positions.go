package gormrepository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

func (s *Store) GetPositionByID(ctx context.Context, id uint64) (*models.Position, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	return firstPosition(s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) GetOpenPosition(ctx context.Context, ruleID uint64, symbol string) (*models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstPosition(s.db.WithContext(ctx).
		Where("rule_id = ? AND symbol = ? AND status = ?", ruleID, strings.TrimSpace(symbol), models.PositionStatusOpen))
}

func (s *Store) ListOpenPositions(ctx context.Context, ruleID uint64) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Position
	if err := s.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("rule_id = ? AND status = ?", ruleID, models.PositionStatusOpen).
		Order("symbol asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Position{})
	if params.RuleID != nil && *params.RuleID > 0 {
		query = query.Where("rule_id = ?", *params.RuleID)
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.ToUpper(strings.TrimSpace(*params.Symbol)))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.ClosedSince != nil {
		query = query.Where("closed_at >= ?", params.ClosedSince.UTC())
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "opened_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Position
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) LastClosedPosition(ctx context.Context, ruleID uint64, symbol string) (*models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstPosition(s.db.WithContext(ctx).
		Where("rule_id = ? AND symbol = ? AND status = ?", ruleID, strings.TrimSpace(symbol), models.PositionStatusClosed).
		Order("closed_at desc"))
}

func (s *Store) LockPositionTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Position, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	return firstPosition(forUpdate(s.conn(ctx, tx)).Where("id = ?", id))
}

func (s *Store) LockOpenPositionTx(ctx context.Context, tx *gorm.DB, ruleID uint64, symbol string) (*models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	return firstPosition(forUpdate(s.conn(ctx, tx)).
		Where("rule_id = ? AND symbol = ? AND status = ?", ruleID, strings.TrimSpace(symbol), models.PositionStatusOpen))
}

func (s *Store) SavePositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Save(item).Error
}

func firstPosition(query *gorm.DB) (*models.Position, error) {
	var item models.Position
	err := query.Model(&models.Position{}).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
