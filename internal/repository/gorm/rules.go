package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

func (s *Store) CreateRule(ctx context.Context, item *models.StrategyRule) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetRule(ctx context.Context, id uint64) (*models.StrategyRule, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.StrategyRule
	err := s.db.WithContext(ctx).Model(&models.StrategyRule{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListRules(ctx context.Context, params repository.ListRulesParams) ([]models.StrategyRule, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.StrategyRule{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Kind != nil && strings.TrimSpace(*params.Kind) != "" {
		query = query.Where("kind = ?", strings.TrimSpace(*params.Kind))
	}
	if params.Owner != nil && strings.TrimSpace(*params.Owner) != "" {
		query = query.Where("owner = ?", strings.TrimSpace(*params.Owner))
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.StrategyRule
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateRuleParams(ctx context.Context, id uint64, params []byte) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.StrategyRule{}).
		Where("id = ?", id).
		Updates(map[string]any{"params": datatypes.JSON(params), "updated_at": time.Now().UTC()}).
		Error
}

func (s *Store) UpdateRuleCaps(ctx context.Context, id uint64, caps repository.RuleCaps) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if caps.AllocatedBalance != nil {
		updates["allocated_balance"] = *caps.AllocatedBalance
	}
	if caps.PerSymbolCapPct != nil {
		updates["per_symbol_cap_pct"] = *caps.PerSymbolCapPct
	}
	if caps.PortfolioCapPct != nil {
		updates["portfolio_cap_pct"] = *caps.PortfolioCapPct
	}
	return s.db.WithContext(ctx).Model(&models.StrategyRule{}).Where("id = ?", id).Updates(updates).Error
}

func (s *Store) SetRuleStatus(ctx context.Context, id uint64, status string, reason string, needsReview bool) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.StrategyRule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        strings.TrimSpace(status),
			"status_reason": reason,
			"needs_review":  needsReview,
			"updated_at":    time.Now().UTC(),
		}).Error
}
