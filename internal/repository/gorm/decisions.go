package gormrepository

import (
	"context"
	"strings"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

func (s *Store) InsertDecisionLogs(ctx context.Context, items []models.DecisionLog) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(items, 200).Error
}

func (s *Store) ListDecisionLogs(ctx context.Context, params repository.ListDecisionLogsParams) ([]models.DecisionLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.DecisionLog{})
	if params.RuleID != nil && *params.RuleID > 0 {
		query = query.Where("rule_id = ?", *params.RuleID)
	}
	if params.TickID != nil && strings.TrimSpace(*params.TickID) != "" {
		query = query.Where("tick_id = ?", strings.TrimSpace(*params.TickID))
	}
	if params.Outcome != nil && strings.TrimSpace(*params.Outcome) != "" {
		query = query.Where("outcome = ?", strings.TrimSpace(*params.Outcome))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	query = applyOrder(query, "id", params.Asc, "id")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.DecisionLog
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
