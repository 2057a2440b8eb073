package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

func (s *Store) ListConstituents(ctx context.Context, indices []string) ([]models.IndexConstituent, error) {
	if s == nil || s.db == nil || len(indices) == 0 {
		return nil, nil
	}
	codes := make([]string, 0, len(indices))
	for _, code := range indices {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return nil, nil
	}
	var items []models.IndexConstituent
	if err := s.db.WithContext(ctx).
		Model(&models.IndexConstituent{}).
		Where("index_code IN ?", codes).
		Order("symbol asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ReplaceConstituents swaps the full membership of one index atomically.
func (s *Store) ReplaceConstituents(ctx context.Context, indexCode string, items []models.IndexConstituent) error {
	if s == nil || s.db == nil {
		return nil
	}
	indexCode = strings.ToUpper(strings.TrimSpace(indexCode))
	if indexCode == "" {
		return nil
	}
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("index_code = ?", indexCode).Delete(&models.IndexConstituent{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		rows := make([]models.IndexConstituent, 0, len(items))
		for _, it := range items {
			it.ID = 0
			it.IndexCode = indexCode
			it.Symbol = strings.ToUpper(strings.TrimSpace(it.Symbol))
			it.UpdatedAt = now
			if it.Symbol == "" {
				continue
			}
			rows = append(rows, it)
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "index_code"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "market", "sector", "listed_shares", "updated_at"}),
		}).CreateInBatches(rows, 200).Error
	})
}
