package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

const (
	FeatureRunner    = "feature.runner"
	FeatureOrderSync = "feature.order_sync"

	SettingExecutorMode = "trading.executor_mode"

	ModeDryRun = "dry-run"
	ModeLive   = "live"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureRunner:    true,
		FeatureOrderSync: true,
	}
}

// SystemSettingsService reads and writes runtime switches stored in system_settings.
type SystemSettingsService struct {
	Repo repository.SettingsRepository
}

// EnsureDefaultSwitches inserts missing switches. Existing values are never overwritten.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

// ExecutorMode returns the stored executor mode, or fallback ("dry-run" when empty).
func (s *SystemSettingsService) ExecutorMode(ctx context.Context, fallback string) string {
	mode := normalizeMode(fallback)
	if s != nil && s.Repo != nil {
		if row, err := s.Repo.GetSystemSettingByKey(ctx, SettingExecutorMode); err == nil && row != nil && len(row.Value) > 0 {
			var v string
			if err := json.Unmarshal(row.Value, &v); err == nil {
				if m := normalizeMode(v); m != "" {
					mode = m
				}
			}
		}
	}
	if mode == "" {
		return ModeDryRun
	}
	return mode
}

func normalizeMode(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == ModeDryRun || v == ModeLive {
		return v
	}
	return ""
}
