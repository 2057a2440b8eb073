package service

import (
	"context"
	"testing"

	"gorm.io/datatypes"

	"github.com/gnidc/Sheet-Manager-sub001/internal/dbtest"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

func TestSystemSettings_Switches(t *testing.T) {
	ctx := context.Background()
	svc := &SystemSettingsService{Repo: dbtest.Store(t)}

	if err := svc.EnsureDefaultSwitches(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !svc.IsEnabled(ctx, FeatureRunner, false) {
		t.Fatalf("runner switch=false want=true")
	}
	if err := svc.SetEnabled(ctx, FeatureRunner, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.EnsureDefaultSwitches(ctx); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if svc.IsEnabled(ctx, FeatureRunner, true) {
		t.Fatalf("runner switch=true want=false (defaults must not overwrite)")
	}
	if !svc.IsEnabled(ctx, "feature.unknown", true) {
		t.Fatalf("missing key must return fallback")
	}
}

func TestSystemSettings_ExecutorMode(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Store(t)
	svc := &SystemSettingsService{Repo: store}

	if got := svc.ExecutorMode(ctx, ""); got != ModeDryRun {
		t.Fatalf("mode=%s want=%s", got, ModeDryRun)
	}
	if got := svc.ExecutorMode(ctx, "LIVE"); got != ModeLive {
		t.Fatalf("mode=%s want=%s", got, ModeLive)
	}
	if err := store.UpsertSystemSetting(ctx, &models.SystemSetting{Key: SettingExecutorMode, Value: datatypes.JSON(`"dry-run"`)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got := svc.ExecutorMode(ctx, ModeLive); got != ModeDryRun {
		t.Fatalf("mode=%s want=%s (stored value wins)", got, ModeDryRun)
	}
	if err := store.UpsertSystemSetting(ctx, &models.SystemSetting{Key: SettingExecutorMode, Value: datatypes.JSON(`"yolo"`)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got := svc.ExecutorMode(ctx, ModeLive); got != ModeLive {
		t.Fatalf("mode=%s want=%s (invalid stored value ignored)", got, ModeLive)
	}
}
