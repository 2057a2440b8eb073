package gormrepository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gnidc/Sheet-Manager-sub001/internal/dbtest"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

func TestStore_RuleLifecycle(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Store(t)

	rule := &models.StrategyRule{
		Name:            "gap",
		Kind:            models.RuleKindGapMomentum,
		Owner:           "ops",
		Params:          []byte(`{}`),
		PerSymbolCapPct: decimal.NewFromFloat(0.1),
		PortfolioCapPct: decimal.NewFromFloat(0.5),
		Status:          models.RuleStatusActive,
	}
	if err := store.CreateRule(ctx, rule); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rule.ID == 0 {
		t.Fatalf("id=0 want assigned")
	}
	if err := store.SetRuleStatus(ctx, rule.ID, models.RuleStatusError, "bad params", true); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err := store.GetRule(ctx, rule.ID)
	if err != nil || got == nil {
		t.Fatalf("get: rule=%v err=%v", got, err)
	}
	if got.Status != models.RuleStatusError || !got.NeedsReview || got.StatusReason != "bad params" {
		t.Fatalf("rule=%+v want error/needs_review", got)
	}

	active := models.RuleStatusActive
	items, err := store.ListRules(ctx, repository.ListRulesParams{Status: &active})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("active rules=%d want=0", len(items))
	}

	missing, err := store.GetRule(ctx, 999)
	if err != nil || missing != nil {
		t.Fatalf("missing=%v err=%v want nil,nil", missing, err)
	}
}

func TestStore_OpenPositionUniquePerRuleSymbol(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Store(t)
	now := time.Now().UTC()

	first := &models.Position{RuleID: 1, Symbol: "005930", Stage: 1, Status: models.PositionStatusOpen, OpenedAt: now}
	if err := store.SavePositionTx(ctx, nil, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	dup := &models.Position{RuleID: 1, Symbol: "005930", Stage: 1, Status: models.PositionStatusOpen, OpenedAt: now}
	if err := store.SavePositionTx(ctx, nil, dup); err == nil {
		t.Fatalf("duplicate open position saved, want unique violation")
	}

	first.Status = models.PositionStatusClosed
	first.ClosedAt = &now
	if err := store.SavePositionTx(ctx, nil, first); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopen := &models.Position{RuleID: 1, Symbol: "005930", Stage: 1, Status: models.PositionStatusOpen, OpenedAt: now}
	if err := store.SavePositionTx(ctx, nil, reopen); err != nil {
		t.Fatalf("reopen after close: %v", err)
	}

	last, err := store.LastClosedPosition(ctx, 1, "005930")
	if err != nil || last == nil || last.ID != first.ID {
		t.Fatalf("last closed=%v err=%v want id=%d", last, err, first.ID)
	}
}

func TestStore_UpdatePendingOrderTx_TerminalIsImmutable(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Store(t)

	order := &models.Order{
		RuleID:         1,
		Symbol:         "000660",
		Side:           models.OrderSideBuy,
		Stage:          1,
		Quantity:       decimal.NewFromInt(3),
		PriceHint:      decimal.NewFromInt(100),
		Amount:         decimal.NewFromInt(300),
		Status:         models.OrderStatusPending,
		ClientOrderID:  "c1",
		IdempotencyKey: "1:000660:buy:1:t1",
	}
	err := store.InTx(ctx, func(tx *gorm.DB) error {
		return store.InsertOrderTx(ctx, tx, order)
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	pending, err := store.FindPendingOrder(ctx, 1, "000660", models.OrderSideBuy, 1)
	if err != nil || pending == nil || pending.ID != order.ID {
		t.Fatalf("pending=%v err=%v want id=%d", pending, err, order.ID)
	}

	if err := store.UpdatePendingOrderTx(ctx, nil, order.ID, map[string]any{"status": models.OrderStatusFilled}); err != nil {
		t.Fatalf("fill: %v", err)
	}
	err = store.UpdatePendingOrderTx(ctx, nil, order.ID, map[string]any{"status": models.OrderStatusFailed})
	if !errors.Is(err, repository.ErrStaleOrder) {
		t.Fatalf("err=%v want ErrStaleOrder", err)
	}
	got, _ := store.GetOrderByIdempotencyKey(ctx, "1:000660:buy:1:t1")
	if got == nil || got.Status != models.OrderStatusFilled {
		t.Fatalf("order=%v want filled", got)
	}

	dup := *order
	dup.ID = 0
	dup.ClientOrderID = "c2"
	if err := store.InsertOrderTx(ctx, nil, &dup); err == nil {
		t.Fatalf("duplicate idempotency key inserted, want unique violation")
	}
}

func TestStore_ReplaceConstituents(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Store(t)

	err := store.ReplaceConstituents(ctx, "kospi200", []models.IndexConstituent{
		{Symbol: "005930", Name: "Samsung Electronics", Market: "KOSPI"},
		{Symbol: "000660", Name: "SK hynix", Market: "KOSPI"},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	err = store.ReplaceConstituents(ctx, "KOSPI200", []models.IndexConstituent{
		{Symbol: "000660", Name: "SK hynix", Market: "KOSPI"},
	})
	if err != nil {
		t.Fatalf("replace again: %v", err)
	}
	items, err := store.ListConstituents(ctx, []string{"KOSPI200"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Symbol != "000660" {
		t.Fatalf("items=%+v want only 000660", items)
	}
}

func TestStore_DecisionLogsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Store(t)

	logs := []models.DecisionLog{
		{RuleID: 7, TickID: "t1", Symbol: "A", Action: "BUY", Outcome: models.DecisionAccepted},
		{RuleID: 7, TickID: "t1", Symbol: "B", Action: "BUY", Outcome: models.DecisionSkipped, Reason: "cap reached"},
		{RuleID: 8, TickID: "t1", Symbol: "C", Action: "HOLD", Outcome: models.DecisionHold},
	}
	if err := store.InsertDecisionLogs(ctx, logs); err != nil {
		t.Fatalf("insert: %v", err)
	}
	ruleID := uint64(7)
	items, err := store.ListDecisionLogs(ctx, repository.ListDecisionLogsParams{RuleID: &ruleID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Symbol != "B" {
		t.Fatalf("items=%+v want [B A]", items)
	}
}
