package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnidc/Sheet-Manager-sub001/internal/dbtest"
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
	"github.com/gnidc/Sheet-Manager-sub001/internal/repository"
)

func TestRecord_PersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Store(t)
	j := New(store, nil)

	all, cancelAll := j.Subscribe(0)
	defer cancelAll()
	only2, cancel2 := j.Subscribe(2)
	defer cancel2()

	err := j.Record(ctx, []models.DecisionLog{
		{RuleID: 1, TickID: "t1", Symbol: "AAPL", Action: "BUY", Outcome: models.DecisionAccepted},
		{RuleID: 2, TickID: "t1", Symbol: "MSFT", Action: "HOLD", Outcome: models.DecisionHold},
	})
	require.NoError(t, err)

	got := []string{(<-all).Symbol, (<-all).Symbol}
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)
	assert.Equal(t, "MSFT", (<-only2).Symbol)
	assert.Len(t, only2, 0)

	ruleID := uint64(1)
	items, err := store.ListDecisionLogs(ctx, repository.ListDecisionLogsParams{RuleID: &ruleID})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSubscribe_CancelClosesAndSlowReaderDoesNotBlock(t *testing.T) {
	j := New(nil, nil)
	ch, cancel := j.Subscribe(0)
	assert.Equal(t, 1, j.Subscribers())

	batch := make([]models.DecisionLog, subscriberBuffer+10)
	require.NoError(t, j.Record(context.Background(), batch))
	assert.Len(t, ch, subscriberBuffer)

	cancel()
	cancel()
	assert.Equal(t, 0, j.Subscribers())
	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
}
