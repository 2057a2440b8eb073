package cronrunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnidc/Sheet-Manager-sub001/internal/dbtest"
	"github.com/gnidc/Sheet-Manager-sub001/internal/execution"
	"github.com/gnidc/Sheet-Manager-sub001/internal/runner"
	"github.com/gnidc/Sheet-Manager-sub001/internal/service"
)

type countingTicks struct {
	calls int
	err   error
}

func (c *countingTicks) RunActive(context.Context, runner.TickOptions) ([]runner.TickReport, error) {
	c.calls++
	return nil, c.err
}

type countingSync struct{ calls int }

func (c *countingSync) SyncPending(context.Context, time.Duration) (execution.SyncReport, error) {
	c.calls++
	return execution.SyncReport{}, nil
}

func TestJobs_Register(t *testing.T) {
	r := New(nil, context.Background(), nil)
	jobs := Jobs{TickSpec: "0 */5 * * * *", OrderSyncSpec: "@every 30s", Ticks: &countingTicks{}, Orders: &countingSync{}}
	require.NoError(t, jobs.Register(r))
	assert.Equal(t, 2, r.Entries())

	bad := Jobs{TickSpec: "not a schedule", Ticks: &countingTicks{}}
	assert.Error(t, bad.Register(New(nil, context.Background(), nil)))
}

func TestJobs_RespectFeatureSwitches(t *testing.T) {
	ctx := context.Background()
	settings := &service.SystemSettingsService{Repo: dbtest.Store(t)}
	ticks := &countingTicks{err: runner.ErrRunnerDisabled}
	syncer := &countingSync{}
	jobs := Jobs{Ticks: ticks, Orders: syncer, Settings: settings}

	assert.NoError(t, jobs.tick(ctx), "a disabled runner is not a job failure")
	assert.Equal(t, 1, ticks.calls)

	require.NoError(t, jobs.syncOrders(ctx))
	assert.Equal(t, 1, syncer.calls)

	require.NoError(t, settings.SetEnabled(ctx, service.FeatureOrderSync, false))
	require.NoError(t, jobs.syncOrders(ctx))
	assert.Equal(t, 1, syncer.calls)
}
