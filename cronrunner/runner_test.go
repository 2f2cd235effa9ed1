package cronrunner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"classroom-auction/auction"
	"classroom-auction/budget"
	"classroom-auction/domain"
	"classroom-auction/room"
)

func TestRunnerRunsJobsAndSurvivesPanics(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	var runs, panics atomic.Int32
	_, err := r.Add("count", "@every 1s", func(context.Context) { runs.Add(1) })
	require.NoError(t, err)
	_, err = r.Add("boom", "@every 1s", func(context.Context) {
		panics.Add(1)
		panic("boom")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Entries())

	r.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 && panics.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	r.Stop()
}

func TestRunnerRejectsBadSpec(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Add("bad", "every now and then", func(context.Context) {})
	assert.Error(t, err)
	_, err = r.Add("five-field", "*/5 * * * *", func(context.Context) {})
	assert.NoError(t, err)
}

func TestStatsJobLogsRegistrySummary(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reg := room.NewRegistry(room.Config{}, nil, nil)
	defer reg.Close()
	_, err := reg.Create(auction.Options{Owner: "t", Mechanism: domain.MechanismDutch, Budget: budget.Config{Base: 10}})
	require.NoError(t, err)

	StatsJob(reg, zap.New(core))(context.Background())
	entries := logs.FilterMessage("room stats").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["rooms"])
}
