package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headercal/headercal-server/internal/service"
	"github.com/headercal/headercal-server/internal/store"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestAddTask(t *testing.T) {
	s := newTestScheduler(t)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddTask("every-minute", "@every 1m", noop))
	require.NoError(t, s.AddTask("cron-spec", "*/5 * * * *", noop))

	err := s.AddTask("every-minute", "@every 1m", noop)
	assert.ErrorContains(t, err, "already registered")

	err = s.AddTask("bad", "not a schedule", noop)
	assert.Error(t, err)

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "cron-spec", tasks[0].Name)
	assert.Equal(t, "every-minute", tasks[1].Name)
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)
	var calls atomic.Int32
	boom := errors.New("boom")

	require.NoError(t, s.AddTask("count", "@hourly", func(context.Context) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, s.AddTask("fail", "@hourly", func(context.Context) error {
		return boom
	}))

	ctx := context.Background()
	require.NoError(t, s.RunNow(ctx, "count"))
	assert.Equal(t, int32(1), calls.Load())

	assert.ErrorIs(t, s.RunNow(ctx, "fail"), boom)
	assert.ErrorContains(t, s.RunNow(ctx, "missing"), "not found")

	for _, task := range s.Tasks() {
		assert.False(t, task.LastRun.IsZero(), task.Name)
		if task.Name == "fail" {
			assert.Equal(t, "boom", task.LastError)
		}
	}
}

func TestRunNow_SkipsOverlappingRun(t *testing.T) {
	s := newTestScheduler(t)
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32

	require.NoError(t, s.AddTask("slow", "@hourly", func(context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	}))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started

	require.NoError(t, s.RunNow(context.Background(), "slow"))
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStart_RunsScheduledTask(t *testing.T) {
	s := newTestScheduler(t)
	ran := make(chan struct{}, 1)

	require.NoError(t, s.AddTask("tick", "@every 1s", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))
	s.Start()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled task did not run")
	}
}

func TestPresenceSweep(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sessions := service.NewSessionService(st, logger)
	presence := service.NewPresenceService(st, logger)

	require.NoError(t, sessions.OnConnect(ctx, "live"))
	require.NoError(t, sessions.OnConnect(ctx, "stale"))

	s := newTestScheduler(t)
	isLive := func(credential string) bool { return credential == "live" }
	require.NoError(t, s.AddTask(PresenceSweepTask, "@every 1m", PresenceSweep(presence, isLive, logger)))
	require.NoError(t, s.RunNow(ctx, PresenceSweepTask))

	live, err := sessions.Resolve(ctx, "live")
	require.NoError(t, err)
	assert.True(t, live.Identity.Online)

	stale, err := sessions.Resolve(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, stale.Identity.Online)
}
