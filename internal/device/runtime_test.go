package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/fieldlink/internal/gatt"
	"github.com/muurk/fieldlink/internal/store"
)

func runAsync(ctx context.Context, r *Runtime) <-chan error {
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runtime did not stop")
		return nil
	}
}

func TestRuntimeDispatchesInOrder(t *testing.T) {
	state := NewState(AppRunning)
	r := NewRuntime(state, nil)

	var got []string
	r.HandleWrite(gatt.DiagCommandIn, func(_ context.Context, v []byte) {
		got = append(got, string(v))
		if string(v) == "last" {
			r.ScheduleRestart("test", 0)
		}
	})

	ctx := context.Background()
	for _, v := range []string{"one", "two", "last"} {
		require.NoError(t, r.Post(ctx, Write{Char: gatt.DiagCommandIn, Value: []byte(v)}))
	}

	err := waitRun(t, runAsync(ctx, r))
	assert.ErrorIs(t, err, ErrRestart)
	assert.Equal(t, []string{"one", "two", "last"}, got)
}

func TestRuntimeConnectionEvents(t *testing.T) {
	state := NewState(Provisioning)
	r := NewRuntime(state, nil)

	var seen []bool
	r.OnConnection(func(connected bool, _ string) {
		seen = append(seen, connected)
		if !connected {
			r.ScheduleRestart("done", 0)
		}
	})

	ctx := context.Background()
	require.NoError(t, r.Post(ctx, ClientConnected{Remote: "127.0.0.1:5000"}))
	require.NoError(t, r.Post(ctx, ClientDisconnected{Remote: "127.0.0.1:5000"}))

	err := waitRun(t, runAsync(ctx, r))
	assert.ErrorIs(t, err, ErrRestart)
	assert.Equal(t, []bool{true, false}, seen)
}

func TestRuntimeNetworkEvents(t *testing.T) {
	state := NewState(Provisioning)
	settings := store.NewSettings(store.NewMemory())
	n := NewNetwork(state, settings, &fakeDriver{}, &recordJournal{})
	r := NewRuntime(state, n)

	state.OnLifecycleChange(func(_, to Lifecycle) {
		if to == AppRunning {
			r.ScheduleRestart("provisioned", 0)
		}
	})

	ctx := context.Background()
	require.NoError(t, r.Post(ctx, LinkConnected{}))
	require.NoError(t, r.Post(ctx, AddressAcquired{Address: "192.168.4.2"}))

	err := waitRun(t, runAsync(ctx, r))
	assert.ErrorIs(t, err, ErrRestart)
	assert.Equal(t, NetConnected, state.Network)
	assert.Equal(t, "192.168.4.2", state.Address)
	assert.Equal(t, AppRunning, state.Lifecycle())
}

func TestRuntimePeriodic(t *testing.T) {
	r := NewRuntime(NewState(AppRunning), nil)

	ticks := 0
	r.Every(5*time.Millisecond, func(context.Context) {
		ticks++
		if ticks == 3 {
			r.ScheduleRestart("ticks", 0)
		}
	})

	err := waitRun(t, runAsync(context.Background(), r))
	assert.ErrorIs(t, err, ErrRestart)
	assert.Equal(t, 3, ticks)
}

func TestRuntimeRestartGrace(t *testing.T) {
	r := NewRuntime(NewState(AppRunning), nil)
	r.HandleWrite(gatt.FwControlIn, func(context.Context, []byte) {
		r.ScheduleRestart("first", 30*time.Millisecond)
		r.ScheduleRestart("second", 0)
	})

	ctx := context.Background()
	require.NoError(t, r.Post(ctx, Write{Char: gatt.FwControlIn, Value: []byte("END")}))

	start := time.Now()
	err := waitRun(t, runAsync(ctx, r))
	assert.ErrorIs(t, err, ErrRestart)
	assert.Contains(t, err.Error(), "first")
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRuntimeCancel(t *testing.T) {
	r := NewRuntime(NewState(AppRunning), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, r)
	cancel()

	err := waitRun(t, done)
	assert.True(t, errors.Is(err, context.Canceled))

	// A runtime only runs once
	assert.Error(t, r.Run(context.Background()))
}

func TestRuntimePostHonoursContext(t *testing.T) {
	r := NewRuntime(NewState(AppRunning), nil)
	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < DefaultQueueSize; i++ {
		require.NoError(t, r.Post(ctx, LinkConnected{}))
	}
	cancel()
	assert.ErrorIs(t, r.Post(ctx, LinkConnected{}), context.Canceled)
}
