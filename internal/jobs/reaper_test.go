package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(n *atomic.Int32, removed int64, err error) SweepFunc {
	return func(ctx context.Context) (int64, error) {
		n.Add(1)
		return removed, err
	}
}

func TestReaperJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewReaperJob(nil, nil, 5*time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
	})

	t.Run("sweeps on start", func(t *testing.T) {
		var otps, logs atomic.Int32
		job := NewReaperJob(counter(&otps, 2, nil), counter(&logs, 3, nil), time.Hour)

		job.Start(context.Background())
		require.Eventually(t, func() bool { return otps.Load() == 1 && logs.Load() == 1 },
			time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("sweeps on every tick", func(t *testing.T) {
		var otps atomic.Int32
		job := NewReaperJob(counter(&otps, 0, nil), nil, 10*time.Millisecond)

		job.Start(context.Background())
		require.Eventually(t, func() bool { return otps.Load() >= 3 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("keeps running after a failed sweep", func(t *testing.T) {
		var otps atomic.Int32
		job := NewReaperJob(counter(&otps, 0, errors.New("connection refused")), nil, 10*time.Millisecond)

		job.Start(context.Background())
		require.Eventually(t, func() bool { return otps.Load() >= 2 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("stop aborts an in-flight sweep", func(t *testing.T) {
		started := make(chan struct{})
		var aborted atomic.Bool
		blocking := func(ctx context.Context) (int64, error) {
			close(started)
			<-ctx.Done()
			aborted.Store(true)
			return 0, ctx.Err()
		}
		job := NewReaperJob(blocking, nil, time.Hour)

		job.Start(context.Background())
		<-started

		stopped := make(chan struct{})
		go func() {
			job.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("Stop did not return")
		}
		assert.True(t, aborted.Load())
	})

	t.Run("stop without start is a no-op", func(t *testing.T) {
		job := NewReaperJob(nil, nil, time.Hour)
		job.Stop()
	})

	t.Run("no sweeps after stop", func(t *testing.T) {
		var otps atomic.Int32
		job := NewReaperJob(counter(&otps, 0, nil), nil, 5*time.Millisecond)

		job.Start(context.Background())
		require.Eventually(t, func() bool { return otps.Load() >= 1 }, time.Second, time.Millisecond)
		job.Stop()

		after := otps.Load()
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, after, otps.Load())
	})
}
