package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SweepFunc deletes stale rows and reports how many were removed.
type SweepFunc func(ctx context.Context) (int64, error)

const defaultSweepTimeout = 30 * time.Second

// ReaperJob periodically removes expired OTP records and, when retention is
// configured, old device logs. A failed sweep is logged and retried on the
// next tick.
type ReaperJob struct {
	sweepOTPs    SweepFunc
	pruneLogs    SweepFunc
	interval     time.Duration
	sweepTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaperJob builds a reaper. pruneLogs may be nil.
func NewReaperJob(sweepOTPs, pruneLogs SweepFunc, interval time.Duration) *ReaperJob {
	return &ReaperJob{
		sweepOTPs:    sweepOTPs,
		pruneLogs:    pruneLogs,
		interval:     interval,
		sweepTimeout: defaultSweepTimeout,
	}
}

// Start runs one sweep immediately and then one per interval until Stop or
// ctx is cancelled. Calling Start twice has no effect.
func (j *ReaperJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.done != nil {
		return
	}

	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})

	go j.run(ctx, j.done)
	log.Info().Dur("interval", j.interval).Msg("reaper job started")
}

// Stop aborts any in-flight sweep and returns once the loop has exited.
func (j *ReaperJob) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info().Msg("reaper job stopped")
}

func (j *ReaperJob) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *ReaperJob) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, j.sweepTimeout)
	defer cancel()

	j.runCleanup(ctx, "expired otps", j.sweepOTPs)
	if j.pruneLogs != nil {
		j.runCleanup(ctx, "old device logs", j.pruneLogs)
	}
}

func (j *ReaperJob) runCleanup(ctx context.Context, name string, fn SweepFunc) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
