// ABOUTME: Interval runner for the reminder sweep
// ABOUTME: Runs Sweep on a ticker until its context ends and keeps simple run statistics
package reminders

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper is what the worker runs on every tick.
type Sweeper interface {
	Sweep(ctx context.Context) (*SweepResult, error)
}

type Stats struct {
	Runs       int
	Errors     int
	LastRun    time.Time
	LastResult *SweepResult
	LastError  string
}

// Worker runs a Sweeper on a fixed interval.
type Worker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger

	mu    gosync.Mutex
	stats Stats
}

func NewWorker(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{sweeper: sweeper, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reminder worker started", zap.Duration("interval", w.interval))
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	result, err := w.sweeper.Sweep(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.Runs++
	w.stats.LastRun = time.Now()
	if err != nil {
		w.stats.Errors++
		w.stats.LastError = err.Error()
		w.logger.Error("reminder sweep failed", zap.Error(err))
		return
	}
	w.stats.LastResult = result
	w.stats.LastError = ""
}

func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
