package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs one escalation cycle at the given instant.
type Sweeper interface {
	RunSweep(ctx context.Context, now time.Time) error
}

// EscalationWorker drives the recurring escalation sweep as an owned
// background task with explicit shutdown. Sweeps run on a single
// goroutine, so ticks never overlap; if one sweep outlasts the
// interval the ticker simply drops the missed ticks.
type EscalationWorker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewEscalationWorker constructs the worker.
func NewEscalationWorker(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *EscalationWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationWorker{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Sweep errors are logged and the loop
// waits for the next tick; nothing here terminates the process.
func (w *EscalationWorker) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("escalation worker started", zap.Duration("interval", w.interval))
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("escalation worker stopped")
				return
			case now := <-ticker.C:
				if err := w.sweeper.RunSweep(ctx, now); err != nil {
					w.logger.Warn("escalation sweep failed; waiting for next tick", zap.Error(err))
				}
			}
		}
	}()
}

// Stop signals the loop and waits for the in-flight sweep to finish.
func (w *EscalationWorker) Stop() {
	w.once.Do(func() {
		if w.cancel == nil {
			return
		}
		w.cancel()
		<-w.done
	})
}
