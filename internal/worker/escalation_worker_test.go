package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSweeper struct {
	mu    sync.Mutex
	runs  int
	times []time.Time
	err   error
}

func (s *recordingSweeper) RunSweep(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.times = append(s.times, now)
	return s.err
}

func (s *recordingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func TestWorkerSweepsOnEachTick(t *testing.T) {
	sweeper := &recordingSweeper{}
	w := NewEscalationWorker(sweeper, 10*time.Millisecond, nil)

	w.Start(context.Background())
	require.Eventually(t, func() bool { return sweeper.count() >= 3 },
		2*time.Second, 5*time.Millisecond)
	w.Stop()
}

func TestWorkerStopHaltsLoop(t *testing.T) {
	sweeper := &recordingSweeper{}
	w := NewEscalationWorker(sweeper, 10*time.Millisecond, nil)

	w.Start(context.Background())
	require.Eventually(t, func() bool { return sweeper.count() >= 1 },
		2*time.Second, 5*time.Millisecond)
	w.Stop()

	settled := sweeper.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, sweeper.count())
}

func TestWorkerKeepsTickingAfterSweepErrors(t *testing.T) {
	sweeper := &recordingSweeper{err: errors.New("db down")}
	w := NewEscalationWorker(sweeper, 10*time.Millisecond, nil)

	w.Start(context.Background())
	require.Eventually(t, func() bool { return sweeper.count() >= 2 },
		2*time.Second, 5*time.Millisecond)
	w.Stop()
}

func TestWorkerStopIsIdempotentAndSafeWithoutStart(t *testing.T) {
	w := NewEscalationWorker(&recordingSweeper{}, time.Minute, nil)
	// Stop before Start must not block.
	w.Stop()
	w.Stop()
}
