// Package scheduler drives periodic sync rounds against an Engine with a
// single cooperative loop: sleep, sync, log, repeat, until stopped.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/syncledger/backend/internal/logging"
	syncpkg "github.com/kimhsiao/syncledger/backend/internal/sync"
)

// Scheduler runs Engine.Sync on a timer. Manual triggers bypass the timer
// entirely and call the Engine directly; Stop flips a flag checked at
// each iteration boundary, so an in-flight round always completes before
// the loop exits.
type Scheduler struct {
	engine *syncpkg.Engine

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
}

// New returns a Scheduler bound to engine. intervalMinutes must be >= 5
// per the SyncConfig contract; the caller is expected to have already
// validated the config before constructing the Scheduler.
func New(engine *syncpkg.Engine, intervalMinutes int) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: time.Duration(intervalMinutes) * time.Minute,
	}
}

// IsRunning reports whether the auto-sync loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// StartAutoSync starts the cooperative loop: sleep for interval, invoke
// Engine.Sync, log any error, and resume. It is a no-op if already
// running. The loop runs on its own goroutine; call Stop to end it.
func (s *Scheduler) StartAutoSync(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	go s.loop(ctx, stopCh, doneCh)
}

func (s *Scheduler) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setRunning(false)
			return
		case <-stopCh:
			s.setRunning(false)
			return
		case <-ticker.C:
			select {
			case <-stopCh:
				s.setRunning(false)
				return
			default:
			}

			if _, err := s.engine.Sync(ctx); err != nil {
				logging.Error("scheduled sync round failed", err, map[string]interface{}{
					"interval_minutes": s.interval.Minutes(),
				})
			}
		}
	}
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

// Stop flips the running flag; the loop exits by its next iteration
// boundary without interrupting an in-flight round. Stop blocks until the
// loop has actually exited, so callers can rely on IsRunning() being
// false immediately after it returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// TriggerNow runs a sync round immediately, bypassing the timer
// entirely. It is equivalent to calling Engine.Sync directly.
func (s *Scheduler) TriggerNow(ctx context.Context) (*syncpkg.SyncResult, error) {
	return s.engine.Sync(ctx)
}
