// Package scheduler triggers sync passes: a periodic ticker plus
// lifecycle-driven triggers from the UI shell (foreground resume). At most
// one pass runs at a time; a trigger arriving mid-pass is dropped rather
// than queued.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/halyard-app/halyard-core/internal/charter"
	"github.com/halyard-app/halyard-core/internal/logging"
	"github.com/halyard-app/halyard-core/internal/syncq"
)

// Config holds scheduler configuration.
type Config struct {
	Interval    time.Duration // how often a periodic pass runs
	PassTimeout time.Duration // bound for one full pass
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Minute,
		PassTimeout: 5 * time.Minute,
	}
}

// Scheduler runs background sync passes over the queue service and the
// charter orchestrator.
type Scheduler struct {
	queue    *syncq.Service
	charters *charter.Service
	config   Config

	mu         sync.Mutex
	running    bool
	inProgress bool
	lastPass   time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Scheduler.
func New(queue *syncq.Service, charters *charter.Service, config Config) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.PassTimeout <= 0 {
		config.PassTimeout = DefaultConfig().PassTimeout
	}
	return &Scheduler{
		queue:    queue,
		charters: charters,
		config:   config,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the periodic loop. Safe to call once; later calls are
// no-ops until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	logging.Info("Background sync scheduler started",
		map[string]interface{}{"interval": s.config.Interval.String()})
}

// Stop halts the periodic loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info("Background sync scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

// TriggerSync requests an immediate pass ahead of the periodic tick, used
// on app foreground resume. Returns false when a pass is already in
// flight; the trigger is dropped, never run concurrently against the same
// queue.
func (s *Scheduler) TriggerSync(ctx context.Context) bool {
	s.mu.Lock()
	if s.inProgress {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	go s.runPass(ctx)
	return true
}

// runPass executes one drain + charter sync, bounded by the pass timeout.
func (s *Scheduler) runPass(ctx context.Context) {
	s.mu.Lock()
	if s.inProgress {
		s.mu.Unlock()
		logging.Debug("Sync pass already in progress, skipping")
		return
	}
	s.inProgress = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inProgress = false
		s.lastPass = time.Now()
		s.mu.Unlock()
	}()

	passCtx, cancel := context.WithTimeout(ctx, s.config.PassTimeout)
	defer cancel()

	queueSummary, err := s.queue.Drain(passCtx)
	if err != nil {
		logging.Error("Queue drain failed", err)
	}

	charterSummary, err := s.charters.SyncAll(passCtx)
	if err != nil {
		logging.Error("Charter sync failed", err)
	}

	logging.Info("Sync pass completed", map[string]interface{}{
		"queue_succeeded":   queueSummary.Succeeded,
		"queue_failed":      queueSummary.Failed,
		"charter_succeeded": charterSummary.Succeeded,
		"charter_failed":    charterSummary.Failed,
	})
}

// Status reports the scheduler's view of sync health.
type Status struct {
	Running      bool
	InProgress   bool
	LastPass     time.Time
	QueuePending int
	QueueFailed  int
}

// GetStatus returns the current status, including queue counts for the
// UI's pending/failed badges.
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	status := Status{
		Running:    s.running,
		InProgress: s.inProgress,
		LastPass:   s.lastPass,
	}
	s.mu.Unlock()

	pending, failed, err := s.queue.Counts()
	if err != nil {
		logging.Error("Failed to read queue counts", err)
		return status
	}
	status.QueuePending = pending
	status.QueueFailed = failed
	return status
}
