// Package scheduler drives periodic refreshes of the synchronized
// conference state.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/confsync/confsync/internal/logger"
)

// Updater is the slice of the repository the scheduler drives.
type Updater interface {
	Update(ctx context.Context) error
}

// SyncScheduler refreshes the cached conference state on a fixed interval.
// A failed refresh is logged and retried on the next tick; the repository
// keeps serving the previous snapshot in between.
//
// NOTE: The last-refresh record is in-memory only.
type SyncScheduler struct {
	repo     Updater
	interval time.Duration

	mu       sync.Mutex
	lastSync time.Time
	lastErr  error
}

func NewSyncScheduler(repo Updater, interval time.Duration) *SyncScheduler {
	return &SyncScheduler{
		repo:     repo,
		interval: interval,
	}
}

func (s *SyncScheduler) Start(ctx context.Context) {
	logger.WithComponent("sched").Debugf("starting sync scheduler with interval: %v", s.interval)
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.WithComponent("sched").Info("sync scheduler stopped")
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

func (s *SyncScheduler) tick(ctx context.Context) {
	logger.WithComponent("sched").Debugf("sync tick started")
	err := s.repo.Update(ctx)

	s.mu.Lock()
	s.lastSync = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		logger.WithComponent("sched").Errorf("refresh failed: %v", err)
		return
	}
	logger.WithComponent("sched").Debugf("sync tick completed")
}

// LastResult reports when the most recent refresh ran and how it went.
// A zero time means no refresh has completed yet.
func (s *SyncScheduler) LastResult() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync, s.lastErr
}
