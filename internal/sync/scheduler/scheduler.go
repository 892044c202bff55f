package scheduler

import (
	"context"
	"log"
	"time"

	"mailtask-backend/internal/sync/usecase"
)

// SyncScheduler runs a batched sync on a fixed interval. It backstops
// the webhook path: accounts still converge when notifications are
// dropped or a provider watch has lapsed.
type SyncScheduler struct {
	syncUsecase usecase.SyncUsecase
	interval    time.Duration
	maxSources  int
	stopChan    chan struct{}
}

// NewSyncScheduler creates a new scheduler
func NewSyncScheduler(syncUsecase usecase.SyncUsecase, interval time.Duration, maxSources int) *SyncScheduler {
	return &SyncScheduler{
		syncUsecase: syncUsecase,
		interval:    interval,
		maxSources:  maxSources,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *SyncScheduler) Start() {
	log.Printf("[SyncScheduler] Starting periodic sync (interval: %s, maxSources: %d)", s.interval, s.maxSources)

	go func() {
		// Run immediately on start
		s.runOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stopChan:
				log.Println("[SyncScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop() {
	close(s.stopChan)
}

func (s *SyncScheduler) runOnce() {
	result, err := s.syncUsecase.SyncAll(context.Background(), s.maxSources)
	if err != nil {
		log.Printf("[SyncScheduler] Batched sync failed: %v", err)
		return
	}
	log.Printf("[SyncScheduler] Batched sync done: processed=%d skipped=%d", result.Processed, result.Skipped)
}
