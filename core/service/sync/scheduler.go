package sync

import (
	"context"
	"sync"
	"time"

	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/pkg/apperr"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

// Scheduler runs periodic sync passes over every active account.
// Accounts are processed sequentially within a pass; an account whose
// credentials are invalid is skipped, not failed.
type Scheduler struct {
	fetcher  *Fetcher
	accounts out.AccountRepository
	interval time.Duration
	daysBack int
	maxCount int

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewScheduler creates a sync scheduler.
func NewScheduler(fetcher *Fetcher, accounts out.AccountRepository, interval time.Duration, daysBack, maxCount int) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		fetcher:  fetcher,
		accounts: accounts,
		interval: interval,
		daysBack: daysBack,
		maxCount: maxCount,
	}
}

// Start launches the background loop. The first pass runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped = make(chan struct{})

	go func() {
		defer close(s.stopped)
		logger.Info("[Scheduler] Sync loop started, interval=%s", s.interval)

		s.runPass(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runPass(ctx)
			case <-ctx.Done():
				logger.Info("[Scheduler] Sync loop stopped")
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for the current pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (s *Scheduler) runPass(ctx context.Context) {
	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		logger.WithError(err).Error("[Scheduler] Failed to list active accounts")
		return
	}

	for _, account := range accounts {
		if ctx.Err() != nil {
			return
		}
		_, err := s.fetcher.FetchSince(ctx, account, s.daysBack, s.maxCount, false)
		if err != nil {
			if apperr.IsCredentialInvalid(err) {
				logger.Warn("[Scheduler] Skipping account %d: %v", account.ID, err)
				continue
			}
			logger.WithError(err).Error("[Scheduler] Sync failed for account %d", account.ID)
		}
	}
}
