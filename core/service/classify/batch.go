package classify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/pkg/apperr"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

// batchTimeout bounds a single background sweep.
const batchTimeout = 30 * time.Minute

// StartResult reports whether a batch run was launched.
type StartResult struct {
	Started bool   `json:"started"`
	Reason  string `json:"reason,omitempty"`
	Pending int    `json:"pending"`
}

// BatchStatus is a point-in-time view of a user's batch state.
type BatchStatus struct {
	Running bool `json:"running"`
	Pending int  `json:"pending"`
}

// BatchScheduler runs at most one categorization sweep per user at a
// time. The running set is the single source of truth; the flag is set
// under the lock before the goroutine launches and cleared when the
// sweep ends, so two concurrent Start calls can never both win.
type BatchScheduler struct {
	engine   *Engine
	messages out.MessageRepository

	mu      sync.Mutex
	running map[uuid.UUID]bool
}

// NewBatchScheduler creates a batch scheduler.
func NewBatchScheduler(engine *Engine, messages out.MessageRepository) *BatchScheduler {
	return &BatchScheduler{
		engine:   engine,
		messages: messages,
		running:  map[uuid.UUID]bool{},
	}
}

// Start launches a background sweep over the user's uncategorized
// messages. If a sweep is already running for this user, Start reports
// that instead of stacking a second one.
func (s *BatchScheduler) Start(ctx context.Context, userID uuid.UUID, allowedAccountIDs []int64) (*StartResult, error) {
	pending, err := s.messages.CountUncategorized(ctx, allowedAccountIDs)
	if err != nil {
		return nil, apperr.DatabaseError("count uncategorized", err)
	}

	s.mu.Lock()
	if s.running[userID] {
		s.mu.Unlock()
		return &StartResult{Started: false, Reason: "already_running", Pending: pending}, nil
	}
	s.running[userID] = true
	s.mu.Unlock()

	if pending == 0 {
		s.clear(userID)
		return &StartResult{Started: false, Reason: "nothing_to_do", Pending: 0}, nil
	}

	// The sweep outlives the request; it gets its own lifetime.
	go s.sweep(userID, allowedAccountIDs)

	return &StartResult{Started: true, Pending: pending}, nil
}

// Status reports whether a sweep is running and the live pending count.
func (s *BatchScheduler) Status(ctx context.Context, userID uuid.UUID, allowedAccountIDs []int64) (*BatchStatus, error) {
	pending, err := s.messages.CountUncategorized(ctx, allowedAccountIDs)
	if err != nil {
		return nil, apperr.DatabaseError("count uncategorized", err)
	}

	s.mu.Lock()
	running := s.running[userID]
	s.mu.Unlock()

	return &BatchStatus{Running: running, Pending: pending}, nil
}

func (s *BatchScheduler) sweep(userID uuid.UUID, allowedAccountIDs []int64) {
	defer s.clear(userID)

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	msgs, err := s.engine.messages.ListUncategorized(ctx, allowedAccountIDs)
	if err != nil {
		logger.WithError(err).Error("[BatchScheduler.sweep] Failed to list uncategorized messages for user %s", userID)
		return
	}

	done, failed := 0, 0
	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.engine.categorizeMessage(ctx, msg); err != nil {
			// Classifier trouble already degraded inside the engine,
			// so only persistence errors land here. Skip and move on;
			// the message stays uncategorized and the next sweep
			// retries it.
			logger.WithError(err).Warn("[BatchScheduler.sweep] Failed to categorize message %s", msg.ID)
			failed++
			continue
		}
		done++
	}

	logger.Info("[BatchScheduler.sweep] User %s: categorized=%d failed=%d", userID, done, failed)
}

func (s *BatchScheduler) clear(userID uuid.UUID) {
	s.mu.Lock()
	delete(s.running, userID)
	s.mu.Unlock()
}
