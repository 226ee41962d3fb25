package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"valshop-api/internal/repository"
)

// CleanupConfig holds configuration for the cleanup scheduler.
type CleanupConfig struct {
	// PendingThreshold is how long a second-factor challenge may stay
	// unanswered before its record is deleted.
	// Default: 15 minutes
	PendingThreshold time.Duration

	// CleanupInterval is how often the cleanup runs.
	// Default: 10 minutes
	CleanupInterval time.Duration

	// InitialDelay postpones the first run after Start.
	InitialDelay time.Duration
}

// DefaultCleanupConfig returns default cleanup configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		PendingThreshold: 15 * time.Minute,
		CleanupInterval:  10 * time.Minute,
		InitialDelay:     1 * time.Minute,
	}
}

// Purger is anything the scheduler can sweep on each tick.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// PurgerFunc adapts a function to Purger.
type PurgerFunc func(ctx context.Context) (int64, error)

func (f PurgerFunc) Purge(ctx context.Context) (int64, error) { return f(ctx) }

// CleanupScheduler runs periodic cleanup of abandoned login records and
// any additional purgers such as the file cache.
type CleanupScheduler struct {
	repo      repository.UserRepository
	extra     []Purger
	config    CleanupConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewCleanupScheduler creates a new cleanup scheduler.
func NewCleanupScheduler(repo repository.UserRepository, config CleanupConfig) *CleanupScheduler {
	if config.PendingThreshold == 0 {
		config.PendingThreshold = 15 * time.Minute
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 10 * time.Minute
	}

	return &CleanupScheduler{
		repo:   repo,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// AddPurger registers an extra sweep run on every tick.
func (s *CleanupScheduler) AddPurger(p Purger) {
	s.mu.Lock()
	s.extra = append(s.extra, p)
	s.mu.Unlock()
}

// Start begins the cleanup scheduler.
func (s *CleanupScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.CleanupInterval)
	s.mu.Unlock()

	log.Printf("[CleanupScheduler] Started - Interval: %v, Pending threshold: %v",
		s.config.CleanupInterval, s.config.PendingThreshold)

	go func() {
		select {
		case <-time.After(s.config.InitialDelay):
			s.runCleanup()
		case <-s.stopCh:
		}
	}()

	go s.run()
}

// run is the main cleanup loop.
func (s *CleanupScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runCleanup()
		case <-s.stopCh:
			log.Printf("[CleanupScheduler] Stopped")
			return
		}
	}
}

// runCleanup performs the actual cleanup.
func (s *CleanupScheduler) runCleanup() {
	deleted, err := s.RunNow()
	if err != nil {
		log.Printf("[CleanupScheduler] Error during cleanup: %v", err)
	}

	if deleted > 0 {
		log.Printf("[CleanupScheduler] Cleaned up %d stale records", deleted)
	}
}

// Stop stops the cleanup scheduler.
func (s *CleanupScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow triggers an immediate cleanup run and returns the number of
// removed entries. The registered purgers run even when the session store
// fails; that failure is returned after them.
func (s *CleanupScheduler) RunNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, storeErr := s.repo.PurgePending(ctx, s.config.PendingThreshold)
	if storeErr != nil {
		log.Printf("[CleanupScheduler] Pending 2FA purge failed: %v", storeErr)
		deleted = 0
		storeErr = fmt.Errorf("purge pending logins: %w", storeErr)
	}

	s.mu.Lock()
	extra := append([]Purger(nil), s.extra...)
	s.mu.Unlock()

	for _, p := range extra {
		n, err := p.Purge(ctx)
		if err != nil {
			log.Printf("[CleanupScheduler] Purger failed: %v", err)
			continue
		}
		deleted += n
	}
	return deleted, storeErr
}
