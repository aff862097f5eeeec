package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"ledgerlens-go/internal/config"
	"ledgerlens-go/internal/model"
)

// UserStore lists accounts whose watches need renewing.
type UserStore interface {
	ListEnabled() ([]model.User, error)
	Save(user *model.User) error
}

// WatchArmer (re)arms the mailbox watch for one grant and returns the
// history id it was established at.
type WatchArmer interface {
	Watch(ctx context.Context, refreshToken string) (uint64, error)
}

// Scheduler periodically re-arms mailbox watches. Watches expire after
// about a week, so every enabled account is re-armed well inside that
// window.
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	config    *config.SchedulerConfig
	users     UserStore
	armer     WatchArmer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, users UserStore, armer WatchArmer) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(),
		config: cfg,
		users:  users,
		armer:  armer,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	schedule := fmt.Sprintf("@every %dh", s.config.WatchRenewHours)

	entryID, err := s.cron.AddFunc(schedule, s.renewWatches)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started, renewing watches every %d hours", s.config.WatchRenewHours)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()

	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// renewWatches re-arms the mailbox watch for every enabled account.
func (s *Scheduler) renewWatches() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping renewal cycle")
		return
	}
	s.mu.RUnlock()

	startTime := time.Now()
	logrus.Info("Starting watch renewal cycle")

	users, err := s.users.ListEnabled()
	if err != nil {
		logrus.Errorf("Failed to list accounts for watch renewal: %v", err)
		return
	}

	for i := range users {
		if err := s.renewWatch(&users[i]); err != nil {
			logrus.Errorf("Failed to renew watch for %s: %v", users[i].Email, err)
		}
	}

	logrus.Infof("Watch renewal cycle completed in %v for %d account(s)", time.Since(startTime), len(users))
}

// renewWatch re-arms one account's watch. Accounts that have never
// synced get their cursor seeded with the watch baseline so the first
// notification has something to diff against.
func (s *Scheduler) renewWatch(user *model.User) error {
	select {
	case <-s.ctx.Done():
		return fmt.Errorf("context cancelled")
	default:
	}

	historyID, err := s.armer.Watch(s.ctx, user.RefreshToken)
	if err != nil {
		return err
	}

	if user.LastHistoryID == nil {
		user.LastHistoryID = &historyID
		if err := s.users.Save(user); err != nil {
			return fmt.Errorf("failed to seed sync baseline: %w", err)
		}
		logrus.Infof("Seeded sync baseline %d for %s", historyID, user.Email)
	}

	return nil
}

// RunOnce runs the watch renewal once (for manual triggering)
func (s *Scheduler) RunOnce() error {
	logrus.Info("Running watch renewal once")
	s.renewWatches()
	return nil
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	if !s.isRunning {
		return time.Time{}
	}

	entry := s.cron.Entry(s.entryID)
	return entry.Next
}

// GetLastRun returns the time of the last run
func (s *Scheduler) GetLastRun() time.Time {
	if !s.isRunning {
		return time.Time{}
	}

	entry := s.cron.Entry(s.entryID)
	return entry.Prev
}

// Wait waits for the scheduler to stop
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
