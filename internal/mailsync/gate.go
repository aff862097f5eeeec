package mailsync

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"ledgerlens-go/internal/metrics"
	"ledgerlens-go/internal/model"
)

// UserStore resolves and persists user accounts for the gate.
type UserStore interface {
	FindByEmail(email string) (*model.User, error)
	Save(user *model.User) error
}

// Syncer performs one incremental mailbox sync for a user.
type Syncer interface {
	Sync(ctx context.Context, user *model.User, notifiedHistoryID uint64) error
}

// Gate filters inbound push notifications and dispatches the ones that
// matter onto a bounded worker pool. Stale notifications, unknown
// addresses and addresses with a sync already in flight are dropped; a
// sync in flight will observe any history the dropped notification
// announced.
type Gate struct {
	users     UserStore
	syncer    Syncer
	sequencer *Sequencer
	metrics   *metrics.Metrics

	jobs chan func()
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewGate(users UserStore, syncer Syncer, sequencer *Sequencer, m *metrics.Metrics, workers, queueSize int) *Gate {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	g := &Gate{
		users:     users,
		syncer:    syncer,
		sequencer: sequencer,
		metrics:   m,
		jobs:      make(chan func(), queueSize),
	}

	for i := 0; i < workers; i++ {
		g.wg.Add(1)
		go g.worker()
	}
	return g
}

func (g *Gate) worker() {
	defer g.wg.Done()
	for job := range g.jobs {
		g.runJob(job)
	}
}

func (g *Gate) runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Panic in sync job: %v", r)
		}
	}()
	job()
}

// HandleNotification decides what to do with one push notification.
// It never blocks the caller: work is queued, and a full queue drops
// the notification (the next one will cover the same history).
func (g *Gate) HandleNotification(email string, historyID uint64) error {
	g.metrics.NotificationsReceived.Inc()

	// An unknown address means an inconsistent sender, not a transient
	// condition. The error goes back to the caller.
	user, err := g.users.FindByEmail(email)
	if err != nil {
		return err
	}

	if !user.Enabled {
		logrus.Debugf("Notification for disabled account %s, ignoring", email)
		g.metrics.NotificationsSkipped.Inc()
		return nil
	}

	// First notification ever seen for this account: record the
	// baseline and stop. History before the baseline is out of scope.
	if user.LastHistoryID == nil {
		user.LastHistoryID = &historyID
		if err := g.users.Save(user); err != nil {
			return err
		}
		logrus.Infof("Recorded sync baseline %d for %s", historyID, email)
		g.metrics.NotificationsSkipped.Inc()
		return nil
	}

	if historyID <= *user.LastHistoryID {
		logrus.Debugf("Stale notification for %s: historyId %d <= cursor %d", email, historyID, *user.LastHistoryID)
		g.metrics.NotificationsSkipped.Inc()
		return nil
	}

	g.enqueue(user, historyID)
	return nil
}

func (g *Gate) enqueue(user *model.User, historyID uint64) {
	email := user.Email

	// Claim the address on the caller's goroutine so a busy user's
	// notification is dropped right away instead of occupying a queue
	// slot.
	if !g.sequencer.TryAdmit(email) {
		logrus.Debugf("Sync already in flight for %s, dropping notification", email)
		g.metrics.NotificationsSkipped.Inc()
		return
	}

	job := func() {
		g.sequencer.Run(email, func() {
			if err := g.syncer.Sync(context.Background(), user, historyID); err != nil {
				logrus.Errorf("Mailbox sync for %s failed: %v", email, err)
			}
		})
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		g.sequencer.Release(email)
		return
	}

	select {
	case g.jobs <- job:
		g.metrics.NotificationsAdmitted.Inc()
	default:
		g.sequencer.Release(email)
		logrus.Warnf("Sync queue full, dropping notification for %s", email)
		g.metrics.NotificationsSkipped.Inc()
	}
}

// Stop drains queued work and waits for in-flight syncs to finish.
func (g *Gate) Stop() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	close(g.jobs)
	g.mu.Unlock()

	g.wg.Wait()
}
