package mailsync

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlens-go/internal/metrics"
	"ledgerlens-go/internal/model"
	"ledgerlens-go/internal/repository"
)

// Shared across the package's tests; promauto registers globally.
var testMetrics = metrics.NewMetrics()

// fakeUserStore hands out a fresh copy per load, the way the real
// repository materializes a new row per query.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*model.User
	saves int
}

func newFakeUserStore(users ...*model.User) *fakeUserStore {
	m := make(map[string]*model.User)
	for _, u := range users {
		m[u.Email] = u
	}
	return &fakeUserStore{users: m}
}

func (f *fakeUserStore) FindByEmail(email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrUserNotFound, email)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) Save(user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	cp := *user
	f.users[user.Email] = &cp
	return nil
}

func (f *fakeUserStore) cursorOf(email string) *uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		return u.LastHistoryID
	}
	return nil
}

type fakeSyncer struct {
	mu    sync.Mutex
	calls []uint64
	err   error
}

func (f *fakeSyncer) Sync(ctx context.Context, user *model.User, notifiedHistoryID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifiedHistoryID)
	return f.err
}

func (f *fakeSyncer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func cursor(v uint64) *uint64 { return &v }

func TestGateAdmitsFreshNotification(t *testing.T) {
	user := &model.User{ID: 1, Email: "a@example.com", Enabled: true, LastHistoryID: cursor(100)}
	users := newFakeUserStore(user)
	syncer := &fakeSyncer{}
	g := NewGate(users, syncer, NewSequencer(), testMetrics, 1, 4)

	require.NoError(t, g.HandleNotification("a@example.com", 105))
	g.Stop()

	require.Equal(t, 1, syncer.callCount())
	assert.Equal(t, uint64(105), syncer.calls[0])
}

func TestGateSkipsStaleNotification(t *testing.T) {
	user := &model.User{ID: 1, Email: "a@example.com", Enabled: true, LastHistoryID: cursor(100)}
	users := newFakeUserStore(user)
	syncer := &fakeSyncer{}
	g := NewGate(users, syncer, NewSequencer(), testMetrics, 1, 4)

	require.NoError(t, g.HandleNotification("a@example.com", 100))
	require.NoError(t, g.HandleNotification("a@example.com", 90))
	g.Stop()

	assert.Zero(t, syncer.callCount())
}

func TestGateRecordsBaselineOnFirstNotification(t *testing.T) {
	user := &model.User{ID: 1, Email: "a@example.com", Enabled: true}
	users := newFakeUserStore(user)
	syncer := &fakeSyncer{}
	g := NewGate(users, syncer, NewSequencer(), testMetrics, 1, 4)

	require.NoError(t, g.HandleNotification("a@example.com", 50))
	g.Stop()

	// No sync: the notification only established the baseline.
	assert.Zero(t, syncer.callCount())
	stored := users.cursorOf("a@example.com")
	require.NotNil(t, stored)
	assert.Equal(t, uint64(50), *stored)
	assert.Equal(t, 1, users.saves)
}

func TestGateRejectsUnknownAddress(t *testing.T) {
	users := newFakeUserStore()
	syncer := &fakeSyncer{}
	g := NewGate(users, syncer, NewSequencer(), testMetrics, 1, 4)

	err := g.HandleNotification("nobody@example.com", 10)
	g.Stop()

	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.Zero(t, syncer.callCount())
}

func TestGateIgnoresDisabledAccount(t *testing.T) {
	user := &model.User{ID: 1, Email: "a@example.com", Enabled: false, LastHistoryID: cursor(1)}
	users := newFakeUserStore(user)
	syncer := &fakeSyncer{}
	g := NewGate(users, syncer, NewSequencer(), testMetrics, 1, 4)

	require.NoError(t, g.HandleNotification("a@example.com", 10))
	g.Stop()

	assert.Zero(t, syncer.callCount())
}

func TestGateSkipsBusyUserBeforeQueueing(t *testing.T) {
	user := &model.User{ID: 1, Email: "a@example.com", Enabled: true, LastHistoryID: cursor(100)}
	users := newFakeUserStore(user)
	syncer := &fakeSyncer{}
	sequencer := NewSequencer()

	// A sync is already in flight for the address.
	require.True(t, sequencer.TryAdmit("a@example.com"))

	g := NewGate(users, syncer, sequencer, testMetrics, 1, 4)
	require.NoError(t, g.HandleNotification("a@example.com", 105))

	sequencer.Release("a@example.com")
	g.Stop()

	// The notification was dropped at the gate, never queued.
	assert.Zero(t, syncer.callCount())
}

func TestGateStopIsIdempotent(t *testing.T) {
	g := NewGate(newFakeUserStore(), &fakeSyncer{}, NewSequencer(), testMetrics, 2, 4)
	g.Stop()
	g.Stop()
}

func TestGateSurvivesPanickingSync(t *testing.T) {
	user := &model.User{ID: 1, Email: "a@example.com", Enabled: true, LastHistoryID: cursor(1)}
	users := newFakeUserStore(user)
	g := NewGate(users, panicSyncer{}, NewSequencer(), testMetrics, 1, 4)

	require.NoError(t, g.HandleNotification("a@example.com", 5))
	g.Stop()
}

type panicSyncer struct{}

func (panicSyncer) Sync(ctx context.Context, user *model.User, notifiedHistoryID uint64) error {
	panic("boom")
}
