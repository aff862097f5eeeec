package mailsync

import "sync"

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Sequencer enforces single-flight mailbox syncs per user. TryAdmit
// claims an address on the caller's goroutine; Run then executes the
// sync under the address's lock and releases the claim when done. Lock
// registry entries are reference counted and removed once nobody holds
// or waits on them, so the registry never grows with the user base.
type Sequencer struct {
	mu      sync.Mutex
	locks   map[string]*userLock
	running map[string]struct{}
}

func NewSequencer() *Sequencer {
	return &Sequencer{
		locks:   make(map[string]*userLock),
		running: make(map[string]struct{}),
	}
}

func (s *Sequencer) acquire(email string) *userLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[email]
	if !ok {
		l = &userLock{}
		s.locks[email] = l
	}
	l.refs++
	return l
}

func (s *Sequencer) releaseLock(email string, l *userLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(s.locks, email)
	}
}

// TryAdmit atomically claims the address for one sync run and reports
// false when a sync is already in flight, in which case the caller
// drops the notification. A successful claim is released by Run, or by
// Release when the run never starts.
func (s *Sequencer) TryAdmit(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.running[email]; ok {
		return false
	}
	s.running[email] = struct{}{}
	return true
}

// Release withdraws a claim whose run never started.
func (s *Sequencer) Release(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, email)
}

// Run executes fn under the address's lock and releases the claim
// afterwards, whatever fn does. The admit check already prevents
// overlapping runs; the lock keeps the critical section explicit
// should that check ever be relaxed.
func (s *Sequencer) Run(email string, fn func()) {
	l := s.acquire(email)
	defer s.releaseLock(email, l)

	l.mu.Lock()
	defer l.mu.Unlock()

	s.mu.Lock()
	s.running[email] = struct{}{}
	s.mu.Unlock()
	defer s.Release(email)

	fn()
}

// IsRunning reports whether a sync is currently in flight for the
// address.
func (s *Sequencer) IsRunning(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[email]
	return ok
}
