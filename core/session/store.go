package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/stylebot/core/logger"
)

type entry struct {
	sess    Session
	busy    bool
	waiters []chan struct{}
}

// Store is the in-memory owner of all sessions. The zero value is not usable; call NewStore.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry
	now     func() time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		entries: make(map[int64]*entry),
		now:     time.Now,
	}
}

// entryLocked returns the entry for userID, creating an Idle one. Caller holds s.mu.
func (s *Store) entryLocked(userID int64) *entry {
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{sess: Session{UserID: userID, State: StateIdle, UpdatedAt: s.now()}}
		s.entries[userID] = e
	}
	return e
}

// Get returns a snapshot of the user's last committed session, creating an Idle one if absent.
func (s *Store) Get(userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryLocked(userID).sess
}

// Acquire waits for exclusive access to the user's session. Waiters are
// served in the order they called Acquire. The returned Lease must be released.
func (s *Store) Acquire(ctx context.Context, userID int64) (*Lease, error) {
	s.mu.Lock()
	e := s.entryLocked(userID)
	if !e.busy {
		e.busy = true
		l := &Lease{store: s, entry: e, sess: e.sess}
		s.mu.Unlock()
		return l, nil
	}
	turn := make(chan struct{})
	e.waiters = append(e.waiters, turn)
	s.mu.Unlock()

	select {
	case <-turn:
		s.mu.Lock()
		l := &Lease{store: s, entry: e, sess: e.sess}
		s.mu.Unlock()
		return l, nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range e.waiters {
			if w == turn {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				s.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		s.mu.Unlock()
		// The turn was handed over concurrently; pass it on untouched.
		(&Lease{store: s, entry: e}).handOver(false)
		return nil, ctx.Err()
	}
}

// Reset sets the user's session back to Idle, waiting for any in-flight event to finish.
func (s *Store) Reset(userID int64) {
	l, err := s.Acquire(context.Background(), userID)
	if err != nil {
		return
	}
	l.Reset()
	l.Release()
}

// Len reports the number of sessions held in memory.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Active reports the number of sessions with a flow in progress.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.sess.InProgress() {
			n++
		}
	}
	return n
}

// Sweep evicts sessions that were not touched for idleFor and are not leased.
// It returns the number of evicted sessions.
func (s *Store) Sweep(idleFor time.Duration) int {
	if idleFor <= 0 {
		return 0
	}
	cutoff := s.now().Add(-idleFor)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, e := range s.entries {
		if e.busy || len(e.waiters) > 0 {
			continue
		}
		if e.sess.UpdatedAt.Before(cutoff) {
			delete(s.entries, id)
			evicted++
		}
	}
	return evicted
}

// RunJanitor calls Sweep every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, every, idleFor time.Duration) {
	if every <= 0 || idleFor <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(idleFor); n > 0 {
				logger.Info(ctx, logger.CompSession, "sweep",
					slog.String("status", "ok"),
					slog.Int("evicted", n),
					slog.Int("sessions", s.Len()),
				)
			}
		}
	}
}

// Lease grants exclusive access to one user's session. Changes made through
// Session become visible to Get only after Release.
type Lease struct {
	store    *Store
	entry    *entry
	sess     Session
	released bool
}

// Session returns the working copy owned by the lease holder.
func (l *Lease) Session() *Session { return &l.sess }

// Reset clears the working copy back to Idle.
func (l *Lease) Reset() { l.sess.Reset() }

// Release commits the working copy and hands access to the next waiter.
// Calling Release more than once has no effect.
func (l *Lease) Release() {
	if l == nil || l.released {
		return
	}
	l.handOver(true)
}

func (l *Lease) handOver(commit bool) {
	l.released = true
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if commit {
		l.sess.UpdatedAt = s.now()
		l.entry.sess = l.sess
	}
	if len(l.entry.waiters) > 0 {
		next := l.entry.waiters[0]
		l.entry.waiters = l.entry.waiters[1:]
		close(next)
		return
	}
	l.entry.busy = false
}
