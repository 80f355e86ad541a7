package session

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCreatesIdleSession(t *testing.T) {
	s := NewStore()

	sess := s.Get(42)
	assert.Equal(t, int64(42), sess.UserID)
	assert.Equal(t, StateIdle, sess.State)
	assert.Empty(t, sess.Technology)
	assert.Nil(t, sess.ContentImage)
	assert.Equal(t, 1, s.Len())
}

func TestLeaseCommitsOnRelease(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	l, err := s.Acquire(ctx, 1)
	require.NoError(t, err)
	l.Session().State = StateAwaitingContentImage
	l.Session().Technology = "nst"

	assert.Equal(t, StateIdle, s.Get(1).State, "uncommitted changes must not leak")

	l.Release()
	l.Release()
	got := s.Get(1)
	assert.Equal(t, StateAwaitingContentImage, got.State)
	assert.Equal(t, "nst", got.Technology)
	assert.Equal(t, 1, s.Active())
}

func TestResetClearsScratchData(t *testing.T) {
	s := NewStore()
	l, err := s.Acquire(context.Background(), 7)
	require.NoError(t, err)
	l.Session().State = StateAwaitingStyle
	l.Session().Technology = "nst"
	l.Session().ContentImage = image.NewRGBA(image.Rect(0, 0, 1, 1))
	l.Release()

	s.Reset(7)

	got := s.Get(7)
	assert.Equal(t, StateIdle, got.State)
	assert.Empty(t, got.Technology)
	assert.Nil(t, got.ContentImage)
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a, err := s.Acquire(ctx, 1)
	require.NoError(t, err)
	a.Session().Technology = "nst"
	a.Session().ContentImage = image.NewRGBA(image.Rect(0, 0, 2, 2))
	a.Session().State = StateAwaitingStyle

	b, err := s.Acquire(ctx, 2)
	require.NoError(t, err, "another user must not wait for user 1")
	assert.Empty(t, b.Session().Technology)
	assert.Nil(t, b.Session().ContentImage)
	b.Release()
	a.Release()

	assert.Empty(t, s.Get(2).Technology)
	assert.Equal(t, "nst", s.Get(1).Technology)
}

func TestAcquireServesSameUserInArrivalOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	first, err := s.Acquire(ctx, 9)
	require.NoError(t, err)

	const waiters = 5
	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := s.Acquire(ctx, 9)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			l.Release()
		}(i)
		waitForWaiters(t, s, 9, i+1)
	}

	first.Release()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestAcquireHonoursContextWhileWaiting(t *testing.T) {
	s := NewStore()
	holder, err := s.Acquire(context.Background(), 3)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Acquire(ctx, 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	holder.Release()
	l, err := s.Acquire(context.Background(), 3)
	require.NoError(t, err, "cancelled waiter must not keep the session locked")
	l.Release()
}

func TestSweepEvictsOnlyIdleUnleasedSessions(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Get(1)
	held, err := s.Acquire(context.Background(), 2)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	s.Get(3)

	assert.Equal(t, 0, s.Sweep(0))
	assert.Equal(t, 1, s.Sweep(time.Hour))
	assert.Equal(t, 2, s.Len())

	held.Release()
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 2, s.Sweep(time.Hour))
	assert.Equal(t, 0, s.Len())
}

func waitForWaiters(t *testing.T, s *Store, userID int64, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		e, ok := s.entries[userID]
		return ok && len(e.waiters) == n
	}, time.Second, time.Millisecond)
}
