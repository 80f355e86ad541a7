package inbound

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func textUpdate(id int, userID int64, text string) tele.Update {
	return tele.Update{ID: id, Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
		Text:   text,
	}}
}

func TestSlowJobKeepsLaterJobsOfSameKeyWaiting(t *testing.T) {
	s := New(Options{})
	var mu sync.Mutex
	var got []string
	record := func(v string) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	}

	require.NoError(t, s.Submit(1, func() {
		time.Sleep(100 * time.Millisecond)
		record("photo")
	}))
	require.NoError(t, s.Submit(1, func() { record("style") }))
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, []string{"photo", "style"}, got)
	assert.Zero(t, s.Active())
}

func TestKeysRunInParallel(t *testing.T) {
	s := New(Options{})
	release := make(chan struct{})
	other := make(chan struct{})

	require.NoError(t, s.Submit(1, func() { <-release }))
	require.NoError(t, s.Submit(2, func() { close(other) }))

	select {
	case <-other:
	case <-time.After(2 * time.Second):
		t.Fatal("key 2 was blocked by key 1")
	}
	close(release)
	require.NoError(t, s.Close(context.Background()))
}

func TestOrderPerKeyUnderLoad(t *testing.T) {
	s := New(Options{MaxPending: 200})
	var mu sync.Mutex
	got := map[int64][]int{}
	for i := 0; i < 100; i++ {
		for _, key := range []int64{1, 2, 3} {
			i, key := i, key
			require.NoError(t, s.Submit(key, func() {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
			}))
		}
	}
	require.NoError(t, s.Close(context.Background()))
	for _, key := range []int64{1, 2, 3} {
		require.Len(t, got[key], 100)
		for i, v := range got[key] {
			assert.Equal(t, i, v, "key %d", key)
		}
	}
}

func TestBacklogAndClose(t *testing.T) {
	s := New(Options{MaxPending: 1})
	release := make(chan struct{})
	require.NoError(t, s.Submit(1, func() { <-release }))
	require.NoError(t, s.Submit(1, func() {}))
	assert.ErrorIs(t, s.Submit(1, func() {}), ErrBacklog)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Close(ctx), context.DeadlineExceeded)
	assert.ErrorIs(t, s.Submit(2, func() {}), ErrClosed)

	close(release)
	require.NoError(t, s.Close(context.Background()))
}

func TestPanicDoesNotWedgeLane(t *testing.T) {
	s := New(Options{})
	ran := false
	require.NoError(t, s.Submit(1, func() { panic("boom") }))
	require.NoError(t, s.Submit(1, func() { ran = true }))
	require.NoError(t, s.Close(context.Background()))
	assert.True(t, ran)
}

func TestFilterSubmitsInDeliveryOrder(t *testing.T) {
	s := New(Options{})
	var mu sync.Mutex
	var got []int
	filter := s.Filter(func(u tele.Update) {
		if u.ID == 1 {
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		got = append(got, u.ID)
		mu.Unlock()
	})

	for i, text := range []string{"photo", "style", "again"} {
		upd := textUpdate(i+1, 7, text)
		assert.False(t, filter(&upd))
	}
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestKeyOf(t *testing.T) {
	upd := textUpdate(1, 5, "x")
	assert.Equal(t, int64(5), KeyOf(&upd))
	assert.Equal(t, int64(-100), KeyOf(&tele.Update{Message: &tele.Message{Chat: &tele.Chat{ID: -100}}}))
	assert.Equal(t, int64(9), KeyOf(&tele.Update{Callback: &tele.Callback{Sender: &tele.User{ID: 9}}}))
	assert.Zero(t, KeyOf(&tele.Update{}))
}
