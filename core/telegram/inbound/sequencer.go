// Package inbound hands updates to the bot one user at a time, in the order
// the poller delivered them. Different users are served in parallel.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/stylebot/core/logger"
)

var (
	// ErrClosed is returned when Submit is called after Close.
	ErrClosed = errors.New("telegram inbound: sequencer closed")
	// ErrBacklog means the key already has MaxPending updates waiting.
	ErrBacklog = errors.New("telegram inbound: backlog full")
)

const defaultMaxPending = 32

// Options controls the sequencer.
type Options struct {
	// MaxPending bounds the updates waiting behind a running one per key.
	MaxPending int
}

// Sequencer runs submitted jobs serially per key. A key with queued work
// owns one goroutine, which exits once its lane is empty.
type Sequencer struct {
	opts Options

	mu     sync.Mutex
	lanes  map[int64][]func()
	closed bool
	wg     sync.WaitGroup
}

// New creates a Sequencer with defaults for zero options.
func New(opts Options) *Sequencer {
	if opts.MaxPending <= 0 {
		opts.MaxPending = defaultMaxPending
	}
	return &Sequencer{opts: opts, lanes: make(map[int64][]func())}
}

// Submit appends run to the lane of key.
func (s *Sequencer) Submit(key int64, run func()) error {
	if run == nil {
		return errors.New("telegram inbound: nil run function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	q, active := s.lanes[key]
	if active && len(q) >= s.opts.MaxPending {
		return ErrBacklog
	}
	s.lanes[key] = append(q, run)
	if !active {
		s.wg.Add(1)
		go s.drain(key)
	}
	return nil
}

// Active reports the number of keys with running or queued work.
func (s *Sequencer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lanes)
}

// Close stops accepting work and waits for queued jobs until ctx is done.
func (s *Sequencer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain runs the lane of key until it is empty. The key stays in lanes while
// a job runs, so a concurrent Submit joins this goroutine instead of starting one.
func (s *Sequencer) drain(key int64) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		q := s.lanes[key]
		if len(q) == 0 {
			delete(s.lanes, key)
			s.mu.Unlock()
			return
		}
		run := q[0]
		q[0] = nil
		s.lanes[key] = q[1:]
		s.mu.Unlock()

		runSafe(key, run)
	}
}

func runSafe(key int64, run func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(context.Background(), logger.CompTelegram, "inbound.panic",
				slog.Int64("user_id", key),
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	run()
}

// KeyOf returns the lane key of u: the sender, else the chat, else 0.
func KeyOf(u *tele.Update) int64 {
	var msg *tele.Message
	switch {
	case u.Message != nil:
		msg = u.Message
	case u.EditedMessage != nil:
		msg = u.EditedMessage
	case u.Callback != nil && u.Callback.Sender != nil:
		return u.Callback.Sender.ID
	}
	if msg == nil {
		return 0
	}
	if msg.Sender != nil {
		return msg.Sender.ID
	}
	if msg.Chat != nil {
		return msg.Chat.ID
	}
	return 0
}

// Filter returns a tele.MiddlewarePoller filter. It runs in the poll loop,
// so submission order is update order; process then runs on the update's
// lane. The filter always returns false: the bot's own loop never sees the
// update, and the bot must be Synchronous so process completes in the lane.
func (s *Sequencer) Filter(process func(tele.Update)) func(*tele.Update) bool {
	return func(u *tele.Update) bool {
		upd := *u
		key := KeyOf(&upd)
		if err := s.Submit(key, func() { process(upd) }); err != nil {
			logger.Warn(context.Background(), logger.CompTelegram, "inbound.drop",
				slog.String("status", "skip"),
				slog.Int("update_id", upd.ID),
				slog.Int64("user_id", key),
				logger.Err(err),
			)
		}
		return false
	}
}

// Poller wraps inner with Filter.
func (s *Sequencer) Poller(inner tele.Poller, process func(tele.Update)) *tele.MiddlewarePoller {
	return tele.NewMiddlewarePoller(inner, s.Filter(process))
}
