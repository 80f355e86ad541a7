package helpers

import (
	"bytes"
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/stylebot/core/logger"
	"github.com/m3rciful/stylebot/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
// With no dispatcher set, helpers send synchronously.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	var key int64
	if chat := c.Chat(); chat != nil {
		key = chat.ID
	}
	if err := disp.Enqueue(ctx, key, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, logger.CompSender, "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				logger.Err(err),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends plain text to the current chat.
func SendText(c tele.Context, text string, opts *tele.SendOptions) error {
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if opts != nil {
			return c.Send(text, opts)
		}
		return c.Send(text)
	})
}

// SendPhoto uploads an in-memory image with a caption to the current chat.
// The reader is rebuilt on each attempt so retries resend the full body.
func SendPhoto(c tele.Context, data []byte, caption string, opts *tele.SendOptions) error {
	return sendAsync(c, "send.photo", "sendPhoto", func() error {
		photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(data)), Caption: caption}
		if opts != nil {
			return c.Send(photo, opts)
		}
		return c.Send(photo)
	})
}
