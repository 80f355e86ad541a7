package middleware

import tele "gopkg.in/telebot.v4"

const (
	keyMessages = "messages"
	keyKeyboard = "kb"
)

// MessageMetricsMiddleware resets the per-update reply counters.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(keyMessages, 0)
		c.Set(keyKeyboard, false)
		return next(c)
	}
}

// Count records one reply queued for the update, optionally carrying a keyboard.
func Count(c tele.Context, withKeyboard bool) {
	n, _ := c.Get(keyMessages).(int)
	c.Set(keyMessages, n+1)
	if withKeyboard {
		c.Set(keyKeyboard, true)
	}
}

// GetCounters reads the reply count and keyboard flag of the update.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get(keyMessages).(int)
	kb, _ := c.Get(keyKeyboard).(bool)
	return msgs, kb
}
