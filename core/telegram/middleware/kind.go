package middleware

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/stylebot/core/config"
)

// UpdateKind classifies an update for rate-limit exclusions and logging:
// "command", "photo", "message" or "other".
func UpdateKind(c tele.Context) string {
	msg := c.Update().Message
	if msg == nil {
		return "other"
	}
	switch {
	case msg.Photo != nil:
		return config.UpdatePhoto
	case msg.Document != nil && strings.HasPrefix(msg.Document.MIME, "image/"):
		return config.UpdatePhoto
	case strings.HasPrefix(msg.Text, "/"):
		return config.UpdateCommand
	default:
		return config.UpdateMessage
	}
}
