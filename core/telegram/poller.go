package telegram

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/stylebot/core/config"
)

const defaultLongPollTimeout = 10 * time.Second

// allowedUpdates limits delivery to what the bot handles.
var allowedUpdates = []string{"message"}

// BuildPoller returns the webhook or long-poll poller selected by cfg.
func BuildPoller(cfg *config.Config) tele.Poller {
	if strings.EqualFold(cfg.Telegram.RunMode, config.RunModeWebhook) {
		return &tele.Webhook{
			Listen:         fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			AllowedUpdates: allowedUpdates,
			SecretToken:    cfg.Webhook.SecretToken,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}

	timeout := defaultLongPollTimeout
	if cfg.Telegram.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout, AllowedUpdates: allowedUpdates}
}
