package router

import (
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/stylebot/core/telegram"
)

// MessageOptions holds the handlers for non-command messages.
type MessageOptions struct {
	// Text receives plain text and unregistered slash commands.
	Text tele.HandlerFunc
	// Photo receives photos and documents with an image MIME type.
	Photo tele.HandlerFunc
	// Other receives any remaining message, such as stickers or files.
	Other tele.HandlerFunc
}

// MessageRoutes builds handlers for text, photo and document updates.
// Text that names a registered command or alias is routed to that command.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	text := func(c tele.Context) error {
		start := time.Now()
		if reg != nil && strings.HasPrefix(c.Text(), "/") {
			if key, cmd, ok := reg.LookupCommand(strings.Fields(c.Text())[0]); ok && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error { return cmd.Handler(c) })
			}
		}
		return dispatch(c, "text", start, opts.Text)
	}

	photo := func(c tele.Context) error {
		return dispatch(c, "photo", time.Now(), opts.Photo)
	}

	document := func(c tele.Context) error {
		start := time.Now()
		doc := c.Message().Document
		if doc != nil && strings.HasPrefix(doc.MIME, "image/") {
			return dispatch(c, "photo_document", start, opts.Photo, slog.String("mime", doc.MIME))
		}
		return dispatch(c, "unexpected_document", start, opts.Other)
	}

	other := func(c tele.Context) error {
		return dispatch(c, "unexpected_media", time.Now(), opts.Other)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: text},
		{Endpoint: tele.OnPhoto, Handler: photo},
		{Endpoint: tele.OnDocument, Handler: document},
		{Endpoint: tele.OnSticker, Handler: other},
		{Endpoint: tele.OnVideo, Handler: other},
		{Endpoint: tele.OnVoice, Handler: other},
		{Endpoint: tele.OnAnimation, Handler: other},
	}
}

func dispatch(c tele.Context, name string, start time.Time, h tele.HandlerFunc, extras ...slog.Attr) error {
	if h == nil {
		logHandlerSummary(c, name, start, "skip", nil, extras...)
		return nil
	}
	return handleWithSummary(c, name, start, func() error { return h(c) }, extras...)
}
