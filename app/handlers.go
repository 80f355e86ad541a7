package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/stylebot/core/buildinfo"
	"github.com/m3rciful/stylebot/core/conversation"
	"github.com/m3rciful/stylebot/core/imaging"
	"github.com/m3rciful/stylebot/core/logger"
	tghelpers "github.com/m3rciful/stylebot/core/telegram/helpers"
	"github.com/m3rciful/stylebot/core/telegram/keyboard"
	"github.com/m3rciful/stylebot/core/telegram/middleware"
)

var errTooLarge = errors.New("upload exceeds size limit")

func (a *App) onCommand(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return a.handle(c, conversation.Event{
			UserID:  senderID(c),
			Kind:    conversation.KindCommand,
			Command: name,
		})
	}
}

func (a *App) onText(c tele.Context) error {
	return a.handle(c, textEvent(senderID(c), c.Text()))
}

// onPhoto downloads the upload and hands it to the engine. A failed
// download still reaches the engine as an undecodable photo so the user is
// asked for another one.
func (a *App) onPhoto(c tele.Context) error {
	data, err := download(c)
	if err != nil {
		logger.Warn(tghelpers.BuildContext(c), logger.CompTelegram, "photo.download",
			slog.String("status", "fail"),
			logger.Err(err),
		)
		data = nil
	}
	return a.handle(c, conversation.Event{UserID: senderID(c), Kind: conversation.KindPhoto, Photo: data})
}

func (a *App) onOther(c tele.Context) error {
	return a.handle(c, conversation.Event{UserID: senderID(c), Kind: conversation.KindOther})
}

// onLimited answers an update dropped by the rate limiter so the user knows
// to resend it. The session is left untouched.
func (a *App) onLimited(c tele.Context) error {
	return render(c, conversation.Response{Text: a.msgs.TooFast})
}

func (a *App) onStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	var b strings.Builder
	fmt.Fprintf(&b, "Версия: %s\n", buildinfo.Summary())
	fmt.Fprintf(&b, "Аптайм: %s\n", time.Since(a.started).Round(time.Second))
	fmt.Fprintf(&b, "Сессии: %d, активные: %d\n", a.store.Len(), a.store.Active())
	if a.journal != nil {
		totals, err := a.journal.Totals(ctx)
		if err != nil {
			logger.Warn(ctx, logger.CompHistory, "totals", slog.String("status", "fail"), logger.Err(err))
			b.WriteString("Журнал: недоступен\n")
		} else {
			fmt.Fprintf(&b, "Запуски: %d, с ошибкой: %d, пользователи: %d\n", totals.Runs, totals.Failed, totals.Users)
		}
	}
	middleware.Count(c, false)
	return tghelpers.SendText(c, strings.TrimRight(b.String(), "\n"), nil)
}

func (a *App) handle(c tele.Context, ev conversation.Event) error {
	resp, err := a.engine.Handle(tghelpers.BuildContext(c), ev)
	if err != nil {
		return err
	}
	return render(c, resp)
}

// render sends resp as a reply to the triggering message.
func render(c tele.Context, resp conversation.Response) error {
	opts, kb := sendOptions(c.Message(), resp)
	if len(resp.Photo) > 0 {
		middleware.Count(c, kb)
		return tghelpers.SendPhoto(c, resp.Photo, resp.Text, opts)
	}
	if resp.Text == "" {
		return nil
	}
	middleware.Count(c, kb)
	return tghelpers.SendText(c, resp.Text, opts)
}

func sendOptions(replyTo *tele.Message, resp conversation.Response) (*tele.SendOptions, bool) {
	opts := &tele.SendOptions{ReplyTo: replyTo}
	switch {
	case len(resp.Keyboard) > 0:
		opts.ReplyMarkup = keyboard.ReplyLabels(resp.Keyboard, keyboard.DefaultPerRow)
		return opts, true
	case resp.RemoveKeyboard:
		opts.ReplyMarkup = keyboard.RemoveKeyboard()
	}
	return opts, false
}

// textEvent turns a message text into an event; unregistered slash
// commands are passed on as commands so the engine can reject them.
func textEvent(userID int64, text string) conversation.Event {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return conversation.Event{UserID: userID, Kind: conversation.KindCommand, Command: strings.Fields(text)[0]}
	}
	return conversation.Event{UserID: userID, Kind: conversation.KindText, Text: text}
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// uploadFile picks the largest photo size or an image document from msg.
func uploadFile(msg *tele.Message) (*tele.File, error) {
	switch {
	case msg == nil:
		return nil, errors.New("no message")
	case msg.Photo != nil:
		return &msg.Photo.File, nil
	case msg.Document != nil && strings.HasPrefix(msg.Document.MIME, "image/"):
		return &msg.Document.File, nil
	}
	return nil, errors.New("message carries no image")
}

func download(c tele.Context) ([]byte, error) {
	file, err := uploadFile(c.Message())
	if err != nil {
		return nil, err
	}
	if file.FileSize > imaging.MaxUploadBytes {
		return nil, errTooLarge
	}
	rc, err := c.Bot().File(file)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer rc.Close()
	return readLimited(rc, imaging.MaxUploadBytes)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errTooLarge
	}
	return data, nil
}
