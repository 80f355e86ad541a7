package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/stylebot/core/catalog"
	"github.com/m3rciful/stylebot/core/config"
	"github.com/m3rciful/stylebot/core/conversation"
)

func testConfig() *config.Config {
	return &config.Config{
		Telegram:  config.TelegramConfig{Token: "t", AdminID: 7, RunMode: config.RunModeLongpoll},
		Inference: config.InferenceConfig{BaseURL: "http://localhost:8080", TimeoutSeconds: 60, ImageSize: 256},
		Bot:       config.BotConfig{Contacts: "mail: a@b"},
		Catalog:   catalog.DefaultTechnologies(),
	}
}

func TestNewWiresServices(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)
	assert.Nil(t, a.journal)
	assert.Equal(t, "mail: a@b", a.msgs.Contacts)
	assert.Equal(t, 2, a.catalog.Len())
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)

	cfg := testConfig()
	cfg.Bot.FixedTechnology = "dalle"
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	cfg = testConfig()
	cfg.Catalog = nil
	_, err = New(cfg, nil)
	require.Error(t, err)
}

func TestTelegramRunOptions(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)
	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)

	visible := opts.Registry.ListCommands(true)
	names := make([]string, 0, len(visible))
	for _, c := range visible {
		names = append(names, c.Text)
	}
	assert.Equal(t, []string{"cancel", "contacts", "help", "start"}, names)
	_, stats, ok := opts.Registry.LookupCommand("/stats")
	require.True(t, ok)
	assert.True(t, stats.AdminOnly)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, e := range []any{"/start", "/stop", "/stats", tele.OnText, tele.OnPhoto, tele.OnDocument} {
		assert.True(t, endpoints[e], "missing route %v", e)
	}
	assert.NotEmpty(t, opts.Middlewares)
	assert.NotNil(t, opts.OnStart)
	assert.NotNil(t, opts.OnStop)
}

func TestTextEvent(t *testing.T) {
	ev := textEvent(3, "  NST ")
	assert.Equal(t, conversation.Event{UserID: 3, Kind: conversation.KindText, Text: "NST"}, ev)

	ev = textEvent(3, "/unknown arg")
	assert.Equal(t, conversation.KindCommand, ev.Kind)
	assert.Equal(t, "/unknown", ev.Command)
}

func TestSendOptions(t *testing.T) {
	msg := &tele.Message{ID: 9}

	opts, kb := sendOptions(msg, conversation.Response{Keyboard: []string{"A", "B", "C"}})
	assert.True(t, kb)
	assert.Same(t, msg, opts.ReplyTo)
	require.NotNil(t, opts.ReplyMarkup)
	assert.Len(t, opts.ReplyMarkup.ReplyKeyboard, 2)

	opts, kb = sendOptions(msg, conversation.Response{RemoveKeyboard: true})
	assert.False(t, kb)
	assert.True(t, opts.ReplyMarkup.RemoveKeyboard)

	opts, kb = sendOptions(nil, conversation.Response{Text: "hi"})
	assert.False(t, kb)
	assert.Nil(t, opts.ReplyMarkup)
}

func TestUploadFile(t *testing.T) {
	photo := &tele.Message{Photo: &tele.Photo{File: tele.File{FileID: "p"}}}
	f, err := uploadFile(photo)
	require.NoError(t, err)
	assert.Equal(t, "p", f.FileID)

	doc := &tele.Message{Document: &tele.Document{File: tele.File{FileID: "d"}, MIME: "image/png"}}
	f, err = uploadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, "d", f.FileID)

	_, err = uploadFile(&tele.Message{Document: &tele.Document{MIME: "application/pdf"}})
	assert.Error(t, err)
	_, err = uploadFile(nil)
	assert.Error(t, err)
}

func TestReadLimited(t *testing.T) {
	data, err := readLimited(strings.NewReader("abcd"), 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), data)

	_, err = readLimited(bytes.NewReader([]byte("abcde")), 4)
	assert.ErrorIs(t, err, errTooLarge)
}
