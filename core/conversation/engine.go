// Package conversation implements the per-user dialogue that leads from
// /start to a stylized photo.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/stylebot/core/catalog"
	"github.com/m3rciful/stylebot/core/imaging"
	"github.com/m3rciful/stylebot/core/logger"
	"github.com/m3rciful/stylebot/core/processing"
	"github.com/m3rciful/stylebot/core/session"
)

// Kind classifies an inbound event.
type Kind string

const (
	KindCommand Kind = "command"
	KindText    Kind = "text"
	KindPhoto   Kind = "photo"
	// KindOther is any message the dialogue never asks for, such as a sticker.
	KindOther Kind = "other"
)

// Commands understood by the engine.
const (
	CmdStart    = "start"
	CmdCancel   = "cancel"
	CmdHelp     = "help"
	CmdContacts = "contacts"
)

// Event is one piece of user input.
type Event struct {
	UserID  int64
	Kind    Kind
	Command string
	Text    string
	Photo   []byte
}

// Response is what the transport should send back. A nil Keyboard leaves
// the current reply keyboard untouched.
type Response struct {
	Text           string
	Keyboard       []string
	RemoveKeyboard bool
	Photo          []byte
	PhotoExt       string
}

// Processor performs the terminal transformation.
type Processor interface {
	Dispatch(ctx context.Context, req processing.Request) (processing.Result, error)
}

// DispatchRecord describes one finished dispatch.
type DispatchRecord struct {
	UserID     int64
	Technology string
	StyleLabel string
	StyleKey   string
	Model      string
	Bytes      int
	Duration   time.Duration
	Err        error
}

// Observer is notified after every dispatch.
type Observer interface {
	ObserveDispatch(ctx context.Context, rec DispatchRecord)
}

// Options configure an Engine.
type Options struct {
	// FixedTechnology preselects a technology and skips that question.
	FixedTechnology string
	Messages        *Messages
	Observer        Observer
	// Decode parses uploaded photos; imaging.Decode by default.
	Decode func([]byte) (image.Image, error)
}

// Engine drives conversations. It is safe for concurrent use.
type Engine struct {
	store    *session.Store
	catalog  *catalog.Catalog
	proc     Processor
	msgs     Messages
	observer Observer
	decode   func([]byte) (image.Image, error)
	fixed    string
}

// New builds an Engine. With a single-technology catalog the technology
// question is skipped even without FixedTechnology.
func New(store *session.Store, cat *catalog.Catalog, proc Processor, opts Options) (*Engine, error) {
	if store == nil || cat == nil || proc == nil {
		return nil, errors.New("conversation: store, catalog and processor are required")
	}
	e := &Engine{
		store:    store,
		catalog:  cat,
		proc:     proc,
		observer: opts.Observer,
		decode:   opts.Decode,
	}
	if opts.Messages != nil {
		e.msgs = opts.Messages.withDefaults()
	} else {
		e.msgs = DefaultMessages()
	}
	if e.decode == nil {
		e.decode = imaging.Decode
	}

	fixed := strings.ToLower(strings.TrimSpace(opts.FixedTechnology))
	if fixed == "" && cat.Len() == 1 {
		fixed = cat.TechnologyKeys()[0]
	}
	if fixed != "" {
		if _, ok := cat.Lookup(fixed); !ok {
			return nil, fmt.Errorf("conversation: fixed technology %q: %w", fixed, catalog.ErrNotFound)
		}
	}
	e.fixed = fixed
	return e, nil
}

// Handle applies ev to the user's session and returns the reply. Events of
// one user are handled one at a time in arrival order. The only error is a
// failure to obtain the session, e.g. when ctx is cancelled while waiting.
func (e *Engine) Handle(ctx context.Context, ev Event) (Response, error) {
	lease, err := e.store.Acquire(ctx, ev.UserID)
	if err != nil {
		return Response{}, fmt.Errorf("conversation: acquire session %d: %w", ev.UserID, err)
	}
	defer lease.Release()

	sess := lease.Session()
	from := sess.State
	resp := e.step(ctx, sess, ev)
	if sess.State != from {
		logger.Debug(ctx, logger.CompConversation, "fsm.transition",
			slog.Int64("user_id", ev.UserID),
			slog.String("kind", string(ev.Kind)),
			slog.String("from_state", string(from)),
			slog.String("to_state", string(sess.State)),
		)
	}
	return resp, nil
}

func (e *Engine) step(ctx context.Context, sess *session.Session, ev Event) Response {
	if ev.Kind == KindCommand {
		switch normalizeCommand(ev.Command) {
		case CmdStart:
			return e.start(ctx, sess)
		case CmdCancel:
			sess.Reset()
			return Response{Text: e.msgs.Farewell, RemoveKeyboard: true}
		case CmdHelp:
			return Response{Text: e.helpText()}
		case CmdContacts:
			return Response{Text: e.msgs.Contacts}
		}
		return e.unexpected(sess)
	}
	if fn, ok := steps[sess.State][ev.Kind]; ok {
		return fn(e, ctx, sess, ev)
	}
	return e.unexpected(sess)
}

// advance moves sess to a new state if the table allows it.
func (e *Engine) advance(ctx context.Context, sess *session.Session, to session.State) bool {
	if canAdvance(sess.State, to) {
		sess.State = to
		return true
	}
	logger.Error(ctx, logger.CompConversation, "fsm.illegal",
		slog.Int64("user_id", sess.UserID),
		slog.String("from_state", string(sess.State)),
		slog.String("to_state", string(to)),
	)
	sess.Reset()
	return false
}

func (e *Engine) start(ctx context.Context, sess *session.Session) Response {
	sess.Reset()
	if e.fixed != "" {
		sess.Technology = e.fixed
		e.advance(ctx, sess, session.StateAwaitingContentImage)
		return Response{Text: e.msgs.GreetingFixed, RemoveKeyboard: true}
	}
	e.advance(ctx, sess, session.StateAwaitingTechnology)
	return Response{Text: e.msgs.Greeting, Keyboard: e.catalog.Technologies()}
}

func (e *Engine) idleHint(_ context.Context, _ *session.Session, _ Event) Response {
	return Response{Text: e.msgs.IdleHint}
}

func (e *Engine) chooseTechnology(ctx context.Context, sess *session.Session, ev Event) Response {
	key, ok := e.catalog.MatchTechnology(ev.Text)
	if !ok {
		return Response{Text: e.msgs.UnknownTechnology, Keyboard: e.catalog.Technologies()}
	}
	if !e.advance(ctx, sess, session.StateAwaitingContentImage) {
		return Response{Text: e.msgs.Failure, RemoveKeyboard: true}
	}
	sess.Technology = key
	return Response{Text: e.msgs.AskPhoto, RemoveKeyboard: true}
}

func (e *Engine) receivePhoto(ctx context.Context, sess *session.Session, ev Event) Response {
	img, err := e.decode(ev.Photo)
	if err != nil {
		logger.Debug(ctx, logger.CompConversation, "photo.reject",
			slog.Int64("user_id", sess.UserID),
			slog.String("outcome", "reprompt"),
			logger.Err(err),
		)
		return Response{Text: e.msgs.BadPhoto}
	}
	if !e.advance(ctx, sess, session.StateAwaitingStyle) {
		return Response{Text: e.msgs.Failure, RemoveKeyboard: true}
	}
	sess.ContentImage = img
	return Response{Text: e.msgs.AskStyle, Keyboard: e.catalog.Labels(sess.Technology)}
}

func (e *Engine) chooseStyle(ctx context.Context, sess *session.Session, ev Event) Response {
	key, err := e.catalog.Resolve(sess.Technology, ev.Text)
	if err != nil {
		return Response{
			Text:     fmt.Sprintf(e.msgs.UnknownStyle, ev.Text),
			Keyboard: e.catalog.Labels(sess.Technology),
		}
	}

	req := processing.Request{Technology: sess.Technology, StyleKey: key, Image: sess.ContentImage}
	start := time.Now()
	res, err := e.proc.Dispatch(ctx, req)
	e.observe(ctx, DispatchRecord{
		UserID:     sess.UserID,
		Technology: req.Technology,
		StyleLabel: ev.Text,
		StyleKey:   key,
		Model:      modelOf(res, err),
		Bytes:      len(res.Data),
		Duration:   time.Since(start),
		Err:        err,
	})
	// A finished run always returns the user to Idle, failed or not.
	sess.Reset()

	if err != nil {
		return Response{Text: e.msgs.Failure, RemoveKeyboard: true}
	}
	return Response{
		Text:           fmt.Sprintf(e.msgs.Done, ev.Text),
		RemoveKeyboard: true,
		Photo:          res.Data,
		PhotoExt:       string(res.Format),
	}
}

func (e *Engine) unexpected(sess *session.Session) Response {
	switch sess.State {
	case session.StateAwaitingTechnology:
		return Response{Text: e.msgs.Unexpected + "\n" + e.msgs.ExpectTechnology, Keyboard: e.catalog.Technologies()}
	case session.StateAwaitingContentImage:
		return Response{Text: e.msgs.Unexpected + "\n" + e.msgs.ExpectPhoto}
	case session.StateAwaitingStyle:
		return Response{Text: e.msgs.Unexpected + "\n" + e.msgs.ExpectStyle, Keyboard: e.catalog.Labels(sess.Technology)}
	default:
		return Response{Text: e.msgs.IdleHint}
	}
}

func (e *Engine) helpText() string {
	var b strings.Builder
	for _, key := range e.catalog.TechnologyKeys() {
		if e.fixed != "" && key != e.fixed {
			continue
		}
		t, _ := e.catalog.Lookup(key)
		if t.Description == "" {
			continue
		}
		b.WriteString(t.Description)
		b.WriteString("\n")
	}
	b.WriteString(e.msgs.HelpFooter)
	return b.String()
}

func (e *Engine) observe(ctx context.Context, rec DispatchRecord) {
	if e.observer == nil {
		return
	}
	e.observer.ObserveDispatch(ctx, rec)
}

func modelOf(res processing.Result, err error) string {
	var berr *processing.BackendError
	if errors.As(err, &berr) {
		return berr.Model
	}
	return res.Model
}

// normalizeCommand strips the slash, a @botname suffix and case.
func normalizeCommand(cmd string) string {
	cmd = strings.TrimPrefix(strings.TrimSpace(cmd), "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}
