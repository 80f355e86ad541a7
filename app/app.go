// Package app wires the stylization bot: catalog, sessions, inference,
// conversation engine, optional run journal and the Telegram transport.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/stylebot/core/catalog"
	"github.com/m3rciful/stylebot/core/config"
	"github.com/m3rciful/stylebot/core/conversation"
	"github.com/m3rciful/stylebot/core/history"
	"github.com/m3rciful/stylebot/core/inference"
	"github.com/m3rciful/stylebot/core/logger"
	"github.com/m3rciful/stylebot/core/processing"
	"github.com/m3rciful/stylebot/core/session"
	tg "github.com/m3rciful/stylebot/core/telegram"
	"github.com/m3rciful/stylebot/core/telegram/router"
)

// App holds the long-lived services of one bot process.
type App struct {
	cfg     *config.Config
	db      *sqlx.DB
	catalog *catalog.Catalog
	store   *session.Store
	engine  *conversation.Engine
	journal *history.Journal
	msgs    conversation.Messages
	started time.Time
}

// New builds the services from cfg. db may be nil, in which case runs are
// not journaled.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}
	cat, err := catalog.New(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	client, err := inference.NewClient(cfg.Inference)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	proc := processing.NewDispatcher(cat, client, processing.Options{
		Timeout:   cfg.Inference.Timeout(),
		ImageSize: cfg.Inference.ImageSize,
	})

	msgs := conversation.DefaultMessages()
	if cfg.Bot.Contacts != "" {
		msgs.Contacts = cfg.Bot.Contacts
	}

	a := &App{
		cfg:     cfg,
		db:      db,
		catalog: cat,
		store:   session.NewStore(),
		msgs:    msgs,
		started: time.Now(),
	}

	opts := conversation.Options{FixedTechnology: cfg.Bot.FixedTechnology, Messages: &msgs}
	if db != nil {
		a.journal = history.NewJournal(db)
		opts.Observer = a.journal
	}
	a.engine, err = conversation.New(a.store, cat, proc, opts)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return a, nil
}

// TelegramRunOptions assembles the commands, routes, middlewares and
// lifecycle hooks for tg.RunTelegram.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := a.registry()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminID})
	routes = append(routes, router.MessageRoutes(reg, router.MessageOptions{
		Text:  a.onText,
		Photo: a.onPhoto,
		Other: a.onOther,
	})...)

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(a.cfg, a.onLimited),
		Routes:      routes,
		OnStart: func(ctx context.Context, _ tg.Runtime) error {
			ttl := time.Duration(a.cfg.Session.IdleTTLSeconds) * time.Second
			every := time.Duration(a.cfg.Session.SweepEverySeconds) * time.Second
			if ttl > 0 && every > 0 {
				go a.store.RunJanitor(ctx, every, ttl)
			}
			logger.Info(ctx, logger.CompApp, "wire",
				slog.Int("technologies", a.catalog.Len()),
				slog.String("technology", a.cfg.Bot.FixedTechnology),
				slog.Bool("journal", a.journal != nil),
				slog.Duration("session_ttl", ttl),
			)
			return nil
		},
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			if a.db != nil {
				if err := a.db.Close(); err != nil {
					logger.Warn(ctx, logger.CompDB, "db.close", slog.String("status", "fail"), logger.Err(err))
				}
			}
			return nil
		},
	}, nil
}

func (a *App) registry() *tg.Registry {
	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", tg.Command{
		Handler:     a.onCommand(conversation.CmdStart),
		Description: "Начать стилизацию фотографии",
	})
	reg.RegisterCommand("/cancel", tg.Command{
		Handler:     a.onCommand(conversation.CmdCancel),
		Description: "Прервать текущий диалог",
		Aliases:     []string{"stop"},
	})
	reg.RegisterCommand("/help", tg.Command{
		Handler:     a.onCommand(conversation.CmdHelp),
		Description: "Подсказка по технологиям",
	})
	reg.RegisterCommand("/contacts", tg.Command{
		Handler:     a.onCommand(conversation.CmdContacts),
		Description: "Контакты авторов",
	})
	reg.RegisterCommand("/stats", tg.Command{
		Handler:     a.onStats,
		Description: "Статистика бота",
		AdminOnly:   true,
		Hidden:      true,
	})
	return reg
}
