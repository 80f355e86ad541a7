package main

import (
	"context"
	"log"

	"github.com/m3rciful/stylebot/app"
	"github.com/m3rciful/stylebot/core/bootstrap"
	corecmd "github.com/m3rciful/stylebot/core/cmd"
	"github.com/m3rciful/stylebot/core/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        config.Load,
		Bootstrap: func(ctx context.Context, cfg *config.Config) (corecmd.TelegramApp, error) {
			res, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
			if err != nil {
				return nil, err
			}
			return app.New(cfg, res.DB)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
