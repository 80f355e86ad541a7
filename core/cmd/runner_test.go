package cmd

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/stylebot/core/config"
	coretelegram "github.com/m3rciful/stylebot/core/telegram"
)

type fakeApp struct {
	opts coretelegram.RunOptions
	err  error
}

func (a fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, a.err }

func TestRunRequiresBootstrap(t *testing.T) {
	require.Error(t, Run(Options{}))
}

func TestRunRequiresConfigPath(t *testing.T) {
	t.Setenv("STYLEBOT_TEST_CONFIG", "")
	err := Run(Options{
		ConfigEnvVar: "STYLEBOT_TEST_CONFIG",
		Bootstrap:    func(context.Context, *config.Config) (TelegramApp, error) { return fakeApp{}, nil },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STYLEBOT_TEST_CONFIG")
}

func TestRunWrapsHooks(t *testing.T) {
	t.Setenv("STYLEBOT_TEST_CONFIG", "from-env.yaml")
	var loadedPath string
	var hooks []string
	app := fakeApp{opts: coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { hooks = append(hooks, "start"); return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { hooks = append(hooks, "stop"); return nil },
	}}
	loggerClosed := false

	err := Run(Options{
		ConfigEnvVar:      "STYLEBOT_TEST_CONFIG",
		DefaultConfigPath: "default.yaml",
		LoadConfig: func(path string) (*config.Config, error) {
			loadedPath = path
			return &config.Config{}, nil
		},
		Bootstrap:      func(context.Context, *config.Config) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { loggerClosed = true; return nil },
		Signals:        []os.Signal{syscall.SIGUSR1},
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			require.NoError(t, opts.OnStop(ctx, coretelegram.Runtime{}))
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env.yaml", loadedPath)
	assert.Equal(t, []string{"start", "stop"}, hooks)
	assert.True(t, loggerClosed)
}

func TestRunPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	base := Options{
		DefaultConfigPath: "cfg.yaml",
		ConfigEnvVar:      "STYLEBOT_TEST_CONFIG",
		LoadConfig:        func(string) (*config.Config, error) { return &config.Config{}, nil },
		ShutdownLogger:    func() error { return nil },
	}
	t.Setenv("STYLEBOT_TEST_CONFIG", "")

	opts := base
	opts.LoadConfig = func(string) (*config.Config, error) { return nil, boom }
	opts.Bootstrap = func(context.Context, *config.Config) (TelegramApp, error) { return fakeApp{}, nil }
	assert.ErrorIs(t, Run(opts), boom)

	opts = base
	opts.Bootstrap = func(context.Context, *config.Config) (TelegramApp, error) { return nil, boom }
	assert.ErrorIs(t, Run(opts), boom)

	opts = base
	opts.Bootstrap = func(context.Context, *config.Config) (TelegramApp, error) { return fakeApp{err: boom}, nil }
	assert.ErrorIs(t, Run(opts), boom)

	opts = base
	opts.Bootstrap = func(context.Context, *config.Config) (TelegramApp, error) { return fakeApp{}, nil }
	opts.RunTelegram = func(context.Context, coretelegram.RunOptions) error { return boom }
	assert.ErrorIs(t, Run(opts), boom)
}
