package confect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/0xalexb/confect/compose"
	"github.com/0xalexb/confect/logging"
	"github.com/0xalexb/confect/source"
	"github.com/0xalexb/confect/value"
)

var errAppNotInitialized = errors.New("app not initialized")

// App is a configured starting point for applications using Fx.
type App struct {
	app *fx.App
}

// NewApp creates a new instance of App with Fx configured. When a config
// name is set, the composed config tree and composition result are
// provided to the graph.
func NewApp(opts ...Option) *App {
	options := newOptions(opts)

	return &App{
		app: configure(options),
	}
}

func configure(options *Options) *fx.App {
	logger := createLogger(options.LogLevel, os.Stderr)
	slog.SetDefault(logger)

	modules := options.Modules
	if options.ConfigName != "" {
		modules = append([]fx.Option{configModule(options)}, modules...)
	}

	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		fx.Supply(logging.LoggerConfig{Level: options.LogLevel}),
		fx.Supply(logger),
		fx.Options(modules...),
	)
}

// Module provides the composed configuration to an Fx graph: the
// *compose.Result, the merged *value.Dict, and the Composer itself.
// The graph must provide a *slog.Logger; NewApp supplies one.
func Module(opts ...Option) fx.Option {
	return configModule(newOptions(opts))
}

func configModule(options *Options) fx.Option {
	return fx.Module("confect",
		fx.Provide(func(logger *slog.Logger) *compose.Composer {
			return newComposer(options, logging.Component(logger, "compose"))
		}),
		fx.Provide(func(composer *compose.Composer) (*compose.Result, error) {
			return composer.Compose(options.ConfigName, options.Overrides)
		}),
		fx.Provide(func(res *compose.Result) *value.Dict {
			return res.Config
		}),
	)
}

func newComposer(options *Options, logger *slog.Logger) *compose.Composer {
	src := options.Source
	if src == nil {
		src = source.NewCaching(source.FromDir(options.ConfigDir))
	}

	composeOpts := []compose.Option{
		compose.WithLogger(logger),
		compose.WithResolve(options.Resolve),
	}
	for name, r := range options.Resolvers {
		composeOpts = append(composeOpts, compose.WithResolver(name, r))
	}

	return compose.New(src, composeOpts...)
}

func createLogger(level string, w io.Writer) *slog.Logger {
	config := logging.LoggerConfig{Level: level}

	return logging.NewLogger(config, w)
}

// Start starts the Fx application.
func (app *App) Start() error {
	if app != nil && app.app != nil {
		err := app.app.Start(context.Background())
		if err != nil {
			return fmt.Errorf("failed to start app: %w", err)
		}

		return nil
	}

	return errAppNotInitialized
}

// Run starts the application and blocks until an OS signal is received, then shuts down gracefully.
func (app *App) Run() {
	if app == nil || app.app == nil {
		slog.Error("attempted to run an uninitialized app")

		return
	}

	app.app.Run()
}

// Stop stops the Fx application gracefully.
func (app *App) Stop() error {
	if app != nil && app.app != nil {
		err := app.app.Stop(context.Background())
		if err != nil {
			return fmt.Errorf("failed to stop app: %w", err)
		}

		return nil
	}

	return errAppNotInitialized
}
