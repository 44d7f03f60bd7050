package confect

import (
	"go.uber.org/fx"

	"github.com/0xalexb/confect/interp"
	"github.com/0xalexb/confect/source"
)

// Options holds configuration settings for the application.
type Options struct {
	Modules    []fx.Option
	LogLevel   string
	ConfigDir  string
	ConfigName string
	Overrides  []string
	Resolve    bool
	Resolvers  map[string]interp.Resolver
	Source     source.Source
}

// Option defines a function type for applying configuration options.
type Option func(*Options)

func newOptions(opts []Option) *Options {
	options := &Options{
		ConfigDir: ".",
		Resolve:   true,
	}

	for _, apply := range opts {
		apply(options)
	}

	return options
}

// WithModules adds Fx modules to the application.
func WithModules(modules ...fx.Option) Option {
	return func(opts *Options) {
		opts.Modules = append(opts.Modules, modules...)
	}
}

// WithConfigDir sets the directory searched for configs and config groups.
// Defaults to the current directory.
func WithConfigDir(dir string) Option {
	return func(opts *Options) {
		opts.ConfigDir = dir
	}
}

// WithConfigName sets the primary config to compose, without extension.
// When set, the composed config is provided to the Fx graph.
func WithConfigName(name string) Option {
	return func(opts *Options) {
		opts.ConfigName = name
	}
}

// WithOverrides adds command-line style override tokens applied during
// composition, e.g. "db=postgres" or "db.port=3307".
func WithOverrides(tokens ...string) Option {
	return func(opts *Options) {
		opts.Overrides = append(opts.Overrides, tokens...)
	}
}

// WithResolve controls whether interpolations are resolved eagerly after
// composition. Defaults to true.
func WithResolve(resolve bool) Option {
	return func(opts *Options) {
		opts.Resolve = resolve
	}
}

// WithResolver registers a custom interpolation resolver under name.
func WithResolver(name string, r interp.Resolver) Option {
	return func(opts *Options) {
		if opts.Resolvers == nil {
			opts.Resolvers = make(map[string]interp.Resolver)
		}

		opts.Resolvers[name] = r
	}
}

// WithSource replaces the default file source with a custom Source, for
// example a SearchPath across several directories.
func WithSource(src source.Source) Option {
	return func(opts *Options) {
		opts.Source = src
	}
}

// WithLogLevel sets the log level for the application.
// Valid levels are: "debug", "info", "warn", "error".
// If not set or invalid, defaults to "info".
func WithLogLevel(level string) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}
