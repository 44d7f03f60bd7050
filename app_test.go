package confect_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	confect "github.com/0xalexb/confect"
	"github.com/0xalexb/confect/compose"
	"github.com/0xalexb/confect/value"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()

	full := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func fixtureDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml",
		"defaults:\n  - db: mysql\n\nname: myapp\n")
	writeConfig(t, dir, "db/mysql.yaml", "driver: mysql\nport: 3306\n")
	writeConfig(t, dir, "db/postgres.yaml", "driver: postgres\nport: 5432\n")

	return dir
}

func TestNewApp_CreatesAppWithDefaultLogLevel(t *testing.T) {
	t.Parallel()

	app := confect.NewApp()
	require.NotNil(t, app)
}

func TestNewApp_WithModules(t *testing.T) {
	t.Parallel()

	var invoked bool

	module := fx.Module("test",
		fx.Invoke(func() {
			invoked = true
		}),
	)

	app := confect.NewApp(confect.WithModules(module))
	require.NotNil(t, app)

	err := app.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop() })
	require.True(t, invoked)
}

func TestNewApp_ComposedConfigIsAvailable(t *testing.T) {
	t.Parallel()

	dir := fixtureDir(t)

	var config *value.Dict

	module := fx.Module("test",
		fx.Invoke(func(cfg *value.Dict) {
			config = cfg
		}),
	)

	app := confect.NewApp(
		confect.WithLogLevel("error"),
		confect.WithConfigDir(dir),
		confect.WithConfigName("config"),
		confect.WithModules(module),
	)
	require.NotNil(t, app)

	err := app.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop() })

	require.NotNil(t, config)

	driver, ok := value.GetPath(config, "db.driver")
	require.True(t, ok)
	require.Equal(t, "mysql", driver.String())
}

func TestNewApp_OverridesApply(t *testing.T) {
	t.Parallel()

	dir := fixtureDir(t)

	var res *compose.Result

	module := fx.Module("test",
		fx.Invoke(func(r *compose.Result) {
			res = r
		}),
	)

	app := confect.NewApp(
		confect.WithLogLevel("error"),
		confect.WithConfigDir(dir),
		confect.WithConfigName("config"),
		confect.WithOverrides("db=postgres", "db.port=15432"),
		confect.WithModules(module),
	)

	err := app.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop() })

	require.NotNil(t, res)
	require.Equal(t, "postgres", res.Choices["db"])

	port, ok := value.GetPath(res.Config, "db.port")
	require.True(t, ok)

	i, isInt := port.AsInt()
	require.True(t, isInt)
	require.Equal(t, int64(15432), i)
}

func TestNewApp_BadOverrideFailsStart(t *testing.T) {
	t.Parallel()

	dir := fixtureDir(t)

	module := fx.Module("test",
		fx.Invoke(func(_ *compose.Result) {}),
	)

	app := confect.NewApp(
		confect.WithLogLevel("error"),
		confect.WithConfigDir(dir),
		confect.WithConfigName("config"),
		confect.WithOverrides("nonexistent=foo"),
		confect.WithModules(module),
	)

	err := app.Start()
	require.Error(t, err)
	require.Contains(t, err.Error(), "Could not override 'nonexistent'")
}

func TestApp_Stop(t *testing.T) {
	t.Parallel()

	var stopCalled bool

	module := fx.Module("test",
		fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					stopCalled = true

					return nil
				},
			})
		}),
	)

	app := confect.NewApp(confect.WithModules(module))
	require.NotNil(t, app)

	err := app.Start()
	require.NoError(t, err)

	err = app.Stop()
	require.NoError(t, err)
	require.True(t, stopCalled, "OnStop hook should be called")
}

func TestApp_StopOnNilApp(t *testing.T) {
	t.Parallel()

	var app *confect.App

	err := app.Stop()
	require.Error(t, err)
}

func TestApp_StartOnNilApp(t *testing.T) {
	t.Parallel()

	var app *confect.App

	err := app.Start()
	require.Error(t, err)
}

func TestApp_RunOnNilApp(t *testing.T) {
	t.Parallel()

	var app *confect.App

	require.NotPanics(t, func() {
		app.Run()
	})
}

func TestApp_Run(t *testing.T) {
	t.Parallel()

	module := fx.Module("test",
		fx.Invoke(func(shutdowner fx.Shutdowner) {
			go func() {
				_ = shutdowner.Shutdown()
			}()
		}),
	)

	app := confect.NewApp(confect.WithModules(module))
	require.NotNil(t, app)

	require.NotPanics(t, func() {
		app.Run()
	})
}
