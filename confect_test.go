package confect_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	confect "github.com/0xalexb/confect"
	"github.com/0xalexb/confect/compose"
	"github.com/0xalexb/confect/source"
)

type dbConfig struct {
	Driver  string `yaml:"driver"`
	Port    int    `yaml:"port"`
	Timeout int    `yaml:"timeout"`
}

func (c *dbConfig) SetDefaults() bool {
	changed := false

	if c.Timeout == 0 {
		c.Timeout = 30
		changed = true
	}

	return changed
}

func (c *dbConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	return nil
}

func composeResult(t *testing.T, overrides ...string) *compose.Result {
	t.Helper()

	dir := fixtureDir(t)
	composer := compose.New(source.NewFileSource("main", dir))

	res, err := composer.Compose("config", overrides)
	require.NoError(t, err)

	return res
}

func TestProvider_DecodesSubtree(t *testing.T) {
	t.Parallel()

	res := composeResult(t)

	cfg, err := confect.Provider(new(dbConfig), "db")(res)
	require.NoError(t, err)
	require.Equal(t, "mysql", cfg.Driver)
	require.Equal(t, 3306, cfg.Port)
}

func TestProvider_AppliesDefaults(t *testing.T) {
	t.Parallel()

	res := composeResult(t)

	cfg, err := confect.Provider(new(dbConfig), "db")(res)
	require.NoError(t, err)
	require.Equal(t, 30, cfg.Timeout, "SetDefaults should fill the zero timeout")
}

func TestProvider_ValidationFailure(t *testing.T) {
	t.Parallel()

	res := composeResult(t, "db.port=0")

	_, err := confect.Provider(new(dbConfig), "db")(res)
	require.Error(t, err)
	require.Contains(t, err.Error(), "validating error")
	require.Contains(t, err.Error(), "port must be between 1 and 65535")
}

func TestProvider_MissingPath(t *testing.T) {
	t.Parallel()

	res := composeResult(t)

	_, err := confect.Provider(new(dbConfig), "nope.db")(res)
	require.Error(t, err)
	require.Contains(t, err.Error(), "config path 'nope.db' not found")
}

func TestProvider_WholeTree(t *testing.T) {
	t.Parallel()

	type rootConfig struct {
		Name string   `yaml:"name"`
		DB   dbConfig `yaml:"db"`
	}

	res := composeResult(t)

	cfg, err := confect.Provider(new(rootConfig), "")(res)
	require.NoError(t, err)
	require.Equal(t, "myapp", cfg.Name)
	require.Equal(t, "mysql", cfg.DB.Driver)
}
