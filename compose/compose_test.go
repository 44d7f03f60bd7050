package compose_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xalexb/confect/compose"
	"github.com/0xalexb/confect/source"
	"github.com/0xalexb/confect/value"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()

	full := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func composeFixture(t *testing.T) (string, *compose.Composer) {
	t.Helper()

	dir := t.TempDir()

	writeConfig(t, dir, "config.yaml",
		"defaults:\n  - db: mysql\n\nname: myapp\nplugins:\n  - auth\n  - metrics\n")
	writeConfig(t, dir, "db/mysql.yaml", "driver: mysql\nport: 3306\nhost: localhost\n")
	writeConfig(t, dir, "db/postgres.yaml", "driver: postgres\nport: 5432\n")

	return dir, compose.New(source.NewFileSource("main", dir))
}

// asGo converts a composed tree to plain maps and slices for cmp diffs.
func asGo(v value.Value) any {
	if dict, ok := v.AsDict(); ok {
		out := map[string]any{}
		for _, e := range dict.Entries() {
			out[e.Key] = asGo(e.Value)
		}

		return out
	}

	if items, ok := v.AsList(); ok {
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, asGo(item))
		}

		return out
	}

	return v.String()
}

func TestComposeBasic(t *testing.T) {
	t.Parallel()

	_, composer := composeFixture(t)

	res, err := composer.Compose("config", nil)
	require.NoError(t, err)

	want := map[string]any{
		"db": map[string]any{
			"driver": "mysql",
			"port":   "3306",
			"host":   "localhost",
		},
		"name":    "myapp",
		"plugins": []any{"auth", "metrics"},
	}

	if diff := cmp.Diff(want, asGo(value.DictVal(res.Config))); diff != "" {
		t.Fatalf("composed tree mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, map[string]string{"db": "mysql"}, res.Choices)
	require.Len(t, res.Plan, 2)
}

func TestComposeSelfOrdering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// The group merges at the root so ordering decides who wins.
	writeConfig(t, dir, "db/mysql.yaml", "# @package _global_\ndriver: mysql\n")
	writeConfig(t, dir, "after.yaml", "defaults:\n  - db: mysql\n  - _self_\n\nname: x\n")
	writeConfig(t, dir, "before.yaml",
		"defaults:\n  - _self_\n  - db: mysql\n\ndriver: sqlite\nname: x\n")

	composer := compose.New(source.NewFileSource("main", dir))

	res, err := composer.Compose("after", nil)
	require.NoError(t, err)

	driver, _ := res.Config.Get("driver")
	name, _ := res.Config.Get("name")
	assert.Equal(t, "mysql", driver.String())
	assert.Equal(t, "x", name.String())

	// With _self_ first the group still overwrites the body's driver.
	res, err = composer.Compose("before", nil)
	require.NoError(t, err)

	driver, _ = res.Config.Get("driver")
	assert.Equal(t, "mysql", driver.String())
}

func TestComposeGroupOverride(t *testing.T) {
	t.Parallel()

	_, composer := composeFixture(t)

	res, err := composer.Compose("config", []string{"db=postgres"})
	require.NoError(t, err)

	db, ok := res.Config.Get("db")
	require.True(t, ok)

	dict, _ := db.AsDict()
	driver, _ := dict.Get("driver")
	assert.Equal(t, "postgres", driver.String())
}

func TestComposeValueOverrides(t *testing.T) {
	t.Parallel()

	_, composer := composeFixture(t)

	res, err := composer.Compose("config", []string{"db.port=3307", "db.host=remote"})
	require.NoError(t, err)

	port, _ := value.GetPath(res.Config, "db.port")
	i, ok := port.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(3307), i)

	host, _ := value.GetPath(res.Config, "db.host")
	assert.Equal(t, "remote", host.String())

	// Changing a key that does not exist is an error with an append hint.
	_, err = composer.Compose("config", []string{"db.missing=1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not override 'db.missing'")
	assert.Contains(t, err.Error(), "+db.missing=1")
}

func TestComposeAddOverrides(t *testing.T) {
	t.Parallel()

	_, composer := composeFixture(t)

	res, err := composer.Compose("config", []string{"+db.pool_size=10"})
	require.NoError(t, err)

	v, ok := value.GetPath(res.Config, "db.pool_size")
	require.True(t, ok)

	i, _ := v.AsInt()
	assert.Equal(t, int64(10), i)

	// Adding over an existing key fails; force-add replaces it.
	_, err = composer.Compose("config", []string{"+db.port=9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "An item is already at 'db.port'")

	res, err = composer.Compose("config", []string{"++db.port=9"})
	require.NoError(t, err)

	v, _ = value.GetPath(res.Config, "db.port")
	i, _ = v.AsInt()
	assert.Equal(t, int64(9), i)
}

func TestComposeDeleteOverrides(t *testing.T) {
	t.Parallel()

	_, composer := composeFixture(t)

	res, err := composer.Compose("config", []string{"~db.host"})
	require.NoError(t, err)

	_, ok := value.GetPath(res.Config, "db.host")
	assert.False(t, ok)

	// A value guard only deletes on an exact match.
	_, err = composer.Compose("config", []string{"~db.port=9999"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not delete 'db.port'")

	res, err = composer.Compose("config", []string{"~db.port=3306"})
	require.NoError(t, err)

	_, ok = value.GetPath(res.Config, "db.port")
	assert.False(t, ok)

	_, err = composer.Compose("config", []string{"~db.nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Key not found in config")
}

func TestComposeListExtensions(t *testing.T) {
	t.Parallel()

	_, composer := composeFixture(t)

	res, err := composer.Compose("config", []string{"plugins=append(tracing)"})
	require.NoError(t, err)

	v, _ := value.GetPath(res.Config, "plugins")
	items, _ := v.AsList()
	require.Len(t, items, 3)
	assert.Equal(t, "tracing", items[2].String())

	res, err = composer.Compose("config", []string{"plugins=remove_value(auth)"})
	require.NoError(t, err)

	v, _ = value.GetPath(res.Config, "plugins")
	items, _ = v.AsList()
	require.Len(t, items, 1)
	assert.Equal(t, "metrics", items[0].String())

	res, err = composer.Compose("config", []string{"plugins=list_clear()"})
	require.NoError(t, err)

	v, _ = value.GetPath(res.Config, "plugins")
	items, ok := v.AsList()
	require.True(t, ok)
	assert.Empty(t, items)
}

func TestComposeListReplacement(t *testing.T) {
	t.Parallel()

	// A plain list override replaces, it does not merge element-wise.
	_, composer := composeFixture(t)

	res, err := composer.Compose("config", []string{"plugins=[tracing]"})
	require.NoError(t, err)

	v, _ := value.GetPath(res.Config, "plugins")
	items, _ := v.AsList()
	require.Len(t, items, 1)
	assert.Equal(t, "tracing", items[0].String())
}

func TestComposeResolve(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml",
		"db:\n  host: localhost\n  port: 3306\nurl: jdbc://${db.host}:${db.port}\nport_copy: ${db.port}\n")

	composer := compose.New(source.NewFileSource("main", dir), compose.WithResolve(true))

	res, err := composer.Compose("config", nil)
	require.NoError(t, err)

	url, _ := res.Config.Get("url")
	assert.Equal(t, "jdbc://localhost:3306", url.String())

	// Whole-string interpolations keep the looked-up type.
	portCopy, _ := res.Config.Get("port_copy")
	i, ok := portCopy.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(3306), i)
}

func TestComposeSweepRejected(t *testing.T) {
	t.Parallel()

	_, composer := composeFixture(t)

	_, err := composer.Compose("config", []string{"db.port=choice(1,2)"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expand sweeps before composing")
}

func TestComposeAuditTrail(t *testing.T) {
	t.Parallel()

	_, composer := composeFixture(t)

	tokens := []string{"db=postgres", "db.port=15432"}

	res, err := composer.Compose("config", tokens)
	require.NoError(t, err)
	assert.Equal(t, tokens, res.Overrides)

	// The composed tree serializes for config.yaml style artifacts.
	data, err := value.MarshalYAML(value.DictVal(res.Config))
	require.NoError(t, err)
	assert.Contains(t, string(data), "driver: postgres")
}
