package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	writeConfig(t, dir, "config.yaml", "defaults:\n  - db: mysql\n\nname: myapp\n")
	writeConfig(t, dir, "db/mysql.yaml", "driver: mysql\nport: 3306\n")
	writeConfig(t, dir, "db/postgres.yaml", "driver: postgres\nport: 5432\n")

	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer

	app := newApp()
	app.Writer = &buf

	err := app.Run(append([]string{"confect"}, args...))

	return buf.String(), err
}

func TestComposeCommand(t *testing.T) {
	t.Parallel()

	dir := fixtureDir(t)

	out, err := run(t, "--config-dir", dir, "compose")
	require.NoError(t, err)
	assert.Contains(t, out, "driver: mysql")
	assert.Contains(t, out, "name: myapp")
}

func TestComposeCommandOverrides(t *testing.T) {
	t.Parallel()

	dir := fixtureDir(t)

	out, err := run(t, "--config-dir", dir, "compose", "db=postgres", "db.port=15432")
	require.NoError(t, err)
	assert.Contains(t, out, "driver: postgres")
	assert.Contains(t, out, "port: 15432")
}

func TestComposeCommandBadOverride(t *testing.T) {
	t.Parallel()

	dir := fixtureDir(t)

	_, err := run(t, "--config-dir", dir, "compose", "nonexistent=foo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not override 'nonexistent'")
}

func TestMultirunCommand(t *testing.T) {
	t.Parallel()

	dir := fixtureDir(t)

	out, err := run(t, "--config-dir", dir, "multirun", "db=mysql,postgres")
	require.NoError(t, err)
	assert.Contains(t, out, "# job 0: db=mysql")
	assert.Contains(t, out, "# job 1: db=postgres")
	assert.Contains(t, out, "driver: mysql")
	assert.Contains(t, out, "driver: postgres")
}

func TestMultirunCommandGlob(t *testing.T) {
	t.Parallel()

	dir := fixtureDir(t)

	out, err := run(t, "--config-dir", dir, "multirun", "db=glob(*,exclude=mysql)")
	require.NoError(t, err)
	assert.Contains(t, out, "# job 0: db=postgres")
	assert.NotContains(t, out, "driver: mysql")
}

func TestListCommand(t *testing.T) {
	t.Parallel()

	dir := fixtureDir(t)

	out, err := run(t, "--config-dir", dir, "list", "db")
	require.NoError(t, err)
	assert.Contains(t, out, "mysql")
	assert.Contains(t, out, "postgres")
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "confect dev")
}
