package source_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xalexb/confect/source"
	"github.com/0xalexb/confect/value"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestExtractHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    map[string]string
	}{
		{
			name:    "package directive",
			content: "# @package db\nhost: localhost\n",
			want:    map[string]string{"package": "db"},
		},
		{
			name:    "colon form",
			content: "# @package:db\nhost: localhost\n",
			want:    map[string]string{"package": "db"},
		},
		{
			name:    "multiple directives",
			content: "# @package _global_\n# @mode strict\nhost: localhost\n",
			want:    map[string]string{"package": "_global_", "mode": "strict"},
		},
		{
			name:    "stops at content",
			content: "# @package db\nhost: localhost\n# @mode ignored\n",
			want:    map[string]string{"package": "db"},
		},
		{
			name:    "leading blank lines",
			content: "\n# @package db\n\nhost: localhost\n",
			want:    map[string]string{"package": "db"},
		},
		{
			name:    "no directives",
			content: "host: localhost\n",
			want:    map[string]string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, source.ExtractHeader(tt.content))
		})
	}
}

func TestFileSourceLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "# @package _global_\ndb:\n  host: localhost\n  port: 3306\n")

	src := source.NewFileSource("test", dir)

	require.True(t, src.Available())
	assert.True(t, src.IsConfig("config"))
	assert.False(t, src.IsConfig("other"))

	result, err := src.Load("config")
	require.NoError(t, err)
	assert.Equal(t, "test", result.Provider)
	assert.Equal(t, map[string]string{"package": "_global_"}, result.Header)

	dict, ok := result.Config.AsDict()
	require.True(t, ok)

	host, ok := dict.Select("db.host")
	require.True(t, ok)
	assert.True(t, host.Equal(value.String("localhost")))

	port, ok := dict.Select("db.port")
	require.True(t, ok)
	assert.True(t, port.Equal(value.Int(3306)))
}

func TestFileSourceLoadNotFound(t *testing.T) {
	t.Parallel()

	src := source.NewFileSource("test", t.TempDir())

	_, err := src.Load("nope")
	require.ErrorIs(t, err, source.ErrNotFound)
}

func TestFileSourceYmlFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "legacy.yml", "value: 1\n")

	src := source.NewFileSource("test", dir)

	assert.True(t, src.IsConfig("legacy"))

	result, err := src.Load("legacy")
	require.NoError(t, err)

	dict, ok := result.Config.AsDict()
	require.True(t, ok)
	assert.True(t, dict.Contains("value"))
}

func TestFileSourceSpecialStrings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "required: \"???\"\nref: ${db.host}\n")

	src := source.NewFileSource("test", dir)

	result, err := src.Load("config")
	require.NoError(t, err)

	dict, ok := result.Config.AsDict()
	require.True(t, ok)

	required, _ := dict.Get("required")
	assert.True(t, required.IsMissing())

	ref, _ := dict.Get("ref")
	assert.True(t, ref.IsInterpolation())
}

func TestFileSourceList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "v: 1\n")
	writeConfig(t, dir, "b.yaml", "v: 2\n")
	writeConfig(t, dir, "db/mysql.yaml", "driver: mysql\n")

	src := source.NewFileSource("test", dir)

	assert.True(t, src.IsGroup("db"))
	assert.Equal(t, []string{"a", "b", "db"}, src.List("", source.FilterAny))
	assert.Equal(t, []string{"a", "b"}, src.List("", source.FilterConfig))
	assert.Equal(t, []string{"db"}, src.List("", source.FilterGroup))
	assert.Equal(t, []string{"mysql"}, src.List("db", source.FilterConfig))
}

func TestSearchPathOrder(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	writeConfig(t, first, "config.yaml", "origin: first\n")
	writeConfig(t, second, "config.yaml", "origin: second\n")
	writeConfig(t, second, "extra.yaml", "v: 1\n")

	sp := source.NewSearchPath(
		source.Entry{Provider: "first", Path: first},
		source.Entry{Provider: "second", Path: "file://" + second},
	)

	result, err := sp.Load("config")
	require.NoError(t, err)
	assert.Equal(t, "first", result.Provider)

	result, err = sp.Load("extra")
	require.NoError(t, err)
	assert.Equal(t, "second", result.Provider)

	_, err = sp.Load("missing")
	require.ErrorIs(t, err, source.ErrNotFound)

	assert.Equal(t, []string{"config", "extra"}, sp.List("", source.FilterConfig))
}

func TestCachingLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "db:\n  port: 3306\n")

	cached := source.NewCaching(source.NewFileSource("test", dir))

	first, err := cached.Load("config")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Size())

	// Mutating the returned tree must not poison the cache.
	dict, ok := first.Config.AsDict()
	require.True(t, ok)
	value.SetPath(dict, "db.port", value.Int(5432))

	second, err := cached.Load("config")
	require.NoError(t, err)

	secondDict, ok := second.Config.AsDict()
	require.True(t, ok)

	port, ok := secondDict.Select("db.port")
	require.True(t, ok)
	assert.True(t, port.Equal(value.Int(3306)))

	cached.Clear()
	assert.Equal(t, 0, cached.Size())
}

func TestCachingNotFoundIsCached(t *testing.T) {
	t.Parallel()

	cached := source.NewCaching(source.NewFileSource("test", t.TempDir()))

	_, err := cached.Load("missing")
	require.ErrorIs(t, err, source.ErrNotFound)
	assert.Equal(t, 1, cached.Size())

	_, err = cached.Load("missing")
	require.ErrorIs(t, err, source.ErrNotFound)
}
