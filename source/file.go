package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0xalexb/confect/value"
)

// FileSource reads configuration documents from a directory tree. The
// logical path "db/mysql" resolves to "<base>/db/mysql.yaml" (or .yml),
// and groups are plain subdirectories.
type FileSource struct {
	provider string
	base     string
}

// NewFileSource creates a file-based source rooted at path. A leading
// "file://" scheme is stripped.
func NewFileSource(provider, path string) *FileSource {
	if idx := strings.Index(path, "://"); idx >= 0 {
		path = path[idx+3:]
	}

	return &FileSource{
		provider: provider,
		base:     filepath.Clean(path),
	}
}

// Provider returns the provider name the source was created with.
func (s *FileSource) Provider() string { return s.provider }

// Available reports whether the source's base directory exists.
func (s *FileSource) Available() bool { return s.IsGroup("") }

func (s *FileSource) resolve(path string) string {
	if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
		yamlPath := filepath.Join(s.base, path+".yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			return yamlPath
		}

		return filepath.Join(s.base, path+".yml")
	}

	return filepath.Join(s.base, path)
}

// Load reads and parses the config at the logical path.
func (s *FileSource) Load(path string) (Result, error) {
	full := s.resolve(path)

	data, err := os.ReadFile(full) // #nosec G304 -- path is rooted at the source base
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return Result{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	doc, err := value.UnmarshalYAML(data)
	if err != nil {
		return Result{}, fmt.Errorf("config %q: %w", path, err)
	}

	return Result{
		Provider: s.provider,
		Path:     path,
		Config:   doc,
		Header:   ExtractHeader(string(data)),
	}, nil
}

// IsConfig reports whether path names an existing config file.
func (s *FileSource) IsConfig(path string) bool {
	stat, err := os.Stat(s.resolve(path))

	return err == nil && !stat.IsDir()
}

// IsGroup reports whether path names an existing group directory.
func (s *FileSource) IsGroup(path string) bool {
	stat, err := os.Stat(filepath.Join(s.base, path))

	return err == nil && stat.IsDir()
}

// Exists reports whether path names either a config or a group.
func (s *FileSource) Exists(path string) bool {
	return s.IsConfig(path) || s.IsGroup(path)
}

// List returns the sorted, deduplicated names under a group path. Config
// names are listed without their .yaml/.yml extension.
func (s *FileSource) List(path string, filter Filter) []string {
	entries, err := os.ReadDir(filepath.Join(s.base, path))
	if err != nil {
		return nil
	}

	var items []string

	for _, entry := range entries {
		name := entry.Name()
		isGroup := entry.IsDir()
		isConfig := !isGroup && (strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml"))

		var include bool

		switch filter {
		case FilterConfig:
			include = isConfig
		case FilterGroup:
			include = isGroup
		default:
			include = isConfig || isGroup
		}

		if !include {
			continue
		}

		if isConfig {
			name = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}

		items = append(items, name)
	}

	sort.Strings(items)

	return dedupSorted(items)
}

func dedupSorted(items []string) []string {
	out := items[:0]

	for i, item := range items {
		if i == 0 || items[i-1] != item {
			out = append(out, item)
		}
	}

	return out
}
