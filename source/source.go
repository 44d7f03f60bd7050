// Package source resolves logical config paths (for example "db/mysql") to
// parsed configuration documents plus their comment-header directives.
// Sources are pluggable behind the Source interface; the file-based
// implementation is the only one required.
package source

import (
	"errors"
	"strings"

	"github.com/0xalexb/confect/value"
)

// ErrNotFound is returned when a config path does not exist in a source.
var ErrNotFound = errors.New("config not found")

// Filter selects which object kinds List returns.
type Filter int

const (
	// FilterAny lists both configs and groups.
	FilterAny Filter = iota
	// FilterConfig lists config files only.
	FilterConfig
	// FilterGroup lists group directories only.
	FilterGroup
)

// Result is a loaded configuration document.
type Result struct {
	// Provider names the source the config came from.
	Provider string
	// Path is the logical path the config was requested as.
	Path string
	// Config is the parsed document body.
	Config value.Value
	// Header holds the leading "# @key value" directives, e.g. "package".
	Header map[string]string
}

// Source is a pluggable provider of configuration documents.
type Source interface {
	// Provider returns the source's provider name.
	Provider() string
	// Load reads and parses the config at the logical path.
	Load(path string) (Result, error)
	// IsConfig reports whether path names a config document.
	IsConfig(path string) bool
	// IsGroup reports whether path names a config group.
	IsGroup(path string) bool
	// Exists reports whether path names either a config or a group.
	Exists(path string) bool
	// List returns the sorted, deduplicated names under a group path.
	List(path string, filter Filter) []string
}

// ExtractHeader scans the leading comment block of a document for
// "# @key value" or "# @key:value" directives. Scanning stops at the first
// line that is not a comment, blank, or a "---" document marker.
func ExtractHeader(content string) map[string]string {
	header := make(map[string]string)

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if !strings.HasPrefix(trimmed, "#") {
			if strings.HasPrefix(trimmed, "---") {
				continue
			}

			break
		}

		comment := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		if !strings.HasPrefix(comment, "@") {
			continue
		}

		directive := strings.TrimPrefix(comment, "@")

		key, val, found := strings.Cut(directive, " ")
		if !found {
			key, val, found = strings.Cut(directive, ":")
			if !found {
				continue
			}
		}

		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		if key != "" && val != "" {
			header[key] = val
		}
	}

	return header
}
