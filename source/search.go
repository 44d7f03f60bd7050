package source

import (
	"fmt"
	"sort"
	"sync"
)

// SearchPath queries an ordered list of sources. Load returns the first
// hit; List is the sorted union across all sources.
type SearchPath struct {
	sources []Source
}

// Entry is one search path element: a provider name plus a path, which may
// carry a scheme prefix such as "file://".
type Entry struct {
	Provider string
	Path     string
}

// NewSearchPath builds a search path from entries. Unknown schemes fall
// back to the file source.
func NewSearchPath(entries ...Entry) *SearchPath {
	sources := make([]Source, 0, len(entries))
	for _, entry := range entries {
		sources = append(sources, NewFileSource(entry.Provider, entry.Path))
	}

	return &SearchPath{sources: sources}
}

// FromDir builds a single-entry search path over one config directory.
func FromDir(dir string) *SearchPath {
	return NewSearchPath(Entry{Provider: "main", Path: dir})
}

// Append adds a source with lower priority than the existing ones.
func (s *SearchPath) Append(src Source) {
	s.sources = append(s.sources, src)
}

// Provider identifies the search path as a whole.
func (s *SearchPath) Provider() string { return "searchpath" }

// Load returns the config from the first source that has it.
func (s *SearchPath) Load(path string) (Result, error) {
	for _, src := range s.sources {
		if src.IsConfig(path) {
			return src.Load(path)
		}
	}

	return Result{}, fmt.Errorf("%w in any source: %s", ErrNotFound, path)
}

// IsConfig reports whether any source has a config at path.
func (s *SearchPath) IsConfig(path string) bool {
	for _, src := range s.sources {
		if src.IsConfig(path) {
			return true
		}
	}

	return false
}

// IsGroup reports whether any source has a group at path.
func (s *SearchPath) IsGroup(path string) bool {
	for _, src := range s.sources {
		if src.IsGroup(path) {
			return true
		}
	}

	return false
}

// Exists reports whether path names a config or group in any source.
func (s *SearchPath) Exists(path string) bool {
	return s.IsConfig(path) || s.IsGroup(path)
}

// List returns the sorted, deduplicated union of names across all sources.
func (s *SearchPath) List(path string, filter Filter) []string {
	var items []string
	for _, src := range s.sources {
		items = append(items, src.List(path, filter)...)
	}

	sort.Strings(items)

	return dedupSorted(items)
}

// Caching wraps a source with a read-through cache keyed by logical path.
// Entries are immutable once inserted, so it is safe to share one Caching
// source across concurrent builds.
type Caching struct {
	inner Source

	mu    sync.Mutex
	cache map[string]cachedResult
}

type cachedResult struct {
	result Result
	err    error
}

// NewCaching wraps inner with a cache.
func NewCaching(inner Source) *Caching {
	return &Caching{
		inner: inner,
		cache: make(map[string]cachedResult),
	}
}

// Provider returns the wrapped source's provider name.
func (c *Caching) Provider() string { return c.inner.Provider() }

// Load returns the cached result for path, loading it on first use.
// Loaded configs are deep-copied on the way out so callers cannot mutate
// the cache.
func (c *Caching) Load(path string) (Result, error) {
	c.mu.Lock()
	cached, ok := c.cache[path]
	c.mu.Unlock()

	if !ok {
		result, err := c.inner.Load(path)
		cached = cachedResult{result: result, err: err}

		c.mu.Lock()
		c.cache[path] = cached
		c.mu.Unlock()
	}

	if cached.err != nil {
		return Result{}, cached.err
	}

	result := cached.result
	result.Config = result.Config.Clone()

	return result, nil
}

// IsConfig reports whether the wrapped source has a config at path.
func (c *Caching) IsConfig(path string) bool { return c.inner.IsConfig(path) }

// IsGroup reports whether the wrapped source has a group at path.
func (c *Caching) IsGroup(path string) bool { return c.inner.IsGroup(path) }

// Exists reports whether path names a config or group.
func (c *Caching) Exists(path string) bool { return c.inner.Exists(path) }

// List returns the wrapped source's listing.
func (c *Caching) List(path string, filter Filter) []string {
	return c.inner.List(path, filter)
}

// Size returns the number of cached entries.
func (c *Caching) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.cache)
}

// Clear drops every cached entry.
func (c *Caching) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]cachedResult)
}
