// Package compose turns a flattened defaults plan into one merged
// configuration tree: it loads every planned config, merges it at its
// package path, applies value overrides and deletions, and optionally
// resolves interpolations eagerly.
package compose

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/0xalexb/confect/defaults"
	"github.com/0xalexb/confect/interp"
	"github.com/0xalexb/confect/logging"
	"github.com/0xalexb/confect/override"
	"github.com/0xalexb/confect/source"
	"github.com/0xalexb/confect/value"
)

// GlobalPackage merges a config at the tree root regardless of its group.
const GlobalPackage = "_global_"

// Composer runs compose requests against a shared Source. It is safe to
// share across goroutines; per-request state lives in the defaults
// builder.
type Composer struct {
	src       source.Source
	logger    *slog.Logger
	resolve   bool
	resolvers map[string]interp.Resolver
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the logger used for composition progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) { c.logger = logger }
}

// WithResolve makes Compose resolve all interpolations eagerly instead of
// leaving them in the tree.
func WithResolve(resolve bool) Option {
	return func(c *Composer) { c.resolve = resolve }
}

// WithResolver registers an extra interpolation resolver under name.
func WithResolver(name string, r interp.Resolver) Option {
	return func(c *Composer) {
		if c.resolvers == nil {
			c.resolvers = make(map[string]interp.Resolver)
		}

		c.resolvers[name] = r
	}
}

// New returns a Composer reading from src.
func New(src source.Source, opts ...Option) *Composer {
	c := &Composer{
		src:    src,
		logger: logging.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Result is one composed configuration with its audit trail.
type Result struct {
	// Config is the merged tree.
	Config *value.Dict
	// Plan is the flattened defaults list that was merged, in order.
	Plan []defaults.ResultDefault
	// Overrides holds the raw override tokens, for overrides.yaml style
	// artifacts.
	Overrides []string
	// Choices maps each group to its final selection.
	Choices map[string]string
}

// Compose builds configName with the given override tokens and merges the
// resulting plan.
func (c *Composer) Compose(configName string, overrideTokens []string) (*Result, error) {
	parsed, err := override.ParseMany(overrideTokens)
	if err != nil {
		return nil, err
	}

	builder := defaults.NewBuilderParsed(c.src, parsed)

	built, err := builder.Build(configName)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("defaults list resolved",
		slog.String("config", configName),
		slog.Int("defaults", len(built.Defaults)),
		slog.Int("tree_size", built.Tree.Size()))

	merged := value.NewDict()

	for _, rd := range built.Defaults {
		if rd.ConfigPath == "" {
			continue
		}

		res, err := c.src.Load(rd.ConfigPath)
		if err != nil {
			return nil, err
		}

		body, ok := res.Config.AsDict()
		if !ok {
			return nil, fmt.Errorf("config %s is not a mapping", rd.ConfigPath)
		}

		body = body.Clone()
		body.Remove("defaults")

		mergeAtPackage(merged, body, rd.Package)
	}

	for _, ovr := range built.ValueOverrides {
		if err := applyValueOverride(merged, ovr); err != nil {
			return nil, err
		}
	}

	if c.resolve {
		engine := interp.New(merged)
		for name, r := range c.resolvers {
			engine.Register(name, r)
		}

		merged, err = engine.ResolveRoot()
		if err != nil {
			return nil, err
		}
	}

	c.logger.Info("composed config",
		slog.String("config", configName),
		slog.Int("overrides", len(overrideTokens)))

	return &Result{
		Config:    merged,
		Plan:      built.Defaults,
		Overrides: overrideTokens,
		Choices:   built.KnownChoices,
	}, nil
}

// Resolve runs interpolation resolution over an already-composed tree.
func (c *Composer) Resolve(config *value.Dict) (*value.Dict, error) {
	engine := interp.New(config)
	for name, r := range c.resolvers {
		engine.Register(name, r)
	}

	return engine.ResolveRoot()
}

// mergeAtPackage merges body into target at the dotted package path. Empty
// and _global_ merge at the root.
func mergeAtPackage(target *value.Dict, body *value.Dict, pkg string) {
	if pkg == "" || pkg == GlobalPackage {
		value.MergeDicts(target, body)

		return
	}

	current := target

	for _, part := range strings.Split(pkg, ".") {
		next, ok := current.Get(part)

		nested, isDict := next.AsDict()
		if !ok || !isDict {
			nested = value.NewDict()
			current.Insert(part, value.DictVal(nested))
		}

		current = nested
	}

	value.MergeDicts(current, body)
}

// applyValueOverride applies one dotted-key override to the merged tree.
func applyValueOverride(config *value.Dict, ovr override.Override) error {
	path := ovr.Key.Path

	if ovr.IsSweep() {
		return fmt.Errorf("override '%s' is a sweep; expand sweeps before composing", ovr.Input)
	}

	switch ovr.Type {
	case override.Del:
		return applyDelete(config, ovr)
	case override.Add:
		if _, exists := value.GetPath(config, path); exists {
			return fmt.Errorf("Could not append to config. An item is already at '%s'", path)
		}

		value.SetPath(config, path, overrideToValue(ovr))
	case override.ForceAdd:
		value.SetPath(config, path, overrideToValue(ovr))
	default:
		if ext, ok := ovr.Value.(override.ListExtension); ok {
			return applyListExtension(config, path, ext)
		}

		if _, exists := value.GetPath(config, path); !exists {
			return fmt.Errorf("Could not override '%s'. To append to your config use +%s", path, ovr.Input)
		}

		value.SetPath(config, path, overrideToValue(ovr))
	}

	return nil
}

func applyDelete(config *value.Dict, ovr override.Override) error {
	path := ovr.Key.Path

	existing, exists := value.GetPath(config, path)
	if !exists {
		return fmt.Errorf("Could not delete '%s'. Key not found in config", path)
	}

	if ovr.Value != nil {
		want := overrideToValue(ovr)
		if !existing.Equal(want) {
			return fmt.Errorf("Could not delete '%s'. The current value is %s, not %s",
				path, existing, want)
		}
	}

	value.DeletePath(config, path)

	return nil
}

func overrideToValue(ovr override.Override) value.Value {
	elem, ok := ovr.Value.(override.Element)
	if !ok {
		return value.Null()
	}

	return elem.ToValue()
}

// applyListExtension applies append/prepend/insert/remove/clear to a list
// already in the tree.
func applyListExtension(config *value.Dict, path string, ext override.ListExtension) error {
	existing, exists := value.GetPath(config, path)
	if !exists {
		return fmt.Errorf("Could not extend '%s'. Key not found in config", path)
	}

	items, isList := existing.AsList()
	if !isList {
		return fmt.Errorf("Could not extend '%s'. The existing value is not a list", path)
	}

	additions := make([]value.Value, 0, len(ext.Values))
	for _, elem := range ext.Values {
		additions = append(additions, elem.ToValue())
	}

	var out []value.Value

	switch ext.Op {
	case override.OpAppend:
		out = append(append(out, items...), additions...)
	case override.OpPrepend:
		out = append(append(out, additions...), items...)
	case override.OpInsert:
		idx := int(ext.Index)
		if idx < 0 || idx > len(items) {
			return fmt.Errorf("Could not insert into '%s'. Index %d out of range", path, idx)
		}

		out = append(out, items[:idx]...)
		out = append(out, additions...)
		out = append(out, items[idx:]...)
	case override.OpRemoveAt:
		idx := int(ext.Index)
		if idx < 0 || idx >= len(items) {
			return fmt.Errorf("Could not remove from '%s'. Index %d out of range", path, idx)
		}

		out = append(out, items[:idx]...)
		out = append(out, items[idx+1:]...)
	case override.OpRemoveValue:
		for _, item := range items {
			if !containsValue(additions, item) {
				out = append(out, item)
			}
		}
	case override.OpClear:
		out = []value.Value{}
	}

	value.SetPath(config, path, value.List(out...))

	return nil
}

func containsValue(set []value.Value, v value.Value) bool {
	for _, candidate := range set {
		if candidate.Equal(v) {
			return true
		}
	}

	return false
}
