package defaults

import (
	"errors"
	"fmt"
	"strings"

	"github.com/0xalexb/confect/override"
	"github.com/0xalexb/confect/source"
	"github.com/0xalexb/confect/value"
)

// Result is the output of one defaults-list build.
type Result struct {
	// Defaults is the flattened merge plan, in merge order.
	Defaults []ResultDefault
	// Tree is the defaults tree the plan was flattened from.
	Tree *TreeNode
	// Overrides is the bookkeeping after the walk claimed its entries.
	Overrides *Overrides
	// ValueOverrides are the dotted-key overrides for the composition step.
	ValueOverrides []override.Override
	// KnownChoices maps every group encountered to its final selection.
	KnownChoices map[string]string
}

// Builder constructs the defaults tree for one build. It owns mutable
// bookkeeping and must not be shared across concurrent builds; the Source
// may be shared.
type Builder struct {
	src       source.Source
	overrides *Overrides
	// configs currently being expanded, for cycle detection
	expanding map[string]struct{}
}

// NewBuilder parses the override tokens and prepares a single-use builder.
func NewBuilder(src source.Source, tokens []string) (*Builder, error) {
	ovrs, err := override.ParseMany(tokens)
	if err != nil {
		return nil, err
	}

	return NewBuilderParsed(src, ovrs), nil
}

// NewBuilderParsed prepares a builder from already-parsed overrides.
func NewBuilderParsed(src source.Source, ovrs []override.Override) *Builder {
	return &Builder{
		src:       src,
		overrides: NewOverrides(ovrs),
		expanding: make(map[string]struct{}),
	}
}

// Build resolves the defaults tree for configName and flattens it. An empty
// configName builds from the appends alone. Every override and deletion
// supplied must be claimed by some tree node or Build fails.
func (b *Builder) Build(configName string) (*Result, error) {
	root := virtualRoot()

	if configName != "" {
		primary := ConfigDefault{Path: configName, Primary: true}

		node, err := b.buildConfigTree(primary)
		if err != nil {
			return nil, err
		}

		root.Children = append(root.Children, node)
	}

	for _, gd := range b.overrides.Appends() {
		node, err := b.buildGroupTree(gd)
		if err != nil {
			return nil, err
		}

		b.overrides.recordChoice(gd.GroupPath(), gd.Value)
		root.Children = append(root.Children, node)
	}

	var defaults []ResultDefault

	flattenNode(root, nil, &defaults)

	if err := b.overrides.EnsureOverridesUsed(); err != nil {
		return nil, err
	}

	if err := b.overrides.EnsureDeletionsUsed(); err != nil {
		return nil, err
	}

	return &Result{
		Defaults:       defaults,
		Tree:           root,
		Overrides:      b.overrides,
		ValueOverrides: b.overrides.ValueOverrides(),
		KnownChoices:   b.overrides.KnownChoices(),
	}, nil
}

// buildConfigTree expands a standalone config entry: load its body, walk
// its defaults list, and append an implicit _self_ when none was declared.
func (b *Builder) buildConfigTree(cd ConfigDefault) (*TreeNode, error) {
	if cd.IsSelf() {
		return configNode(cd), nil
	}

	configPath := cd.ConfigPath()

	if _, active := b.expanding[configPath]; active {
		return nil, compErrf("Circular dependency detected: %s", configPath)
	}

	b.expanding[configPath] = struct{}{}
	defer delete(b.expanding, configPath)

	res, err := b.src.Load(configPath)
	if err != nil {
		if cd.Optional && errors.Is(err, source.ErrNotFound) {
			cd.Deleted = true

			return configNode(cd), nil
		}

		return nil, err
	}

	cd.PackageHeader = res.Header["package"]

	children, err := b.buildChildren(configPath, cd, res.Config, true)
	if err != nil {
		return nil, err
	}

	node := configNode(cd)
	node.Children = children

	return node, nil
}

// buildGroupTree expands a group selection into its config subtree.
func (b *Builder) buildGroupTree(gd GroupDefault) (*TreeNode, error) {
	if gd.IsMissing() {
		key := gd.OverrideKey()
		msg := fmt.Sprintf("You must specify '%s', e.g, %s=<OPTION>", key, key)

		if options := b.src.List(gd.GroupPath(), source.FilterConfig); len(options) > 0 {
			msg += "\nAvailable options:\n\t" + strings.Join(options, "\n\t")
		}

		return nil, &CompositionError{Message: msg}
	}

	// Multi-value selections only arise from sweeps; expansion narrows them
	// before a plain build sees this node.
	if gd.IsMulti() {
		return groupNode(gd), nil
	}

	configPath := gd.ConfigPath()

	res, err := b.src.Load(configPath)
	if err != nil {
		if gd.Optional && errors.Is(err, source.ErrNotFound) {
			gd.Deleted = true

			return groupNode(gd), nil
		}

		return nil, err
	}

	gd.PackageHeader = res.Header["package"]

	parent := ConfigDefault{
		Path:          configPath,
		ParentBaseDir: gd.GroupPath(),
		Package:       groupPackage(gd),
	}

	children, err := b.buildChildren(configPath, parent, res.Config, false)
	if err != nil {
		return nil, err
	}

	node := groupNode(gd)
	node.Children = children

	return node, nil
}

// buildChildren walks a config body's defaults list. With implicitSelf a
// trailing _self_ is appended when none was declared; group-selected
// configs skip it since their own body already merges after their
// children.
func (b *Builder) buildChildren(configPath string, parent ConfigDefault, body value.Value, implicitSelf bool) ([]*TreeNode, error) {
	entries := defaultsList(body)

	var (
		children  []*TreeNode
		foundSelf bool
	)

	for _, entry := range entries {
		parsed, err := b.parseDefaultEntry(entry, parent)
		if err != nil {
			return nil, err
		}

		switch parsed.kind {
		case entrySelf:
			foundSelf = true

			children = append(children, configNode(ConfigDefault{Path: SelfName}))
		case entryConfig:
			child, err := b.buildConfigTree(parsed.config)
			if err != nil {
				return nil, err
			}

			children = append(children, child)
		case entryGroup:
			gd := parsed.group

			if gd.IsOverride {
				b.overrides.addInternalOverride(configPath, gd.GroupPath(), gd.Value)

				continue
			}

			child, err := b.processGroup(gd)
			if err != nil {
				return nil, err
			}

			if child != nil {
				children = append(children, child)
			}
		}
	}

	if implicitSelf && !foundSelf && len(entries) > 0 {
		children = append(children, configNode(ConfigDefault{Path: SelfName}))
	}

	return children, nil
}

// processGroup applies override and deletion bookkeeping to one group
// selection, then expands it. A deleted selection yields no node.
func (b *Builder) processGroup(gd GroupDefault) (*TreeNode, error) {
	if v, ok := b.overrides.choiceFor(gd); ok {
		gd.Value = v
		gd.Values = nil
		gd.ConfigNameOverridden = true
	}

	if b.overrides.deleteMatch(gd.GroupPath(), gd.Value) {
		gd.Deleted = true
		b.overrides.recordChoice(gd.GroupPath(), gd.Value)

		return nil, nil
	}

	b.overrides.recordChoice(gd.GroupPath(), gd.Value)

	return b.buildGroupTree(gd)
}

type entryKind int

const (
	entrySelf entryKind = iota
	entryConfig
	entryGroup
)

type parsedEntry struct {
	kind   entryKind
	config ConfigDefault
	group  GroupDefault
}

// parseDefaultEntry interprets one defaults-list element. A string is a
// config path (or _self_); a single-key mapping selects within a group when
// that group exists on the source, else it names a nested config path.
func (b *Builder) parseDefaultEntry(entry value.Value, parent ConfigDefault) (parsedEntry, error) {
	parentPkg := parent.FinalPackage()

	if s, ok := entry.AsString(); ok {
		if s == SelfName {
			return parsedEntry{kind: entrySelf}, nil
		}

		return parsedEntry{kind: entryConfig, config: ConfigDefault{
			Path:          s,
			ParentBaseDir: parent.ParentBaseDir,
			ParentPackage: parentPkg,
		}}, nil
	}

	dict, ok := entry.AsDict()
	if !ok {
		return parsedEntry{}, compErrf("Invalid default type: %s", entry)
	}

	var (
		optional   bool
		isOverride bool
		pkg        string
	)

	if v, found := dict.Get("optional"); found {
		optional, _ = v.AsBool()
	}

	if v, found := dict.Get("override"); found {
		isOverride, _ = v.AsBool()
	}

	if v, found := dict.Get("package"); found {
		pkg, _ = v.AsString()
	}

	for _, e := range dict.Entries() {
		if e.Key == "optional" || e.Key == "override" || e.Key == "package" {
			continue
		}

		if e.Value.IsNull() {
			continue
		}

		val, isStr := e.Value.AsString()
		if !isStr {
			if e.Value.IsMissing() {
				val = MissingValue
			} else {
				continue
			}
		}

		fullPath := e.Key
		if parent.ParentBaseDir != "" {
			fullPath = parent.ParentBaseDir + "/" + e.Key
		}

		if b.src.IsGroup(fullPath) {
			return parsedEntry{kind: entryGroup, group: GroupDefault{
				Group:         e.Key,
				Value:         val,
				Optional:      optional,
				IsOverride:    isOverride,
				Package:       pkg,
				ParentBaseDir: parent.ParentBaseDir,
				ParentPackage: parentPkg,
			}}, nil
		}

		return parsedEntry{kind: entryConfig, config: ConfigDefault{
			Path:          e.Key + "/" + val,
			Optional:      optional,
			Package:       pkg,
			ParentBaseDir: parent.ParentBaseDir,
			ParentPackage: parentPkg,
		}}, nil
	}

	return parsedEntry{}, compErrf("Invalid default entry")
}

// defaultsList extracts the "defaults" key from a config body.
func defaultsList(body value.Value) []value.Value {
	dict, ok := body.AsDict()
	if !ok {
		return nil
	}

	v, ok := dict.Get("defaults")
	if !ok {
		return nil
	}

	items, _ := v.AsList()

	return items
}

// flattenNode converts the tree to the merge plan with a post-order walk:
// children first, then the node itself, so dependencies merge before the
// configs that pulled them in. A _self_ child stands in for its parent's
// own body at the position it was declared, so a node with a _self_ child
// emits nothing for itself.
func flattenNode(n *TreeNode, parent *TreeNode, out *[]ResultDefault) {
	for _, child := range n.Children {
		flattenNode(child, n, out)
	}

	switch n.kind {
	case nodeConfig:
		cd := n.Config

		if cd.IsSelf() {
			if parent != nil {
				*out = append(*out, selfEntry(parent))
			}

			return
		}

		if cd.Deleted || hasSelfChild(n) {
			return
		}

		*out = append(*out, ResultDefault{
			ConfigPath: cd.ConfigPath(),
			Parent:     parent.path(),
			Package:    configPackage(cd),
			Primary:    cd.Primary,
		})
	case nodeGroup:
		gd := n.Group

		if gd.Deleted || gd.IsMulti() || hasSelfChild(n) {
			return
		}

		*out = append(*out, ResultDefault{
			ConfigPath:  gd.ConfigPath(),
			Parent:      parent.path(),
			Package:     groupPackage(gd),
			Primary:     gd.Primary,
			OverrideKey: gd.OverrideKey(),
		})
	}
}

// selfEntry renders the body entry of the node whose defaults list
// declared _self_.
func selfEntry(parent *TreeNode) ResultDefault {
	switch parent.kind {
	case nodeConfig:
		cd := parent.Config

		return ResultDefault{
			ConfigPath: cd.ConfigPath(),
			Package:    configPackage(cd),
			Primary:    cd.Primary,
			IsSelf:     true,
		}
	case nodeGroup:
		gd := parent.Group

		return ResultDefault{
			ConfigPath:  gd.ConfigPath(),
			Package:     groupPackage(gd),
			OverrideKey: gd.OverrideKey(),
			IsSelf:      true,
		}
	default:
		return ResultDefault{IsSelf: true}
	}
}

func hasSelfChild(n *TreeNode) bool {
	for _, child := range n.Children {
		if child.kind == nodeConfig && child.Config.IsSelf() {
			return true
		}
	}

	return false
}

// configPackage picks the merge package: explicit @pkg, then the config's
// own header, then the path-derived default, qualified by any inherited
// parent package. Header directives are absolute.
func configPackage(cd ConfigDefault) string {
	if cd.Package == "" && cd.PackageHeader != "" {
		return cd.PackageHeader
	}

	return cd.FinalPackage()
}

// groupPackage picks the merge package for a group selection. Header
// directives are absolute and bypass parent qualification.
func groupPackage(gd GroupDefault) string {
	if gd.Package == "" && gd.PackageHeader != "" {
		return gd.PackageHeader
	}

	return gd.FinalPackage(false)
}
