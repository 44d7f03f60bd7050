// Package defaults builds and flattens the defaults tree: given a primary
// config name and a set of overrides, it resolves every group selection to
// a concrete config path and produces the ordered merge plan composition
// consumes.
package defaults

import "strings"

// ResultDefault is one entry of the flattened merge plan.
type ResultDefault struct {
	// ConfigPath is the logical path of the config to merge. For the
	// _self_ marker it names the config whose body merges at this spot.
	ConfigPath string
	// Parent is the path of the config whose defaults list produced this
	// entry, for diagnostics.
	Parent string
	// Package is the dotted path in the final tree where the config body
	// merges. Empty or "_global_" means the root.
	Package string
	// IsSelf marks the primary-body placeholder.
	IsSelf bool
	// Primary marks the entry for the requested root config.
	Primary bool
	// OverrideKey is the group selection key this entry came from, used to
	// report unused overrides.
	OverrideKey string
}

// SelfName is the placeholder marking where a config's own body merges
// relative to its defaults list.
const SelfName = "_self_"

// MissingValue marks a group selection the caller must supply.
const MissingValue = "???"

// globalPackage merges at the tree root and never qualifies children.
const globalPackage = "_global_"

// ConfigDefault is a defaults-list entry resolved to a standalone config
// path.
type ConfigDefault struct {
	Path     string
	Optional bool
	Deleted  bool

	// Package is an explicit @pkg target. PackageHeader is the "# @package"
	// directive read from the config itself.
	Package       string
	PackageHeader string
	ParentBaseDir string
	ParentPackage string
	Primary       bool
}

// IsSelf reports whether the entry is the _self_ placeholder.
func (c ConfigDefault) IsSelf() bool { return c.Path == SelfName }

// Name returns the last path segment.
func (c ConfigDefault) Name() string {
	if idx := strings.LastIndex(c.Path, "/"); idx >= 0 {
		return c.Path[idx+1:]
	}

	return c.Path
}

// GroupPath returns the entry's parent directory, resolved against the
// inherited base dir. A leading '/' makes the path absolute.
func (c ConfigDefault) GroupPath() string {
	path, absolute := strings.CutPrefix(c.Path, "/")

	group := ""
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		group = path[:idx]
	}

	switch {
	case absolute, c.ParentBaseDir == "":
		return group
	case group == "":
		return c.ParentBaseDir
	default:
		return c.ParentBaseDir + "/" + group
	}
}

// ConfigPath returns the full logical path to load.
func (c ConfigDefault) ConfigPath() string {
	path, absolute := strings.CutPrefix(c.Path, "/")

	if absolute || c.ParentBaseDir == "" {
		return path
	}

	return c.ParentBaseDir + "/" + path
}

// DefaultPackage derives the merge package from the group path.
func (c ConfigDefault) DefaultPackage() string {
	return strings.ReplaceAll(c.GroupPath(), "/", ".")
}

// FinalPackage computes where the config body merges: the explicit
// package, else the header directive, else the path-derived default. An
// inherited parent package qualifies the path relative to the parent;
// absolute paths and _global_ parents escape the qualification.
func (c ConfigDefault) FinalPackage() string {
	pkg := c.Package
	if pkg == "" {
		pkg = c.PackageHeader
	}

	parent := c.ParentPackage
	if parent == "" || parent == globalPackage || strings.HasPrefix(c.Path, "/") {
		if pkg == "" {
			pkg = c.DefaultPackage()
		}

		return pkg
	}

	if pkg == "" {
		rel := ""
		if idx := strings.LastIndex(c.Path, "/"); idx >= 0 {
			rel = c.Path[:idx]
		}

		pkg = strings.ReplaceAll(rel, "/", ".")
	}

	if pkg == "" {
		return parent
	}

	return parent + "." + pkg
}

// GroupDefault is a defaults-list entry selecting a config within a named
// group.
type GroupDefault struct {
	// Group is the slash-separated group path.
	Group string
	// Value is the selected option. Values holds a multi-selection and is
	// nil for the common single case.
	Value  string
	Values []string

	Optional bool
	Deleted  bool
	// IsOverride marks "override group: value" entries, which retarget an
	// existing selection instead of adding one.
	IsOverride bool
	// ExternalAppend marks entries injected by a +group=value override.
	ExternalAppend bool
	// ConfigNameOverridden is set when an override replaced the
	// file-declared value.
	ConfigNameOverridden bool

	Package       string
	PackageHeader string
	ParentBaseDir string
	ParentPackage string
	Primary       bool
}

// IsMulti reports whether the entry still holds several candidate values.
func (g GroupDefault) IsMulti() bool { return g.Values != nil }

// IsMissing reports whether the selection is the ??? sentinel.
func (g GroupDefault) IsMissing() bool { return !g.IsMulti() && g.Value == MissingValue }

// GroupPath resolves the group against the inherited base dir.
func (g GroupDefault) GroupPath() string {
	if after, ok := strings.CutPrefix(g.Group, "/"); ok {
		return after
	}

	if g.ParentBaseDir == "" {
		return g.Group
	}

	return g.ParentBaseDir + "/" + g.Group
}

// ConfigPath returns the logical path of the selected config.
func (g GroupDefault) ConfigPath() string {
	groupPath := g.GroupPath()
	if groupPath == "" {
		return g.Value
	}

	return groupPath + "/" + g.Value
}

// DefaultPackage derives the merge package from the group path.
func (g GroupDefault) DefaultPackage() string {
	return strings.ReplaceAll(g.GroupPath(), "/", ".")
}

// FinalPackage computes where the selected config merges: the explicit
// package if given, else the header directive when headerFallback is set,
// else the default package. An inherited parent package qualifies the
// group relative to the parent; absolute groups and _global_ parents
// escape the qualification.
func (g GroupDefault) FinalPackage(headerFallback bool) string {
	pkg := g.Package
	if pkg == "" && headerFallback {
		pkg = g.PackageHeader
	}

	parent := g.ParentPackage
	if parent == "" || parent == globalPackage || strings.HasPrefix(g.Group, "/") {
		if pkg == "" {
			pkg = g.DefaultPackage()
		}

		return pkg
	}

	if pkg == "" {
		pkg = strings.ReplaceAll(g.Group, "/", ".")
	}

	if pkg == "" {
		return parent
	}

	return parent + "." + pkg
}

// OverrideKey returns the key a caller would use to override this
// selection, with an @pkg qualifier when the final package differs from
// the default one.
func (g GroupDefault) OverrideKey() string {
	defaultPkg := g.DefaultPackage()
	finalPkg := g.FinalPackage(false)
	key := g.GroupPath()

	if defaultPkg != finalPkg {
		pkg := finalPkg
		if pkg == "" {
			pkg = "_global_"
		}

		return key + "@" + pkg
	}

	return key
}

type nodeKind int

const (
	nodeVirtualRoot nodeKind = iota
	nodeConfig
	nodeGroup
)

// TreeNode is a node of the defaults tree: the virtual root, a config
// entry, or a group selection, with the children its own defaults list
// produced.
type TreeNode struct {
	kind     nodeKind
	Config   ConfigDefault
	Group    GroupDefault
	Children []*TreeNode
}

func virtualRoot() *TreeNode { return &TreeNode{kind: nodeVirtualRoot} }

func configNode(c ConfigDefault) *TreeNode { return &TreeNode{kind: nodeConfig, Config: c} }

func groupNode(g GroupDefault) *TreeNode { return &TreeNode{kind: nodeGroup, Group: g} }

// IsVirtualRoot reports whether the node is the synthetic root.
func (n *TreeNode) IsVirtualRoot() bool { return n.kind == nodeVirtualRoot }

// Size counts the nodes in the subtree, the root included.
func (n *TreeNode) Size() int {
	total := 1
	for _, child := range n.Children {
		total += child.Size()
	}

	return total
}

// path is the identity handed to children as their parent path during
// flattening.
func (n *TreeNode) path() string {
	switch n.kind {
	case nodeConfig:
		return n.Config.Path
	case nodeGroup:
		return n.Group.GroupPath()
	default:
		return ""
	}
}
