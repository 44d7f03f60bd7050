package defaults

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/0xalexb/confect/override"
)

// CompositionError reports a builder-level failure: a cycle, a missing
// mandatory selection, or an override or deletion that matched nothing.
type CompositionError struct {
	Message string
}

func (e *CompositionError) Error() string { return e.Message }

func compErrf(format string, args ...any) *CompositionError {
	return &CompositionError{Message: fmt.Sprintf(format, args...)}
}

type overrideMeta struct {
	// external marks command-line overrides as opposed to "override group:"
	// entries inside a config file.
	external         bool
	containingConfig string
	used             bool
}

type deletion struct {
	// name is the specific value required for the deletion to apply; empty
	// with hasName unset matches any selection.
	name    string
	hasName bool
	used    bool
}

// Overrides tracks group-level override bookkeeping for one build: choices,
// deletions, appends, and which of them the tree walk has claimed. Value
// overrides (dotted keys) pass through untouched for the composition step.
type Overrides struct {
	choices   map[string]string
	meta      map[string]*overrideMeta
	deletions map[string]*deletion
	appends   []GroupDefault

	knownChoices  map[string]string
	knownPerGroup map[string]map[string]struct{}

	// insertion order, so validation failures are deterministic
	choiceOrder   []string
	deletionOrder []string

	valueOverrides []override.Override
}

// NewOverrides classifies parsed overrides into group bookkeeping and
// pass-through value overrides. A key containing '.' addresses a value
// inside the composed tree, everything else is a group selection.
func NewOverrides(ovrs []override.Override) *Overrides {
	o := &Overrides{
		choices:       make(map[string]string),
		meta:          make(map[string]*overrideMeta),
		deletions:     make(map[string]*deletion),
		knownChoices:  make(map[string]string),
		knownPerGroup: make(map[string]map[string]struct{}),
	}

	for _, ovr := range ovrs {
		if strings.Contains(ovr.Key.Path, ".") {
			o.valueOverrides = append(o.valueOverrides, ovr)

			continue
		}

		switch ovr.Type {
		case override.Del:
			d := &deletion{}
			if ovr.Value != nil {
				d.name = selectionString(ovr.Value)
				d.hasName = true
			}

			if _, seen := o.deletions[ovr.Key.Path]; !seen {
				o.deletionOrder = append(o.deletionOrder, ovr.Key.Path)
			}

			o.deletions[ovr.Key.Path] = d
		case override.Add:
			gd := GroupDefault{
				Group:          ovr.Key.Path,
				Value:          selectionString(ovr.Value),
				ExternalAppend: true,
			}
			if ovr.Key.HasPackage {
				gd.Package = ovr.Key.Package
			}

			o.appends = append(o.appends, gd)
		default:
			key := ovr.Key.Path
			if ovr.Key.HasPackage {
				key += "@" + ovr.Key.Package
			}

			if _, seen := o.choices[key]; !seen {
				o.choiceOrder = append(o.choiceOrder, key)
			}

			o.choices[key] = selectionString(ovr.Value)
			o.meta[key] = &overrideMeta{external: true}
		}
	}

	return o
}

// selectionString renders an override value as a group option name.
func selectionString(v override.OverrideValue) string {
	elem, ok := v.(override.Element)
	if !ok {
		return ""
	}

	if s, isStr := elem.AsString(); isStr {
		return s
	}

	return elem.Source()
}

// ValueOverrides returns the dotted-key overrides for the composition step,
// in the order supplied.
func (o *Overrides) ValueOverrides() []override.Override { return o.valueOverrides }

// Appends returns the +group=value additions.
func (o *Overrides) Appends() []GroupDefault { return o.appends }

// KnownChoices returns every group selection the build observed.
func (o *Overrides) KnownChoices() map[string]string { return o.knownChoices }

// choiceFor finds the override for a group default, preferring the
// package-qualified key, and marks it used.
func (o *Overrides) choiceFor(g GroupDefault) (string, bool) {
	for _, key := range []string{g.OverrideKey(), g.GroupPath()} {
		if v, ok := o.choices[key]; ok {
			if m := o.meta[key]; m != nil {
				m.used = true
			}

			return v, true
		}
	}

	return "", false
}

// deleteMatch reports whether the group/value pair matches a pending
// deletion and marks it used. A deletion without a value matches any
// selection.
func (o *Overrides) deleteMatch(group, val string) bool {
	d, ok := o.deletions[group]
	if !ok {
		return false
	}

	if d.hasName && d.name != val {
		return false
	}

	d.used = true

	return true
}

// recordChoice remembers a selection the walk made, for error suggestions
// and for callers inspecting the build.
func (o *Overrides) recordChoice(group, val string) {
	o.knownChoices[group] = val

	bare, _, _ := strings.Cut(group, "@")

	if o.knownPerGroup[bare] == nil {
		o.knownPerGroup[bare] = make(map[string]struct{})
	}

	o.knownPerGroup[bare][group] = struct{}{}
}

// addInternalOverride records an "override group: value" entry from a
// config file. Command-line overrides for the same group win.
func (o *Overrides) addInternalOverride(containingConfig, group, val string) {
	if _, exists := o.choices[group]; exists {
		return
	}

	o.choices[group] = val
	o.meta[group] = &overrideMeta{containingConfig: containingConfig}
	o.choiceOrder = append(o.choiceOrder, group)
}

// EnsureOverridesUsed fails on the first override the tree walk never
// claimed, suggesting the closest known selection keys.
func (o *Overrides) EnsureOverridesUsed() error {
	for _, key := range o.choiceOrder {
		m := o.meta[key]
		if m == nil || m.used {
			continue
		}

		bare, _, _ := strings.Cut(key, "@")
		candidates := o.rankedCandidates(bare, key)

		var msg string

		switch {
		case len(candidates) > 1:
			msg = fmt.Sprintf("Could not override '%s'. Did you mean to override one of %s?",
				key, strings.Join(candidates, ", "))
		case len(candidates) == 1:
			msg = fmt.Sprintf("Could not override '%s'. Did you mean to override %s?",
				key, candidates[0])
		default:
			msg = fmt.Sprintf("Could not override '%s'. No match in the defaults list.", key)
		}

		if m.containingConfig != "" {
			msg = fmt.Sprintf("In '%s': %s", m.containingConfig, msg)
		}

		if m.external {
			if v, ok := o.choices[key]; ok && v != "" {
				msg += fmt.Sprintf("\nTo append to your default list use +%s=%s", key, v)
			}
		}

		return &CompositionError{Message: msg}
	}

	return nil
}

// rankedCandidates lists the known selection keys for a group, closest to
// the failing key first.
func (o *Overrides) rankedCandidates(group, key string) []string {
	set := o.knownPerGroup[group]
	if len(set) == 0 {
		return nil
	}

	out := make([]string, 0, len(set))
	for candidate := range set {
		out = append(out, candidate)
	}

	sort.Slice(out, func(i, j int) bool {
		di := levenshtein.Distance(key, out[i], nil)
		dj := levenshtein.Distance(key, out[j], nil)
		if di != dj {
			return di < dj
		}

		return out[i] < out[j]
	})

	return out
}

// EnsureDeletionsUsed fails on the first deletion that matched no defaults
// entry, including a value-guard mismatch (~db=postgres when db=mysql).
func (o *Overrides) EnsureDeletionsUsed() error {
	for _, key := range o.deletionOrder {
		d := o.deletions[key]
		if d == nil || d.used {
			continue
		}

		desc := key
		if d.hasName {
			desc = key + "=" + d.name
		}

		return compErrf("Could not delete '%s'. No match in the defaults list", desc)
	}

	return nil
}
