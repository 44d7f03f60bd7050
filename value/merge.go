package value

import "strings"

// MergeMode selects how composite values combine during a merge.
type MergeMode int

const (
	// ModeDefault merges dicts recursively; every other type replaces.
	ModeDefault MergeMode = iota
	// ModeOverride replaces dicts entirely instead of merging them.
	ModeOverride
	// ModeExtend concatenates lists instead of replacing them.
	ModeExtend
)

// MergeValues combines base with override following OmegaConf semantics:
// Missing in the override keeps the base, Null in the base is always
// overridden, dicts merge recursively in the default mode, and everything
// else (lists included) is a full replacement.
func MergeValues(base, override Value, mode MergeMode) Value {
	if override.IsMissing() {
		return base
	}

	if base.IsNull() {
		return override
	}

	baseDict, baseIsDict := base.AsDict()
	overDict, overIsDict := override.AsDict()

	if baseIsDict && overIsDict {
		if mode == ModeOverride {
			return override
		}

		merged := baseDict.Clone()
		MergeDicts(merged, overDict)

		return DictVal(merged)
	}

	if mode == ModeExtend {
		baseList, baseIsList := base.AsList()
		overList, overIsList := override.AsList()

		if baseIsList && overIsList {
			elems := make([]Value, 0, len(baseList)+len(overList))
			elems = append(elems, baseList...)
			elems = append(elems, overList...)

			return List(elems...)
		}
	}

	return override
}

// MergeDicts deep-merges override into base in place.
func MergeDicts(base *Dict, override *Dict) {
	for _, e := range override.Entries() {
		if existing, ok := base.Get(e.Key); ok {
			base.Insert(e.Key, MergeValues(existing, e.Value.Clone(), ModeDefault))
		} else {
			base.Insert(e.Key, e.Value.Clone())
		}
	}
}

// MergeAll folds the dicts left to right into a fresh dict; later dicts win.
func MergeAll(dicts ...*Dict) *Dict {
	result := NewDict()
	for _, d := range dicts {
		MergeDicts(result, d)
	}

	return result
}

// GetPath returns the value at a dotted path, descending through nested
// dicts. An empty path returns the dict itself.
func GetPath(d *Dict, path string) (Value, bool) {
	if path == "" {
		return DictVal(d), true
	}

	parts := strings.Split(path, ".")
	current := DictVal(d)

	for _, part := range parts {
		dict, ok := current.AsDict()
		if !ok {
			return Value{}, false
		}

		current, ok = dict.Get(part)
		if !ok {
			return Value{}, false
		}
	}

	return current, true
}

// SetPath writes v at a dotted path, creating intermediate dicts along the
// way. Traversal stops silently if an intermediate key holds a non-dict.
func SetPath(d *Dict, path string, v Value) {
	parts := strings.Split(path, ".")

	for len(parts) > 1 {
		key := parts[0]
		if !d.Contains(key) {
			d.Insert(key, DictVal(NewDict()))
		}

		nested, _ := d.Get(key)

		nestedDict, ok := nested.AsDict()
		if !ok {
			return
		}

		d = nestedDict
		parts = parts[1:]
	}

	d.Insert(parts[0], v)
}

// DeletePath removes the value at a dotted path. It reports whether a
// value was removed.
func DeletePath(d *Dict, path string) bool {
	parts := strings.Split(path, ".")

	for len(parts) > 1 {
		nested, ok := d.Get(parts[0])
		if !ok {
			return false
		}

		nestedDict, isDict := nested.AsDict()
		if !isDict {
			return false
		}

		d = nestedDict
		parts = parts[1:]
	}

	return d.Remove(parts[0])
}

// CollectKeys returns every key of the dict flattened to dotted paths,
// prefixed with prefix when non-empty.
func CollectKeys(d *Dict, prefix string) []string {
	var keys []string

	for _, e := range d.Entries() {
		full := e.Key
		if prefix != "" {
			full = prefix + "." + e.Key
		}

		keys = append(keys, full)

		if nested, ok := e.Value.AsDict(); ok {
			keys = append(keys, CollectKeys(nested, full)...)
		}
	}

	return keys
}
