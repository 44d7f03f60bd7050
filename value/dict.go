package value

// Entry is one key/value pair of a Dict.
type Entry struct {
	Key   string
	Value Value
}

// Dict is an insertion-ordered mapping from string keys to values.
// Keys are unique; inserting an existing key updates the value in place
// without changing its position.
type Dict struct {
	entries []Entry
	index   map[string]int
}

// NewDict returns an empty dict.
func NewDict() *Dict {
	return &Dict{index: make(map[string]int)}
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.entries) }

// Insert sets key to v, preserving the original position if the key exists.
func (d *Dict) Insert(key string, v Value) {
	if i, ok := d.index[key]; ok {
		d.entries[i].Value = v

		return
	}

	d.index[key] = len(d.entries)
	d.entries = append(d.entries, Entry{Key: key, Value: v})
}

// Get returns the value for key.
func (d *Dict) Get(key string) (Value, bool) {
	i, ok := d.index[key]
	if !ok {
		return Value{}, false
	}

	return d.entries[i].Value, true
}

// Contains reports whether key is present.
func (d *Dict) Contains(key string) bool {
	_, ok := d.index[key]

	return ok
}

// Remove deletes key, preserving the order of the remaining entries.
// It reports whether the key was present.
func (d *Dict) Remove(key string) bool {
	i, ok := d.index[key]
	if !ok {
		return false
	}

	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	delete(d.index, key)

	for j := i; j < len(d.entries); j++ {
		d.index[d.entries[j].Key] = j
	}

	return true
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	keys := make([]string, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.Key
	}

	return keys
}

// Entries returns the entries in insertion order. The returned slice is
// the dict's backing storage; callers must not mutate it.
func (d *Dict) Entries() []Entry { return d.entries }

// Clone returns a deep copy.
func (d *Dict) Clone() *Dict {
	out := NewDict()
	for _, e := range d.entries {
		out.Insert(e.Key, e.Value.Clone())
	}

	return out
}

// Equal reports deep equality including entry order.
func (d *Dict) Equal(other *Dict) bool {
	if d.Len() != other.Len() {
		return false
	}

	for i, e := range d.entries {
		oe := other.entries[i]
		if e.Key != oe.Key || !e.Value.Equal(oe.Value) {
			return false
		}
	}

	return true
}

// Select returns the value at a dotted path, descending through nested
// dicts only.
func (d *Dict) Select(path string) (Value, bool) {
	return GetPath(d, path)
}
