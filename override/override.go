// Package override parses command-line configuration overrides such as
// "db.port=3306", "+group=option", "~key" and sweep expressions like
// "db=mysql,postgres" or "lr=range(0,1,0.1)".
package override

import (
	"math"
	"strconv"
	"strings"

	"github.com/0xalexb/confect/value"
)

// Type is the override operation encoded by the key prefix.
type Type int

const (
	// Change modifies an existing value (key=value).
	Change Type = iota + 1
	// Add introduces a new value and fails if it exists (+key=value).
	Add
	// ForceAdd introduces a new value, replacing any existing one (++key=value).
	ForceAdd
	// Del removes a value (~key, optionally ~key=value).
	Del
)

func (t Type) String() string {
	switch t {
	case Change:
		return "CHANGE"
	case Add:
		return "ADD"
	case ForceAdd:
		return "FORCE_ADD"
	case Del:
		return "DEL"
	default:
		return "UNKNOWN"
	}
}

// Key is the addressed key or group, optionally rebound to a package.
type Key struct {
	// Path is the key or group, e.g. "db" or "db.driver".
	Path string
	// Package is the package rebinding from "key@pkg" or "@pkg:key".
	Package string
	// HasPackage distinguishes an absent package from an empty one.
	HasPackage bool
}

func (k Key) String() string {
	if k.HasPackage {
		return "@" + k.Package + ":" + k.Path
	}

	return k.Path
}

// Quote is the quoting style of a quoted string element.
type Quote byte

const (
	// QuoteSingle is 'text'.
	QuoteSingle Quote = iota
	// QuoteDouble is "text".
	QuoteDouble
)

// Rune returns the quote character.
func (q Quote) Rune() rune {
	if q == QuoteDouble {
		return '"'
	}

	return '\''
}

type elemKind uint8

const (
	elemNull elemKind = iota
	elemBool
	elemInt
	elemFloat
	elemString
	elemQuoted
	elemList
	elemDict
)

// DictEntry is one key/value pair of a dict element. Order is preserved.
type DictEntry struct {
	Key   string
	Value Element
}

// Element is a primitive or container parsed from an override value.
// Quoted strings are kept distinct from bare words so that "'true'" stays a
// string while "true" becomes a bool.
type Element struct {
	kind  elemKind
	b     bool
	i     int64
	f     float64
	s     string
	quote Quote
	list  []Element
	dict  []DictEntry
}

// NullElement returns the null element.
func NullElement() Element { return Element{kind: elemNull} }

// BoolElement returns a bool element.
func BoolElement(b bool) Element { return Element{kind: elemBool, b: b} }

// IntElement returns an integer element.
func IntElement(i int64) Element { return Element{kind: elemInt, i: i} }

// FloatElement returns a float element.
func FloatElement(f float64) Element { return Element{kind: elemFloat, f: f} }

// StringElement returns a bare string element.
func StringElement(s string) Element { return Element{kind: elemString, s: s} }

// QuotedElement returns a quoted string element.
func QuotedElement(text string, quote Quote) Element {
	return Element{kind: elemQuoted, s: text, quote: quote}
}

// ListElement returns a list element.
func ListElement(items ...Element) Element { return Element{kind: elemList, list: items} }

// DictElement returns a dict element.
func DictElement(entries ...DictEntry) Element { return Element{kind: elemDict, dict: entries} }

// IsNull reports whether the element is null.
func (e Element) IsNull() bool { return e.kind == elemNull }

// IsQuoted reports whether the element is a quoted string.
func (e Element) IsQuoted() bool { return e.kind == elemQuoted }

// AsBool returns the bool payload.
func (e Element) AsBool() (bool, bool) { return e.b, e.kind == elemBool }

// AsInt returns the integer payload.
func (e Element) AsInt() (int64, bool) { return e.i, e.kind == elemInt }

// AsFloat returns the numeric payload; integers widen to float.
func (e Element) AsFloat() (float64, bool) {
	switch e.kind {
	case elemFloat:
		return e.f, true
	case elemInt:
		return float64(e.i), true
	default:
		return 0, false
	}
}

// AsString returns the text of a bare or quoted string.
func (e Element) AsString() (string, bool) {
	return e.s, e.kind == elemString || e.kind == elemQuoted
}

// AsList returns the list payload.
func (e Element) AsList() ([]Element, bool) { return e.list, e.kind == elemList }

// AsDict returns the dict payload.
func (e Element) AsDict() ([]DictEntry, bool) { return e.dict, e.kind == elemDict }

// IsGlob reports whether the element is the dict encoding of a glob()
// pattern, and returns the decoded pattern when it is.
func (e Element) IsGlob() (Glob, bool) {
	entries, ok := e.AsDict()
	if !ok {
		return Glob{}, false
	}

	var g Glob

	tagged := false

	for _, entry := range entries {
		switch entry.Key {
		case "_type":
			s, _ := entry.Value.AsString()
			tagged = s == "glob"
		case "include":
			g.Include = stringItems(entry.Value)
		case "exclude":
			g.Exclude = stringItems(entry.Value)
		}
	}

	return g, tagged
}

func stringItems(e Element) []string {
	items, ok := e.AsList()
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}

	return out
}

// ToValue converts the element to a config value. Bare strings go through
// value.FromString so "???" and "${...}" keep their special meaning; quoted
// strings stay literal.
func (e Element) ToValue() value.Value {
	switch e.kind {
	case elemNull:
		return value.Null()
	case elemBool:
		return value.Bool(e.b)
	case elemInt:
		return value.Int(e.i)
	case elemFloat:
		return value.Float(e.f)
	case elemString:
		return value.FromString(e.s)
	case elemQuoted:
		return value.String(e.s)
	case elemList:
		items := make([]value.Value, 0, len(e.list))
		for _, item := range e.list {
			items = append(items, item.ToValue())
		}

		return value.List(items...)
	case elemDict:
		d := value.NewDict()
		for _, entry := range e.dict {
			d.Insert(entry.Key, entry.Value.ToValue())
		}

		return value.DictVal(d)
	default:
		return value.Null()
	}
}

// Source renders the element the way it would appear in an override string.
// Used for error messages and sweep expansion.
func (e Element) Source() string {
	switch e.kind {
	case elemNull:
		return "null"
	case elemBool:
		if e.b {
			return "true"
		}

		return "false"
	case elemInt:
		return strconv.FormatInt(e.i, 10)
	case elemFloat:
		return floatSource(e.f)
	case elemString:
		return e.s
	case elemQuoted:
		return "'" + e.s + "'"
	case elemList:
		parts := make([]string, 0, len(e.list))
		for _, item := range e.list {
			parts = append(parts, item.Source())
		}

		return "[" + strings.Join(parts, ",") + "]"
	case elemDict:
		parts := make([]string, 0, len(e.dict))
		for _, entry := range e.dict {
			parts = append(parts, entry.Key+":"+entry.Value.Source())
		}

		return "{" + strings.Join(parts, ",") + "}"
	default:
		return ""
	}
}

// floatSource renders a float the way it was written: shortest decimal form
// without an exponent, forcing a trailing ".0" on whole values.
func floatSource(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}

		return s
	}
}

// rawFloat renders a float without forcing a decimal point.
func rawFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

// OverrideValue is the parsed right-hand side of an override: either a
// single element, one of the sweep forms, or a list extension operation.
type OverrideValue interface {
	isOverrideValue()
	// IsSweep reports whether the value expands to multiple jobs.
	IsSweep() bool
}

func (Element) isOverrideValue()       {}
func (ChoiceSweep) isOverrideValue()   {}
func (RangeSweep) isOverrideValue()    {}
func (IntervalSweep) isOverrideValue() {}
func (GlobSweep) isOverrideValue()     {}
func (ListExtension) isOverrideValue() {}

// IsSweep reports whether the value expands to multiple jobs.
func (Element) IsSweep() bool { return false }

// IsSweep reports whether the value expands to multiple jobs.
func (ChoiceSweep) IsSweep() bool { return true }

// IsSweep reports whether the value expands to multiple jobs.
func (RangeSweep) IsSweep() bool { return true }

// IsSweep reports whether the value expands to multiple jobs.
func (IntervalSweep) IsSweep() bool { return true }

// IsSweep reports whether the value expands to multiple jobs.
func (GlobSweep) IsSweep() bool { return true }

// IsSweep reports whether the value expands to multiple jobs.
func (ListExtension) IsSweep() bool { return false }

// ChoiceSweep enumerates explicit alternatives, either from the simple
// "a,b,c" form or from choice(a,b,c).
type ChoiceSweep struct {
	Tags []string
	List []Element
	// SimpleForm is true for the bare comma form.
	SimpleForm bool
	Shuffle    bool
}

// RangeSweep enumerates start..stop (stop exclusive) in step increments.
type RangeSweep struct {
	Tags    []string
	Start   float64
	Stop    float64
	Step    float64
	Shuffle bool
	// IsInt is true when every bound was written as an integer, or after an
	// int() cast; expanded values then print without a decimal point.
	IsInt bool
}

// IntervalSweep describes a continuous range for samplers. It cannot be
// enumerated.
type IntervalSweep struct {
	Tags  []string
	Start float64
	End   float64
	IsInt bool
}

// GlobSweep selects group options by pattern.
type GlobSweep struct {
	Tags    []string
	Include []string
	Exclude []string
}

// ListOp is a list extension operation kind.
type ListOp int

const (
	// OpAppend adds values at the end (append(...)).
	OpAppend ListOp = iota
	// OpPrepend adds values at the front (prepend(...)).
	OpPrepend
	// OpInsert adds values at an index (insert(i, ...)).
	OpInsert
	// OpRemoveAt drops the value at an index (remove_at(i)).
	OpRemoveAt
	// OpRemoveValue drops matching values (remove_value(...)).
	OpRemoveValue
	// OpClear empties the list (list_clear()).
	OpClear
)

// ListExtension mutates an existing list value in place instead of
// replacing it.
type ListExtension struct {
	Op     ListOp
	Values []Element
	// Index applies to OpInsert and OpRemoveAt.
	Index int64
}

// Override is one parsed override line.
type Override struct {
	Type Type
	Key  Key
	// Value is nil for a bare delete (~key).
	Value OverrideValue
	// Input is the original override string.
	Input string
}

// IsSweep reports whether the override's value is a sweep.
func (o Override) IsSweep() bool {
	return o.Value != nil && o.Value.IsSweep()
}

// IsDelete reports whether the override removes a key.
func (o Override) IsDelete() bool { return o.Type == Del }
