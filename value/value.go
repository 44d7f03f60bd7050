// Package value implements the configuration value model: a tagged union
// over scalars, insertion-ordered dicts and lists, plus the Missing and
// Interpolation sentinels used during composition.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindMissing
	KindBool
	KindInt
	KindFloat
	KindString
	KindInterpolation
	KindList
	KindDict
)

// String returns the kind name as used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindMissing:
		return "missing"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "str"
	case KindInterpolation:
		return "interpolation"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	default:
		return "unknown"
	}
}

// Value is one node of a configuration tree. The zero value is Null.
// Composite values (lists and dicts) own their children exclusively;
// Clone produces a fully independent tree.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	dict *Dict
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Missing returns the required-but-unset sentinel, written as "???" in YAML.
func Missing() Value { return Value{kind: KindMissing} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a plain string value with no sentinel detection.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Interpolation returns an unresolved interpolation carrying the raw
// expression text, including the ${...} wrapper.
func Interpolation(expr string) Value { return Value{kind: KindInterpolation, s: expr} }

// List returns a list value owning the given elements.
func List(elems ...Value) Value { return Value{kind: KindList, list: elems} }

// DictVal wraps a Dict as a Value. A nil dict becomes an empty one.
func DictVal(d *Dict) Value {
	if d == nil {
		d = NewDict()
	}

	return Value{kind: KindDict, dict: d}
}

// FromString classifies a raw string loaded from a document: "???" becomes
// Missing, strings containing both "${" and "}" become Interpolation, and
// everything else stays a plain string.
func FromString(s string) Value {
	if s == "???" {
		return Missing()
	}

	if strings.Contains(s, "${") && strings.Contains(s, "}") {
		return Interpolation(s)
	}

	return String(s)
}

// Kind reports the variant held by the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsMissing reports whether the value is the "???" sentinel.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// IsInterpolation reports whether the value is an unresolved interpolation.
func (v Value) IsInterpolation() bool { return v.kind == KindInterpolation }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float payload. Ints are not widened.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the string payload for plain strings.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Expr returns the raw expression text of an interpolation.
func (v Value) Expr() (string, bool) { return v.s, v.kind == KindInterpolation }

// AsList returns the underlying element slice. Callers must not retain it
// across mutations of the owner.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// AsDict returns the underlying dict.
func (v Value) AsDict() (*Dict, bool) { return v.dict, v.kind == KindDict }

// Clone returns a deep copy sharing no state with the receiver.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		elems := make([]Value, len(v.list))
		for i, e := range v.list {
			elems[i] = e.Clone()
		}

		return Value{kind: KindList, list: elems}
	case KindDict:
		return Value{kind: KindDict, dict: v.dict.Clone()}
	default:
		return v
	}
}

// Equal reports deep structural equality. Dict equality includes key order.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}

	switch v.kind {
	case KindNull, KindMissing:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		if math.IsNaN(v.f) && math.IsNaN(other.f) {
			return true
		}

		return v.f == other.f
	case KindString, KindInterpolation:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}

		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}

		return true
	case KindDict:
		return v.dict.Equal(other.dict)
	default:
		return false
	}
}

// String renders the value for diagnostics. Missing renders as "???".
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindMissing:
		return "???"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return FormatFloat(v.f)
	case KindString, KindInterpolation:
		return v.s
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}

		return "[" + strings.Join(parts, ", ") + "]"
	case KindDict:
		parts := make([]string, 0, v.dict.Len())
		for _, e := range v.dict.Entries() {
			parts = append(parts, fmt.Sprintf("%s: %s", e.Key, e.Value))
		}

		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}

// FormatFloat renders a float the way override and sweep sources expect:
// integral values keep a trailing ".0", infinities and NaN use the inf/nan
// spellings.
func FormatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}

	if math.IsInf(f, -1) {
		return "-inf"
	}

	if math.IsNaN(f) {
		return "nan"
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}

	return s
}
