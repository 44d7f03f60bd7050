package value

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// MarshalYAML projects a value tree to YAML text. Missing renders as ???,
// interpolations keep their raw ${...} text, dict key order is preserved,
// and non-finite floats use the .inf/-.inf/.nan spellings.
func MarshalYAML(v Value) ([]byte, error) {
	data, err := yaml.Marshal(toGo(v))
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}

	return data, nil
}

// UnmarshalYAML parses a YAML document into a value tree. Mapping order is
// preserved, "???" strings become Missing, and strings containing ${...}
// become Interpolation nodes.
func UnmarshalYAML(data []byte) (Value, error) {
	var doc any

	err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap())
	if err != nil {
		return Value{}, fmt.Errorf("parsing YAML: %w", err)
	}

	return fromGo(doc), nil
}

func toGo(v Value) any {
	switch v.Kind() {
	case KindNull:
		return nil
	case KindMissing:
		return "???"
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString, KindInterpolation:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = toGo(e)
		}

		return out
	case KindDict:
		out := make(yaml.MapSlice, 0, v.dict.Len())
		for _, e := range v.dict.Entries() {
			out = append(out, yaml.MapItem{Key: e.Key, Value: toGo(e.Value)})
		}

		return out
	default:
		return nil
	}
}

func fromGo(doc any) Value {
	switch t := doc.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint64:
		return Int(int64(t))
	case float64:
		return Float(t)
	case string:
		return FromString(t)
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			elems[i] = fromGo(e)
		}

		return List(elems...)
	case yaml.MapSlice:
		dict := NewDict()

		for _, item := range t {
			key, ok := item.Key.(string)
			if !ok {
				continue
			}

			dict.Insert(key, fromGo(item.Value))
		}

		return DictVal(dict)
	case map[string]any:
		dict := NewDict()
		for k, e := range t {
			dict.Insert(k, fromGo(e))
		}

		return DictVal(dict)
	default:
		return String(fmt.Sprint(t))
	}
}
