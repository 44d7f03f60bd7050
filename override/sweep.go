package override

import (
	"math"
	"strconv"
	"strings"
)

// Expand turns a list of parsed overrides into the cartesian product of
// their sweep dimensions. Each returned set is a complete override list for
// one job, rendered back to strings. Shuffle flags on choice and range
// sweeps are ignored; expansion order is deterministic.
func Expand(overrides []Override) [][]string {
	return ExpandWith(overrides, nil)
}

// ExpandWith expands like Expand, additionally resolving glob patterns
// against the choices choicesFor returns for the override's key. With a nil
// choicesFor, globs expand to nothing.
func ExpandWith(overrides []Override, choicesFor func(key string) []string) [][]string {
	dimensions := make([][]string, 0, len(overrides))

	for _, ovr := range overrides {
		key := ovr.Key.Path

		switch v := ovr.Value.(type) {
		case GlobSweep:
			dimensions = append(dimensions,
				globDimension(key, Glob{Include: v.Include, Exclude: v.Exclude}, choicesFor))
		case ChoiceSweep:
			choices := make([]string, 0, len(v.List))
			for _, elem := range v.List {
				choices = append(choices, key+"="+elementString(elem))
			}

			dimensions = append(dimensions, choices)
		case RangeSweep:
			var choices []string

			for current := v.Start; current < v.Stop; current += v.Step {
				if v.Step == math.Trunc(v.Step) && current == math.Trunc(current) {
					choices = append(choices, key+"="+strconv.FormatInt(int64(current), 10))
				} else {
					choices = append(choices, key+"="+rawFloat(current))
				}
			}

			dimensions = append(dimensions, choices)
		case Element:
			// The parser encodes glob() as a tagged dict element.
			if glob, ok := v.IsGlob(); ok {
				dimensions = append(dimensions, globDimension(key, glob, choicesFor))

				continue
			}

			dimensions = append(dimensions, []string{key + "=" + elementString(v)})
		case nil:
			dimensions = append(dimensions, []string{"~" + key})
		default:
			// Interval sweeps have no finite enumeration.
			dimensions = append(dimensions, []string{key + "=<unsupported>"})
		}
	}

	return cartesianProduct(dimensions)
}

// globDimension filters the available choices for key through the glob
// pattern and renders one override string per match.
func globDimension(key string, glob Glob, choicesFor func(key string) []string) []string {
	var available []string
	if choicesFor != nil {
		available = choicesFor(key)
	}

	matched := glob.Filter(available)

	choices := make([]string, 0, len(matched))
	for _, name := range matched {
		choices = append(choices, key+"="+name)
	}

	return choices
}

func cartesianProduct(dimensions [][]string) [][]string {
	if len(dimensions) == 0 {
		return [][]string{{}}
	}

	rest := cartesianProduct(dimensions[1:])

	result := make([][]string, 0, len(dimensions[0])*len(rest))

	for _, item := range dimensions[0] {
		for _, combo := range rest {
			set := make([]string, 0, 1+len(combo))
			set = append(set, item)
			set = append(set, combo...)

			result = append(result, set)
		}
	}

	return result
}

// elementString renders an element for re-parsing in an expanded override
// set. Quoted strings keep their original quote character.
func elementString(e Element) string {
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
		return rawFloat(e.f)
	case elemString:
		return e.s
	case elemQuoted:
		q := string(e.quote.Rune())

		return q + e.s + q
	case elemList:
		parts := make([]string, 0, len(e.list))
		for _, item := range e.list {
			parts = append(parts, elementString(item))
		}

		return "[" + strings.Join(parts, ",") + "]"
	case elemDict:
		parts := make([]string, 0, len(e.dict))
		for _, entry := range e.dict {
			parts = append(parts, entry.Key+":"+elementString(entry.Value))
		}

		return "{" + strings.Join(parts, ",") + "}"
	default:
		return ""
	}
}
