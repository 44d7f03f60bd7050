// Package interp resolves ${...} interpolation expressions in composed
// configuration trees. Expressions are either dotted path lookups against
// the root dict ("${db.host}") or resolver calls ("${oc.env:HOME,/tmp}").
package interp

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/0xalexb/confect/value"
)

// DefaultMaxDepth bounds chained interpolations (a value resolving to
// another interpolation, and so on).
const DefaultMaxDepth = 10

// Resolver computes a value from the comma-separated arguments of a
// "${name:arg1,arg2}" expression. Arguments arrive trimmed.
type Resolver func(args []string) (value.Value, error)

// Error describes a failed resolution, optionally pinned to the expression
// that produced it.
type Error struct {
	Message string
	Key     string
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("Interpolation error at '%s': %s", e.Key, e.Message)
	}

	return fmt.Sprintf("Interpolation error: %s", e.Message)
}

func errf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Engine resolves interpolations against a fixed root dict. It is not safe
// for concurrent use while resolvers are being registered.
type Engine struct {
	root      *value.Dict
	resolvers map[string]Resolver
	maxDepth  int
}

// New returns an engine with the builtin oc.env, oc.decode and oc.mandatory
// resolvers registered.
func New(root *value.Dict) *Engine {
	e := &Engine{
		root:      root,
		resolvers: make(map[string]Resolver),
		maxDepth:  DefaultMaxDepth,
	}

	e.Register("oc.env", resolveEnv)
	e.Register("oc.decode", resolveDecode)
	e.Register("oc.mandatory", resolveMandatory)

	return e
}

// Register installs a resolver under name, replacing any existing one.
func (e *Engine) Register(name string, r Resolver) {
	e.resolvers[name] = r
}

// Resolve returns v with every interpolation replaced by its resolved
// value. Dicts and lists are resolved recursively. Scalars without
// interpolation markers pass through unchanged.
func (e *Engine) Resolve(v value.Value) (value.Value, error) {
	return e.resolveDepth(v, 0)
}

// ResolveRoot resolves the whole root dict in place order, returning a new
// dict. The engine keeps resolving against the original root so partially
// resolved siblings never change lookup results.
func (e *Engine) ResolveRoot() (*value.Dict, error) {
	resolved, err := e.Resolve(value.DictVal(e.root))
	if err != nil {
		return nil, err
	}

	dict, _ := resolved.AsDict()

	return dict, nil
}

func (e *Engine) resolveDepth(v value.Value, depth int) (value.Value, error) {
	if depth > e.maxDepth {
		return value.Value{}, errf("Maximum interpolation depth exceeded")
	}

	switch v.Kind() {
	case value.KindInterpolation:
		expr, _ := v.Expr()

		inner := expr
		if strings.HasPrefix(inner, "${") && strings.HasSuffix(inner, "}") {
			inner = inner[2 : len(inner)-1]
		}

		// An expression with further ${ markers is really a string with
		// several embedded interpolations.
		if strings.Contains(inner, "${") {
			return e.resolveString(expr, depth)
		}

		resolved, err := e.resolveExpr(inner, depth)
		if err != nil {
			return value.Value{}, err
		}

		return e.resolveDepth(resolved, depth+1)
	case value.KindString:
		s, _ := v.AsString()
		if strings.Contains(s, "${") {
			return e.resolveString(s, depth)
		}

		return v, nil
	case value.KindDict:
		dict, _ := v.AsDict()
		out := value.NewDict()

		for _, entry := range dict.Entries() {
			resolved, err := e.resolveDepth(entry.Value, depth)
			if err != nil {
				return value.Value{}, err
			}

			out.Insert(entry.Key, resolved)
		}

		return value.DictVal(out), nil
	case value.KindList:
		items, _ := v.AsList()
		out := make([]value.Value, 0, len(items))

		for _, item := range items {
			resolved, err := e.resolveDepth(item, depth)
			if err != nil {
				return value.Value{}, err
			}

			out = append(out, resolved)
		}

		return value.List(out...), nil
	default:
		return v, nil
	}
}

// resolveExpr handles one expression without its ${} wrapper. A name before
// the first ':' selects a registered resolver; otherwise the expression is
// a dotted path into the root.
func (e *Engine) resolveExpr(expr string, depth int) (value.Value, error) {
	if colon := strings.Index(expr, ":"); colon >= 0 {
		name := expr[:colon]

		if resolver, ok := e.resolvers[name]; ok {
			args := strings.Split(expr[colon+1:], ",")
			for i, arg := range args {
				args[i] = strings.TrimSpace(arg)
			}

			return resolver(args)
		}
		// Unknown resolver names fall through to a path lookup.
	}

	found, err := e.lookup(expr)
	if err != nil {
		return value.Value{}, err
	}

	return e.resolveDepth(found, depth+1)
}

// resolveString handles a string with embedded interpolations. When the
// trimmed string is exactly one balanced ${...} the resolved value keeps
// its type; otherwise every interpolation is stringified and spliced in.
// A $${...} escape yields the literal ${...} without resolution.
func (e *Engine) resolveString(s string, depth int) (value.Value, error) {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "${") && strings.HasSuffix(trimmed, "}") {
		inner := trimmed[2 : len(trimmed)-1]

		braces := 0
		single := true

		for _, c := range inner {
			switch c {
			case '{':
				braces++
			case '}':
				if braces == 0 {
					single = false
				}

				braces--
			}

			if !single {
				break
			}
		}

		if single && braces == 0 {
			return e.resolveExpr(inner, depth)
		}
	}

	var out strings.Builder

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		// $$ before { escapes the interpolation: copy the ${...} verbatim.
		if runes[i] == '$' && i+2 < len(runes) && runes[i+1] == '$' && runes[i+2] == '{' {
			out.WriteString("${")
			i += 3

			braceDepth := 1
			for ; i < len(runes); i++ {
				switch runes[i] {
				case '{':
					braceDepth++
				case '}':
					braceDepth--
				}

				out.WriteRune(runes[i])

				if braceDepth == 0 {
					break
				}
			}

			continue
		}

		if runes[i] != '$' || i+1 >= len(runes) || runes[i+1] != '{' {
			out.WriteRune(runes[i])

			continue
		}

		i += 2

		var expr strings.Builder

		braceDepth := 1
		for ; i < len(runes); i++ {
			switch runes[i] {
			case '{':
				braceDepth++
			case '}':
				braceDepth--
			}

			if braceDepth == 0 {
				break
			}

			expr.WriteRune(runes[i])
		}

		resolved, err := e.resolveExpr(expr.String(), depth)
		if err != nil {
			return value.Value{}, err
		}

		out.WriteString(spliceString(resolved))
	}

	return value.String(out.String()), nil
}

// spliceString renders a resolved value for embedding in a larger string.
// Floats use their shortest plain decimal form, so ${x} with x: 2.0 splices
// as "2".
func spliceString(v value.Value) string {
	if f, ok := v.AsFloat(); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	return v.String()
}

// lookup walks a dotted path from the root.
func (e *Engine) lookup(path string) (value.Value, error) {
	current := value.DictVal(e.root)

	for _, part := range strings.Split(path, ".") {
		dict, ok := current.AsDict()
		if !ok {
			return value.Value{}, &Error{Message: "Cannot traverse non-dict value", Key: path}
		}

		next, ok := dict.Get(part)
		if !ok {
			return value.Value{}, &Error{
				Message: fmt.Sprintf("Key '%s' not found", part),
				Key:     path,
			}
		}

		current = next
	}

	return current, nil
}

func resolveEnv(args []string) (value.Value, error) {
	if len(args) == 0 {
		return value.Value{}, errf("oc.env requires at least one argument")
	}

	if v, ok := os.LookupEnv(args[0]); ok {
		return value.String(v), nil
	}

	if len(args) > 1 {
		return value.String(args[1]), nil
	}

	return value.Value{}, errf("Environment variable '%s' not found", args[0])
}

// resolveDecode parses a string into its typed form, trying null, bool,
// int and float before falling back to the string itself.
func resolveDecode(args []string) (value.Value, error) {
	if len(args) == 0 {
		return value.Value{}, errf("oc.decode requires an argument")
	}

	s := strings.TrimSpace(args[0])

	switch s {
	case "null", "~":
		return value.Null(), nil
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i), nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f), nil
	}

	return value.String(s), nil
}

// resolveMandatory marks a value that must be provided by an override. It
// always fails; composition replaces the interpolation before resolution
// when the key was supplied.
func resolveMandatory(args []string) (value.Value, error) {
	if len(args) == 0 {
		return value.Value{}, errf("oc.mandatory requires at least one argument")
	}

	return value.Value{}, errf("Mandatory value %s is missing", args[0])
}
