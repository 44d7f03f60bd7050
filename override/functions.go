package override

import (
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Functions whose arguments may themselves be sweep-returning calls, e.g.
// sort(range(10,0,-1)) or int(choice("1","2")).
func takesSweepArgs(name string) bool {
	switch name {
	case "shuffle", "sort", "tag", "int", "float", "str", "bool", "json_str":
		return true
	default:
		return false
	}
}

func returnsSweep(name string) bool {
	switch name {
	case "choice", "range", "interval", "tag", "sort", "shuffle",
		"int", "float", "str", "bool", "json_str":
		return true
	default:
		return false
	}
}

func findKwarg(kwargs []Kwarg, name string) (Element, bool) {
	for _, kw := range kwargs {
		if kw.Name == name {
			return kw.Value, true
		}
	}

	return Element{}, false
}

func reverseKwarg(kwargs []Kwarg) bool {
	v, ok := findKwarg(kwargs, "reverse")
	if !ok {
		return false
	}

	b, isBool := v.AsBool()

	return isBool && b
}

func (p *parser) parseFunctionCall(name string) (OverrideValue, error) {
	// A user-registered function shadows the built-in of the same name.
	useUser := p.funcs != nil && p.funcs.Has(name)

	if !useUser && takesSweepArgs(name) {
		return p.parseFunctionCallWithSweepArgs(name)
	}

	if !p.consume('(') {
		return nil, p.errf("Expected '(' after function name '%s'", name)
	}

	args, kwargs, err := p.parseCallArgs()
	if err != nil {
		return nil, err
	}

	if useUser {
		result, callErr := p.funcs.Call(name, args, kwargs)
		if callErr != nil {
			return nil, &ParseError{Message: callErr.Error(), Position: p.pos}
		}

		return result, nil
	}

	switch name {
	case "choice":
		return p.buildChoiceSweep(args)
	case "range":
		return p.buildRangeSweep(args, kwargs)
	case "interval":
		return p.buildIntervalSweep(args, kwargs)
	case "glob":
		return p.buildGlob(args, kwargs)
	case "tag":
		return p.buildTaggedSweep(args)
	case "shuffle":
		return p.buildShuffle(args, kwargs)
	case "sort":
		return p.buildSort(args, kwargs)
	case "extend_list", "append":
		return p.buildListAppend(args)
	case "prepend":
		return p.buildListPrepend(args)
	case "insert":
		return p.buildListInsert(args)
	case "remove_at":
		return p.buildListRemoveAt(args)
	case "remove_value":
		return p.buildListRemoveValue(args)
	case "list_clear":
		return p.buildListClear(args)
	case "int", "float", "str", "bool", "json_str":
		return p.castValue(name, args)
	default:
		return nil, p.errf("Unknown function: %s", name)
	}
}

// parseCallArgs parses "(arg, arg, kw=val)" up to and including the closing
// paren. Positionals may not follow keywords.
func (p *parser) parseCallArgs() ([]Element, []Kwarg, error) {
	var (
		args   []Element
		kwargs []Kwarg
	)

	seenKwarg := false

	p.skipWhitespace()

	if p.peek() != ')' {
		for {
			p.skipWhitespace()

			argStart := p.pos

			if c := p.peek(); c != 0 {
				if unicode.IsLetter(c) {
					ident, err := p.parseIdentifier()
					if err != nil {
						return nil, nil, err
					}

					p.skipWhitespace()

					if p.consume('=') {
						seenKwarg = true

						p.skipWhitespace()

						val, err := p.parseElement()
						if err != nil {
							return nil, nil, err
						}

						kwargs = append(kwargs, Kwarg{Name: ident, Value: val})
					} else {
						p.pos = argStart

						if seenKwarg {
							return nil, nil, p.errf("positional argument follows keyword argument")
						}

						arg, err := p.parseElement()
						if err != nil {
							return nil, nil, err
						}

						args = append(args, arg)
					}
				} else {
					if seenKwarg {
						return nil, nil, p.errf("positional argument follows keyword argument")
					}

					arg, err := p.parseElement()
					if err != nil {
						return nil, nil, err
					}

					args = append(args, arg)
				}
			}

			p.skipWhitespace()

			if p.peek() == ')' {
				break
			}

			if !p.consume(',') {
				return nil, nil, p.errf("Expected ',' or ')' in function arguments")
			}
		}
	}

	if !p.consume(')') {
		return nil, nil, p.errf("Expected ')' to close function call")
	}

	return args, kwargs, nil
}

// parseFunctionCallWithSweepArgs parses calls whose arguments may be nested
// sweep functions. At most one nested sweep is captured; cast functions with
// a single argument contribute a plain element instead.
func (p *parser) parseFunctionCallWithSweepArgs(name string) (OverrideValue, error) {
	if !p.consume('(') {
		return nil, p.errf("Expected '(' after function name '%s'", name)
	}

	var (
		args   []Element
		kwargs []Kwarg
		nested OverrideValue
	)

	p.skipWhitespace()

	if p.peek() != ')' {
		for {
			p.skipWhitespace()

			argStart := p.pos

			if c := p.peek(); c != 0 {
				if unicode.IsLetter(c) {
					ident, err := p.parseIdentifier()
					if err != nil {
						return nil, err
					}

					p.skipWhitespace()

					switch {
					case p.consume('='):
						p.skipWhitespace()

						if nc := p.peek(); unicode.IsLetter(nc) {
							innerStart := p.pos

							inner, err := p.parseIdentifier()
							if err != nil {
								return nil, err
							}

							p.skipWhitespace()

							if p.peek() == '(' && (inner == "choice" || inner == "range" || inner == "interval") {
								sweep, err := p.parseFunctionCall(inner)
								if err != nil {
									return nil, err
								}

								if ident == "sweep" || ident == "list" {
									nested = sweep
								}
							} else {
								p.pos = innerStart

								val, err := p.parseElement()
								if err != nil {
									return nil, err
								}

								kwargs = append(kwargs, Kwarg{Name: ident, Value: val})
							}
						} else {
							val, err := p.parseElement()
							if err != nil {
								return nil, err
							}

							kwargs = append(kwargs, Kwarg{Name: ident, Value: val})
						}
					case p.peek() == '(':
						if returnsSweep(ident) {
							sweep, err := p.parseFunctionCall(ident)
							if err != nil {
								return nil, err
							}

							switch sv := sweep.(type) {
							case ChoiceSweep, RangeSweep, IntervalSweep, GlobSweep:
								nested = sweep
							case Element:
								// Single-argument cast collapsed to an element.
								args = append(args, sv)
							case ListExtension:
								args = append(args, NullElement())
							}
						} else {
							p.pos = argStart

							arg, err := p.parseElement()
							if err != nil {
								return nil, err
							}

							args = append(args, arg)
						}
					default:
						p.pos = argStart

						arg, err := p.parseElement()
						if err != nil {
							return nil, err
						}

						args = append(args, arg)
					}
				} else {
					arg, err := p.parseElement()
					if err != nil {
						return nil, err
					}

					args = append(args, arg)
				}
			}

			p.skipWhitespace()

			if p.peek() == ')' {
				break
			}

			if !p.consume(',') {
				return nil, p.errf("Expected ',' or ')' in function arguments")
			}
		}
	}

	if !p.consume(')') {
		return nil, p.errf("Expected ')' to close function call")
	}

	switch name {
	case "shuffle":
		return p.applyShuffle(nested, args, kwargs)
	case "sort":
		return p.applySort(nested, args, kwargs)
	case "tag":
		return p.applyTags(nested, args)
	case "int", "float", "str", "bool", "json_str":
		return p.applyCastValue(name, nested, args)
	default:
		return nil, p.errf("Internal error: unexpected function %s", name)
	}
}

func (p *parser) applyShuffle(nested OverrideValue, args []Element, kwargs []Kwarg) (OverrideValue, error) {
	switch sv := nested.(type) {
	case ChoiceSweep:
		return ChoiceSweep{Tags: sv.Tags, List: sv.List, Shuffle: true}, nil
	case RangeSweep:
		sv.Shuffle = true

		return sv, nil
	default:
		return p.buildShuffle(args, kwargs)
	}
}

func (p *parser) applySort(nested OverrideValue, args []Element, kwargs []Kwarg) (OverrideValue, error) {
	reverse := reverseKwarg(kwargs)

	switch sv := nested.(type) {
	case ChoiceSweep:
		sortElements(sv.List, reverse)

		return sv, nil
	case RangeSweep:
		ascending := sv.Step > 0

		if ascending == reverse {
			// Flip the range so expansion visits values in the wanted order.
			n := math.Floor((sv.Stop - sv.Start) / sv.Step)
			last := sv.Start + (n-1)*sv.Step

			return RangeSweep{
				Tags:  sv.Tags,
				Start: last,
				Stop:  sv.Start - sv.Step,
				Step:  -sv.Step,
				IsInt: sv.IsInt,
			}, nil
		}

		return sv, nil
	case IntervalSweep:
		return nil, p.errf("Function 'interval' returns a sweep, which cannot be used here")
	default:
		return p.buildSort(args, kwargs)
	}
}

func (p *parser) applyTags(nested OverrideValue, args []Element) (OverrideValue, error) {
	if nested != nil {
		tags := stringArgs(args)

		switch sv := nested.(type) {
		case ChoiceSweep:
			sv.Tags = tags

			return sv, nil
		case IntervalSweep:
			sv.Tags = tags

			return sv, nil
		case RangeSweep:
			sv.Tags = tags

			return sv, nil
		default:
			return nil, p.errf("tag() requires a sweep as final argument")
		}
	}

	if len(args) < 2 {
		return nil, p.errf("tag() requires at least one tag and a sweep or values")
	}

	tags := stringArgs(args[:len(args)-1])
	last := args[len(args)-1]

	if items, ok := last.AsList(); ok {
		return ChoiceSweep{Tags: tags, List: items}, nil
	}

	return ChoiceSweep{Tags: tags, List: []Element{last}}, nil
}

func stringArgs(args []Element) []string {
	var tags []string

	for _, arg := range args {
		if s, ok := arg.AsString(); ok {
			tags = append(tags, s)
		}
	}

	return tags
}

func (p *parser) applyCastValue(name string, nested OverrideValue, args []Element) (OverrideValue, error) {
	if nested == nil {
		return p.castValue(name, args)
	}

	sweepSource := sweepToSource(nested)

	switch sv := nested.(type) {
	case ChoiceSweep:
		castList := make([]Element, 0, len(sv.List))

		for _, elem := range sv.List {
			cast, err := p.applyCast(name, elem)
			if err != nil {
				return nil, p.rewrapCastError(err, name, sweepSource)
			}

			castList = append(castList, cast)
		}

		sv.List = castList

		return sv, nil
	case RangeSweep:
		switch name {
		case "int":
			return RangeSweep{
				Tags:    sv.Tags,
				Start:   math.Floor(sv.Start),
				Stop:    math.Floor(sv.Stop),
				Step:    math.Floor(sv.Step),
				Shuffle: sv.Shuffle,
				IsInt:   true,
			}, nil
		case "float":
			sv.IsInt = false

			return sv, nil
		default:
			return nil, p.errf("ValueError while evaluating '%s(%s)': Range can only be cast to int or float", name, sweepSource)
		}
	case IntervalSweep:
		switch name {
		case "int":
			return IntervalSweep{
				Tags:  sv.Tags,
				Start: math.Floor(sv.Start),
				End:   math.Floor(sv.End),
				IsInt: true,
			}, nil
		case "float":
			sv.IsInt = false

			return sv, nil
		default:
			return nil, p.errf("ValueError while evaluating '%s(%s)': Intervals cannot be cast to %s", name, sweepSource, name)
		}
	default:
		return nil, p.errf("%s() cannot be applied to this sweep type", name)
	}
}

// castValue handles int()/float()/str()/bool()/json_str() on positional
// arguments: one argument casts in place, several become a simple choice
// sweep of the cast results.
func (p *parser) castValue(name string, args []Element) (OverrideValue, error) {
	if len(args) == 0 {
		return nil, p.errf("%s() requires at least 1 argument", name)
	}

	if len(args) == 1 {
		elem, err := p.applyCast(name, args[0])
		if err != nil {
			return nil, err
		}

		return elem, nil
	}

	source := joinSources(args)

	castElements := make([]Element, 0, len(args))

	for _, arg := range args {
		cast, err := p.applyCast(name, arg)
		if err != nil {
			return nil, p.rewrapCastError(err, name, source)
		}

		castElements = append(castElements, cast)
	}

	return ChoiceSweep{List: castElements, SimpleForm: true}, nil
}

// rewrapCastError replaces the inner cast context with the full expression
// the user wrote, keeping the reason after "': ".
func (p *parser) rewrapCastError(err error, name, source string) error {
	perr, ok := err.(*ParseError)
	if !ok {
		return err
	}

	idx := strings.Index(perr.Message, "': ")
	if idx < 0 {
		return err
	}

	return &ParseError{
		Message:  "ValueError while evaluating '" + name + "(" + source + ")': " + perr.Message[idx+3:],
		Position: perr.Position,
	}
}

func joinSources(args []Element) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, arg.Source())
	}

	return strings.Join(parts, ",")
}

func (p *parser) buildChoiceSweep(args []Element) (OverrideValue, error) {
	if len(args) == 0 {
		return nil, p.errf("choice() requires at least one argument")
	}

	return ChoiceSweep{List: args}, nil
}

func (p *parser) buildRangeSweep(args []Element, kwargs []Kwarg) (OverrideValue, error) {
	startKwarg, hasStart := findKwarg(kwargs, "start")
	stopKwarg, hasStop := findKwarg(kwargs, "stop")
	stepKwarg, hasStep := findKwarg(kwargs, "step")

	hasExplicitFloat := false

	var start, stop, step float64

	if len(args) == 0 && (hasStart || hasStop) {
		start = 0

		if hasStart {
			hasExplicitFloat = hasExplicitFloat || startKwarg.kind == elemFloat

			var err error
			if start, err = p.elementToF64(startKwarg); err != nil {
				return nil, err
			}
		}

		if !hasStop {
			return nil, p.errf("range() requires 'stop' argument")
		}

		hasExplicitFloat = hasExplicitFloat || stopKwarg.kind == elemFloat

		var err error
		if stop, err = p.elementToF64(stopKwarg); err != nil {
			return nil, err
		}

		step = 1

		if hasStep {
			hasExplicitFloat = hasExplicitFloat || stepKwarg.kind == elemFloat

			if step, err = p.elementToF64(stepKwarg); err != nil {
				return nil, err
			}
		}
	} else {
		for _, arg := range args {
			hasExplicitFloat = hasExplicitFloat || arg.kind == elemFloat
		}

		if hasStep {
			hasExplicitFloat = hasExplicitFloat || stepKwarg.kind == elemFloat
		}

		if hasStop {
			hasExplicitFloat = hasExplicitFloat || stopKwarg.kind == elemFloat
		}

		var err error

		switch len(args) {
		case 1:
			step = 1

			if hasStep {
				if step, err = p.elementToF64(stepKwarg); err != nil {
					return nil, err
				}
			}

			if hasStop {
				// range(start, stop=y): the positional is the start.
				if start, err = p.elementToF64(args[0]); err != nil {
					return nil, err
				}

				if stop, err = p.elementToF64(stopKwarg); err != nil {
					return nil, err
				}
			} else {
				start = 0

				if stop, err = p.elementToF64(args[0]); err != nil {
					return nil, err
				}
			}
		case 2:
			if start, err = p.elementToF64(args[0]); err != nil {
				return nil, err
			}

			if stop, err = p.elementToF64(args[1]); err != nil {
				return nil, err
			}

			step = 1

			if hasStep {
				if step, err = p.elementToF64(stepKwarg); err != nil {
					return nil, err
				}
			}
		case 3:
			if start, err = p.elementToF64(args[0]); err != nil {
				return nil, err
			}

			if stop, err = p.elementToF64(args[1]); err != nil {
				return nil, err
			}

			if step, err = p.elementToF64(args[2]); err != nil {
				return nil, err
			}
		default:
			return nil, p.errf("range() requires 1, 2, or 3 arguments")
		}
	}

	isInt := !hasExplicitFloat &&
		start == math.Trunc(start) && stop == math.Trunc(stop) && step == math.Trunc(step)

	return RangeSweep{Start: start, Stop: stop, Step: step, IsInt: isInt}, nil
}

func (p *parser) buildIntervalSweep(args []Element, kwargs []Kwarg) (OverrideValue, error) {
	startKwarg, hasStart := findKwarg(kwargs, "start")
	endKwarg, hasEnd := findKwarg(kwargs, "end")

	var start, end float64

	switch {
	case len(args) == 0 && (hasStart || hasEnd):
		if !hasStart {
			return nil, p.errf("interval() requires 'start' argument")
		}

		if !hasEnd {
			return nil, p.errf("interval() requires 'end' argument")
		}

		var err error
		if start, err = p.elementToF64(startKwarg); err != nil {
			return nil, err
		}

		if end, err = p.elementToF64(endKwarg); err != nil {
			return nil, err
		}
	case len(args) == 2:
		var err error
		if start, err = p.elementToF64(args[0]); err != nil {
			return nil, err
		}

		if end, err = p.elementToF64(args[1]); err != nil {
			return nil, err
		}
	default:
		return nil, p.errf("interval() requires exactly 2 arguments")
	}

	return IntervalSweep{Start: start, End: end}, nil
}

// buildGlob encodes the pattern as a tagged dict element; group override
// handling decodes it with Element.IsGlob.
func (p *parser) buildGlob(args []Element, kwargs []Kwarg) (OverrideValue, error) {
	var include []string

	if len(args) > 0 {
		var err error
		if include, err = p.elementToStringList(args[0]); err != nil {
			return nil, err
		}
	} else if v, ok := findKwarg(kwargs, "include"); ok {
		var err error
		if include, err = p.elementToStringList(v); err != nil {
			return nil, err
		}
	} else {
		return nil, p.errf("glob() requires at least include pattern")
	}

	var exclude []string

	if v, ok := findKwarg(kwargs, "exclude"); ok {
		var err error
		if exclude, err = p.elementToStringList(v); err != nil {
			return nil, err
		}
	}

	return DictElement(
		DictEntry{Key: "_type", Value: StringElement("glob")},
		DictEntry{Key: "include", Value: stringListElement(include)},
		DictEntry{Key: "exclude", Value: stringListElement(exclude)},
	), nil
}

func stringListElement(items []string) Element {
	elems := make([]Element, 0, len(items))
	for _, item := range items {
		elems = append(elems, StringElement(item))
	}

	return ListElement(elems...)
}

// buildTaggedSweep is only reachable when a user callback shadows tag() but
// fails the registration check; the sweep-argument path handles real use.
func (p *parser) buildTaggedSweep(args []Element) (OverrideValue, error) {
	if len(args) < 2 {
		return nil, p.errf("tag() requires at least one tag and a sweep")
	}

	return nil, p.errf("tag() requires a sweep as final argument")
}

func (p *parser) buildShuffle(args []Element, kwargs []Kwarg) (OverrideValue, error) {
	if v, ok := findKwarg(kwargs, "list"); ok {
		if items, isList := v.AsList(); isList {
			shuffled := shuffledCopy(items)

			return ListElement(shuffled...), nil
		}
	}

	if len(args) == 0 {
		return nil, p.errf("shuffle() requires at least 1 argument")
	}

	if len(args) == 1 {
		if items, ok := args[0].AsList(); ok {
			shuffled := shuffledCopy(items)

			return ListElement(shuffled...), nil
		}

		return args[0], nil
	}

	return ChoiceSweep{List: args, SimpleForm: true, Shuffle: true}, nil
}

func shuffledCopy(items []Element) []Element {
	out := make([]Element, len(items))
	copy(out, items)

	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})

	return out
}

func (p *parser) buildSort(args []Element, kwargs []Kwarg) (OverrideValue, error) {
	reverse := reverseKwarg(kwargs)

	if v, ok := findKwarg(kwargs, "list"); ok {
		if items, isList := v.AsList(); isList {
			if t1, t2, mixed := mixedTypes(items); mixed {
				return nil, p.errf("TypeError while evaluating 'sort([%s])': '<' not supported between instances of '%s' and '%s'",
					joinSources(items), t1, t2)
			}

			sorted := make([]Element, len(items))
			copy(sorted, items)
			sortElements(sorted, reverse)

			return ListElement(sorted...), nil
		}
	}

	if len(args) == 0 {
		return nil, p.errf("sort() requires at least 1 argument")
	}

	if len(args) == 1 {
		if items, ok := args[0].AsList(); ok {
			if t1, t2, mixed := mixedTypes(items); mixed {
				return nil, p.errf("TypeError while evaluating 'sort([%s])': '<' not supported between instances of '%s' and '%s'",
					joinSources(items), t1, t2)
			}

			sorted := make([]Element, len(items))
			copy(sorted, items)
			sortElements(sorted, reverse)

			return ListElement(sorted...), nil
		}
	}

	if t1, t2, mixed := mixedTypes(args); mixed {
		return nil, p.errf("TypeError while evaluating 'sort(%s)': '<' not supported between instances of '%s' and '%s'",
			joinSources(args), t1, t2)
	}

	sorted := make([]Element, len(args))
	copy(sorted, args)
	sortElements(sorted, reverse)

	if len(sorted) == 1 {
		return sorted[0], nil
	}

	return ChoiceSweep{List: sorted, SimpleForm: true}, nil
}

// mixedTypes reports whether numeric and non-numeric elements are mixed,
// which makes the list unsortable.
func mixedTypes(items []Element) (string, string, bool) {
	if len(items) == 0 {
		return "", "", false
	}

	_, firstNumeric := items[0].AsFloat()

	for _, item := range items {
		_, numeric := item.AsFloat()
		if numeric != firstNumeric {
			return typeName(numeric), typeName(firstNumeric), true
		}
	}

	return "", "", false
}

func typeName(numeric bool) string {
	if numeric {
		return "int"
	}

	return "str"
}

func sortElements(items []Element, reverse bool) {
	sort.SliceStable(items, func(i, j int) bool {
		return elementLess(items[i], items[j])
	})

	if reverse {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
}

func elementLess(a, b Element) bool {
	if fa, ok := a.AsFloat(); ok {
		if fb, ok := b.AsFloat(); ok {
			return fa < fb
		}
	}

	if sa, ok := a.AsString(); ok {
		if sb, ok := b.AsString(); ok {
			return sa < sb
		}
	}

	return false
}

func (p *parser) buildListAppend(args []Element) (OverrideValue, error) {
	return ListExtension{Op: OpAppend, Values: args}, nil
}

func (p *parser) buildListPrepend(args []Element) (OverrideValue, error) {
	return ListExtension{Op: OpPrepend, Values: args}, nil
}

func (p *parser) buildListInsert(args []Element) (OverrideValue, error) {
	if len(args) < 2 {
		return nil, p.errf("insert() requires at least 2 arguments: insert(index, value, ...)")
	}

	index, ok := args[0].AsInt()
	if !ok {
		return nil, p.errf("insert() first argument must be an integer index")
	}

	return ListExtension{Op: OpInsert, Values: args[1:], Index: index}, nil
}

func (p *parser) buildListRemoveAt(args []Element) (OverrideValue, error) {
	if len(args) != 1 {
		return nil, p.errf("remove_at() requires exactly 1 argument: remove_at(index)")
	}

	index, ok := args[0].AsInt()
	if !ok {
		return nil, p.errf("remove_at() argument must be an integer index")
	}

	return ListExtension{Op: OpRemoveAt, Index: index}, nil
}

func (p *parser) buildListRemoveValue(args []Element) (OverrideValue, error) {
	if len(args) == 0 {
		return nil, p.errf("remove_value() requires at least 1 argument")
	}

	return ListExtension{Op: OpRemoveValue, Values: args}, nil
}

func (p *parser) buildListClear(args []Element) (OverrideValue, error) {
	if len(args) != 0 {
		return nil, p.errf("list_clear() takes no arguments")
	}

	return ListExtension{Op: OpClear}, nil
}

// sweepToSource renders an override value the way the user wrote it, for
// use in cast error messages.
func sweepToSource(val OverrideValue) string {
	switch sv := val.(type) {
	case Element:
		return sv.Source()
	case ChoiceSweep:
		joined := joinSources(sv.List)
		if sv.SimpleForm {
			return joined
		}

		return "choice(" + joined + ")"
	case RangeSweep:
		if sv.IsInt {
			return "range(" + strconv.FormatInt(int64(sv.Start), 10) + "," + strconv.FormatInt(int64(sv.Stop), 10) + ")"
		}

		return "range(" + floatSource(sv.Start) + "," + floatSource(sv.Stop) + ")"
	case IntervalSweep:
		return "interval(" + floatSource(sv.Start) + ", " + floatSource(sv.End) + ")"
	case GlobSweep:
		return "glob(" + strings.Join(sv.Include, ",") + ")"
	case ListExtension:
		return "[" + joinSources(sv.Values) + "]"
	default:
		return ""
	}
}

func (p *parser) applyCast(name string, elem Element) (Element, error) {
	switch name {
	case "int":
		return p.castInt(elem)
	case "float":
		return p.castFloat(elem)
	case "str":
		return p.castStr(elem)
	case "bool":
		return p.castBool(elem)
	case "json_str":
		return p.castJSONStr(elem)
	default:
		return Element{}, p.errf("Unknown cast type: %s", name)
	}
}

func (p *parser) castInt(elem Element) (Element, error) {
	switch elem.kind {
	case elemInt:
		return elem, nil
	case elemFloat:
		if math.IsInf(elem.f, 0) {
			return Element{}, p.errf("OverflowError while evaluating 'int(inf)': cannot convert float infinity to integer")
		}

		if math.IsNaN(elem.f) {
			return Element{}, p.errf("ValueError while evaluating 'int(nan)': cannot convert float NaN to integer")
		}

		return IntElement(int64(elem.f)), nil
	case elemString, elemQuoted:
		i, err := strconv.ParseInt(elem.s, 10, 64)
		if err != nil {
			return Element{}, p.errf("ValueError while evaluating 'int(%s)': invalid literal for int() with base 10: '%s'",
				elem.Source(), elem.s)
		}

		return IntElement(i), nil
	case elemBool:
		if elem.b {
			return IntElement(1), nil
		}

		return IntElement(0), nil
	case elemList:
		return p.castList("int", elem)
	case elemDict:
		return p.castDict("int", elem)
	default:
		return NullElement(), nil
	}
}

func (p *parser) castFloat(elem Element) (Element, error) {
	switch elem.kind {
	case elemInt:
		return FloatElement(float64(elem.i)), nil
	case elemFloat:
		return elem, nil
	case elemString, elemQuoted:
		f, err := strconv.ParseFloat(elem.s, 64)
		if err != nil {
			return Element{}, p.errf("ValueError while evaluating 'float(%s)': could not convert string to float: '%s'",
				elem.Source(), elem.s)
		}

		return FloatElement(f), nil
	case elemBool:
		if elem.b {
			return FloatElement(1), nil
		}

		return FloatElement(0), nil
	case elemList:
		return p.castList("float", elem)
	case elemDict:
		return p.castDict("float", elem)
	default:
		return NullElement(), nil
	}
}

func (p *parser) castStr(elem Element) (Element, error) {
	switch elem.kind {
	case elemInt:
		return StringElement(strconv.FormatInt(elem.i, 10)), nil
	case elemFloat:
		return StringElement(floatSource(elem.f)), nil
	case elemString, elemQuoted:
		return StringElement(elem.s), nil
	case elemBool:
		if elem.b {
			return StringElement("true"), nil
		}

		return StringElement("false"), nil
	case elemNull:
		return StringElement("null"), nil
	case elemList:
		items := make([]Element, 0, len(elem.list))

		for _, item := range elem.list {
			cast, err := p.castStr(item)
			if err != nil {
				return Element{}, err
			}

			items = append(items, cast)
		}

		return ListElement(items...), nil
	case elemDict:
		entries := make([]DictEntry, 0, len(elem.dict))

		for _, entry := range elem.dict {
			cast, err := p.castStr(entry.Value)
			if err != nil {
				return Element{}, err
			}

			entries = append(entries, DictEntry{Key: entry.Key, Value: cast})
		}

		return DictElement(entries...), nil
	default:
		return StringElement(""), nil
	}
}

func (p *parser) castBool(elem Element) (Element, error) {
	switch elem.kind {
	case elemBool:
		return elem, nil
	case elemInt:
		return BoolElement(elem.i != 0), nil
	case elemFloat:
		return BoolElement(elem.f != 0), nil
	case elemString, elemQuoted:
		switch strings.ToLower(elem.s) {
		case "true", "yes", "on", "1":
			return BoolElement(true), nil
		case "false", "no", "off", "0":
			return BoolElement(false), nil
		default:
			return Element{}, p.errf("ValueError while evaluating 'bool(%s)': Cannot cast '%s' to bool",
				elem.Source(), elem.s)
		}
	case elemList:
		return p.castList("bool", elem)
	case elemDict:
		return p.castDict("bool", elem)
	default:
		return NullElement(), nil
	}
}

func (p *parser) castJSONStr(elem Element) (Element, error) {
	switch elem.kind {
	case elemInt:
		return StringElement(strconv.FormatInt(elem.i, 10)), nil
	case elemFloat:
		switch {
		case math.IsInf(elem.f, 1):
			return StringElement("Infinity"), nil
		case math.IsInf(elem.f, -1):
			return StringElement("-Infinity"), nil
		case math.IsNaN(elem.f):
			return StringElement("NaN"), nil
		default:
			return StringElement(floatSource(elem.f)), nil
		}
	case elemString:
		switch elem.s {
		case "true", "false", "null":
			return StringElement(elem.s), nil
		default:
			return StringElement(`"` + elem.s + `"`), nil
		}
	case elemQuoted:
		return StringElement(`"` + elem.s + `"`), nil
	case elemBool:
		if elem.b {
			return StringElement("true"), nil
		}

		return StringElement("false"), nil
	case elemNull:
		return StringElement("null"), nil
	case elemList:
		parts := make([]string, 0, len(elem.list))

		for _, item := range elem.list {
			cast, err := p.castJSONStr(item)
			if err != nil {
				return Element{}, err
			}

			s, _ := cast.AsString()
			parts = append(parts, s)
		}

		return StringElement("[" + strings.Join(parts, ", ") + "]"), nil
	case elemDict:
		parts := make([]string, 0, len(elem.dict))

		for _, entry := range elem.dict {
			cast, err := p.castJSONStr(entry.Value)
			if err != nil {
				return Element{}, err
			}

			s, _ := cast.AsString()
			parts = append(parts, `"`+entry.Key+`": `+s)
		}

		return StringElement("{" + strings.Join(parts, ", ") + "}"), nil
	default:
		return StringElement(""), nil
	}
}

// castList applies a cast to each list item, rewrapping failures with the
// whole list as context.
func (p *parser) castList(name string, elem Element) (Element, error) {
	source := elem.Source()

	items := make([]Element, 0, len(elem.list))

	for _, item := range elem.list {
		cast, err := p.applyCast(name, item)
		if err != nil {
			return Element{}, p.rewrapCastError(err, name, source)
		}

		items = append(items, cast)
	}

	return ListElement(items...), nil
}

// castDict applies a cast to each dict value, rewrapping failures with the
// whole dict as context.
func (p *parser) castDict(name string, elem Element) (Element, error) {
	source := elem.Source()

	entries := make([]DictEntry, 0, len(elem.dict))

	for _, entry := range elem.dict {
		cast, err := p.applyCast(name, entry.Value)
		if err != nil {
			return Element{}, p.rewrapCastError(err, name, source)
		}

		entries = append(entries, DictEntry{Key: entry.Key, Value: cast})
	}

	return DictElement(entries...), nil
}

func (p *parser) elementToF64(elem Element) (float64, error) {
	switch elem.kind {
	case elemInt:
		return float64(elem.i), nil
	case elemFloat:
		return elem.f, nil
	case elemString:
		f, err := strconv.ParseFloat(elem.s, 64)
		if err != nil {
			return 0, p.errf("Expected number, got '%s'", elem.s)
		}

		return f, nil
	default:
		return 0, p.errf("Expected number")
	}
}

func (p *parser) elementToStringList(elem Element) ([]string, error) {
	switch elem.kind {
	case elemString, elemQuoted:
		return []string{elem.s}, nil
	case elemList:
		out := make([]string, 0, len(elem.list))

		for _, item := range elem.list {
			s, ok := item.AsString()
			if !ok {
				return nil, p.errf("Expected string in list")
			}

			out = append(out, s)
		}

		return out, nil
	default:
		return nil, p.errf("Expected string or list of strings")
	}
}
