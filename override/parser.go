package override

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseError reports where in the override string parsing failed.
type ParseError struct {
	Message  string
	Position int
}

func (e *ParseError) Error() string {
	// Evaluation errors already carry their own context.
	if strings.HasPrefix(e.Message, "TypeError while evaluating") ||
		strings.HasPrefix(e.Message, "ValueError while evaluating") {
		return e.Message
	}

	return fmt.Sprintf("Parse error at position %d: %s", e.Position, e.Message)
}

// Kwarg is a keyword argument of an override function call.
type Kwarg struct {
	Name  string
	Value Element
}

// Functions resolves user-defined override functions. A registered name
// shadows the built-in of the same name.
type Functions interface {
	// Has reports whether a function with this name is registered.
	Has(name string) bool
	// Call evaluates the function and returns its result.
	Call(name string, args []Element, kwargs []Kwarg) (Element, error)
}

// Parse parses a single override string using built-in functions only.
func Parse(input string) (Override, error) {
	return ParseWith(input, nil)
}

// ParseWith parses a single override string. Function calls not shadowed by
// funcs use the built-ins.
func ParseWith(input string, funcs Functions) (Override, error) {
	p := &parser{input: []rune(input), funcs: funcs}

	result, err := p.parseOverride()
	if err != nil {
		return Override{}, err
	}

	p.skipWhitespace()

	if p.pos < len(p.input) {
		return Override{}, p.errf("Unexpected character: '%c'", p.current())
	}

	result.Input = input

	return result, nil
}

// ParseMany parses a list of override strings, reporting the index of the
// first failing one.
func ParseMany(inputs []string) ([]Override, error) {
	return ParseManyWith(inputs, nil)
}

// ParseManyWith is ParseMany with user-defined function support.
func ParseManyWith(inputs []string, funcs Functions) ([]Override, error) {
	out := make([]Override, 0, len(inputs))

	for idx, input := range inputs {
		parsed, err := ParseWith(input, funcs)
		if err != nil {
			perr := err.(*ParseError)

			return nil, &ParseError{
				Message:  fmt.Sprintf("Error parsing override %d: %s", idx, perr.Message),
				Position: perr.Position,
			}
		}

		out = append(out, parsed)
	}

	return out, nil
}

type parser struct {
	input []rune
	pos   int
	funcs Functions
}

func (p *parser) errf(format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Position: p.pos}
}

func (p *parser) parseOverride() (Override, error) {
	p.skipWhitespace()

	typ := p.parseType()

	key, err := p.parseKey()
	if err != nil {
		return Override{}, err
	}

	if typ == Del {
		// Deletes may carry a value guard (~key=value) or stand alone.
		if p.consume('=') {
			val, err := p.parseValue()
			if err != nil {
				return Override{}, err
			}

			return Override{Type: typ, Key: key, Value: val}, nil
		}

		return Override{Type: typ, Key: key}, nil
	}

	if !p.consume('=') {
		return Override{}, p.errf("Expected '=' after key")
	}

	val, err := p.parseValue()
	if err != nil {
		return Override{}, err
	}

	return Override{Type: typ, Key: key, Value: val}, nil
}

func (p *parser) parseType() Type {
	if p.consume('~') {
		return Del
	}

	if p.consume('+') {
		if p.consume('+') {
			return ForceAdd
		}

		return Add
	}

	return Change
}

func (p *parser) parseKey() (Key, error) {
	var key Key

	// Package prefix form: @pkg:key.
	if p.peek() == '@' {
		p.advance()

		pkg, err := p.parsePackageName()
		if err != nil {
			return Key{}, err
		}

		if !p.consume(':') {
			return Key{}, p.errf("Expected ':' after package name")
		}

		key.Package = pkg
		key.HasPackage = true
	}

	var path strings.Builder

	for {
		c := p.peek()
		if c == 0 {
			break
		}

		if isAlnum(c) || c == '_' || c == '.' || c == '/' || c == '[' || c == ']' {
			path.WriteRune(c)
			p.advance()
		} else if c == '@' && !key.HasPackage {
			// Package suffix form: group1/group2@pkg.
			p.advance()

			pkg, err := p.parsePackageName()
			if err != nil {
				return Key{}, err
			}

			key.Package = pkg
			key.HasPackage = true

			break
		} else {
			break
		}
	}

	if path.Len() == 0 {
		return Key{}, p.errf("Expected key")
	}

	key.Path = path.String()

	return key, nil
}

func (p *parser) parsePackageName() (string, error) {
	var name strings.Builder

	for {
		c := p.peek()
		if isAlnum(c) || c == '_' || c == '.' {
			name.WriteRune(c)
			p.advance()
		} else {
			break
		}
	}

	if name.Len() == 0 {
		return "", p.errf("Expected package name")
	}

	return name.String(), nil
}

func (p *parser) parseIdentifier() (string, error) {
	var ident strings.Builder

	for {
		c := p.peek()
		if isAlnum(c) || c == '_' {
			ident.WriteRune(c)
			p.advance()
		} else {
			break
		}
	}

	if ident.Len() == 0 {
		return "", p.errf("Expected identifier")
	}

	return ident.String(), nil
}

func (p *parser) parseValue() (OverrideValue, error) {
	p.skipWhitespace()

	// key= with nothing after is the empty string.
	if p.peek() == 0 {
		return StringElement(""), nil
	}

	// A leading identifier may be a function call.
	if c := p.peek(); unicode.IsLetter(c) || c == '_' {
		start := p.pos

		ident, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}

		p.skipWhitespace()

		if p.peek() == '(' {
			return p.parseFunctionCall(ident)
		}

		p.pos = start
	}

	if sweep, ok, err := p.tryParseSimpleChoice(); err != nil {
		return nil, err
	} else if ok {
		return sweep, nil
	}

	elem, err := p.parseElement()
	if err != nil {
		return nil, err
	}

	return elem, nil
}

// tryParseSimpleChoice recognizes the bare comma form "a,b,c".
func (p *parser) tryParseSimpleChoice() (OverrideValue, bool, error) {
	start := p.pos

	first, err := p.parseElement()
	if err != nil {
		p.pos = start

		return nil, false, nil
	}

	p.skipWhitespace()

	if p.peek() != ',' {
		p.pos = start

		return nil, false, nil
	}

	choices := []Element{first}

	for p.consume(',') {
		p.skipWhitespace()

		elem, err := p.parseElement()
		if err != nil {
			return nil, false, err
		}

		choices = append(choices, elem)
		p.skipWhitespace()
	}

	return ChoiceSweep{List: choices, SimpleForm: true}, true, nil
}

func (p *parser) parseElement() (Element, error) {
	p.skipWhitespace()

	c := p.peek()

	switch {
	case c == 0:
		return Element{}, p.errf("Unexpected end of input")
	case c == '\'':
		return p.parseQuotedString(QuoteSingle)
	case c == '"':
		return p.parseQuotedString(QuoteDouble)
	case c == '[':
		return p.parseList()
	case c == '{':
		return p.parseDict()
	case c == '$':
		return p.parseInterpolation()
	case unicode.IsDigit(c) || c == '-' || c == '+':
		// Try number parsing, but fall back to an unquoted value if the
		// number stops at a character that belongs to the value
		// (e.g. "1___0___" or "0.foo" are strings).
		saved := p.pos

		elem, err := p.parseNumber()

		if next := p.peek(); next != 0 {
			if next == '_' || isAlnum(next) {
				p.pos = saved

				return p.parseUnquotedValue()
			}

			if next == '.' {
				afterDot := p.peekAt(1)
				if unicode.IsLetter(afterDot) || afterDot == '_' {
					p.pos = saved

					return p.parseUnquotedValue()
				}
			}
		}

		return elem, err
	case unicode.IsLetter(c) || c == '_':
		return p.parseIdentifierOrFunction()
	default:
		return p.parseUnquotedValue()
	}
}

// parseInterpolation handles ${...} (kept verbatim, braces included, for the
// interpolation engine to resolve later) and bare $VAR passthrough.
func (p *parser) parseInterpolation() (Element, error) {
	if !p.consume('$') {
		return Element{}, p.errf("Expected '$'")
	}

	if !p.consume('{') {
		// Just $SOMETHING, collected as a plain string.
		var val strings.Builder

		val.WriteRune('$')

		for {
			c := p.peek()
			if c == '\\' {
				p.advance()

				if escaped := p.peek(); escaped != 0 {
					val.WriteRune(escaped)
					p.advance()
				}
			} else if isAlnum(c) || c == '_' || c == '.' || c == '-' || c == ':' {
				val.WriteRune(c)
				p.advance()
			} else {
				break
			}
		}

		return StringElement(val.String()), nil
	}

	depth := 1

	var content strings.Builder

	for depth > 0 {
		switch c := p.peek(); c {
		case 0:
			return Element{}, p.errf("Unterminated interpolation")
		case '{':
			depth++

			content.WriteRune('{')
			p.advance()
		case '}':
			depth--

			if depth > 0 {
				content.WriteRune('}')
			}

			p.advance()
		default:
			content.WriteRune(c)
			p.advance()
		}
	}

	return StringElement("${" + content.String() + "}"), nil
}

// parseIdentifierOrFunction parses a bare word that may turn out to be a
// function call, a keyword (true/null/inf/...), or an unquoted string with
// embedded interpolations, glob wildcards, and escaped characters.
func (p *parser) parseIdentifierOrFunction() (Element, error) {
	start := p.pos

	identStr, err := p.parseIdentifier()
	if err != nil {
		return Element{}, err
	}

	var ident strings.Builder

	ident.WriteString(identStr)

loop:
	for {
		c := p.peek()
		if c == 0 {
			break
		}

		switch {
		case c == '\\':
			p.consumeEscape(&ident)
		case c == '$':
			p.advance()

			if p.peek() == '{' {
				// Embedded interpolation, captured with its braces.
				ident.WriteString("${")
				p.advance()

				depth := 1
				for depth > 0 {
					switch ch := p.peek(); ch {
					case 0:
						return Element{}, p.errf("Unterminated interpolation")
					case '{':
						depth++

						ident.WriteRune('{')
						p.advance()
					case '}':
						depth--

						ident.WriteRune('}')
						p.advance()
					default:
						ident.WriteRune(ch)
						p.advance()
					}
				}
			} else {
				// $BARE_VAR, kept as-is.
				ident.WriteRune('$')

				for {
					ch := p.peek()
					if isAlnum(ch) || ch == '_' {
						ident.WriteRune(ch)
						p.advance()
					} else {
						break
					}
				}
			}
		case c == '*' || c == '?' || c == '%' || c == '+' || c == '@' || c == '|':
			ident.WriteRune(c)
			p.advance()
		case isAlnum(c) || c == '_' || c == '-' || c == '.' || c == '/' || c == ':':
			ident.WriteRune(c)
			p.advance()
		case c == ' ' || c == '\t':
			// Interior whitespace is part of the value only when more value
			// content follows.
			if !p.continueAfterWhitespace(&ident) {
				break loop
			}
		default:
			break loop
		}
	}

	p.skipWhitespace()

	if p.peek() == '(' {
		result, err := p.parseFunctionCall(ident.String())
		if err != nil {
			return Element{}, err
		}

		if elem, ok := result.(Element); ok {
			return elem, nil
		}

		// Sweeps are only valid at the top of a value, not inside one.
		p.pos = start

		return Element{}, p.errf("Function '%s' returns a sweep, which cannot be used here", ident.String())
	}

	return keywordElement(ident.String()), nil
}

// keywordElement maps case-insensitive keywords to their typed elements and
// leaves everything else a string.
func keywordElement(s string) Element {
	switch strings.ToLower(s) {
	case "null", "~":
		return NullElement()
	case "true", "yes", "on":
		return BoolElement(true)
	case "false", "no", "off":
		return BoolElement(false)
	case "inf":
		return FloatElement(math.Inf(1))
	case "-inf":
		return FloatElement(math.Inf(-1))
	case "nan":
		return FloatElement(math.NaN())
	default:
		return StringElement(s)
	}
}

func (p *parser) parseQuotedString(quote Quote) (Element, error) {
	quoteChar := quote.Rune()

	if !p.consume(quoteChar) {
		return Element{}, p.errf("Expected opening %c", quoteChar)
	}

	// A quote is escaped iff preceded by an odd number of backslashes.
	var raw []rune

	for {
		c := p.peek()
		if c == 0 {
			break
		}

		p.advance()

		if c != quoteChar {
			raw = append(raw, c)

			continue
		}

		backslashes := 0
		for i := len(raw) - 1; i >= 0 && raw[i] == '\\'; i-- {
			backslashes++
		}

		if backslashes%2 == 1 {
			raw = append(raw, c)

			continue
		}

		return QuotedElement(unescapeQuoted(raw, quoteChar), quote), nil
	}

	return Element{}, p.errf("Unterminated quoted string")
}

// unescapeQuoted resolves backslash runs: pairs before the quote character
// collapse, trailing pairs collapse, and anything else is kept as written.
func unescapeQuoted(raw []rune, quoteChar rune) string {
	var out strings.Builder

	i := 0
	for i < len(raw) {
		if raw[i] != '\\' {
			out.WriteRune(raw[i])
			i++

			continue
		}

		start := i
		for i < len(raw) && raw[i] == '\\' {
			i++
		}

		run := i - start

		switch {
		case i < len(raw) && raw[i] == quoteChar:
			for j := 0; j < (run-1)/2; j++ {
				out.WriteRune('\\')
			}

			out.WriteRune(quoteChar)
			i++
		case i >= len(raw):
			for j := 0; j < run/2; j++ {
				out.WriteRune('\\')
			}
		default:
			for j := 0; j < run; j++ {
				out.WriteRune('\\')
			}
		}
	}

	return out.String()
}

func (p *parser) parseList() (Element, error) {
	if !p.consume('[') {
		return Element{}, p.errf("Expected '['")
	}

	items := []Element{}

	p.skipWhitespace()

	if p.peek() == ']' {
		p.advance()

		return ListElement(items...), nil
	}

	for {
		item, err := p.parseElement()
		if err != nil {
			return Element{}, err
		}

		items = append(items, item)
		p.skipWhitespace()

		if p.consume(']') {
			break
		}

		if !p.consume(',') {
			return Element{}, p.errf("Expected ',' or ']'")
		}

		p.skipWhitespace()
	}

	return ListElement(items...), nil
}

func (p *parser) parseDict() (Element, error) {
	if !p.consume('{') {
		return Element{}, p.errf("Expected '{'")
	}

	entries := []DictEntry{}

	p.skipWhitespace()

	if p.peek() == '}' {
		p.advance()

		return DictElement(entries...), nil
	}

	for {
		key, err := p.parseDictKey()
		if err != nil {
			return Element{}, err
		}

		p.skipWhitespace()

		if !p.consume(':') && !p.consume('=') {
			return Element{}, p.errf("Expected ':' or '='")
		}

		val, err := p.parseElement()
		if err != nil {
			return Element{}, err
		}

		entries = append(entries, DictEntry{Key: key, Value: val})
		p.skipWhitespace()

		if p.consume('}') {
			break
		}

		if !p.consume(',') {
			return Element{}, p.errf("Expected ',' or '}'")
		}

		p.skipWhitespace()
	}

	return DictElement(entries...), nil
}

func (p *parser) parseDictKey() (string, error) {
	p.skipWhitespace()

	c := p.peek()

	switch {
	case c == '\'' || c == '"':
		// Quoted dict keys are not part of the override grammar.
		rest := p.input[p.pos:]
		if len(rest) > 10 {
			rest = rest[:10]
		}

		return "", p.errf("no viable alternative at input '{%s", string(rest))
	case unicode.IsDigit(c) || c == '-' || c == '+':
		saved := p.pos

		elem, err := p.parseNumber()
		if err != nil {
			return "", err
		}

		// "123id" is an unquoted key, not a number.
		if next := p.peek(); isAlnum(next) || next == '_' {
			p.pos = saved

			return p.parseDictKeyUnquoted()
		}

		if i, ok := elem.AsInt(); ok {
			return strconv.FormatInt(i, 10), nil
		}

		f, _ := elem.AsFloat()

		return rawFloat(f), nil
	default:
		return p.parseDictKeyUnquoted()
	}
}

// parseDictKeyUnquoted reads a key up to an unescaped ':', '=', '}' or
// ','. Interior whitespace is allowed; trailing whitespace is trimmed.
func (p *parser) parseDictKeyUnquoted() (string, error) {
	var key strings.Builder

	consumed := 0

	for {
		c := p.peekAt(consumed)
		if c == 0 {
			break
		}

		if c == '\\' {
			next := p.peekAt(consumed + 1)
			if next == 0 {
				break
			}

			if isDictKeyEscapable(next) {
				consumed += 2

				key.WriteRune(next)
			} else {
				key.WriteRune(c)
				consumed++
			}
		} else if c == ':' || c == '=' || c == '}' || c == ',' {
			break
		} else {
			key.WriteRune(c)
			consumed++
		}
	}

	trimmed := strings.TrimRightFunc(key.String(), unicode.IsSpace)

	for i := 0; i < consumed; i++ {
		p.advance()
	}

	if trimmed == "" {
		return "", p.errf("Expected dict key")
	}

	return trimmed, nil
}

func isDictKeyEscapable(c rune) bool {
	switch c {
	case '\\', ':', '{', '}', '[', ']', '(', ')', '=', ',', ' ', '\t':
		return true
	default:
		return false
	}
}

func (p *parser) parseNumber() (Element, error) {
	var numStr strings.Builder

	hasDot := false
	hasExp := false
	hasUnderscore := false
	lastWasUnderscore := false

	if c := p.peek(); c == '-' || c == '+' {
		numStr.WriteRune(c)
		p.advance()

		// +inf / -inf written with an explicit sign.
		if next := p.peek(); next == 'i' || next == 'I' {
			saved := p.pos

			var keyword strings.Builder

			for {
				ch := p.peek()
				if unicode.IsLetter(ch) {
					keyword.WriteRune(ch)
					p.advance()
				} else {
					break
				}
			}

			if strings.ToLower(keyword.String()) == "inf" {
				if c == '+' {
					return FloatElement(math.Inf(1)), nil
				}

				return FloatElement(math.Inf(-1)), nil
			}

			p.pos = saved
		}
	}

	for {
		c := p.peek()

		if unicode.IsDigit(c) {
			numStr.WriteRune(c)
			p.advance()

			lastWasUnderscore = false
		} else if c == '_' {
			// Digit-group underscores (10_000): between digits only.
			if numStr.Len() == 0 || lastWasUnderscore {
				break
			}

			if unicode.IsDigit(p.peekAt(1)) {
				hasUnderscore = true

				numStr.WriteRune(c)
				p.advance()

				lastWasUnderscore = true
			} else {
				break
			}
		} else if c == '.' && !hasDot && !hasExp {
			if unicode.IsDigit(p.peekAt(1)) {
				hasDot = true

				numStr.WriteRune(c)
				p.advance()

				lastWasUnderscore = false
			} else {
				break
			}
		} else if (c == 'e' || c == 'E') && !hasExp {
			hasExp = true

			numStr.WriteRune(c)
			p.advance()

			lastWasUnderscore = false

			if s := p.peek(); s == '-' || s == '+' {
				numStr.WriteRune(s)
				p.advance()
			}
		} else {
			break
		}
	}

	raw := numStr.String()

	parseStr := raw
	if hasUnderscore {
		parseStr = strings.ReplaceAll(raw, "_", "")
	}

	if hasDot || hasExp {
		f, err := strconv.ParseFloat(parseStr, 64)
		if err != nil {
			return Element{}, p.errf("Invalid float: %s", raw)
		}

		return FloatElement(f), nil
	}

	i, err := strconv.ParseInt(parseStr, 10, 64)
	if err != nil {
		return Element{}, p.errf("Invalid integer: %s", raw)
	}

	return IntElement(i), nil
}

func (p *parser) parseUnquotedValue() (Element, error) {
	var val strings.Builder

loop:
	for {
		c := p.peek()
		if c == 0 {
			break
		}

		switch {
		case c == '\\':
			p.consumeEscape(&val)
		case isValueRune(c):
			val.WriteRune(c)
			p.advance()
		case (c == ' ' || c == '\t') && val.Len() > 0:
			if !p.continueAfterWhitespace(&val) {
				break loop
			}
		default:
			break loop
		}
	}

	if val.Len() == 0 {
		return Element{}, p.errf("Expected value")
	}

	return keywordElement(val.String()), nil
}

// consumeEscape handles a backslash at the current position. Only a fixed
// set of characters is escapable; anything else keeps the backslash literal
// so Windows paths survive.
func (p *parser) consumeEscape(buf *strings.Builder) {
	next := p.peekAt(1)

	switch next {
	case 0:
		buf.WriteRune('\\')
		p.advance()
	case 't':
		p.advance()
		p.advance()
		buf.WriteRune('\t')
	case 'n':
		p.advance()
		p.advance()
		buf.WriteRune('\n')
	case 'r':
		p.advance()
		p.advance()
		buf.WriteRune('\r')
	case '\t', '\n', '\r':
		// Backslash before a literal control char strips the backslash.
		p.advance()
		buf.WriteRune(next)
		p.advance()
	case ' ', '=', ',', ':', '[', ']', '{', '}', '(', ')', '\'', '"', '\\':
		p.advance()
		buf.WriteRune(next)
		p.advance()
	default:
		buf.WriteRune('\\')
		p.advance()
	}
}

// continueAfterWhitespace consumes a run of spaces and tabs and keeps it as
// part of the value when more value content follows; otherwise the position
// is restored to the start of the run.
func (p *parser) continueAfterWhitespace(buf *strings.Builder) bool {
	saved := p.pos

	var ws strings.Builder

	for {
		c := p.peek()
		if c == ' ' || c == '\t' {
			ws.WriteRune(c)
			p.advance()
		} else {
			break
		}
	}

	if next := p.peek(); next != 0 && (isValueRune(next) || next == '\\') {
		buf.WriteString(ws.String())

		return true
	}

	p.pos = saved

	return false
}

func isAlnum(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c)
}

func isValueRune(c rune) bool {
	if isAlnum(c) {
		return true
	}

	switch c {
	case '_', '-', '.', '/', ':', '*', '?', '$', '%', '+', '@', '|':
		return true
	default:
		return false
	}
}

func (p *parser) peek() rune {
	if p.pos < len(p.input) {
		return p.input[p.pos]
	}

	return 0
}

func (p *parser) peekAt(offset int) rune {
	if p.pos+offset < len(p.input) {
		return p.input[p.pos+offset]
	}

	return 0
}

func (p *parser) current() rune {
	return p.peek()
}

func (p *parser) advance() {
	p.pos++
}

func (p *parser) consume(expected rune) bool {
	if p.peek() == expected {
		p.advance()

		return true
	}

	return false
}

func (p *parser) skipWhitespace() {
	for {
		c := p.peek()
		if c == ' ' || c == '\t' {
			p.advance()
		} else {
			return
		}
	}
}
