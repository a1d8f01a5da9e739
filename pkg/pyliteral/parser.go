// Package pyliteral parses the Python literal text used for embedded list and
// object columns in the raw movie dataset, e.g.
//
//	[{'id': 16, 'name': 'Animation'}, {'id': 35, 'name': 'Comedy'}]
//
// Only literal syntax is accepted: dicts, lists, tuples, sets, strings (single,
// double or triple quoted, with escapes and implicit concatenation), ints,
// floats, True, False and None. Anything else is a parse error.
package pyliteral

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrSyntax is returned for text that is not a valid literal.
var ErrSyntax = errors.New("invalid literal")

// Member is a single key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a dict literal. Member order is preserved; a repeated key keeps
// its first position and its last value.
type Object []Member

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the object with its members in source order.
func (o Object) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		val, err := json.Marshal(m.Value)
		if err != nil {
			return nil, err
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Tuple is a tuple literal. It encodes to JSON as an array.
type Tuple []any

// Set is a set literal. It encodes to JSON as an array.
type Set []any

// Parse parses s as a single literal. The returned value is one of
// Object, []any, Tuple, Set, string, int64, float64, bool or nil.
func Parse(s string) (any, error) {
	p := &parser{src: s}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q after value", p.peek())
	}
	return v, nil
}

// IsListOrObject reports whether s parses to a list or a dict.
// Tuples, sets and scalars do not qualify.
func IsListOrObject(s string) bool {
	v, err := Parse(s)
	if err != nil {
		return false
	}
	switch v.(type) {
	case []any, Object:
		return true
	default:
		return false
	}
}

// ToJSON parses s and re-encodes it as JSON.
func ToJSON(s string) ([]byte, error) {
	v, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// maxDepth bounds container nesting.
const maxDepth = 200

type parser struct {
	src   string
	pos   int
	depth int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			p.pos++
		case '\\':
			// Explicit line continuation.
			if strings.HasPrefix(p.src[p.pos:], "\\\n") {
				p.pos += 2
				continue
			}
			return
		default:
			return
		}
	}
}

func (p *parser) value() (any, error) {
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}

	c := p.peek()
	switch {
	case c == '{':
		return p.container('{', '}')
	case c == '[':
		return p.container('[', ']')
	case c == '(':
		return p.container('(', ')')
	case c == '\'' || c == '"':
		return p.stringValue()
	case c == '-' || c == '+':
		return p.signed()
	case c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case isIdentStart(c):
		return p.name()
	default:
		return nil, p.errorf("unexpected %q", c)
	}
}

func (p *parser) container(open, close byte) (any, error) {
	p.depth++
	if p.depth > maxDepth {
		return nil, p.errorf("nesting too deep")
	}
	defer func() { p.depth-- }()

	p.pos++ // open
	p.skipSpace()

	if open == '{' {
		return p.dictOrSet()
	}

	var items []any
	trailingComma := false
	for {
		p.skipSpace()
		if p.peek() == close {
			p.pos++
			break
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		trailingComma = false

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			trailingComma = true
		case close:
		default:
			return nil, p.errorf("expected ',' or %q", close)
		}
	}

	if open == '[' {
		if items == nil {
			items = []any{}
		}
		return items, nil
	}

	// "(x)" is a parenthesized value, "(x,)" and "()" are tuples.
	if len(items) == 1 && !trailingComma {
		return items[0], nil
	}
	if items == nil {
		return Tuple{}, nil
	}
	return Tuple(items), nil
}

func (p *parser) dictOrSet() (any, error) {
	if p.peek() == '}' {
		p.pos++
		return Object{}, nil
	}

	first, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()

	if p.peek() != ':' {
		return p.setFrom(first)
	}

	var obj Object
	v := first
	for {
		key, err := dictKey(v)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		p.pos++ // ':'
		p.skipSpace()
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		obj = setMember(obj, key, val)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == '}' {
				p.pos++
				return obj, nil
			}
		case '}':
			p.pos++
			return obj, nil
		default:
			return nil, p.errorf("expected ',' or '}' in dict")
		}

		if v, err = p.value(); err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' in dict")
		}
	}
}

func (p *parser) setFrom(first any) (any, error) {
	if !hashable(first) {
		return nil, p.errorf("unhashable set member %T", first)
	}
	items := Set{first}
	for {
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == '}' {
				p.pos++
				return items, nil
			}
			v, err := p.value()
			if err != nil {
				return nil, err
			}
			if !hashable(v) {
				return nil, p.errorf("unhashable set member %T", v)
			}
			items = append(items, v)
		case '}':
			p.pos++
			return items, nil
		default:
			return nil, p.errorf("expected ',' or '}' in set")
		}
	}
}

func setMember(obj Object, key string, val any) Object {
	for i := range obj {
		if obj[i].Key == key {
			obj[i].Value = val
			return obj
		}
	}
	return append(obj, Member{Key: key, Value: val})
}

// hashable reports whether v could be a set member or dict key: a scalar, or
// a tuple of hashable values.
func hashable(v any) bool {
	switch t := v.(type) {
	case Object, []any, Set:
		return false
	case Tuple:
		for _, item := range t {
			if !hashable(item) {
				return false
			}
		}
	}
	return true
}

// dictKey converts a hashable scalar key to its JSON object key. Tuple keys
// are hashable but have no JSON or BSON key form, so they are rejected here
// rather than when the document is stored.
func dictKey(v any) (string, error) {
	switch k := v.(type) {
	case string:
		return k, nil
	case int64:
		return strconv.FormatInt(k, 10), nil
	case float64:
		return strconv.FormatFloat(k, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(k), nil
	case nil:
		return "null", nil
	default:
		return "", fmt.Errorf("unsupported dict key type %T", v)
	}
}

func (p *parser) signed() (any, error) {
	neg := p.peek() == '-'
	p.pos++
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	switch n := v.(type) {
	case int64:
		if neg {
			return -n, nil
		}
		return n, nil
	case float64:
		if neg {
			return -n, nil
		}
		return n, nil
	case bool:
		// Python treats -True as -1.
		i := int64(0)
		if n {
			i = 1
		}
		if neg {
			i = -i
		}
		return i, nil
	default:
		return nil, p.errorf("unary operator on non-number")
	}
}

func (p *parser) number() (any, error) {
	start := p.pos
	if strings.HasPrefix(p.src[p.pos:], "0x") || strings.HasPrefix(p.src[p.pos:], "0X") ||
		strings.HasPrefix(p.src[p.pos:], "0o") || strings.HasPrefix(p.src[p.pos:], "0O") ||
		strings.HasPrefix(p.src[p.pos:], "0b") || strings.HasPrefix(p.src[p.pos:], "0B") {
		p.pos += 2
		for !p.eof() && (isHex(p.peek()) || p.peek() == '_') {
			p.pos++
		}
		n, err := strconv.ParseInt(p.src[start:p.pos], 0, 64)
		if err != nil {
			return nil, p.errorf("invalid integer %q", p.src[start:p.pos])
		}
		return n, nil
	}

	isFloat := false
scan:
	for !p.eof() {
		c := p.peek()
		switch {
		case c >= '0' && c <= '9', c == '_':
			p.pos++
		case c == '.':
			isFloat = true
			p.pos++
		case c == 'e' || c == 'E':
			isFloat = true
			p.pos++
			if p.peek() == '+' || p.peek() == '-' {
				p.pos++
			}
		case c == 'j' || c == 'J':
			return nil, p.errorf("complex numbers are not supported")
		default:
			break scan
		}
	}

	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	if text == "." || text == "" {
		return nil, p.errorf("invalid number")
	}

	if !isFloat {
		// Python 3 rejects leading zeros on non-zero decimals.
		if len(text) > 1 && text[0] == '0' && strings.Trim(text, "0") != "" {
			return nil, p.errorf("invalid decimal literal %q", text)
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return n, nil
		}
		// Out of int64 range: fall through to float.
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, p.errorf("invalid number %q", text)
	}
	if math.IsInf(f, 0) && !isFloat {
		return nil, p.errorf("integer %q out of range", text)
	}
	return f, nil
}

func (p *parser) name() (any, error) {
	start := p.pos
	for !p.eof() && isIdentPart(p.peek()) {
		p.pos++
	}
	word := p.src[start:p.pos]

	// String prefixes: r'', u'', b'', rb''.
	if !p.eof() && (p.peek() == '\'' || p.peek() == '"') {
		switch strings.ToLower(word) {
		case "r", "u", "b", "br", "rb":
			p.pos = start
			return p.stringValue()
		}
	}

	switch word {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	default:
		p.pos = start
		return nil, p.errorf("unexpected name %q", word)
	}
}

// stringValue parses one or more adjacent string literals and concatenates them.
func (p *parser) stringValue() (any, error) {
	var b strings.Builder
	for {
		s, err := p.stringLiteral()
		if err != nil {
			return nil, err
		}
		b.WriteString(s)

		save := p.pos
		p.skipSpace()
		if !p.atStringStart() {
			p.pos = save
			return b.String(), nil
		}
	}
}

func (p *parser) atStringStart() bool {
	i := p.pos
	for i < len(p.src) && i-p.pos < 2 && strings.IndexByte("rRuUbB", p.src[i]) >= 0 {
		i++
	}
	return i < len(p.src) && (p.src[i] == '\'' || p.src[i] == '"')
}

func (p *parser) stringLiteral() (string, error) {
	raw := false
	for !p.eof() && strings.IndexByte("rRuUbB", p.peek()) >= 0 {
		if p.peek() == 'r' || p.peek() == 'R' {
			raw = true
		}
		p.pos++
	}

	quote := p.peek()
	if quote != '\'' && quote != '"' {
		return "", p.errorf("expected string")
	}

	triple := strings.Repeat(string(quote), 3)
	long := strings.HasPrefix(p.src[p.pos:], triple)
	if long {
		p.pos += 3
	} else {
		p.pos++
	}

	var b strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("unterminated string")
		}
		c := p.peek()

		if long && strings.HasPrefix(p.src[p.pos:], triple) {
			p.pos += 3
			return b.String(), nil
		}
		if !long && c == quote {
			p.pos++
			return b.String(), nil
		}
		if !long && c == '\n' {
			return "", p.errorf("newline in string")
		}

		if c == '\\' {
			if raw {
				// Raw strings keep the backslash but still cannot end on an escaped quote.
				b.WriteByte(c)
				p.pos++
				if !p.eof() {
					b.WriteByte(p.peek())
					p.pos++
				}
				continue
			}
			if err := p.escape(&b); err != nil {
				return "", err
			}
			continue
		}

		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		b.WriteRune(r)
		p.pos += size
	}
}

func (p *parser) escape(b *strings.Builder) error {
	p.pos++ // backslash
	if p.eof() {
		return p.errorf("unterminated escape")
	}
	c := p.peek()
	p.pos++

	switch c {
	case '\n':
		// Escaped newline is a continuation.
	case '\\', '\'', '"':
		b.WriteByte(c)
	case 'a':
		b.WriteByte('\a')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'v':
		b.WriteByte('\v')
	case 'x':
		return p.codepoint(b, 2)
	case 'u':
		return p.codepoint(b, 4)
	case 'U':
		return p.codepoint(b, 8)
	case '0', '1', '2', '3', '4', '5', '6', '7':
		start := p.pos - 1
		for p.pos-start < 3 && !p.eof() && p.peek() >= '0' && p.peek() <= '7' {
			p.pos++
		}
		n, _ := strconv.ParseUint(p.src[start:p.pos], 8, 32)
		b.WriteRune(rune(n))
	default:
		// Unknown escapes are kept verbatim.
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

func (p *parser) codepoint(b *strings.Builder, digits int) error {
	if p.pos+digits > len(p.src) {
		return p.errorf("truncated escape")
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+digits], 16, 32)
	if err != nil || n > utf8.MaxRune {
		return p.errorf("invalid escape")
	}
	p.pos += digits
	b.WriteRune(rune(n))
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
