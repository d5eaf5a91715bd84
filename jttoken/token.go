package jttoken

import (
	"errors"
	"strconv"
	"unicode/utf8"

	"github.com/lattice-substrate/json-tree/jtbuf"
	"github.com/lattice-substrate/json-tree/jterr"
	"github.com/lattice-substrate/json-tree/jtnum"
)

// Limits for denial-of-service protection. Parsing is synchronous and not
// cancellable, so work is bounded by bounding the input.
const (
	// DefaultMaxDepth is the maximum nesting depth for objects and arrays.
	DefaultMaxDepth = 1000

	// DefaultMaxInputSize is the maximum input size in bytes (64 MiB).
	DefaultMaxInputSize = 64 * 1024 * 1024
)

// Options controls parser behavior.
type Options struct {
	MaxDepth     int // 0 means DefaultMaxDepth
	MaxInputSize int // 0 means DefaultMaxInputSize
}

func (o *Options) maxDepth() int {
	if o != nil && o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}

func (o *Options) maxInputSize() int {
	if o != nil && o.MaxInputSize > 0 {
		return o.MaxInputSize
	}
	return DefaultMaxInputSize
}

// parser holds the per-call state: the input cursor, the recursion bound,
// the byte scratch used by string decoding, and the two typed staging
// stacks used to accumulate provisional array elements and object members.
// All three stacks follow the same LIFO discipline: a frame records the
// top on entry and truncates back to it on failure.
type parser struct {
	data     []byte
	pos      int
	depth    int
	maxDepth int

	scratch jtbuf.Stack
	elems   []Value
	membs   []Member
}

// Parse parses a complete JSON text into a Value tree. The input must be a
// single RFC 8259 value optionally surrounded by whitespace. On failure no
// tree is returned and the error is a *jterr.Error carrying one of the
// parse codes and the byte offset of the failure.
func Parse(data []byte) (*Value, error) {
	return ParseWithOptions(data, nil)
}

// ParseWithOptions is like Parse but accepts configuration options.
func ParseWithOptions(data []byte, opts *Options) (*Value, error) {
	if data == nil {
		return nil, jterr.New(jterr.ExpectValue, 0, "no input")
	}
	if maxInput := opts.maxInputSize(); len(data) > maxInput {
		return nil, jterr.Newf(jterr.BoundExceeded, 0, "input size %d exceeds maximum %d", len(data), maxInput)
	}

	p := &parser{data: data, maxDepth: opts.maxDepth()}

	p.skipWhitespace()
	if p.pos >= len(p.data) {
		return nil, jterr.New(jterr.ExpectValue, p.pos, "input contains no value")
	}

	var v Value
	if err := p.parseValue(&v); err != nil {
		return nil, err
	}

	p.skipWhitespace()
	if p.pos < len(p.data) {
		off := p.pos
		v.Release()
		return nil, jterr.New(jterr.RootNotSingular, off, "content after top-level value")
	}
	return &v, nil
}

// skipWhitespace consumes the RFC 8259 whitespace set: space, tab, LF, CR.
func (p *parser) skipWhitespace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) pushDepth() error {
	p.depth++
	if p.depth > p.maxDepth {
		return jterr.Newf(jterr.BoundExceeded, p.pos, "nesting depth %d exceeds maximum %d", p.depth, p.maxDepth)
	}
	return nil
}

func (p *parser) popDepth() {
	p.depth--
}

// parseValue dispatches on the first byte. Anything that begins no literal,
// string, array, or object is attempted as a number.
func (p *parser) parseValue(v *Value) error {
	if p.pos >= len(p.data) {
		return jterr.New(jterr.ExpectValue, p.pos, "unexpected end of input")
	}
	switch p.data[p.pos] {
	case 't':
		return p.parseLiteral(v, "true", KindTrue)
	case 'f':
		return p.parseLiteral(v, "false", KindFalse)
	case 'n':
		return p.parseLiteral(v, "null", KindNull)
	case '"':
		return p.parseString(v)
	case '[':
		return p.parseArray(v)
	case '{':
		return p.parseObject(v)
	default:
		return p.parseNumber(v)
	}
}

func (p *parser) parseLiteral(v *Value, lit string, kind Kind) error {
	if len(p.data)-p.pos < len(lit) || string(p.data[p.pos:p.pos+len(lit)]) != lit {
		return jterr.Newf(jterr.InvalidValue, p.pos, "expected literal %q", lit)
	}
	p.pos += len(lit)
	v.Kind = kind
	return nil
}

func (p *parser) parseNumber(v *Value) error {
	n, err := jtnum.Scan(p.data[p.pos:])
	if err != nil {
		return p.rebase(err)
	}
	f, err := jtnum.Parse(p.data[p.pos : p.pos+n])
	if err != nil {
		return p.rebase(err)
	}
	p.pos += n
	v.Kind = KindNumber
	v.Num = f
	return nil
}

// rebase shifts a jtnum error's relative offset to an absolute input offset.
func (p *parser) rebase(err error) error {
	var je *jterr.Error
	if errors.As(err, &je) {
		return jterr.New(je.Code, p.pos+je.Offset, je.Message)
	}
	return err
}

func (p *parser) parseString(v *Value) error {
	s, err := p.decodeString()
	if err != nil {
		return err
	}
	v.Kind = KindString
	v.Str = s
	return nil
}

// decodeString consumes a quoted string starting at the opening '"' and
// returns the decoded bytes. Decoding streams onto the byte scratch; the
// span between the entry mark and the final top is the result, copied out
// on success and truncated away on failure so a partially decoded string
// is never observable.
func (p *parser) decodeString() (string, error) {
	p.pos++ // opening quote, verified by the dispatcher
	mark := p.scratch.Len()

	for {
		if p.pos >= len(p.data) {
			p.scratch.Truncate(mark)
			return "", jterr.New(jterr.MissQuotationMark, p.pos, "unterminated string")
		}
		c := p.data[p.pos]
		switch {
		case c == '"':
			p.pos++
			n := p.scratch.Len() - mark
			return string(p.scratch.Release(n)), nil
		case c == '\\':
			p.pos++
			if err := p.decodeEscape(); err != nil {
				p.scratch.Truncate(mark)
				return "", err
			}
		case c < 0x20:
			// Raw control bytes must be escaped; this includes 0x00,
			// which with an explicit input length is a string byte
			// like any other, not an end-of-input sentinel.
			off := p.pos
			p.scratch.Truncate(mark)
			return "", jterr.Newf(jterr.InvalidStringChar, off, "raw control byte 0x%02X in string", c)
		case c < 0x80:
			p.scratch.PushByte(c)
			p.pos++
		default:
			r, size := utf8.DecodeRune(p.data[p.pos:])
			if r == utf8.RuneError && size <= 1 {
				off := p.pos
				p.scratch.Truncate(mark)
				return "", jterr.Newf(jterr.InvalidStringChar, off, "invalid UTF-8 byte 0x%02X in string", c)
			}
			p.scratch.Push(p.data[p.pos : p.pos+size])
			p.pos += size
		}
	}
}

// decodeEscape handles the byte after '\', emitting decoded bytes onto the
// scratch.
func (p *parser) decodeEscape() error {
	if p.pos >= len(p.data) {
		return jterr.New(jterr.MissQuotationMark, p.pos, "unterminated string")
	}
	c := p.data[p.pos]
	p.pos++
	switch c {
	case '"', '\\', '/':
		p.scratch.PushByte(c)
	case 'b':
		p.scratch.PushByte(0x08)
	case 'f':
		p.scratch.PushByte(0x0C)
	case 'n':
		p.scratch.PushByte(0x0A)
	case 'r':
		p.scratch.PushByte(0x0D)
	case 't':
		p.scratch.PushByte(0x09)
	case 'u':
		return p.decodeUnicodeEscape()
	default:
		return jterr.Newf(jterr.InvalidStringEscape, p.pos-1, "invalid escape character %q", string(c))
	}
	return nil
}

// decodeUnicodeEscape handles \uXXXX after the leading "\u" has been
// consumed, including the mandatory low-surrogate continuation for a high
// surrogate. The resulting scalar is emitted onto the scratch as UTF-8,
// so \u0000 decodes to a real 0x00 byte in the string payload.
func (p *parser) decodeUnicodeEscape() error {
	u, err := p.readHex4()
	if err != nil {
		return err
	}

	if u >= 0xDC00 && u <= 0xDFFF {
		return jterr.Newf(jterr.InvalidUnicodeSurrogate, p.pos-4, "lone low surrogate U+%04X", u)
	}
	if u >= 0xD800 && u <= 0xDBFF {
		if p.pos+1 >= len(p.data) || p.data[p.pos] != '\\' || p.data[p.pos+1] != 'u' {
			return jterr.Newf(jterr.InvalidUnicodeSurrogate, p.pos, "high surrogate U+%04X not followed by \\u escape", u)
		}
		p.pos += 2
		u2, err := p.readHex4()
		if err != nil {
			return err
		}
		if u2 < 0xDC00 || u2 > 0xDFFF {
			return jterr.Newf(jterr.InvalidUnicodeSurrogate, p.pos-4, "high surrogate U+%04X followed by U+%04X", u, u2)
		}
		u = ((u-0xD800)<<10 | (u2 - 0xDC00)) + 0x10000
	}

	var tmp [4]byte
	n := utf8.EncodeRune(tmp[:], u)
	p.scratch.Push(tmp[:n])
	return nil
}

// readHex4 reads exactly four hex digits, case-insensitive.
func (p *parser) readHex4() (rune, error) {
	if p.pos+4 > len(p.data) {
		return 0, jterr.New(jterr.InvalidUnicodeHex, p.pos, "incomplete \\u escape")
	}
	quad := string(p.data[p.pos : p.pos+4])
	val, err := strconv.ParseUint(quad, 16, 16)
	if err != nil {
		return 0, jterr.Newf(jterr.InvalidUnicodeHex, p.pos, "invalid hex quad %q", quad)
	}
	p.pos += 4
	return rune(val), nil
}

func (p *parser) parseArray(v *Value) error {
	if err := p.pushDepth(); err != nil {
		return err
	}
	defer p.popDepth()

	p.pos++ // '[', verified by the dispatcher
	p.skipWhitespace()
	if p.pos < len(p.data) && p.data[p.pos] == ']' {
		p.pos++
		v.Kind = KindArray
		v.Elems = []Value{}
		return nil
	}

	mark := len(p.elems)
	for {
		var elem Value
		if err := p.parseValue(&elem); err != nil {
			p.unwindElems(mark)
			return err
		}
		p.elems = append(p.elems, elem)

		p.skipWhitespace()
		if p.pos >= len(p.data) {
			p.unwindElems(mark)
			return jterr.New(jterr.MissCommaOrSquareBracket, p.pos, "unterminated array")
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
			p.skipWhitespace()
		case ']':
			p.pos++
			out := make([]Value, len(p.elems)-mark)
			copy(out, p.elems[mark:])
			p.elems = p.elems[:mark]
			v.Kind = KindArray
			v.Elems = out
			return nil
		default:
			off := p.pos
			p.unwindElems(mark)
			return jterr.Newf(jterr.MissCommaOrSquareBracket, off, "expected ',' or ']' in array, got %q", string(p.data[off]))
		}
	}
}

func (p *parser) parseObject(v *Value) error {
	if err := p.pushDepth(); err != nil {
		return err
	}
	defer p.popDepth()

	p.pos++ // '{', verified by the dispatcher
	p.skipWhitespace()
	if p.pos < len(p.data) && p.data[p.pos] == '}' {
		p.pos++
		v.Kind = KindObject
		v.Members = []Member{}
		return nil
	}

	mark := len(p.membs)
	for {
		if p.pos >= len(p.data) || p.data[p.pos] != '"' {
			off := p.pos
			p.unwindMembers(mark)
			return jterr.New(jterr.MissKey, off, "expected string key in object")
		}
		key, err := p.decodeString()
		if err != nil {
			p.unwindMembers(mark)
			return err
		}

		p.skipWhitespace()
		if p.pos >= len(p.data) || p.data[p.pos] != ':' {
			off := p.pos
			p.unwindMembers(mark)
			return jterr.New(jterr.MissColon, off, "expected ':' after object key")
		}
		p.pos++
		p.skipWhitespace()

		var val Value
		if err := p.parseValue(&val); err != nil {
			p.unwindMembers(mark)
			return err
		}
		p.membs = append(p.membs, Member{Key: key, Value: val})

		p.skipWhitespace()
		if p.pos >= len(p.data) {
			p.unwindMembers(mark)
			return jterr.New(jterr.MissCommaOrCurlyBracket, p.pos, "unterminated object")
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
			p.skipWhitespace()
		case '}':
			p.pos++
			out := make([]Member, len(p.membs)-mark)
			copy(out, p.membs[mark:])
			p.membs = p.membs[:mark]
			v.Kind = KindObject
			v.Members = out
			return nil
		default:
			off := p.pos
			p.unwindMembers(mark)
			return jterr.Newf(jterr.MissCommaOrCurlyBracket, off, "expected ',' or '}' in object, got %q", string(p.data[off]))
		}
	}
}

// unwindElems releases elements staged above mark in LIFO order and
// truncates the staging stack back to mark.
func (p *parser) unwindElems(mark int) {
	for i := len(p.elems) - 1; i >= mark; i-- {
		p.elems[i].Release()
	}
	p.elems = p.elems[:mark]
}

// unwindMembers is unwindElems for the member staging stack.
func (p *parser) unwindMembers(mark int) {
	for i := len(p.membs) - 1; i >= mark; i-- {
		p.membs[i].Value.Release()
	}
	p.membs = p.membs[:mark]
}
