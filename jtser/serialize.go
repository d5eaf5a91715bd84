// Package jtser serializes a jttoken.Value tree into canonical JSON bytes.
//
// Canonical form: no insignificant whitespace, object members in tree
// order, numbers at 17 significant digits (jtnum), the seven short escapes
// for their characters, remaining control bytes as \u00XX with upper-case
// hex, and '/' never escaped. Multi-byte UTF-8 passes through verbatim, so
// serializing a parsed tree is byte-stable.
package jtser

import (
	"github.com/lattice-substrate/json-tree/jtbuf"
	"github.com/lattice-substrate/json-tree/jterr"
	"github.com/lattice-substrate/json-tree/jtnum"
	"github.com/lattice-substrate/json-tree/jttoken"
)

// Serialize emits the canonical byte sequence for a value tree. The
// returned buffer is freshly allocated and owned by the caller. The single
// failure mode is a Value whose kind tag matches no variant, classified
// jterr.UnknownKind; the partial output is dropped.
func Serialize(v *jttoken.Value) ([]byte, error) {
	if v == nil {
		return nil, jterr.New(jterr.UnknownKind, -1, "nil value")
	}
	s := serializer{st: jtbuf.NewStack(jtbuf.SerializeInitSize)}
	if err := s.value(v); err != nil {
		return nil, err
	}
	return s.st.Bytes(), nil
}

type serializer struct {
	st *jtbuf.Stack
}

func (s *serializer) value(v *jttoken.Value) error {
	switch v.Kind {
	case jttoken.KindNull:
		s.st.PushString("null")
	case jttoken.KindTrue:
		s.st.PushString("true")
	case jttoken.KindFalse:
		s.st.PushString("false")
	case jttoken.KindNumber:
		s.number(v.Num)
	case jttoken.KindString:
		s.string(v.Str)
	case jttoken.KindArray:
		return s.array(v.Elems)
	case jttoken.KindObject:
		return s.object(v.Members)
	default:
		return jterr.Newf(jterr.UnknownKind, -1, "unknown value kind %d", int(v.Kind))
	}
	return nil
}

// number writes into a reserved fixed-size slot and rewinds the unused
// tail. jtnum.MaxTextLen bounds the text of any finite double, so the
// append below never outgrows the reservation.
func (s *serializer) number(f float64) {
	off := s.st.Reserve(jtnum.MaxTextLen)
	out := jtnum.Append(s.st.Bytes()[off:off], f)
	s.st.Rewind(off + len(out))
}

// string reserves the worst case of six output bytes per input byte plus
// the two quotes, writes through an index cursor, and rewinds to the bytes
// actually used.
func (s *serializer) string(str string) {
	off := s.st.Reserve(6*len(str) + 2)
	b := s.st.Bytes()
	w := off
	b[w] = '"'
	w++
	for i := 0; i < len(str); i++ {
		c := str[i]
		switch c {
		case '"':
			b[w], b[w+1] = '\\', '"'
			w += 2
		case '\\':
			b[w], b[w+1] = '\\', '\\'
			w += 2
		case 0x08:
			b[w], b[w+1] = '\\', 'b'
			w += 2
		case 0x0C:
			b[w], b[w+1] = '\\', 'f'
			w += 2
		case 0x0A:
			b[w], b[w+1] = '\\', 'n'
			w += 2
		case 0x0D:
			b[w], b[w+1] = '\\', 'r'
			w += 2
		case 0x09:
			b[w], b[w+1] = '\\', 't'
			w += 2
		default:
			if c < 0x20 {
				b[w], b[w+1], b[w+2], b[w+3] = '\\', 'u', '0', '0'
				b[w+4] = upperHex(c >> 4)
				b[w+5] = upperHex(c & 0x0F)
				w += 6
			} else {
				// Includes '/' and every byte of a multi-byte
				// UTF-8 sequence.
				b[w] = c
				w++
			}
		}
	}
	b[w] = '"'
	w++
	s.st.Rewind(w)
}

func (s *serializer) array(elems []jttoken.Value) error {
	s.st.PushByte('[')
	for i := range elems {
		if i > 0 {
			s.st.PushByte(',')
		}
		if err := s.value(&elems[i]); err != nil {
			return err
		}
	}
	s.st.PushByte(']')
	return nil
}

func (s *serializer) object(members []jttoken.Member) error {
	s.st.PushByte('{')
	for i := range members {
		if i > 0 {
			s.st.PushByte(',')
		}
		s.string(members[i].Key)
		s.st.PushByte(':')
		if err := s.value(&members[i].Value); err != nil {
			return err
		}
	}
	s.st.PushByte('}')
	return nil
}

func upperHex(b byte) byte {
	if b < 10 {
		return '0' + b
	}
	return 'A' + (b - 10)
}
