// Package jtnum implements the json-tree number codec: lexical validation
// against the RFC 8259 number grammar, range-checked conversion to IEEE 754
// binary64, and canonical formatting at 17 significant decimal digits.
//
// The canonical text form matches C's %.17g: at most 17 significant
// digits, trailing zeros removed, exponent notation outside the fixed
// range, and negative zero rendered as "-0". Seventeen digits guarantee
// that every finite double round-trips through its text form.
package jtnum

import (
	"errors"
	"math"
	"strconv"

	"github.com/lattice-substrate/json-tree/jterr"
)

// MaxTextLen bounds the canonical text form of any finite double:
// sign, 17 significand digits, decimal point, and a 5-byte exponent fit
// well within 32 bytes. The serializer reserves this much per number.
const MaxTextLen = 32

const formatPrecision = 17

// Scan validates the longest prefix of b matching the JSON number grammar:
//
//	-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?
//
// It returns the matched length, or an InvalidValue error when no prefix
// matches. Scan performs no numeric conversion.
func Scan(b []byte) (int, error) {
	i := 0
	if i < len(b) && b[i] == '-' {
		i++
	}

	// Integer part: a lone zero, or a nonzero digit run.
	switch {
	case i < len(b) && b[i] == '0':
		i++
	case i < len(b) && b[i] >= '1' && b[i] <= '9':
		for i < len(b) && isDigit(b[i]) {
			i++
		}
	default:
		return 0, jterr.New(jterr.InvalidValue, i, "expected digit in number")
	}

	if i < len(b) && b[i] == '.' {
		i++
		if i >= len(b) || !isDigit(b[i]) {
			return 0, jterr.New(jterr.InvalidValue, i, "expected digit after decimal point")
		}
		for i < len(b) && isDigit(b[i]) {
			i++
		}
	}

	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		i++
		if i < len(b) && (b[i] == '+' || b[i] == '-') {
			i++
		}
		if i >= len(b) || !isDigit(b[i]) {
			return 0, jterr.New(jterr.InvalidValue, i, "expected digit in exponent")
		}
		for i < len(b) && isDigit(b[i]) {
			i++
		}
	}

	return i, nil
}

// Parse converts a token already validated by Scan to binary64.
// Overflow to ±Inf fails with NumberTooBig; underflow toward zero is not
// an error, so "1e-10000" converts to 0.
func Parse(tok []byte) (float64, error) {
	f, err := strconv.ParseFloat(string(tok), 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) && errors.Is(ne.Err, strconv.ErrRange) {
			if math.IsInf(f, 0) {
				return 0, jterr.Newf(jterr.NumberTooBig, 0, "number %q overflows binary64", tok)
			}
			// strconv reports ErrRange only for overflow to ±Inf;
			// underflow yields zero or a subnormal with a nil error
			// and is returned by the final statement below.
			return f, nil
		}
		return 0, jterr.Wrap(jterr.InvalidValue, 0, "number conversion", err)
	}
	return f, nil
}

// Append formats f in canonical form and appends it to dst.
func Append(dst []byte, f float64) []byte {
	return strconv.AppendFloat(dst, f, 'g', formatPrecision, 64)
}

// Format returns the canonical text form of f.
func Format(f float64) string {
	return strconv.FormatFloat(f, 'g', formatPrecision, 64)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
