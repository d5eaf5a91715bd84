// Package jtfile implements the JT1 document envelope: the canonical
// serialization of a JSON value followed by exactly one trailing LF.
//
//	JT1 = canonical(value) || 0x0A
//
// It provides Envelope to wrap canonical bytes, Canonicalize to produce
// them from raw JSON text, Verify to validate a byte sequence as JT1, and
// WriteAtomic for durable file output (temp + rename).
//
// Envelope constraints are checked before any JSON parsing: the file is
// non-empty, carries exactly one trailing LF, and its body has no BOM, no
// CR, no interior LF, and is valid UTF-8. The canonical serializer escapes
// every control byte, so a conforming body can never contain a raw newline.
package jtfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/lattice-substrate/json-tree/jtser"
	"github.com/lattice-substrate/json-tree/jttoken"
)

// EnvelopeError indicates a file-level constraint violation detected
// before JSON parsing.
type EnvelopeError struct {
	Msg string
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("jtfile: envelope: %s", e.Msg)
}

// CanonError indicates a body that parses but is not in canonical form.
type CanonError struct {
	Msg string
}

func (e *CanonError) Error() string {
	return fmt.Sprintf("jtfile: non-canonical: %s", e.Msg)
}

// Envelope wraps canonical bytes with the single trailing LF.
func Envelope(body []byte) []byte {
	out := make([]byte, len(body)+1)
	copy(out, body)
	out[len(body)] = 0x0A
	return out
}

// Canonicalize parses JSON text and returns its canonical bytes, without
// the trailing LF (use Envelope for JT1).
func Canonicalize(input []byte) ([]byte, error) {
	return CanonicalizeWithOptions(input, nil)
}

// CanonicalizeWithOptions is like Canonicalize but accepts parser options.
func CanonicalizeWithOptions(input []byte, opts *jttoken.Options) ([]byte, error) {
	v, err := jttoken.ParseWithOptions(input, opts)
	if err != nil {
		return nil, fmt.Errorf("jtfile: parse input: %w", err)
	}
	out, err := jtser.Serialize(v)
	if err != nil {
		return nil, fmt.Errorf("jtfile: serialize input: %w", err)
	}
	return out, nil
}

// Verify validates data as a conforming JT1 file: envelope constraints
// first, then a strict parse of the body, then a byte comparison against
// its canonical re-serialization. It returns an *EnvelopeError, a wrapped
// parse error, or a *CanonError respectively.
func Verify(data []byte) error {
	body, err := checkEnvelope(data)
	if err != nil {
		return err
	}

	v, err := jttoken.Parse(body)
	if err != nil {
		return fmt.Errorf("jtfile: parse body: %w", err)
	}

	canonical, err := jtser.Serialize(v)
	if err != nil {
		return fmt.Errorf("jtfile: internal: re-serialization failed: %w", err)
	}
	if !bytes.Equal(body, canonical) {
		return &CanonError{Msg: "body bytes differ from canonical re-serialization"}
	}
	return nil
}

func checkEnvelope(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &EnvelopeError{Msg: "empty file"}
	}
	if data[len(data)-1] != 0x0A {
		return nil, &EnvelopeError{Msg: "missing trailing LF"}
	}
	body := data[:len(data)-1]
	if len(body) == 0 {
		return nil, &EnvelopeError{Msg: "empty body"}
	}
	if bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, &EnvelopeError{Msg: "byte order mark"}
	}
	if i := bytes.IndexByte(body, 0x0D); i >= 0 {
		return nil, &EnvelopeError{Msg: fmt.Sprintf("carriage return at offset %d", i)}
	}
	if i := bytes.IndexByte(body, 0x0A); i >= 0 {
		return nil, &EnvelopeError{Msg: fmt.Sprintf("interior LF at offset %d", i)}
	}
	if !utf8.Valid(body) {
		return nil, &EnvelopeError{Msg: "body is not valid UTF-8"}
	}
	return body, nil
}

// WriteAtomic writes JT1 bytes to path atomically via a temp file in the
// same directory followed by rename. On failure the temp file is removed
// and the target path is left untouched.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".jt1-*.tmp")
	if err != nil {
		return fmt.Errorf("jtfile: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("jtfile: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("jtfile: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jtfile: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("jtfile: rename into place: %w", err)
	}
	committed = true
	return nil
}
