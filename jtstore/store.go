// Package jtstore packs canonical JSON documents into a compact, versioned
// binary envelope for storage or transport.
//
// A packed blob is:
//
//	magic "JTZ1" | compression tag (1 byte) | uvarint canonical length | payload
//
// The payload is the canonical serialization of the value tree, optionally
// compressed with s2 (fast) or zstd. Unpack decompresses and re-parses the
// canonical bytes, so a corrupted or hand-crafted blob can never produce a
// tree the parser would not have accepted.
package jtstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"

	"github.com/lattice-substrate/json-tree/jtser"
	"github.com/lattice-substrate/json-tree/jttoken"
)

// CompressMode selects the payload compression.
type CompressMode uint8

const (
	// CompressDefault uses zstd at its default level.
	CompressDefault CompressMode = iota
	// CompressNone stores the canonical bytes uncompressed.
	CompressNone
	// CompressFast uses s2, trading ratio for speed.
	CompressFast
	// CompressBest uses zstd at its best level.
	CompressBest
)

// PackOptions controls Pack behavior. The zero value packs with
// CompressDefault.
type PackOptions struct {
	Mode CompressMode
}

const magic = "JTZ1"

// Payload compression tags in the blob header.
const (
	tagNone byte = iota
	tagS2
	tagZstd
)

// ErrBlobCorrupt is wrapped by every Unpack failure caused by the blob
// itself rather than by I/O or internal errors.
var ErrBlobCorrupt = errors.New("jtstore: corrupt blob")

var (
	zEncDefault *zstd.Encoder
	zEncBest    *zstd.Encoder
	zDec        *zstd.Decoder
)

func init() {
	zEncDefault, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	zEncBest, _ = zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	zDec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// Pack serializes v canonically and wraps it in the JTZ1 envelope.
func Pack(v *jttoken.Value, opts *PackOptions) ([]byte, error) {
	body, err := jtser.Serialize(v)
	if err != nil {
		return nil, fmt.Errorf("jtstore: serialize: %w", err)
	}

	mode := CompressDefault
	if opts != nil {
		mode = opts.Mode
	}

	var tag byte
	var payload []byte
	switch mode {
	case CompressNone:
		tag, payload = tagNone, body
	case CompressFast:
		tag, payload = tagS2, s2.Encode(nil, body)
	case CompressDefault:
		tag, payload = tagZstd, zEncDefault.EncodeAll(body, nil)
	case CompressBest:
		tag, payload = tagZstd, zEncBest.EncodeAll(body, nil)
	default:
		return nil, fmt.Errorf("jtstore: unknown compress mode %d", mode)
	}

	out := make([]byte, 0, len(magic)+1+binary.MaxVarintLen64+len(payload))
	out = append(out, magic...)
	out = append(out, tag)
	out = binary.AppendUvarint(out, uint64(len(body)))
	out = append(out, payload...)
	return out, nil
}

// Unpack reverses Pack: it validates the envelope, decompresses the
// payload, checks the declared canonical length, and re-parses the
// canonical bytes into a fresh tree.
func Unpack(data []byte) (*jttoken.Value, error) {
	if len(data) < len(magic)+1 || string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrBlobCorrupt)
	}
	tag := data[len(magic)]
	rest := data[len(magic)+1:]

	want, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad length header", ErrBlobCorrupt)
	}
	if want > uint64(jttoken.DefaultMaxInputSize) {
		return nil, fmt.Errorf("%w: declared length %d exceeds input bound", ErrBlobCorrupt, want)
	}
	payload := rest[n:]

	var body []byte
	var err error
	switch tag {
	case tagNone:
		body = payload
	case tagS2:
		body, err = s2.Decode(nil, payload)
	case tagZstd:
		body, err = zDec.DecodeAll(payload, nil)
	default:
		return nil, fmt.Errorf("%w: unknown compression tag %d", ErrBlobCorrupt, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrBlobCorrupt, err)
	}
	if uint64(len(body)) != want {
		return nil, fmt.Errorf("%w: canonical length %d, header says %d", ErrBlobCorrupt, len(body), want)
	}

	v, err := jttoken.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: body does not parse: %v", ErrBlobCorrupt, err)
	}
	return v, nil
}
