package snapshot

import (
	"bytes"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Framed snapshots start with magic followed by a codec byte. Anything else is
// taken as a raw filter serialization.
var magic = []byte("CDS1")

const (
	codecNone byte = 0
	codecZstd byte = 1

	// maxDecoded is the largest serialized filter: a 4 byte header and
	// MaxInt32 bits.
	maxDecoded = 4 + math.MaxInt32/8
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return newZstdDecoder(maxDecoded)
}

// newZstdDecoder returns a decoder that refuses output larger than limit bytes.
func newZstdDecoder(limit uint64) (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(limit))
}

// Encode frames a serialized filter, compressing it when compress is "zstd".
func Encode(data []byte, compress string) ([]byte, error) {
	switch compress {
	case "", "none":
		out := make([]byte, 0, len(magic)+1+len(data))
		out = append(out, magic...)
		out = append(out, codecNone)
		return append(out, data...), nil
	case "zstd":
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		out := make([]byte, 0, len(magic)+1+len(data)/4)
		out = append(out, magic...)
		out = append(out, codecZstd)
		return enc.EncodeAll(data, out), nil
	default:
		return nil, fmt.Errorf("snapshot: unknown compression %q", compress)
	}
}

// Decode returns the serialized filter inside blob. Unframed input is returned
// as is.
func Decode(blob []byte) ([]byte, error) {
	if len(blob) < len(magic)+1 || !bytes.Equal(blob[:len(magic)], magic) {
		return blob, nil
	}
	payload := blob[len(magic)+1:]
	switch blob[len(magic)] {
	case codecNone:
		return payload, nil
	case codecZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrCorrupt, blob[len(magic)])
	}
}
