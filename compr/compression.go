// Licensed under the MIT License. See LICENSE for details.

// Package compr provides a unified interface wrapping the third-party
// compression library used by the container codec.
//
// The on-disk container format (see package container) only ever writes
// compression_kind 0x04 (zstd); any other kind encountered while unpacking
// is preserved opaquely rather than run through a codec. Compressor and
// Decompressor therefore only have one concrete implementation, but the
// interface shape is kept so callers are not coupled to *zstd.Encoder
// directly.
package compr

import (
	"fmt"
	"runtime"

	"github.com/klauspost/compress/zstd"
)

// Compressor compresses whole buffers.
type Compressor interface {
	// Name is the name of the compression algorithm.
	Name() string
	// Compress should append the compressed contents of src to dst and
	// return the result.
	Compress(src, dst []byte) ([]byte, error)
}

// Decompressor decompresses whole buffers.
type Decompressor interface {
	// Name is the name of the compression algorithm.
	Name() string
	// Decompress decompresses src into dst. dst must already be sized to
	// the expected decompressed length; it is an error if the decoded
	// length does not match len(dst).
	Decompress(src, dst []byte) error
}

// level is the package-wide zstd encoder level hint, set once at startup
// by SetLevel (spec.md's ambient-configuration "compression level hint").
var level = zstd.SpeedDefault

// SetLevel configures the zstd encoder level future Compress calls use.
// hint is one of "fastest", "default", "better", or "best"; an
// unrecognized hint falls back to zstd's default level.
func SetLevel(hint string) {
	switch hint {
	case "fastest":
		level = zstd.SpeedFastest
	case "better":
		level = zstd.SpeedBetterCompression
	case "best":
		level = zstd.SpeedBestCompression
	default:
		level = zstd.SpeedDefault
	}
}

type zstdCompressor struct{}

func (zstdCompressor) Name() string { return "zstd" }

func (zstdCompressor) Compress(src, dst []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("compr: new zstd encoder: %w", err)
	}
	out := enc.EncodeAll(src, dst)
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("compr: close zstd encoder: %w", err)
	}
	return out, nil
}

var zstdDecoder *zstd.Decoder

func init() {
	// By default zstd.NewReader sets concurrency to min(4, GOMAXPROCS);
	// we would rather it always track GOMAXPROCS.
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDecoder = d
}

type zstdDecompressor struct{}

func (zstdDecompressor) Name() string { return "zstd" }

func (zstdDecompressor) Decompress(src, dst []byte) error {
	into := dst[:0:len(dst)]
	ret, err := zstdDecoder.DecodeAll(src, into)
	if err != nil {
		return err
	}
	if len(ret) != len(dst) {
		return fmt.Errorf("compr: expected %d bytes decompressed, got %d", len(dst), len(ret))
	}
	return nil
}

// DecodeZstd decompresses src, appending the result to dst. Unlike
// Decompressor.Decompress, the destination length does not need to be
// known ahead of time.
func DecodeZstd(src, dst []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(src, dst)
}

// EncodeZstd compresses src, appending the result to dst.
func EncodeZstd(src, dst []byte) ([]byte, error) {
	return zstdCompressor{}.Compress(src, dst)
}

// Zstd returns the zstd Compressor and Decompressor pair. It is the only
// algorithm the outer container codec is permitted to write (compression
// kind 0x04); other compression_kind values may appear in archives
// produced elsewhere and are passed through opaquely by package container.
func Zstd() (Compressor, Decompressor) {
	return zstdCompressor{}, zstdDecompressor{}
}
