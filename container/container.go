// Licensed under the MIT License. See LICENSE for details.

// Package container implements the outer codec: packing and unpacking the
// numbered sequence of independently zstd-compressed inner blocks that make
// up one container file.
//
// The codec operates purely on byte slices; it has no knowledge of the
// filesystem layout that surrounds a container (that belongs to package
// session). This mirrors the teacher corpus's compr package, which wraps a
// compression library behind a small interface and leaves callers to own
// I/O.
package container

import (
	"encoding/binary"
	"fmt"

	"github.com/rodrigomiquilino/wwm-toolchain/compr"
	"github.com/rodrigomiquilino/wwm-toolchain/internal/binfmt"
	"github.com/rodrigomiquilino/wwm-toolchain/wwmerr"
)

const (
	magicSize  = 4
	headerSize = 9 // compression_kind(1) + compressed_size(4) + decompressed_size(4)

	// KindZstd is the only compression_kind this codec is permitted to
	// write (spec.md §4.C). Callers building a Block for Pack (e.g. a
	// passthrough block recovered from an earlier Unpack) compare
	// against this to decide whether the block can be written at all.
	KindZstd = 0x04
)

var magic = [magicSize]byte{0xEF, 0xBE, 0xAD, 0xDE}

// Progress is the optional, non-fatal progress callback shared by every
// pipeline stage (spec.md §4.H). It must be invoked with one message at a
// time; it is never called concurrently by this package.
type Progress func(message string)

func (p Progress) emit(format string, args ...interface{}) {
	if p != nil {
		p(fmt.Sprintf(format, args...))
	}
}

// Block is one decompressed (or, for an unrecognized compression_kind,
// opaquely passed-through) inner block extracted from a container, along
// with the kind byte it was stored under.
type Block struct {
	// Kind is the compression_kind the block was stored under. 0x04
	// means zstd; any other value means Data was not decompressed and
	// is the opaque compressed payload as found on disk.
	Kind byte
	Data []byte
}

// Unpack splits a container's bytes into its ordered sequence of inner
// blocks. Blocks stored with an unrecognized compression_kind are not
// decompressed; they are returned opaquely and Progress is sent an
// informational message (per spec.md §7, a warning on unpack, not a fatal
// error).
func Unpack(data []byte, progress Progress) ([]Block, error) {
	r := binfmt.NewReader(data)
	got := r.Bytes(magicSize)
	if r.Err() != nil || !equalBytes(got, magic[:]) {
		return nil, fmt.Errorf("%w: container header", wwmerr.ErrBadMagic)
	}
	_ = r.Uint32() // reserved, always written as 1
	blockCountMinusOne := r.Uint32()
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: truncated header: %v", wwmerr.ErrCorruptContainer, r.Err())
	}
	blockCount := int(blockCountMinusOne) + 1

	if blockCount == 1 {
		return unpackSingle(r, progress)
	}
	return unpackMulti(r, blockCount, progress)
}

func unpackSingle(r *binfmt.Reader, progress Progress) ([]Block, error) {
	length := r.Uint32()
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: truncated single-block length", wwmerr.ErrCorruptContainer)
	}
	chunk := r.Bytes(int(length))
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: single-block length %d exceeds file", wwmerr.ErrCorruptContainer, length)
	}
	blk, err := decodeBlock(chunk, 0, progress)
	if err != nil {
		return nil, err
	}
	return []Block{blk}, nil
}

func unpackMulti(r *binfmt.Reader, blockCount int, progress Progress) ([]Block, error) {
	offsets := make([]uint32, blockCount)
	for i := range offsets {
		offsets[i] = r.Uint32()
	}
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: truncated offset table: %v", wwmerr.ErrCorruptContainer, r.Err())
	}
	payloadStart := r.Pos()
	fileEnd := r.Len()

	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return nil, fmt.Errorf("%w: offset table not monotonic at index %d", wwmerr.ErrCorruptContainer, i)
		}
	}

	blocks := make([]Block, 0, blockCount)
	for i := 0; i < blockCount; i++ {
		start := payloadStart + int(offsets[i])
		end := fileEnd
		if i+1 < blockCount {
			end = payloadStart + int(offsets[i+1])
		}
		if start < payloadStart || end > fileEnd || end < start {
			return nil, fmt.Errorf("%w: block %d offset range [%d,%d) out of bounds", wwmerr.ErrCorruptContainer, i, start, end)
		}
		blk, err := decodeBlock(r.Slice(start, end-start), i, progress)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, blk)
		if (i+1)%100 == 0 {
			progress.emit("unpacked %d/%d blocks", i+1, blockCount)
		}
	}
	progress.emit("unpacked %d blocks", blockCount)
	return blocks, nil
}

// decodeBlock parses a 9-byte block header plus payload and, for zstd
// blocks, decompresses it. index is used only for diagnostic messages.
func decodeBlock(chunk []byte, index int, progress Progress) (Block, error) {
	if len(chunk) < headerSize {
		return Block{}, fmt.Errorf("%w: block %d shorter than header", wwmerr.ErrCorruptContainer, index)
	}
	kind := chunk[0]
	compressedSize := binary.LittleEndian.Uint32(chunk[1:5])
	decompressedSize := binary.LittleEndian.Uint32(chunk[5:9])
	payload := chunk[headerSize:]

	if int(compressedSize) != len(payload) {
		progress.emit("block %d: compressed_size %d disagrees with stored length %d, trusting offset table",
			index, compressedSize, len(payload))
	}

	if kind != KindZstd {
		progress.emit("block %d: unsupported compression kind 0x%02x, preserved opaquely", index, kind)
		return Block{Kind: kind, Data: append([]byte(nil), payload...)}, nil
	}

	dst := make([]byte, decompressedSize)
	_, dec := compr.Zstd()
	if err := dec.Decompress(payload, dst); err != nil {
		return Block{}, fmt.Errorf("%w: block %d: %v", wwmerr.ErrDecompressionFailed, index, err)
	}
	return Block{Kind: KindZstd, Data: dst}, nil
}

// Pack builds a container from an ordered sequence of inner blocks,
// compressing each one with zstd (the only compression_kind the format is
// permitted to write, per spec.md §4.C). A block carrying any Kind other
// than KindZstd (for instance one recovered opaquely by a prior Unpack)
// cannot be repacked without either decompressing it under an unknown
// algorithm or silently mistyping its header, so Pack refuses it with
// ErrUnsupportedCompression instead (spec.md §7: fatal on pack).
func Pack(blocks []Block, progress Progress) ([]byte, error) {
	if len(blocks) == 0 {
		return nil, wwmerr.ErrNoBlocks
	}

	compressed := make([][]byte, len(blocks))
	for i, b := range blocks {
		if b.Kind != KindZstd {
			return nil, fmt.Errorf("%w: block %d has compression kind 0x%02x", wwmerr.ErrUnsupportedCompression, i, b.Kind)
		}
		comp, _ := compr.Zstd()
		out, err := comp.Compress(b.Data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", wwmerr.ErrCompressionFailed, i, err)
		}
		compressed[i] = out
		if (i+1)%100 == 0 {
			progress.emit("compressed %d/%d blocks", i+1, len(blocks))
		}
	}

	chunks := make([][]byte, len(blocks))
	for i := range blocks {
		w := binfmt.NewWriterSize(headerSize + len(compressed[i]))
		w.Byte(KindZstd)
		w.Uint32(uint32(len(compressed[i])))
		w.Uint32(uint32(len(blocks[i].Data)))
		w.Raw(compressed[i])
		chunks[i] = w.Bytes()
	}

	if len(chunks) == 1 {
		return packSingle(chunks[0]), nil
	}
	return packMulti(chunks), nil
}

func packSingle(chunk []byte) []byte {
	w := binfmt.NewWriterSize(12 + 4 + len(chunk))
	w.Raw(magic[:])
	w.Uint32(1) // reserved
	w.Uint32(0) // block_count_minus_one
	w.Uint32(uint32(len(chunk)))
	w.Raw(chunk)
	return w.Bytes()
}

func packMulti(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	w := binfmt.NewWriterSize(12 + 4*len(chunks) + total)
	w.Raw(magic[:])
	w.Uint32(1) // reserved
	w.Uint32(uint32(len(chunks) - 1))

	offset := uint32(0)
	for _, c := range chunks {
		w.Uint32(offset)
		offset += uint32(len(c))
	}
	for _, c := range chunks {
		w.Raw(c)
	}
	return w.Bytes()
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
