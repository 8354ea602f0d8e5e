// Licensed under the MIT License. See LICENSE for details.

// Package wwmerr defines the error kinds shared by every stage of the
// container, text-record, and merge pipelines.
//
// Each kind is a sentinel error. Call sites wrap it with context using
// fmt.Errorf("%w: ...", Kind, ...) and callers recover the kind with
// errors.Is.
package wwmerr

import "errors"

var (
	// ErrBadMagic is returned when a container's leading magic bytes do
	// not match the expected signature.
	ErrBadMagic = errors.New("bad magic")

	// ErrCorruptContainer covers offset-table monotonicity violations,
	// an offset or length past the end of the file, or a block too short
	// to hold its header. A compressed_size field that disagrees with the
	// offset table is only reported as a progress warning on unpack.
	ErrCorruptContainer = errors.New("corrupt container")

	// ErrUnsupportedCompression is returned when a pack operation is
	// asked to emit a compression kind other than zstd.
	ErrUnsupportedCompression = errors.New("unsupported compression kind")

	// ErrBadTextMagic is returned when the text-record codec is invoked
	// on an inner block that does not carry the text-block magic.
	ErrBadTextMagic = errors.New("not a text block")

	// ErrDescriptorOutOfRange is returned when a record descriptor's
	// offset or length would read past the end of the decompressed
	// block.
	ErrDescriptorOutOfRange = errors.New("descriptor out of range")

	// ErrIllegalCharacter is returned when a record's text contains a
	// raw tab at pack time. Raw newlines are legal record text at this
	// stage: package tsv has already turned the \n and \r escapes back
	// into them.
	ErrIllegalCharacter = errors.New("illegal character in record text")

	// ErrTsvMalformed is returned when a TSV's header is missing, has
	// the wrong column count, or an id does not match the expected
	// 16-hex-digit width.
	ErrTsvMalformed = errors.New("malformed tsv")

	// ErrMissingMap is returned when a pack operation is invoked without
	// the structural map sidecar that must sit next to the records TSV.
	ErrMissingMap = errors.New("missing structural map")

	// ErrNoBlocks is returned when packing is attempted against a
	// directory containing no .dat inner-block files.
	ErrNoBlocks = errors.New("no inner blocks found")

	// ErrCompressionFailed covers a codec adapter failure during
	// compression.
	ErrCompressionFailed = errors.New("compression failed")

	// ErrDecompressionFailed covers a codec adapter failure during
	// decompression.
	ErrDecompressionFailed = errors.New("decompression failed")

	// ErrSessionInvalid is returned when a session directory's manifest
	// checksum does not match its dat/ contents.
	ErrSessionInvalid = errors.New("session manifest checksum mismatch")

	// ErrIoError wraps an underlying filesystem failure (a failed read,
	// write, stat, or directory listing) encountered while a pipeline
	// stage was touching disk.
	ErrIoError = errors.New("io error")
)
