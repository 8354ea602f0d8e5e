// Licensed under the MIT License. See LICENSE for details.

// Package textblock implements the inner text-record codec: parsing a
// decompressed text-bearing inner block into an ordered list of records,
// and rebuilding the identical bytes from those records plus the
// structural metadata the block carries.
//
// Backslash-escaping of \n and \r happens at the TSV boundary (package
// tsv), not here; Extract returns records with raw text exactly as stored
// on disk.
package textblock

import (
	"fmt"
	"unicode/utf8"

	"github.com/rodrigomiquilino/wwm-toolchain/internal/binfmt"
	"github.com/rodrigomiquilino/wwm-toolchain/wwmerr"
)

// Magic is the 4-byte signature that identifies a text-bearing inner
// block when found at byte offset 16 of its decompressed payload.
var Magic = [4]byte{0xDC, 0x96, 0x58, 0x59}

const (
	magicOffset  = 16
	idSize       = 8
	descriptorSz = 16 // id[8] + offset_to_text[4] + length[4]
	paddingSize  = 17
)

// Record is one translatable entry inside a text block.
type Record struct {
	// ID is the raw 8-byte identifier, unique within one text block.
	ID [8]byte
	// Text is the UTF-8 text, decoded with invalid sequences replaced
	// (never backslash-escaped; that happens in package tsv).
	Text string
	// Code is the one opaque "unknown code" byte associated with this
	// record's position in the block.
	Code byte
}

// Block is a parsed text-bearing inner block: its header counters plus its
// ordered records.
type Block struct {
	AllBlocks  uint32
	WorkBlocks uint32
	Records    []Record
}

// IsTextBlock reports whether a decompressed inner block begins with the
// text-block magic at byte offset 16.
func IsTextBlock(data []byte) bool {
	if len(data) < magicOffset+4 {
		return false
	}
	return data[magicOffset] == Magic[0] && data[magicOffset+1] == Magic[1] &&
		data[magicOffset+2] == Magic[2] && data[magicOffset+3] == Magic[3]
}

// offsets returns the absolute byte position of the descriptor table and
// of the start of the text area, given all_blocks. Kept as a standalone
// helper (per spec.md §9's design note) because the arithmetic is easy to
// get wrong; the layout tests locate the descriptor table and text area
// through it.
func offsets(allBlocks uint32) (descriptorTableStart, textAreaStart int) {
	codeAreaEnd := 24 + int(allBlocks)
	descriptorTableStart = codeAreaEnd + paddingSize
	textAreaStart = descriptorTableStart + descriptorSz*int(allBlocks)
	return
}

// Extract parses a decompressed inner-block byte stream into a Block. The
// caller must have already established via IsTextBlock that this is a text
// block; Extract returns ErrBadTextMagic if asked to parse one that is not.
func Extract(data []byte) (*Block, error) {
	if !IsTextBlock(data) {
		return nil, wwmerr.ErrBadTextMagic
	}
	r := binfmt.NewReader(data)
	allBlocks := r.Uint32()
	_ = r.Uint32() // reserved
	workBlocks := r.Uint32()
	_ = r.Uint32() // reserved
	r.Bytes(4) // magic, already validated by IsTextBlock
	_ = r.Uint32() // reserved
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: truncated text-block header: %v", wwmerr.ErrDescriptorOutOfRange, r.Err())
	}

	codes := r.Bytes(int(allBlocks))
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: truncated code area", wwmerr.ErrDescriptorOutOfRange)
	}
	r.Bytes(paddingSize) // padding, not relied upon beyond skipping it
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: truncated padding", wwmerr.ErrDescriptorOutOfRange)
	}

	records := make([]Record, allBlocks)
	for i := uint32(0); i < allBlocks; i++ {
		idBytes := r.Bytes(idSize)
		anchor := r.Pos() // position of this descriptor's offset_to_text field
		offsetToText := r.Uint32()
		length := r.Uint32()
		if r.Err() != nil {
			return nil, fmt.Errorf("%w: truncated descriptor %d", wwmerr.ErrDescriptorOutOfRange, i)
		}
		start := anchor + int(offsetToText)
		end := start + int(length)
		if start < 0 || end < start || end > len(data) {
			return nil, fmt.Errorf("%w: record %d text span [%d,%d) outside block of length %d",
				wwmerr.ErrDescriptorOutOfRange, i, start, end, len(data))
		}
		var id [8]byte
		copy(id[:], idBytes)
		records[i] = Record{
			ID:   id,
			Text: decodeLossy(data[start:end]),
			Code: codes[i],
		}
	}

	return &Block{AllBlocks: allBlocks, WorkBlocks: workBlocks, Records: records}, nil
}

// decodeLossy decodes b as UTF-8, replacing invalid byte sequences with
// the Unicode replacement character rather than failing.
func decodeLossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var out []rune
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out = append(out, r)
		b = b[size:]
	}
	return string(out)
}

// Serialize rebuilds a text-bearing inner block's decompressed bytes from
// a Block. For any Block B extracted from a real inner block via Extract,
// Serialize(B) is byte-identical to the original bytes.
func Serialize(b *Block) ([]byte, error) {
	allBlocks := b.AllBlocks
	if int(allBlocks) != len(b.Records) {
		return nil, fmt.Errorf("textblock: all_blocks %d does not match %d records", allBlocks, len(b.Records))
	}

	codes := make([]byte, allBlocks)
	for i, rec := range b.Records {
		codes[i] = rec.Code
		if containsIllegalChar(rec.Text) {
			return nil, fmt.Errorf("%w: record %d", wwmerr.ErrIllegalCharacter, i)
		}
	}

	_, textAreaStart := offsets(allBlocks)
	w := binfmt.NewWriterSize(textAreaStart + estimateTextLen(b.Records))
	w.Uint32(allBlocks)
	w.Uint32(0) // reserved
	w.Uint32(b.WorkBlocks)
	w.Uint32(0) // reserved
	w.Raw(Magic[:])
	w.Uint32(0) // reserved
	w.Raw(codes)
	w.Raw(buildPadding(codes))

	// descriptor table: computed in a first pass so we know each
	// record's offset_to_text before writing the table itself.
	type span struct{ start, length int }
	spans := make([]span, allBlocks)
	cursor := 0
	for i, rec := range b.Records {
		n := len(rec.Text)
		spans[i] = span{start: cursor, length: n}
		cursor += n
	}

	descriptorTableStart := w.Len()
	for i, rec := range b.Records {
		w.Raw(rec.ID[:])
		anchor := w.Len() // position of offset_to_text, measured as we write
		textAbsolute := descriptorTableStart + descriptorSz*len(b.Records) + spans[i].start
		offsetToText := textAbsolute - anchor
		w.Uint32(uint32(offsetToText))
		w.Uint32(uint32(spans[i].length))
	}

	for _, rec := range b.Records {
		w.Raw([]byte(rec.Text))
	}

	return w.Bytes(), nil
}

func estimateTextLen(records []Record) int {
	n := 0
	for _, r := range records {
		n += len(r.Text)
	}
	return n
}

// buildPadding reproduces the 17-byte padding rule: 0xFF followed by a
// replay of the first 16 code bytes, tail-padded with 0x80 if fewer than
// 16 codes exist. The rule's purpose is unknown (see DESIGN.md); it is
// reproduced verbatim for round-trip fidelity.
func buildPadding(codes []byte) []byte {
	pad := make([]byte, paddingSize)
	pad[0] = 0xFF
	n := copy(pad[1:], codes)
	for i := 1 + n; i < paddingSize; i++ {
		pad[i] = 0x80
	}
	return pad
}

func containsIllegalChar(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '\t' {
			return true
		}
	}
	return false
}
