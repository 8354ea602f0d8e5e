// Licensed under the MIT License. See LICENSE for details.

package binfmt

import "encoding/binary"

// Writer appends fixed-width little-endian fields to a growable byte
// slice, mirroring the append-only style of ion.Buffer in the teacher
// corpus rather than wrapping an io.Writer.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// NewWriterSize returns an empty Writer with buf pre-allocated to size
// bytes of capacity.
func NewWriterSize(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Uint32 appends v as a little-endian uint32.
func (w *Writer) Uint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// Uint16 appends v as a little-endian uint16.
func (w *Writer) Uint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// Byte appends a single byte.
func (w *Writer) Byte(v byte) {
	w.buf = append(w.buf, v)
}

// Raw appends raw bytes verbatim.
func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the accumulated buffer. Further writes may grow and
// reallocate it; callers who need a stable copy should clone it.
func (w *Writer) Bytes() []byte { return w.buf }
