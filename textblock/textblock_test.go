// Licensed under the MIT License. See LICENSE for details.

package textblock

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rodrigomiquilino/wwm-toolchain/wwmerr"
)

func idFromHex(t *testing.T, hex string) [8]byte {
	t.Helper()
	var id [8]byte
	n, err := decodeHexInto(id[:], hex)
	if err != nil || n != 8 {
		t.Fatalf("bad test id %q: %v", hex, err)
	}
	return id
}

func decodeHexInto(dst []byte, hex string) (int, error) {
	if len(hex) != len(dst)*2 {
		return 0, errors.New("wrong length")
	}
	for i := range dst {
		hi, err := hexVal(hex[i*2])
		if err != nil {
			return 0, err
		}
		lo, err := hexVal(hex[i*2+1])
		if err != nil {
			return 0, err
		}
		dst[i] = hi<<4 | lo
	}
	return len(dst), nil
}

func hexVal(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, errors.New("bad hex digit")
	}
}

func TestSingleRecordLayout(t *testing.T) {
	b := &Block{
		AllBlocks:  1,
		WorkBlocks: 1,
		Records: []Record{
			{ID: idFromHex(t, "0123456789abcdef"), Text: "Hello", Code: 0x07},
		},
	}
	out, err := Serialize(b)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	descriptorStart, textAreaStart := offsets(1)
	gotText := out[textAreaStart : textAreaStart+5]
	if !bytes.Equal(gotText, []byte{0x48, 0x65, 0x6C, 0x6C, 0x6F}) {
		t.Fatalf("text area = % x, want 48 65 6C 6C 6F", gotText)
	}

	anchor := descriptorStart + idSize
	wantOffset := textAreaStart - anchor
	gotOffset := int(out[anchor]) | int(out[anchor+1])<<8 | int(out[anchor+2])<<16 | int(out[anchor+3])<<24
	if gotOffset != wantOffset {
		t.Fatalf("descriptor offset = %d, want %d", gotOffset, wantOffset)
	}

	parsed, err := Extract(out)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if parsed.Records[0].Text != "Hello" || parsed.Records[0].Code != 0x07 {
		t.Fatalf("round trip mismatch: %+v", parsed.Records[0])
	}
}

func TestPaddingRule(t *testing.T) {
	b := &Block{
		AllBlocks:  3,
		WorkBlocks: 3,
		Records: []Record{
			{ID: [8]byte{1}, Text: "a", Code: 0xAA},
			{ID: [8]byte{2}, Text: "b", Code: 0xBB},
			{ID: [8]byte{3}, Text: "c", Code: 0xCC},
		},
	}
	out, err := Serialize(b)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	paddingStart := 24 + 3
	got := out[paddingStart : paddingStart+paddingSize]
	want := []byte{0xFF, 0xAA, 0xBB, 0xCC, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80}
	if !bytes.Equal(got, want) {
		t.Fatalf("padding = % x, want % x", got, want)
	}
}

func TestRoundTripNewlinePreservation(t *testing.T) {
	b := &Block{
		AllBlocks:  1,
		WorkBlocks: 1,
		Records: []Record{
			{ID: [8]byte{1}, Text: "Line1\nLine2", Code: 0},
		},
	}
	out, err := Serialize(b)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	parsed, err := Extract(out)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if parsed.Records[0].Text != "Line1\nLine2" {
		t.Fatalf("got %q", parsed.Records[0].Text)
	}
}

func TestExtractSerializeRoundTripMulti(t *testing.T) {
	b := &Block{
		AllBlocks:  4,
		WorkBlocks: 2,
		Records: []Record{
			{ID: [8]byte{1}, Text: "alpha", Code: 1},
			{ID: [8]byte{2}, Text: "", Code: 2},
			{ID: [8]byte{3}, Text: "gamma delta", Code: 3},
			{ID: [8]byte{4}, Text: "日本語", Code: 4},
		},
	}
	out, err := Serialize(b)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	parsed, err := Extract(out)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	again, err := Serialize(parsed)
	if err != nil {
		t.Fatalf("Serialize (2nd pass): %v", err)
	}
	if !bytes.Equal(out, again) {
		t.Fatal("serialize(extract(serialize(b))) != serialize(b)")
	}
}

func TestDescriptorOutOfRangeIsolatesOneRecord(t *testing.T) {
	b := &Block{
		AllBlocks:  2,
		WorkBlocks: 2,
		Records: []Record{
			{ID: [8]byte{1}, Text: "short", Code: 1},
			{ID: [8]byte{2}, Text: "also short", Code: 2},
		},
	}
	out, err := Serialize(b)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	descriptorStart, _ := offsets(2)
	// corrupt record 0's length field (bytes [12:16) of its descriptor)
	lengthField := descriptorStart + idSize + 4
	out[lengthField] = 0xFF
	out[lengthField+1] = 0xFF
	out[lengthField+2] = 0xFF
	out[lengthField+3] = 0x7F

	_, err = Extract(out)
	if !errors.Is(err, wwmerr.ErrDescriptorOutOfRange) {
		t.Fatalf("got %v, want ErrDescriptorOutOfRange", err)
	}
}

func TestNotATextBlock(t *testing.T) {
	data := make([]byte, 64)
	_, err := Extract(data)
	if !errors.Is(err, wwmerr.ErrBadTextMagic) {
		t.Fatalf("got %v, want ErrBadTextMagic", err)
	}
}

func TestIllegalCharacterRejectedBeforeWrite(t *testing.T) {
	b := &Block{
		AllBlocks:  1,
		WorkBlocks: 1,
		Records:    []Record{{ID: [8]byte{1}, Text: "bad\ttab", Code: 0}},
	}
	_, err := Serialize(b)
	if !errors.Is(err, wwmerr.ErrIllegalCharacter) {
		t.Fatalf("got %v, want ErrIllegalCharacter", err)
	}
}
