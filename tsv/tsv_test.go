// Licensed under the MIT License. See LICENSE for details.

package tsv

import (
	"errors"
	"testing"

	"github.com/rodrigomiquilino/wwm-toolchain/wwmerr"
)

func TestRecordsRoundTrip(t *testing.T) {
	in := "ID\tOriginalText\n0000000000000001\thello\n0000000000000002\tworld\n"
	f, err := ReadRecords([]byte(in))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(f.Records) != 2 || f.Records[0].Text != "hello" || f.Records[1].Text != "world" {
		t.Fatalf("got %+v", f.Records)
	}
	out := WriteRecords(f)
	if string(out) != in {
		t.Fatalf("round trip mismatch:\ngot  %q\nwant %q", out, in)
	}
}

func TestRecordsIDOnlyRow(t *testing.T) {
	in := "ID\tOriginalText\n0000000000000001\n"
	f, err := ReadRecords([]byte(in))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(f.Records) != 1 || f.Records[0].Text != "" {
		t.Fatalf("got %+v", f.Records)
	}
}

func TestRecordsEscapeNewlines(t *testing.T) {
	in := "ID\tOriginalText\n0000000000000001\tline1\\nline2\\r\n"
	f, err := ReadRecords([]byte(in))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if f.Records[0].Text != "line1\nline2\r" {
		t.Fatalf("got %q", f.Records[0].Text)
	}
	out := WriteRecords(f)
	if string(out) != in {
		t.Fatalf("round trip mismatch:\ngot  %q\nwant %q", out, in)
	}
}

func TestRecordsLiteralBackslashNotEscaped(t *testing.T) {
	in := "ID\tOriginalText\n0000000000000001\tC:\\data\n"
	f, err := ReadRecords([]byte(in))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if f.Records[0].Text != `C:\data` {
		t.Fatalf("got %q, want %q", f.Records[0].Text, `C:\data`)
	}
	out := WriteRecords(f)
	if string(out) != in {
		t.Fatalf("round trip mismatch:\ngot  %q\nwant %q", out, in)
	}
}

func TestRecordsCRLFPreserved(t *testing.T) {
	in := "ID\tOriginalText\r\n0000000000000001\tfoo\r\n"
	f, err := ReadRecords([]byte(in))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if f.Newline != "\r\n" {
		t.Fatalf("got newline %q, want \\r\\n", f.Newline)
	}
	out := WriteRecords(f)
	if string(out) != in {
		t.Fatalf("round trip mismatch:\ngot  %q\nwant %q", out, in)
	}
}

func TestRecordsNoTrailingNewlinePreserved(t *testing.T) {
	in := "ID\tOriginalText\n0000000000000001\tfoo"
	f, err := ReadRecords([]byte(in))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if f.TrailingNewline {
		t.Fatal("expected no trailing newline")
	}
	out := WriteRecords(f)
	if string(out) != in {
		t.Fatalf("round trip mismatch:\ngot  %q\nwant %q", out, in)
	}
}

func TestRecordsTextAliases(t *testing.T) {
	for _, header := range []string{"ID\tText", "id\tOriginal", "ID\tOriginalText"} {
		in := header + "\n0000000000000001\thi\n"
		f, err := ReadRecords([]byte(in))
		if err != nil {
			t.Fatalf("header %q: ReadRecords: %v", header, err)
		}
		if f.Records[0].Text != "hi" {
			t.Fatalf("header %q: got %q", header, f.Records[0].Text)
		}
	}
}

func TestRecordsMissingColumnsRejected(t *testing.T) {
	_, err := ReadRecords([]byte("Foo\tBar\n1\t2\n"))
	if !errors.Is(err, wwmerr.ErrTsvMalformed) {
		t.Fatalf("got %v, want ErrTsvMalformed", err)
	}
}

func TestRecordsBadIDWidthRejected(t *testing.T) {
	_, err := ReadRecords([]byte("ID\tOriginalText\n0123\ttext\n"))
	if !errors.Is(err, wwmerr.ErrTsvMalformed) {
		t.Fatalf("got %v, want ErrTsvMalformed", err)
	}
}

func TestRecordsWrongColumnCountRejected(t *testing.T) {
	_, err := ReadRecords([]byte("ID\tOriginalText\n0000000000000001\ta\tb\n"))
	if !errors.Is(err, wwmerr.ErrTsvMalformed) {
		t.Fatalf("got %v, want ErrTsvMalformed", err)
	}
}

func TestMapRoundTrip(t *testing.T) {
	rows := []MapRow{
		{File: "b.dat", AllBlocks: 2, WorkBlocks: 1, Block: 1, Code: 0x07, ID: mustID(t, "0000000000000002")},
		{File: "a.dat", AllBlocks: 2, WorkBlocks: 1, Block: 0, Code: 0x01, ID: mustID(t, "0000000000000001")},
	}
	out := WriteMap(rows)
	parsed, err := ReadMap(out)
	if err != nil {
		t.Fatalf("ReadMap: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("got %d rows", len(parsed))
	}
	// WriteMap sorts by File then Block, so a.dat comes first.
	if parsed[0].File != "a.dat" || parsed[1].File != "b.dat" {
		t.Fatalf("got order %q, %q", parsed[0].File, parsed[1].File)
	}
}

func TestMapGroupByFile(t *testing.T) {
	rows := []MapRow{
		{File: "a.dat", Block: 2, ID: mustID(t, "0000000000000001")},
		{File: "b.dat", Block: 0, ID: mustID(t, "0000000000000002")},
		{File: "a.dat", Block: 0, ID: mustID(t, "0000000000000003")},
	}
	grouped := GroupByFile(rows)
	if len(grouped["a.dat"]) != 2 || grouped["a.dat"][0].Block != 0 || grouped["a.dat"][1].Block != 2 {
		t.Fatalf("got %+v", grouped["a.dat"])
	}
	if len(grouped["b.dat"]) != 1 {
		t.Fatalf("got %+v", grouped["b.dat"])
	}
}

func TestMapBadHeaderRejected(t *testing.T) {
	_, err := ReadMap([]byte("File\tBlocks\n"))
	if !errors.Is(err, wwmerr.ErrTsvMalformed) {
		t.Fatalf("got %v, want ErrTsvMalformed", err)
	}
}

func TestIDRoundTripCase(t *testing.T) {
	id, err := ParseID("ABCDEF0123456789")
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if id.String() != "abcdef0123456789" {
		t.Fatalf("got %q", id.String())
	}
}

func mustID(t *testing.T, s string) ID {
	t.Helper()
	id, err := ParseID(s)
	if err != nil {
		t.Fatalf("ParseID(%q): %v", s, err)
	}
	return id
}
