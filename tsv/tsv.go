// Licensed under the MIT License. See LICENSE for details.

// Package tsv implements the record store (spec.md §4.E): reading and
// writing the editable records TSV and its structural-map sidecar.
//
// The escape handling for \n/\r inside a text field is adapted from
// SnellerInc/sneller's xsv.TsvChopper, which chops TSV lines into fields
// while unescaping the same two-character sequences inline. This package
// narrows that general CSV/TSV machinery to the two fixed schemas spec.md
// §4.E and §6 define (records: ID+OriginalText; map: six columns keyed by
// File), since schema inference and RFC 4180 CSV quoting are explicitly
// out of scope here.
package tsv

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/rodrigomiquilino/wwm-toolchain/wwmerr"
)

// ID is the 8 raw bytes identifying one record, rendered as 16 lowercase
// hex digits in TSV form.
type ID [8]byte

// ParseID decodes a 16-hex-digit string (case-insensitive) into an ID.
func ParseID(s string) (ID, error) {
	var id ID
	if len(s) != 16 {
		return id, fmt.Errorf("%w: id %q is not 16 hex digits", wwmerr.ErrTsvMalformed, s)
	}
	for i := 0; i < 8; i++ {
		hi, ok1 := hexDigit(s[i*2])
		lo, ok2 := hexDigit(s[i*2+1])
		if !ok1 || !ok2 {
			return id, fmt.Errorf("%w: id %q is not valid hex", wwmerr.ErrTsvMalformed, s)
		}
		id[i] = hi<<4 | lo
	}
	return id, nil
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// String renders the id as 16 lowercase hex digits.
func (id ID) String() string {
	const hextable = "0123456789abcdef"
	var b [16]byte
	for i, c := range id {
		b[i*2] = hextable[c>>4]
		b[i*2+1] = hextable[c&0x0f]
	}
	return string(b[:])
}

// Record is one (id, text) row of the editable records TSV, keeping
// document order as discovered during extraction.
type Record struct {
	ID   ID
	Text string // raw text, real newlines, never backslash-escaped
}

// textHeaderNames are the recognized header spellings for the text column
// of a records TSV (spec.md §6); the id column is matched as "ID",
// case-insensitively, in recordColumns.
var textHeaderNames = map[string]bool{
	"OriginalText": true,
	"Text":         true,
	"Original":     true,
}

// File is a parsed records TSV plus the formatting metadata needed to
// reproduce its layout byte-for-byte when nothing has changed.
type File struct {
	Records         []Record
	Newline         string // "\n" or "\r\n", as found in the source
	TrailingNewline bool
}

// ReadRecords parses a records TSV (spec.md §4.E/§6). Unknown header
// columns are tolerated (and dropped) as long as the header names them;
// anything else is ErrTsvMalformed.
func ReadRecords(content []byte) (*File, error) {
	newline, trailing, lines := splitLines(content)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty file", wwmerr.ErrTsvMalformed)
	}

	header := strings.Split(lines[0], "\t")
	idCol, textCol, err := recordColumns(header)
	if err != nil {
		return nil, err
	}

	f := &File{Newline: newline, TrailingNewline: trailing}
	f.Records = slices.Grow(f.Records, len(lines)-1)
	for i, line := range lines[1:] {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) == 1 && len(header) == 2 {
			// "a TSV row with only an id (no tab) is read as (id, \"\")"
			id, err := ParseID(fields[0])
			if err != nil {
				return nil, fmt.Errorf("%w (line %d)", err, i+2)
			}
			f.Records = append(f.Records, Record{ID: id})
			continue
		}
		if len(fields) != len(header) {
			return nil, fmt.Errorf("%w: line %d has %d columns, header has %d",
				wwmerr.ErrTsvMalformed, i+2, len(fields), len(header))
		}
		id, err := ParseID(fields[idCol])
		if err != nil {
			return nil, fmt.Errorf("%w (line %d)", err, i+2)
		}
		f.Records = append(f.Records, Record{ID: id, Text: unescape(fields[textCol])})
	}
	return f, nil
}

func recordColumns(header []string) (idCol, textCol int, err error) {
	idCol, textCol = -1, -1
	for i, h := range header {
		if strings.EqualFold(h, "ID") {
			idCol = i
		} else if textHeaderNames[h] {
			textCol = i
		}
	}
	if idCol == -1 || textCol == -1 {
		return 0, 0, fmt.Errorf("%w: header %q missing ID/OriginalText columns",
			wwmerr.ErrTsvMalformed, strings.Join(header, "\t"))
	}
	return idCol, textCol, nil
}

// WriteRecords renders a File back to TSV bytes, preserving its newline
// style and trailing-newline presence.
func WriteRecords(f *File) []byte {
	nl := f.Newline
	if nl == "" {
		nl = "\n"
	}
	var b strings.Builder
	b.WriteString("ID")
	b.WriteByte('\t')
	b.WriteString("OriginalText")
	for _, rec := range f.Records {
		b.WriteString(nl)
		b.WriteString(rec.ID.String())
		b.WriteByte('\t')
		b.WriteString(escape(rec.Text))
	}
	if f.TrailingNewline {
		b.WriteString(nl)
	}
	return []byte(b.String())
}

// MapRow is one row of the structural-map sidecar (spec.md §3/§4.E).
type MapRow struct {
	File       string
	AllBlocks  uint32
	WorkBlocks uint32
	Block      int
	Code       byte
	ID         ID
}

var mapHeader = []string{"File", "AllBlocks", "WorkBlocks", "Block", "Unknown", "ID"}

// ReadMap parses a structural-map TSV.
func ReadMap(content []byte) ([]MapRow, error) {
	_, _, lines := splitLines(content)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty map file", wwmerr.ErrTsvMalformed)
	}
	header := strings.Split(lines[0], "\t")
	if len(header) != len(mapHeader) {
		return nil, fmt.Errorf("%w: map header has %d columns, want %d", wwmerr.ErrTsvMalformed, len(header), len(mapHeader))
	}
	for i, want := range mapHeader {
		if header[i] != want {
			return nil, fmt.Errorf("%w: map header column %d is %q, want %q", wwmerr.ErrTsvMalformed, i, header[i], want)
		}
	}

	var rows []MapRow
	for i, line := range lines[1:] {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != len(mapHeader) {
			return nil, fmt.Errorf("%w: map line %d has %d columns, want %d",
				wwmerr.ErrTsvMalformed, i+2, len(fields), len(mapHeader))
		}
		allBlocks, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: map line %d: AllBlocks: %v", wwmerr.ErrTsvMalformed, i+2, err)
		}
		workBlocks, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: map line %d: WorkBlocks: %v", wwmerr.ErrTsvMalformed, i+2, err)
		}
		block, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%w: map line %d: Block: %v", wwmerr.ErrTsvMalformed, i+2, err)
		}
		code, err := strconv.ParseUint(fields[4], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: map line %d: Unknown: %v", wwmerr.ErrTsvMalformed, i+2, err)
		}
		id, err := ParseID(fields[5])
		if err != nil {
			return nil, fmt.Errorf("%w (map line %d)", err, i+2)
		}
		rows = append(rows, MapRow{
			File:       fields[0],
			AllBlocks:  uint32(allBlocks),
			WorkBlocks: uint32(workBlocks),
			Block:      block,
			Code:       byte(code),
			ID:         id,
		})
	}
	return rows, nil
}

// WriteMap renders map rows to TSV bytes, grouped by File and sorted by
// Block ascending within each file (spec.md §4.E's pack-time contract).
func WriteMap(rows []MapRow) []byte {
	sorted := append([]MapRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].File != sorted[j].File {
			return sorted[i].File < sorted[j].File
		}
		return sorted[i].Block < sorted[j].Block
	})

	var b strings.Builder
	b.WriteString(strings.Join(mapHeader, "\t"))
	for _, r := range sorted {
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%s\t%d\t%d\t%d\t%02x\t%s", r.File, r.AllBlocks, r.WorkBlocks, r.Block, r.Code, r.ID.String())
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// GroupByFile returns rows grouped by File, each group already sorted by
// Block ascending.
func GroupByFile(rows []MapRow) map[string][]MapRow {
	out := make(map[string][]MapRow)
	for _, r := range rows {
		out[r.File] = append(out[r.File], r)
	}
	for file := range out {
		g := out[file]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Block < g[j].Block })
		out[file] = g
	}
	return out
}

// splitLines splits content into lines without their terminators,
// reporting the newline style detected (defaulting to "\n" for a
// single-line or empty file) and whether the file ended with one.
func splitLines(content []byte) (newline string, trailingNewline bool, lines []string) {
	s := string(content)
	newline = "\n"
	if strings.Contains(s, "\r\n") {
		newline = "\r\n"
	}
	if s == "" {
		return newline, false, nil
	}
	trailingNewline = strings.HasSuffix(s, newline)
	body := s
	if trailingNewline {
		body = s[:len(s)-len(newline)]
	}
	if body == "" {
		return newline, trailingNewline, nil
	}
	return newline, trailingNewline, strings.Split(body, newline)
}

// escape converts raw newlines in text to the two-character TSV escape
// sequences \n and \r (spec.md §3's TextRecord.text rule). No other
// character, including a literal backslash, is escaped.
func escape(text string) string {
	if !strings.ContainsAny(text, "\n\r") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 8)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(text[i])
		}
	}
	return b.String()
}

// unescape reverses escape, converting \n and \r back into their raw byte
// forms. A backslash not followed by one of those two letters is left
// untouched. This is adapted directly from xsv.TsvChopper's inline
// backslash-handling loop in the teacher corpus.
func unescape(field string) string {
	if !strings.Contains(field, `\`) {
		return field
	}
	var b strings.Builder
	b.Grow(len(field))
	for i := 0; i < len(field); i++ {
		if field[i] == '\\' && i+1 < len(field) {
			if r := backslash(field[i+1]); r != 0 {
				b.WriteByte(r)
				i++
				continue
			}
		}
		b.WriteByte(field[i])
	}
	return b.String()
}

func backslash(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	default:
		return 0
	}
}
