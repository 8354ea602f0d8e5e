// Licensed under the MIT License. See LICENSE for details.

// Package session implements the extraction/pack working directory
// (spec.md §4.G): a timestamped directory with fixed subtrees dat/,
// tsv/, and bin/, plus a manifest sidecar used to detect a partially
// written or tampered session before the pack pipeline trusts it.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/dchest/siphash"
	"github.com/google/uuid"

	"github.com/rodrigomiquilino/wwm-toolchain/container"
	"github.com/rodrigomiquilino/wwm-toolchain/wwmerr"
)

const timeLayout = "02012006150405" // DDMMYYYYhhmmss

const manifestName = "manifest.json"

// siphash key is fixed: the manifest checksum is a corruption detector,
// not a security boundary, so there is no per-session secret to manage.
var checksumKey0, checksumKey1 uint64 = 0x7767775F746F6F6C, 0x73657373696F6E31

// Session is one extraction/pack working directory.
type Session struct {
	Root string
	Stem string
}

// New creates a fresh, timestamped session directory under parent with
// the dat/, tsv/, bin/ subtrees (spec.md §4.G).
func New(parent, stem string) (*Session, error) {
	name := time.Now().Format(timeLayout)
	root := filepath.Join(parent, name)
	for _, sub := range []string{"dat", "tsv", "bin"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("%w: session: %v", wwmerr.ErrIoError, err)
		}
	}
	return &Session{Root: root, Stem: stem}, nil
}

// Open attaches to an existing session directory, as consumed by the
// pack pipeline.
func Open(root, stem string) (*Session, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: session: %v", wwmerr.ErrIoError, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("session: %s is not a directory", root)
	}
	return &Session{Root: root, Stem: stem}, nil
}

func (s *Session) DatDir() string { return filepath.Join(s.Root, "dat") }
func (s *Session) TSVDir() string { return filepath.Join(s.Root, "tsv") }
func (s *Session) BinDir() string { return filepath.Join(s.Root, "bin") }

// DatPath is the path of the i-th inner-block file.
func (s *Session) DatPath(i int) string {
	return filepath.Join(s.DatDir(), fmt.Sprintf("%s_%d.dat", s.Stem, i))
}

func (s *Session) TSVPath() string { return filepath.Join(s.TSVDir(), s.Stem+".tsv") }
func (s *Session) MapPath() string { return filepath.Join(s.TSVDir(), s.Stem+".map") }
func (s *Session) BinPath() string { return filepath.Join(s.BinDir(), s.Stem) }

// WriteBlocks writes each block to dat/<stem>_<i>.dat and then writes a
// manifest covering the written set, recording each block's original
// compression_kind so a later pack pass can recover it (see BlockKinds).
func (s *Session) WriteBlocks(blocks []container.Block) error {
	entries := make([]blockEntry, len(blocks))
	for i, b := range blocks {
		path := s.DatPath(i)
		if err := os.WriteFile(path, b.Data, 0o644); err != nil {
			return fmt.Errorf("%w: session: writing block %d: %v", wwmerr.ErrIoError, i, err)
		}
		entries[i] = blockEntry{File: filepath.Base(path), Kind: b.Kind}
	}
	return s.writeManifest(entries, blocks)
}

var datPattern = regexp.MustCompile(`_(\d+)\.dat$`)

// ReadBlocks reads every <stem>_<i>.dat file in dat/, ordered by the
// natural numeric value of i (not lexical order, so _10 sorts after _9).
func (s *Session) ReadBlocks() ([][]byte, error) {
	names, err := s.BlockFiles()
	if err != nil {
		return nil, err
	}
	blocks := make([][]byte, len(names))
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(s.DatDir(), name))
		if err != nil {
			return nil, fmt.Errorf("%w: session: reading %s: %v", wwmerr.ErrIoError, name, err)
		}
		blocks[i] = data
	}
	return blocks, nil
}

// BlockKinds reads the manifest and returns each dat file's original
// compression_kind, as recorded by WriteBlocks. A pack pass uses this to
// preserve a passed-through block's kind byte instead of assuming zstd.
func (s *Session) BlockKinds() (map[string]byte, error) {
	m, err := s.readManifest()
	if err != nil {
		return nil, err
	}
	kinds := make(map[string]byte, len(m.Blocks))
	for _, e := range m.Blocks {
		kinds[e.File] = e.Kind
	}
	return kinds, nil
}

// BlockFiles lists the base filenames of every <stem>_<i>.dat file in
// dat/, ordered by the natural numeric value of i.
func (s *Session) BlockFiles() ([]string, error) {
	entries, err := os.ReadDir(s.DatDir())
	if err != nil {
		return nil, fmt.Errorf("%w: session: %v", wwmerr.ErrIoError, err)
	}

	type indexed struct {
		index int
		name  string
	}
	var files []indexed
	for _, e := range entries {
		m := datPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, indexed{index: n, name: e.Name()})
	}
	if len(files) == 0 {
		return nil, wwmerr.ErrNoBlocks
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

// blockEntry is one dat/ file tracked by the manifest: its name and the
// compression_kind it was originally stored under (spec.md §4.C).
type blockEntry struct {
	File string `json:"file"`
	Kind byte   `json:"kind"`
}

// manifest is the additive corruption-detection sidecar: it is never
// required by the original external interfaces (spec.md §6), only
// consulted by Verify and BlockKinds.
type manifest struct {
	RunID      string       `json:"run_id"`
	CreatedAt  string       `json:"created_at"`
	BlockCount int          `json:"block_count"`
	Blocks     []blockEntry `json:"blocks"`
	Checksum   uint64       `json:"checksum"`
}

func (s *Session) writeManifest(entries []blockEntry, blocks []container.Block) error {
	m := manifest{
		RunID:      uuid.NewString(),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		BlockCount: len(blocks),
		Blocks:     entries,
	}
	m.Checksum = checksum(entries, blocks)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Root, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("%w: session: writing manifest: %v", wwmerr.ErrIoError, err)
	}
	return nil
}

func (s *Session) readManifest() (*manifest, error) {
	raw, err := os.ReadFile(filepath.Join(s.Root, manifestName))
	if err != nil {
		return nil, fmt.Errorf("%w: reading manifest: %v", wwmerr.ErrSessionInvalid, err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: decoding manifest: %v", wwmerr.ErrSessionInvalid, err)
	}
	if len(m.Blocks) != m.BlockCount {
		return nil, fmt.Errorf("%w: manifest declares %d blocks but lists %d files", wwmerr.ErrSessionInvalid, m.BlockCount, len(m.Blocks))
	}
	return &m, nil
}

// Verify re-derives the manifest checksum from the files on disk and
// compares it against the recorded one, returning ErrSessionInvalid on
// any mismatch (missing file, size change, or missing manifest).
func (s *Session) Verify() error {
	m, err := s.readManifest()
	if err != nil {
		return err
	}

	blocks := make([]container.Block, len(m.Blocks))
	for i, e := range m.Blocks {
		data, err := os.ReadFile(filepath.Join(s.DatDir(), e.File))
		if err != nil {
			return fmt.Errorf("%w: missing %s: %v", wwmerr.ErrSessionInvalid, e.File, err)
		}
		blocks[i] = container.Block{Kind: e.Kind, Data: data}
	}
	if checksum(m.Blocks, blocks) != m.Checksum {
		return fmt.Errorf("%w: checksum mismatch", wwmerr.ErrSessionInvalid)
	}
	return nil
}

// checksum is a keyed siphash-2-4 over the filename, kind, and size of
// each block, concatenated in order. It is a tamper/corruption detector,
// not a content hash: two different payloads of the same size under the
// same name and kind are not distinguished.
func checksum(entries []blockEntry, blocks []container.Block) uint64 {
	var buf []byte
	for i, e := range entries {
		buf = append(buf, e.File...)
		buf = append(buf, 0)
		buf = append(buf, e.Kind)
		buf = append(buf, []byte(strconv.Itoa(len(blocks[i].Data)))...)
		buf = append(buf, 0)
	}
	return siphash.Hash(checksumKey0, checksumKey1, buf)
}
