// Licensed under the MIT License. See LICENSE for details.

// Command wwmpack rebuilds dat/ from an edited records TSV and its
// structural map, then repacks a container into bin/ (spec.md §4.C,
// §4.D, §4.E, §4.G). Non-text inner blocks pass through unchanged; a
// block originally stored under a compression kind other than zstd makes
// the pack fail, since container.Pack refuses to write it.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rodrigomiquilino/wwm-toolchain/compr"
	"github.com/rodrigomiquilino/wwm-toolchain/config"
	"github.com/rodrigomiquilino/wwm-toolchain/container"
	"github.com/rodrigomiquilino/wwm-toolchain/session"
	"github.com/rodrigomiquilino/wwm-toolchain/textblock"
	"github.com/rodrigomiquilino/wwm-toolchain/tsv"
	"github.com/rodrigomiquilino/wwm-toolchain/wwmerr"
)

var (
	dashv      bool
	dashConfig string
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose progress")
	flag.StringVar(&dashConfig, "config", "wwmtool.yaml", "path to wwmtool.yaml")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

func logf(f string, args ...interface{}) {
	if !dashv {
		return
	}
	fmt.Fprintf(os.Stderr, f+"\n", args...)
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [-v] [-config wwmtool.yaml] <session-dir> <stem>\n", os.Args[0])
		os.Exit(1)
	}
	sessDir, stem := args[0], args[1]

	cfg, err := config.Load(dashConfig)
	if err != nil {
		exitf("loading %s: %s", dashConfig, err)
	}
	compr.SetLevel(cfg.CompressionLevel)
	logf("compression level hint: %s", cfg.CompressionLevel)

	sess, err := session.Open(sessDir, stem)
	if err != nil {
		exitf("opening session: %s", err)
	}
	if err := sess.Verify(); err != nil {
		exitf("session failed verification: %s", err)
	}

	kinds, err := sess.BlockKinds()
	if err != nil {
		exitf("reading session manifest: %s", err)
	}

	recordsRaw, err := os.ReadFile(sess.TSVPath())
	if err != nil {
		exitf("%s", fmt.Errorf("%w: reading records tsv: %v", wwmerr.ErrIoError, err))
	}
	records, err := tsv.ReadRecords(recordsRaw)
	if err != nil {
		exitf("parsing records tsv: %s", err)
	}
	textByID := make(map[tsv.ID]string, len(records.Records))
	for _, r := range records.Records {
		textByID[r.ID] = r.Text
	}

	mapRaw, err := os.ReadFile(sess.MapPath())
	if err != nil {
		exitf("%s: reading structural map: %s", wwmerr.ErrMissingMap, err)
	}
	mapRows, err := tsv.ReadMap(mapRaw)
	if err != nil {
		exitf("parsing structural map: %s", err)
	}
	byFile := tsv.GroupByFile(mapRows)

	names, err := sess.BlockFiles()
	if err != nil {
		exitf("listing session blocks: %s", err)
	}

	rebuilt := make([]container.Block, len(names))
	textBlocks := 0
	for i, name := range names {
		rows, isText := byFile[name]
		if !isText {
			data, err := os.ReadFile(filepath.Join(sess.DatDir(), name))
			if err != nil {
				exitf("%s", fmt.Errorf("%w: reading %s: %v", wwmerr.ErrIoError, name, err))
			}
			// preserve the block's original compression_kind: a
			// passed-through block can never be re-zstd-compressed
			// without corrupting it (see container.Pack).
			rebuilt[i] = container.Block{Kind: kinds[name], Data: data}
			continue
		}

		blk := &textblock.Block{
			AllBlocks:  rows[0].AllBlocks,
			WorkBlocks: rows[0].WorkBlocks,
			Records:    make([]textblock.Record, len(rows)),
		}
		for j, row := range rows {
			blk.Records[j] = textblock.Record{ID: [8]byte(row.ID), Text: textByID[row.ID], Code: row.Code}
		}
		out, err := textblock.Serialize(blk)
		if err != nil {
			exitf("rebuilding %s: %s", name, err)
		}
		rebuilt[i] = container.Block{Kind: container.KindZstd, Data: out}
		textBlocks++
		if textBlocks%50 == 0 {
			logf("rebuilt %d text blocks", textBlocks)
		}
	}

	packed, err := container.Pack(rebuilt, func(m string) { logf("%s", m) })
	if err != nil {
		exitf("packing container: %s", err)
	}
	if err := os.WriteFile(sess.BinPath(), packed, 0o644); err != nil {
		exitf("%s", fmt.Errorf("%w: writing %s: %v", wwmerr.ErrIoError, sess.BinPath(), err))
	}

	fmt.Printf("packed %d blocks into %s\n", len(rebuilt), sess.BinPath())
}
