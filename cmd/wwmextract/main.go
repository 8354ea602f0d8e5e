// Licensed under the MIT License. See LICENSE for details.

// Command wwmextract unpacks a container file into a fresh session
// directory: every inner block as dat/<stem>_<i>.dat, and for every
// text-bearing inner block, the records TSV and structural map needed
// to rebuild it (spec.md §4.C, §4.D, §4.E, §4.G).
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

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
	dashSess   string
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose progress")
	flag.StringVar(&dashConfig, "config", "wwmtool.yaml", "path to wwmtool.yaml")
	flag.StringVar(&dashSess, "sessions", "", "session root (overrides wwmtool.yaml)")
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
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-v] [-config wwmtool.yaml] <container-file>\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(dashConfig)
	if err != nil {
		exitf("loading %s: %s", dashConfig, err)
	}
	root := cfg.SessionRoot
	if dashSess != "" {
		root = dashSess
	}
	logf("compression level hint: %s", cfg.CompressionLevel)

	containerPath := args[0]
	data, err := os.ReadFile(containerPath)
	if err != nil {
		exitf("%s", fmt.Errorf("%w: reading %s: %v", wwmerr.ErrIoError, containerPath, err))
	}

	stem := strings.TrimSuffix(filepath.Base(containerPath), filepath.Ext(containerPath))
	sess, err := session.New(root, stem)
	if err != nil {
		exitf("creating session: %s", err)
	}
	logf("session: %s", sess.Root)

	blocks, err := container.Unpack(data, func(m string) { logf("%s", m) })
	if err != nil {
		exitf("unpacking %s: %s", containerPath, err)
	}

	if err := sess.WriteBlocks(blocks); err != nil {
		exitf("writing session blocks: %s", err)
	}

	var records tsv.File
	var mapRows []tsv.MapRow
	textBlocks := 0
	for i, b := range blocks {
		if !textblock.IsTextBlock(b.Data) {
			continue
		}
		tb, err := textblock.Extract(b.Data)
		if err != nil {
			exitf("block %d: extracting text block: %s", i, err)
		}
		datName := filepath.Base(sess.DatPath(i))
		for recIdx, rec := range tb.Records {
			records.Records = append(records.Records, tsv.Record{ID: rec.ID, Text: rec.Text})
			mapRows = append(mapRows, tsv.MapRow{
				File:       datName,
				AllBlocks:  tb.AllBlocks,
				WorkBlocks: tb.WorkBlocks,
				Block:      recIdx,
				Code:       rec.Code,
				ID:         rec.ID,
			})
		}
		textBlocks++
		if textBlocks%50 == 0 {
			logf("extracted %d text blocks", textBlocks)
		}
	}
	records.TrailingNewline = true

	if err := os.WriteFile(sess.TSVPath(), tsv.WriteRecords(&records), 0o644); err != nil {
		exitf("%s", fmt.Errorf("%w: writing records tsv: %v", wwmerr.ErrIoError, err))
	}
	if err := os.WriteFile(sess.MapPath(), tsv.WriteMap(mapRows), 0o644); err != nil {
		exitf("%s", fmt.Errorf("%w: writing structural map: %v", wwmerr.ErrIoError, err))
	}

	fmt.Printf("extracted %d blocks (%d text records) into %s\n", len(blocks), len(records.Records), sess.Root)
}
