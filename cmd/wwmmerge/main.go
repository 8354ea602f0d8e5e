// Licensed under the MIT License. See LICENSE for details.

// Command wwmmerge reconciles an older translated records TSV against a
// freshly extracted original records TSV (spec.md §4.F, §6's CLI
// surface).
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rodrigomiquilino/wwm-toolchain/config"
	"github.com/rodrigomiquilino/wwm-toolchain/merge"
	"github.com/rodrigomiquilino/wwm-toolchain/tsv"
	"github.com/rodrigomiquilino/wwm-toolchain/wwmerr"
)

var (
	dashOld      string
	dashNew      string
	dashOutput   string
	dashNoReport bool
	dashConfig   string
)

func init() {
	flag.StringVar(&dashOld, "old", "", "path to the older translated records TSV (required)")
	flag.StringVar(&dashNew, "new", "", "path to the freshly extracted original records TSV (required)")
	flag.StringVar(&dashOutput, "output", "", "path to write the merged TSV (default: wwmtool.yaml's mergeOutputStem + .tsv)")
	flag.BoolVar(&dashNoReport, "no-report", false, "disable the text report")
	flag.StringVar(&dashConfig, "config", "wwmtool.yaml", "path to wwmtool.yaml")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

func readRecords(path string) *tsv.File {
	raw, err := os.ReadFile(path)
	if err != nil {
		exitf("%s", fmt.Errorf("%w: reading %s: %v", wwmerr.ErrIoError, path, err))
	}
	f, err := tsv.ReadRecords(raw)
	if err != nil {
		exitf("parsing %s: %s", path, err)
	}
	return f
}

func main() {
	flag.Parse()
	if dashOld == "" || dashNew == "" {
		fmt.Fprintf(os.Stderr, "usage: %s --old <path> --new <path> [--output <path>] [--no-report] [-config wwmtool.yaml]\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(dashConfig)
	if err != nil {
		exitf("loading %s: %s", dashConfig, err)
	}
	if dashOutput == "" {
		dashOutput = cfg.MergeOutputStem + ".tsv"
	}

	oldFile := readRecords(dashOld)
	newFile := readRecords(dashNew)

	res := merge.Merge(oldFile.Records, newFile.Records)

	merged := &tsv.File{Records: res.Merged, Newline: newFile.Newline, TrailingNewline: newFile.TrailingNewline}
	if err := os.WriteFile(dashOutput, tsv.WriteRecords(merged), 0o644); err != nil {
		exitf("%s", fmt.Errorf("%w: writing %s: %v", wwmerr.ErrIoError, dashOutput, err))
	}

	stem := strings.TrimSuffix(dashOutput, ".tsv")
	missing := &tsv.File{Records: res.Missing, Newline: newFile.Newline, TrailingNewline: newFile.TrailingNewline}
	missingPath := stem + "_faltando.tsv"
	if err := os.WriteFile(missingPath, tsv.WriteRecords(missing), 0o644); err != nil {
		exitf("%s", fmt.Errorf("%w: writing %s: %v", wwmerr.ErrIoError, missingPath, err))
	}

	if !dashNoReport {
		reportPath := stem + "_relatorio.txt"
		report := merge.Report(oldFile.Records, newFile.Records, res)
		if err := os.WriteFile(reportPath, []byte(report), 0o644); err != nil {
			exitf("%s", fmt.Errorf("%w: writing %s: %v", wwmerr.ErrIoError, reportPath, err))
		}
	}

	fmt.Printf("merged %d records: %d preserved, %d new, %d removed\n",
		res.Stats.TotalNew, res.Stats.Preserved, res.Stats.NewStrings, res.Stats.Removed)
}
