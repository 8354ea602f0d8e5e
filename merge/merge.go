// Licensed under the MIT License. See LICENSE for details.

// Package merge implements the three-way TSV reconciliation (spec.md
// §4.F): an older translated records file and a freshly extracted
// original records file are combined into an updated translation,
// keeping the new file's ordering and ids authoritative.
package merge

import (
	"fmt"
	"strings"

	"github.com/rodrigomiquilino/wwm-toolchain/tsv"
)

// Stats summarizes one merge run (spec.md §4.F point 4).
type Stats struct {
	TotalOld   int
	TotalNew   int
	Preserved  int
	NewStrings int
	Removed    int
}

// Result is everything one merge run produces.
type Result struct {
	Merged   []tsv.Record
	Missing  []tsv.Record // records still carrying the original (untranslated) text
	Stats    Stats
	AddedIDs []tsv.ID // ids present in new but not old, in new's order
	RemovedIDs []tsv.ID // ids present in old but not new, in old's order
}

// Merge reconciles oldTranslated against newOriginal. newOriginal's
// ordering is authoritative for the output; a translation from
// oldTranslated survives only if present and non-whitespace after
// trimming (spec.md §4.F step 2).
func Merge(oldTranslated, newOriginal []tsv.Record) Result {
	oldByID := make(map[tsv.ID]string, len(oldTranslated))
	for _, r := range oldTranslated {
		oldByID[r.ID] = r.Text
	}
	newIDs := make(map[tsv.ID]bool, len(newOriginal))

	var res Result
	res.Merged = make([]tsv.Record, 0, len(newOriginal))
	for _, r := range newOriginal {
		newIDs[r.ID] = true
		if translated, ok := oldByID[r.ID]; ok && strings.TrimSpace(translated) != "" {
			res.Merged = append(res.Merged, tsv.Record{ID: r.ID, Text: translated})
			res.Stats.Preserved++
		} else {
			res.Merged = append(res.Merged, tsv.Record{ID: r.ID, Text: r.Text})
			res.Stats.NewStrings++
			res.Missing = append(res.Missing, tsv.Record{ID: r.ID, Text: r.Text})
			if _, inOld := oldByID[r.ID]; !inOld {
				res.AddedIDs = append(res.AddedIDs, r.ID)
			}
		}
	}

	for _, r := range oldTranslated {
		if !newIDs[r.ID] {
			res.RemovedIDs = append(res.RemovedIDs, r.ID)
		}
	}

	res.Stats.TotalOld = len(oldTranslated)
	res.Stats.TotalNew = len(newOriginal)
	res.Stats.Removed = len(res.RemovedIDs)
	return res
}

const (
	maxReportIDs  = 50
	previewLength = 60
)

// Report renders a human-readable text report (spec.md §4.F point 4):
// summary counters plus up to 50 added and 50 removed ids with a 60-char
// text preview each.
func Report(oldTranslated, newOriginal []tsv.Record, res Result) string {
	oldByID := make(map[tsv.ID]string, len(oldTranslated))
	for _, r := range oldTranslated {
		oldByID[r.ID] = r.Text
	}
	newByID := make(map[tsv.ID]string, len(newOriginal))
	for _, r := range newOriginal {
		newByID[r.ID] = r.Text
	}

	var b strings.Builder
	fmt.Fprintf(&b, "total old: %d\n", res.Stats.TotalOld)
	fmt.Fprintf(&b, "total new: %d\n", res.Stats.TotalNew)
	fmt.Fprintf(&b, "preserved: %d\n", res.Stats.Preserved)
	fmt.Fprintf(&b, "new strings: %d\n", res.Stats.NewStrings)
	fmt.Fprintf(&b, "removed: %d\n", res.Stats.Removed)

	b.WriteString("\nadded:\n")
	for i, id := range res.AddedIDs {
		if i >= maxReportIDs {
			fmt.Fprintf(&b, "  ... %d more\n", len(res.AddedIDs)-maxReportIDs)
			break
		}
		fmt.Fprintf(&b, "  %s  %s\n", id.String(), preview(newByID[id]))
	}

	b.WriteString("\nremoved:\n")
	for i, id := range res.RemovedIDs {
		if i >= maxReportIDs {
			fmt.Fprintf(&b, "  ... %d more\n", len(res.RemovedIDs)-maxReportIDs)
			break
		}
		fmt.Fprintf(&b, "  %s  %s\n", id.String(), preview(oldByID[id]))
	}

	return b.String()
}

// preview collapses a text into a single line, truncated to 60 runes,
// rendering an empty string as "(empty)" (spec.md §4.F point 4).
func preview(text string) string {
	flat := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, text)
	if flat == "" {
		return "(empty)"
	}
	runes := []rune(flat)
	if len(runes) > previewLength {
		return string(runes[:previewLength]) + "..."
	}
	return flat
}
