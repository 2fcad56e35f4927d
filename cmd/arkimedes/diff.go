package main

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// renderRecordDiff shows a line diff between two encoded records. Unchanged
// lines are indented, removed lines start with "- " and added ones "+ ".
func renderRecordDiff(before, after string, colorize bool) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix, color := "  ", ""
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix, color = "+ ", ansiGreen
		case diffmatchpatch.DiffDelete:
			prefix, color = "- ", ansiRed
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			line = prefix + strings.TrimSuffix(line, "\n")
			if colorize && color != "" {
				line = color + line + ansiReset
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
