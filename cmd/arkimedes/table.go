package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"arkimedes/internal/batch"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func newTableWriter(headers []string, aligns []columnAlignment) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}
	tw := newTableWriter(headers, aligns)
	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

// renderSummary tabulates a batch report's counts, colouring non-zero
// failure and skip counts when colorize is set.
func renderSummary(report batch.Report, colorize bool) string {
	tw := newTableWriter([]string{"Outcome", "Rows"}, []columnAlignment{alignLeft, alignRight})
	add := func(label string, n int, colors text.Colors) {
		value := strconv.Itoa(n)
		if colorize && n > 0 && colors != nil {
			value = colors.Sprint(value)
			label = colors.Sprint(label)
		}
		tw.AppendRow(table.Row{label, value})
	}
	s := report.Summary
	add("Succeeded", s.Succeeded, text.Colors{text.FgGreen})
	add("Failed", s.Failed, text.Colors{text.FgRed})
	add("Skipped", s.Skipped, text.Colors{text.FgYellow})
	tw.AppendFooter(table.Row{"Total", strconv.Itoa(s.Total)})
	title := "Batch " + report.Action.String()
	if report.DryRun {
		title += " (dry run)"
	}
	tw.SetTitle(title)
	return tw.Render()
}

// renderFailures lists failed and skipped rows.
func renderFailures(report batch.Report) string {
	failed := report.Failed()
	if len(failed) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(failed))
	for _, res := range failed {
		rows = append(rows, []string{
			strconv.Itoa(res.Row),
			res.Action.String(),
			string(res.Status),
			res.Class,
			truncateMessage(res.Message(), 80),
		})
	}
	return renderTable([]string{"Row", "Action", "Status", "Class", "Message"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft})
}

func truncateMessage(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
