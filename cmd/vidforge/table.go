package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws rows under headers. Short rows are padded; aligns may
// be shorter than headers, in which case the rest align left.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: textAlign(aligns, i), AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// renderFields draws a two-column label/value table.
func renderFields(fields [][2]string) string {
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		rows = append(rows, []string{f[0], f[1]})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func toRow(values []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range width {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = ""
		}
	}
	return row
}

func textAlign(aligns []columnAlignment, i int) text.Align {
	if i < len(aligns) && aligns[i] == alignRight {
		return text.AlignRight
	}
	return text.AlignLeft
}
