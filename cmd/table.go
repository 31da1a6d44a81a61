package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/report"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// printResults writes the per-item table followed by the outcome counts.
func printResults(w io.Writer, results []model.ParcelResult) error {
	rows, err := report.Rows(results)
	if err != nil {
		return err
	}

	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		detail := r.Reason
		if r.Outcome == model.OutcomeSuccess {
			detail = fmt.Sprintf("%d files", len(r.Artifacts))
		}
		vertices := ""
		if r.Vertices > 0 {
			vertices = strconv.Itoa(r.Vertices)
		}
		out = append(out, []string{
			strconv.Itoa(r.Index + 1),
			string(r.Outcome),
			r.AssessorNumber,
			r.Address,
			r.CanonicalID,
			vertices,
			detail,
		})
	}

	fmt.Fprintln(w, renderTable(
		[]string{"#", "Outcome", "APN", "Address", "Parcel", "Vertices", "Detail"},
		out,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))

	s := model.Summarize(results)
	fmt.Fprintf(w, "%d processed: %d found, %d not found, %d failed\n", s.Total, s.Success, s.NotFound, s.Failed)
	return nil
}
