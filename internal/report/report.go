// Package report renders batch results as flat rows and xlsx workbooks.
package report

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
)

// Sheet names in the workbook.
const (
	ResultsSheet = "Results"
	SummarySheet = "Summary"
)

// Header is the column order of the Results sheet.
var Header = []string{
	"index", "outcome", "reason",
	"assessor_number", "address", "county", "state", "confidence",
	"canonical_id", "vertices", "wkt", "artifacts",
}

// Row is one flattened result.
type Row struct {
	Index          int
	Outcome        model.Outcome
	Reason         string
	AssessorNumber string
	Address        string
	County         string
	State          string
	Confidence     string
	CanonicalID    string
	Vertices       int
	WKT            string
	Artifacts      []string
}

// Strings returns the row in Header order.
func (r Row) Strings() []string {
	return []string{
		strconv.Itoa(r.Index),
		string(r.Outcome),
		r.Reason,
		r.AssessorNumber,
		r.Address,
		r.County,
		r.State,
		r.Confidence,
		r.CanonicalID,
		strconv.Itoa(r.Vertices),
		r.WKT,
		strings.Join(r.Artifacts, ";"),
	}
}

// Rows flattens results. Identifier fields come from the boundary when one
// was matched, otherwise from what was extracted.
func Rows(results []model.ParcelResult) ([]Row, error) {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		row := Row{
			Index:          r.Index,
			Outcome:        r.Outcome,
			Reason:         r.Reason,
			AssessorNumber: r.Identifier.AssessorNumber,
			Address:        r.Identifier.Address,
			County:         r.Identifier.County,
			State:          r.Identifier.State,
			Confidence:     r.Identifier.Confidence,
			Artifacts:      r.Artifacts,
		}

		if b := r.Boundary; b != nil {
			row.CanonicalID = b.CanonicalID
			row.Vertices = len(b.Vertices)
			row.AssessorNumber = firstNonEmpty(b.AssessorNumber, row.AssessorNumber)
			row.Address = firstNonEmpty(b.Address, row.Address)
			row.County = firstNonEmpty(b.County, row.County)
			row.State = firstNonEmpty(b.State, row.State)
			if b.HasGeometry() {
				text, err := wkt.Marshal(b.Geometry)
				if err != nil {
					return nil, eris.Wrapf(err, "report: encode wkt for %s", b.CanonicalID)
				}
				row.WKT = text
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteXLSX writes a Results sheet with one row per result and a Summary
// sheet with the run ID and outcome counts.
func WriteXLSX(path string, runID uuid.UUID, results []model.ParcelResult) error {
	rows, err := Rows(results)
	if err != nil {
		return err
	}

	f := xlsx.NewFile()

	sheet, err := f.AddSheet(ResultsSheet)
	if err != nil {
		return eris.Wrap(err, "report: add results sheet")
	}
	addRow(sheet, Header)
	for _, row := range rows {
		xr := sheet.AddRow()
		for i, v := range row.Strings() {
			cell := xr.AddCell()
			switch Header[i] {
			case "index":
				cell.SetInt(row.Index)
			case "vertices":
				cell.SetInt(row.Vertices)
			default:
				cell.SetString(v)
			}
		}
	}

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	s := model.Summarize(results)
	addRow(summary, []string{"run_id", runID.String()})
	for _, kv := range []struct {
		name  string
		count int
	}{
		{"total", s.Total},
		{"success", s.Success},
		{"not_found", s.NotFound},
		{"failed", s.Failed},
	} {
		xr := summary.AddRow()
		xr.AddCell().SetString(kv.name)
		xr.AddCell().SetInt(kv.count)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // report directory is user-facing output
		return eris.Wrap(err, "report: create report directory")
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
