// Package intake reads lists of parcel identifiers from CSV and XLSX files
// so they can be resolved without image extraction.
package intake

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/extract"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
)

// ErrUnsupportedList is returned for list files that are neither CSV nor XLSX.
var ErrUnsupportedList = eris.New("intake: unsupported list format, expected .csv or .xlsx")

// ErrNoKeyColumns is returned when the header names no identifier column.
var ErrNoKeyColumns = eris.New("intake: header has no assessor number, address or lat/lon columns")

var (
	latColumns = []string{"lat", "latitude"}
	lonColumns = []string{"lon", "lng", "long", "longitude"}
)

// CSVOptions configures CSV parsing.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // comment character (0 = none)
}

// ReadFile reads identifiers from a .csv or .xlsx file. The first row is the
// header; columns are matched with the same aliases as vision replies.
func ReadFile(ctx context.Context, path string) ([]model.IdentifierRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path) //nolint:gosec // operator-supplied list path
		if err != nil {
			return nil, eris.Wrap(err, "intake: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f, CSVOptions{})
	case ".xlsx":
		return ReadXLSX(ctx, path, "")
	default:
		return nil, eris.Wrapf(ErrUnsupportedList, "got %q", filepath.Base(path))
	}
}

// ReadCSV reads identifiers from CSV text.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]model.IdentifierRecord, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.FieldsPerRecord = -1 // allow ragged rows
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "intake: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "intake: read csv row")
		}
		rows = append(rows, record)
	}
	return Records(ctx, rows)
}

// ReadXLSX reads identifiers from a workbook sheet. An empty sheetName
// selects the first sheet.
func ReadXLSX(ctx context.Context, path, sheetName string) ([]model.IdentifierRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "intake: open xlsx")
	}

	var sheet *xlsx.Sheet
	switch {
	case sheetName != "":
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("intake: sheet %q not found", sheetName)
		}
		sheet = s
	case len(f.Sheets) == 0:
		return nil, eris.New("intake: workbook has no sheets")
	default:
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return Records(ctx, rows)
}

// columns maps record fields to header positions; -1 means absent.
type columns struct {
	assessor, address, county, state, lat, lon int
}

// Records converts a header row plus data rows into identifier records.
// Blank rows are skipped. A row with no assessor number or address but with
// lat/lon cells becomes a coordinates record. RawText carries the row as CSV.
func Records(ctx context.Context, rows [][]string) ([]model.IdentifierRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	cols := headerColumns(rows[0])
	if cols.assessor < 0 && cols.address < 0 && (cols.lat < 0 || cols.lon < 0) {
		return nil, ErrNoKeyColumns
	}

	var out []model.IdentifierRecord
	for n, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "intake: context cancelled")
		}
		if blank(row) {
			continue
		}

		rec := model.IdentifierRecord{
			AssessorNumber: cell(row, cols.assessor),
			Address:        cell(row, cols.address),
			County:         cell(row, cols.county),
			State:          cell(row, cols.state),
		}
		if !rec.HasSearchKey() && cols.lat >= 0 && cols.lon >= 0 {
			coords, err := extract.ParseCoordinates(cell(row, cols.lat) + "," + cell(row, cols.lon))
			if err != nil {
				return nil, eris.Wrapf(err, "intake: row %d", n+2)
			}
			coords.County, coords.State = rec.County, rec.State
			rec = coords
		}
		rec.RawText = strings.Join(row, ",")
		out = append(out, rec)
	}
	return out, nil
}

func headerColumns(header []string) columns {
	fold := cases.Fold()
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = fold.String(strings.TrimSpace(h))
	}

	find := func(aliases []string) int {
		for _, a := range aliases {
			a = fold.String(a)
			for i, name := range names {
				if name == a {
					return i
				}
			}
		}
		return -1
	}

	aliases := extract.DefaultKeyAliases
	return columns{
		assessor: find(aliases.AssessorNumber),
		address:  find(aliases.Address),
		county:   find(aliases.County),
		state:    find(aliases.State),
		lat:      find(latColumns),
		lon:      find(lonColumns),
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return model.CoerceString(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
