package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	// HeaderRow is the zero-based index of the column header row. The EPAR
	// index sheet carries several notice rows before the real header.
	HeaderRow int
}

// ReadXLSX reads an XLSX sheet and returns the header row and all data rows
// below it as string slices.
func ReadXLSX(path string, opts XLSXOptions) (header []string, rows [][]string, err error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, nil, err
	}

	if opts.HeaderRow >= len(sheet.Rows) {
		return nil, nil, eris.Errorf("xlsx: header row %d out of range (sheet has %d rows)", opts.HeaderRow, len(sheet.Rows))
	}

	header = rowToStrings(sheet.Rows[opts.HeaderRow])
	for _, row := range sheet.Rows[opts.HeaderRow+1:] {
		rows = append(rows, rowToStrings(row))
	}

	return header, rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
