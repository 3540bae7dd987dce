package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	err := f.Save(path)
	require.NoError(t, err)
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Category", "Medicine name"},
			{"Human", "Adakveo"},
			{"Human", "Abilify"},
		},
	})

	header, rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Category", "Medicine name"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Human", "Adakveo"}, rows[0])
	assert.Equal(t, []string{"Human", "Abilify"}, rows[1])
}

func TestReadXLSX_HeaderRowBelowNotices(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"European Medicines Agency"},
			{"Downloaded on 2024-01-01"},
			{"Category", "Medicine name"},
			{"Human", "Adakveo"},
		},
	})

	header, rows, err := ReadXLSX(path, XLSXOptions{HeaderRow: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Category", "Medicine name"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Human", "Adakveo"}, rows[0])
}

func TestReadXLSX_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"First":  {{"a", "b"}},
		"Second": {{"x", "y"}, {"1", "2"}},
	})

	header, rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Second"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"1", "2"}, rows[0])
}

func TestReadXLSX_SheetNameNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"a"}},
	})

	_, _, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"a"}},
	})

	_, _, err := ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_HeaderRowOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"a"}},
	})

	_, _, err := ReadXLSX(path, XLSXOptions{HeaderRow: 8})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
