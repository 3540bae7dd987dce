package ingest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

var eparHeader = []string{
	"Category", "Medicine name", "Product number", "Marketing authorisation holder",
	"Active substance", "Therapeutic area", "ATC code", "Generic", "Biosimilar",
	"Orphan", "Conditional approval", "Exceptional circumstances",
	"Authorisation status", "Revision date", "URL",
}

func eparRow(category, name, number, holder string, overrides map[string]string) []string {
	row := map[string]string{
		"Category":                       category,
		"Medicine name":                  name,
		"Product number":                 number,
		"Marketing authorisation holder": holder,
		"Active substance":               "substanceX",
		"Therapeutic area":               "Oncology",
		"ATC code":                       "L01XC19",
		"Generic":                        "no",
		"Biosimilar":                     "no",
		"Orphan":                         "no",
		"Conditional approval":           "no",
		"Exceptional circumstances":      "no",
		"Authorisation status":           "Authorised",
		"Revision date":                  "",
		"URL":                            "https://www.ema.europa.eu/medicines/x",
	}
	for k, v := range overrides {
		row[k] = v
	}
	out := make([]string, len(eparHeader))
	for i, h := range eparHeader {
		out[i] = row[h]
	}
	return out
}

func writeEPARFile(t *testing.T, noticeRows int, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Medicines")
	require.NoError(t, err)

	for i := 0; i < noticeRows; i++ {
		row := sheet.AddRow()
		row.AddCell().SetString("European Medicines Agency notice")
	}
	header := sheet.AddRow()
	for _, h := range eparHeader {
		header.AddCell().SetString(h)
	}
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}

	path := filepath.Join(t.TempDir(), "medicines.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadEPAR_FiltersAndQuarantines(t *testing.T) {
	path := writeEPARFile(t, 0, [][]string{
		eparRow("Human", "Med A", "EMEA/H/C/001234", "Holder A", nil),
		eparRow("Veterinary", "Med Vet", "EMEA/V/C/009999", "Holder V", nil),
		eparRow("Human", "Med B", "INVALID_NUM", "Holder B", nil),
		eparRow("HUMAN", "Med C", "EMEA/H/C/005678", "Holder C", map[string]string{"Authorisation status": "Refused"}),
		eparRow("human", "Med D", "EMEA/H/C/000001", "Holder D", nil),
		eparRow("VETERINARY", "Med V2", "EMEA/V/C/008888", "Holder V2", nil),
		eparRow(" Human ", "Med Pad", "EMEA/H/C/009000", "Holder P", nil),
		eparRow("Human", "Med NoID", "", "Holder N", nil),
	})

	records, stats, err := ReadEPAR(path, 0)
	require.NoError(t, err)

	assert.Equal(t, 8, stats.TotalRows)
	assert.Equal(t, 6, stats.HumanRows)
	require.Len(t, stats.Quarantined, 2)
	require.Len(t, records, 4)

	var numbers []string
	for _, r := range records {
		numbers = append(numbers, r.ProductNumber)
	}
	assert.ElementsMatch(t, []string{
		"EMEA/H/C/001234", "EMEA/H/C/005678", "EMEA/H/C/000001", "EMEA/H/C/009000",
	}, numbers)

	assert.Equal(t, "INVALID_NUM", stats.Quarantined[0].ProductNumber)
	assert.Contains(t, stats.Quarantined[0].Reason, "invalid EMA product number")
	assert.Equal(t, "", stats.Quarantined[1].ProductNumber)
	assert.Contains(t, stats.Quarantined[1].Reason, "missing product number")
}

func TestReadEPAR_HeaderBelowNotices(t *testing.T) {
	path := writeEPARFile(t, EPARHeaderRow, [][]string{
		eparRow("Human", "Med A", "EMEA/H/C/001234", "Holder A", nil),
	})

	records, _, err := ReadEPAR(path, EPARHeaderRow)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Med A", records[0].MedicineName)
}

func TestReadEPAR_FieldParsing(t *testing.T) {
	path := writeEPARFile(t, 0, [][]string{
		eparRow("Human", "Med A", "EMEA/H/C/001234", "Holder A", map[string]string{
			"Generic":            "Yes",
			"Orphan":             "true",
			"Conditional approval": "",
			"Revision date":      "2024-03-15",
			"Therapeutic area":   "",
		}),
	})

	records, _, err := ReadEPAR(path, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	require.NotNil(t, rec.Generic)
	assert.True(t, *rec.Generic)
	require.NotNil(t, rec.Orphan)
	assert.True(t, *rec.Orphan)
	assert.Nil(t, rec.ConditionalApproval)
	assert.Nil(t, rec.TherapeuticArea)
	require.NotNil(t, rec.RevisionDate)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *rec.RevisionDate)
}

func TestReadEPAR_QuarantinesBadDateAndFlag(t *testing.T) {
	path := writeEPARFile(t, 0, [][]string{
		eparRow("Human", "Med A", "EMEA/H/C/001234", "Holder A", map[string]string{"Revision date": "not-a-date"}),
		eparRow("Human", "Med B", "EMEA/H/C/001235", "Holder B", map[string]string{"Generic": "maybe"}),
		eparRow("Human", "Med C", "EMEA/H/C/001236", "", nil),
	})

	records, stats, err := ReadEPAR(path, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	require.Len(t, stats.Quarantined, 3)
	assert.Contains(t, stats.Quarantined[0].Reason, "unparseable date")
	assert.Contains(t, stats.Quarantined[1].Reason, "unrecognized boolean")
	assert.Contains(t, stats.Quarantined[2].Reason, "missing marketing authorisation holder")
}

func TestReadEPAR_MissingCategoryColumn(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Medicines")
	require.NoError(t, err)
	row := sheet.AddRow()
	row.AddCell().SetString("Medicine name")
	path := filepath.Join(t.TempDir(), "medicines.xlsx")
	require.NoError(t, f.Save(path))

	_, _, err = ReadEPAR(path, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category column not found")
}
