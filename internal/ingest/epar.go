// Package ingest turns the raw EPAR index spreadsheet and the SPOR
// organisation export into typed records. Rows that fail validation are
// quarantined: counted, logged, and kept out of the pipeline.
package ingest

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/CoReason-AI/coreason-etl-epar/internal/fetcher"
	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
)

// EPARHeaderRow is the zero-based index of the column header row in the
// published EPAR index sheet; the rows above it are download notices.
const EPARHeaderRow = 8

// QuarantinedRow records one EPAR row that failed validation.
type QuarantinedRow struct {
	ProductNumber string
	Reason        string
}

// EPARStats summarizes one EPAR ingestion.
type EPARStats struct {
	TotalRows   int
	HumanRows   int
	Quarantined []QuarantinedRow
}

// acceptedDateLayouts covers the formats the revision date column has been
// published in.
var acceptedDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	time.RFC3339,
}

// ReadEPAR parses the EPAR index spreadsheet into product records. Rows whose
// category is not Human (case-insensitive, trimmed) are filtered out; Human
// rows that fail validation are quarantined. An absent category column is an
// error, not a quarantine, since it means the file layout changed.
func ReadEPAR(path string, headerRow int) ([]model.ProductRecord, EPARStats, error) {
	header, rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{HeaderRow: headerRow})
	if err != nil {
		return nil, EPARStats{}, eris.Wrap(err, "ingest: read EPAR index")
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeHeader(h)] = i
	}
	if _, ok := cols[model.ColCategory]; !ok {
		return nil, EPARStats{}, eris.New("ingest: category column not found in EPAR index")
	}

	var (
		records []model.ProductRecord
		stats   EPARStats
	)
	for _, row := range rows {
		stats.TotalRows++

		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		if !strings.EqualFold(cell(model.ColCategory), "Human") {
			continue
		}
		stats.HumanRows++

		rec, err := buildRecord(cell)
		if err != nil {
			q := QuarantinedRow{ProductNumber: cell(model.ColProductNumber), Reason: err.Error()}
			stats.Quarantined = append(stats.Quarantined, q)
			zap.L().Warn("EPAR row quarantined",
				zap.String("product_number", q.ProductNumber),
				zap.String("reason", q.Reason),
			)
			continue
		}
		records = append(records, rec)
	}

	zap.L().Info("EPAR index ingested",
		zap.Int("total_rows", stats.TotalRows),
		zap.Int("human_rows", stats.HumanRows),
		zap.Int("accepted", len(records)),
		zap.Int("quarantined", len(stats.Quarantined)),
	)
	return records, stats, nil
}

func buildRecord(cell func(string) string) (model.ProductRecord, error) {
	var rec model.ProductRecord

	rec.Category = "Human"
	rec.ProductNumber = cell(model.ColProductNumber)
	if rec.ProductNumber == "" {
		return rec, eris.New("missing product number")
	}
	if !strings.HasPrefix(rec.ProductNumber, "EMEA/") {
		return rec, eris.Errorf("invalid EMA product number format: %q", rec.ProductNumber)
	}

	rec.MedicineName = cell(model.ColMedicineName)
	if rec.MedicineName == "" {
		return rec, eris.New("missing medicine name")
	}
	rec.MarketingAuthorisationHolder = cell(model.ColMAH)
	if rec.MarketingAuthorisationHolder == "" {
		return rec, eris.New("missing marketing authorisation holder")
	}
	rec.AuthorisationStatus = optString(cell(model.ColAuthorisationStatus))
	if rec.AuthorisationStatus == nil {
		return rec, eris.New("missing authorisation status")
	}
	rec.URL = cell(model.ColURL)
	if rec.URL == "" {
		return rec, eris.New("missing url")
	}

	rec.ActiveSubstance = optString(cell(model.ColActiveSubstance))
	rec.TherapeuticArea = optString(cell(model.ColTherapeuticArea))
	rec.ATCCode = optString(cell(model.ColATCCode))

	for _, f := range []struct {
		col  string
		dest **bool
	}{
		{model.ColGeneric, &rec.Generic},
		{model.ColBiosimilar, &rec.Biosimilar},
		{model.ColOrphan, &rec.Orphan},
		{model.ColConditionalApproval, &rec.ConditionalApproval},
		{model.ColExceptionalCircumstances, &rec.ExceptionalCircumstances},
	} {
		b, err := parseFlag(cell(f.col))
		if err != nil {
			return rec, eris.Wrapf(err, "column %s", f.col)
		}
		*f.dest = b
	}

	ts, err := parseDate(cell(model.ColRevisionDate))
	if err != nil {
		return rec, eris.Wrap(err, "column revision_date")
	}
	rec.RevisionDate = ts

	return rec, nil
}

// normalizeHeader maps a published column header to its snake_case name.
func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseFlag(s string) (*bool, error) {
	switch strings.ToLower(s) {
	case "":
		return nil, nil
	case "yes", "true", "1", "on":
		v := true
		return &v, nil
	case "no", "false", "0", "off":
		v := false
		return &v, nil
	default:
		return nil, eris.Errorf("unrecognized boolean %q", s)
	}
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range acceptedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, eris.Errorf("unparseable date %q", s)
}
