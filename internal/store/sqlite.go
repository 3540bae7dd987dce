package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/CoReason-AI/coreason-etl-epar/internal/gold"
	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
//
// Timestamps are stored as RFC3339Nano text and string lists as JSON, so a
// record survives a round trip bit-exact. That matters: the SCD2 merge
// compares reloaded history rows against fresh snapshots by hash.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS silver_history (
	product_number                 TEXT NOT NULL,
	category                       TEXT NOT NULL,
	medicine_name                  TEXT NOT NULL,
	marketing_authorisation_holder TEXT NOT NULL,
	active_substance               TEXT,
	therapeutic_area               TEXT,
	atc_code                       TEXT,
	generic                        INTEGER,
	biosimilar                     INTEGER,
	orphan                         INTEGER,
	conditional_approval           INTEGER,
	exceptional_circumstances      INTEGER,
	authorisation_status           TEXT,
	revision_date                  TEXT,
	url                            TEXT NOT NULL,
	base_procedure_id              TEXT,
	active_substance_list          TEXT,
	atc_code_list                  TEXT,
	status_normalized              TEXT,
	spor_mah_id                    TEXT,
	valid_from                     TEXT NOT NULL,
	valid_to                       TEXT,
	is_current                     INTEGER NOT NULL,
	row_hash                       TEXT NOT NULL,
	PRIMARY KEY (product_number, valid_from)
);

CREATE INDEX IF NOT EXISTS idx_silver_history_current ON silver_history(is_current);

CREATE TABLE IF NOT EXISTS dim_medicine (
	coreason_id       TEXT PRIMARY KEY,
	medicine_name     TEXT NOT NULL,
	base_procedure_id TEXT,
	brand_name        TEXT NOT NULL,
	is_biosimilar     INTEGER NOT NULL,
	is_generic        INTEGER NOT NULL,
	is_orphan         INTEGER NOT NULL,
	ema_product_url   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fact_regulatory_history (
	history_id  TEXT PRIMARY KEY,
	coreason_id TEXT NOT NULL,
	status      TEXT,
	valid_from  TEXT NOT NULL,
	valid_to    TEXT,
	is_current  INTEGER NOT NULL,
	spor_mah_id TEXT
);

CREATE TABLE IF NOT EXISTS bridge_medicine_features (
	coreason_id   TEXT NOT NULL,
	feature_type  TEXT NOT NULL,
	feature_value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fact_history_coreason ON fact_regulatory_history(coreason_id);
CREATE INDEX IF NOT EXISTS idx_bridge_coreason ON bridge_medicine_features(coreason_id);
CREATE INDEX IF NOT EXISTS idx_bridge_feature ON bridge_medicine_features(feature_type, feature_value);

CREATE TABLE IF NOT EXISTS run_log (
	id              TEXT PRIMARY KEY,
	started_at      TEXT NOT NULL,
	finished_at     TEXT NOT NULL,
	status          TEXT NOT NULL,
	snapshot_rows   INTEGER NOT NULL,
	history_rows    INTEGER NOT NULL,
	updated_rows    INTEGER NOT NULL,
	spor_match_rate REAL NOT NULL,
	error           TEXT
);

CREATE INDEX IF NOT EXISTS idx_run_log_started ON run_log(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadHistory(ctx context.Context) ([]model.SilverRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM silver_history ORDER BY product_number, valid_from`,
		strings.Join(silverColumns, ", "),
	)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load history")
	}
	defer rows.Close()

	var records []model.SilverRecord
	for rows.Next() {
		rec, err := scanSilver(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: load history iterate")
}

func (s *SQLiteStore) ReplaceHistory(ctx context.Context, records []model.SilverRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace history")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM silver_history`); err != nil {
		return eris.Wrap(err, "sqlite: clear history")
	}

	insert := fmt.Sprintf(
		`INSERT INTO silver_history (%s) VALUES (%s)`,
		strings.Join(silverColumns, ", "),
		placeholders(len(silverColumns)),
	)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare history insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, silverArgs(r)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert history row %s", r.ProductNumber)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace history")
}

func (s *SQLiteStore) ReplaceGold(ctx context.Context, tables gold.Tables) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace gold")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"dim_medicine", "fact_regulatory_history", "bridge_medicine_features"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s", table)
		}
	}

	dimInsert := fmt.Sprintf(`INSERT INTO dim_medicine (%s) VALUES (%s)`,
		strings.Join(dimColumns, ", "), placeholders(len(dimColumns)))
	for _, d := range tables.DimMedicine {
		_, err := tx.ExecContext(ctx, dimInsert,
			d.CoreasonID, d.MedicineName, d.BaseProcedureID, d.BrandName,
			d.IsBiosimilar, d.IsGeneric, d.IsOrphan, d.EMAProductURL,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert dim_medicine %s", d.CoreasonID)
		}
	}

	factInsert := fmt.Sprintf(`INSERT INTO fact_regulatory_history (%s) VALUES (%s)`,
		strings.Join(factColumns, ", "), placeholders(len(factColumns)))
	for _, f := range tables.FactRegulatoryHistory {
		_, err := tx.ExecContext(ctx, factInsert,
			f.HistoryID, f.CoreasonID, string(f.Status),
			encodeTime(f.ValidFrom), encodeTimePtr(f.ValidTo), f.IsCurrent, f.SporMAHID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert fact_regulatory_history %s", f.HistoryID)
		}
	}

	bridgeInsert := fmt.Sprintf(`INSERT INTO bridge_medicine_features (%s) VALUES (%s)`,
		strings.Join(bridgeColumns, ", "), placeholders(len(bridgeColumns)))
	for _, b := range tables.BridgeFeatures {
		if _, err := tx.ExecContext(ctx, bridgeInsert, b.CoreasonID, b.FeatureType, b.FeatureValue); err != nil {
			return eris.Wrapf(err, "sqlite: insert bridge feature %s", b.CoreasonID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace gold")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run model.RunLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_log (id, started_at, finished_at, status, snapshot_rows, history_rows, updated_rows, spor_match_rate, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, encodeTime(run.StartedAt), encodeTime(run.FinishedAt), string(run.Status),
		run.SnapshotRows, run.HistoryRows, run.UpdatedRows, run.SporMatchRate, run.Error,
	)
	return eris.Wrap(err, "sqlite: record run")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, snapshot_rows, history_rows, updated_rows, spor_match_rate, error
		 FROM run_log ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.RunLog
	for rows.Next() {
		var (
			r                 model.RunLog
			started, finished string
			status            string
			errMsg            sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &status, &r.SnapshotRows, &r.HistoryRows, &r.UpdatedRows, &r.SporMatchRate, &errMsg); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if r.StartedAt, err = decodeTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = decodeTime(finished); err != nil {
			return nil, err
		}
		r.Status = model.RunStatus(status)
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func silverArgs(r model.SilverRecord) []any {
	return []any{
		r.ProductNumber, r.Category, r.MedicineName, r.MarketingAuthorisationHolder,
		r.ActiveSubstance, r.TherapeuticArea, r.ATCCode,
		r.Generic, r.Biosimilar, r.Orphan, r.ConditionalApproval, r.ExceptionalCircumstances,
		r.AuthorisationStatus, encodeTimePtr(r.RevisionDate), r.URL,
		r.BaseProcedureID, encodeList(r.ActiveSubstanceList), encodeList(r.ATCCodeList), statusArg(r.StatusNormalized),
		r.SporMAHID, encodeTime(r.ValidFrom), encodeTimePtr(r.ValidTo), r.IsCurrent, r.RowHash,
	}
}

func scanSilver(rows *sql.Rows) (model.SilverRecord, error) {
	var (
		rec                                        model.SilverRecord
		activeSub, area, atc, authStatus, baseProc sql.NullString
		generic, biosim, orphan, condApp, excCirc  sql.NullBool
		revisionDate, subList, atcList, statusNorm sql.NullString
		sporID, validFrom, validTo                 sql.NullString
	)
	err := rows.Scan(
		&rec.ProductNumber, &rec.Category, &rec.MedicineName, &rec.MarketingAuthorisationHolder,
		&activeSub, &area, &atc,
		&generic, &biosim, &orphan, &condApp, &excCirc,
		&authStatus, &revisionDate, &rec.URL,
		&baseProc, &subList, &atcList, &statusNorm,
		&sporID, &validFrom, &validTo, &rec.IsCurrent, &rec.RowHash,
	)
	if err != nil {
		return rec, eris.Wrap(err, "sqlite: scan silver row")
	}

	rec.BaseProcedureID = nullStr(baseProc)
	rec.ActiveSubstance = nullStr(activeSub)
	rec.TherapeuticArea = nullStr(area)
	rec.ATCCode = nullStr(atc)
	rec.Generic = nullBool(generic)
	rec.Biosimilar = nullBool(biosim)
	rec.Orphan = nullBool(orphan)
	rec.ConditionalApproval = nullBool(condApp)
	rec.ExceptionalCircumstances = nullBool(excCirc)
	rec.AuthorisationStatus = nullStr(authStatus)
	rec.SporMAHID = nullStr(sporID)
	if statusNorm.Valid {
		rec.StatusNormalized = model.Status(statusNorm.String)
	}

	if rec.RevisionDate, err = decodeTimePtr(revisionDate); err != nil {
		return rec, err
	}
	if validFrom.Valid {
		if rec.ValidFrom, err = decodeTime(validFrom.String); err != nil {
			return rec, err
		}
	}
	if rec.ValidTo, err = decodeTimePtr(validTo); err != nil {
		return rec, err
	}
	if rec.ActiveSubstanceList, err = decodeList(subList); err != nil {
		return rec, err
	}
	if rec.ATCCodeList, err = decodeList(atcList); err != nil {
		return rec, err
	}
	return rec, nil
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullBool(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func statusArg(s model.Status) any {
	if s == "" {
		return nil
	}
	return string(s)
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse timestamp %q", s)
	}
	return t, nil
}

func decodeTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := decodeTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeList(l []string) any {
	if l == nil {
		return nil
	}
	data, _ := json.Marshal(l)
	return string(data)
}

func decodeList(v sql.NullString) ([]string, error) {
	if !v.Valid {
		return nil, nil
	}
	var l []string
	if err := json.Unmarshal([]byte(v.String), &l); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal list column")
	}
	if l == nil {
		l = []string{}
	}
	return l, nil
}
