package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/CoReason-AI/coreason-etl-epar/internal/db"
	"github.com/CoReason-AI/coreason-etl-epar/internal/gold"
	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS silver_history (
	product_number                 TEXT NOT NULL,
	category                       TEXT NOT NULL,
	medicine_name                  TEXT NOT NULL,
	marketing_authorisation_holder TEXT NOT NULL,
	active_substance               TEXT,
	therapeutic_area               TEXT,
	atc_code                       TEXT,
	generic                        BOOLEAN,
	biosimilar                     BOOLEAN,
	orphan                         BOOLEAN,
	conditional_approval           BOOLEAN,
	exceptional_circumstances      BOOLEAN,
	authorisation_status           TEXT,
	revision_date                  TIMESTAMPTZ,
	url                            TEXT NOT NULL,
	base_procedure_id              TEXT,
	active_substance_list          TEXT[],
	atc_code_list                  TEXT[],
	status_normalized              TEXT,
	spor_mah_id                    TEXT,
	valid_from                     TIMESTAMPTZ NOT NULL,
	valid_to                       TIMESTAMPTZ,
	is_current                     BOOLEAN NOT NULL,
	row_hash                       TEXT NOT NULL,
	PRIMARY KEY (product_number, valid_from)
);

CREATE INDEX IF NOT EXISTS idx_silver_history_current ON silver_history(is_current);

CREATE TABLE IF NOT EXISTS dim_medicine (
	coreason_id       TEXT PRIMARY KEY,
	medicine_name     TEXT NOT NULL,
	base_procedure_id TEXT,
	brand_name        TEXT NOT NULL,
	is_biosimilar     BOOLEAN NOT NULL,
	is_generic        BOOLEAN NOT NULL,
	is_orphan         BOOLEAN NOT NULL,
	ema_product_url   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fact_regulatory_history (
	history_id  TEXT PRIMARY KEY,
	coreason_id TEXT NOT NULL,
	status      TEXT,
	valid_from  TIMESTAMPTZ NOT NULL,
	valid_to    TIMESTAMPTZ,
	is_current  BOOLEAN NOT NULL,
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
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL,
	status          TEXT NOT NULL,
	snapshot_rows   INTEGER NOT NULL,
	history_rows    INTEGER NOT NULL,
	updated_rows    INTEGER NOT NULL,
	spor_match_rate DOUBLE PRECISION NOT NULL,
	error           TEXT
);

CREATE INDEX IF NOT EXISTS idx_run_log_started ON run_log(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) LoadHistory(ctx context.Context) ([]model.SilverRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM silver_history ORDER BY product_number, valid_from`,
		strings.Join(silverColumns, ", "),
	)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load history")
	}
	defer rows.Close()

	var records []model.SilverRecord
	for rows.Next() {
		var rec model.SilverRecord
		var status *string
		err := rows.Scan(
			&rec.ProductNumber, &rec.Category, &rec.MedicineName, &rec.MarketingAuthorisationHolder,
			&rec.ActiveSubstance, &rec.TherapeuticArea, &rec.ATCCode,
			&rec.Generic, &rec.Biosimilar, &rec.Orphan, &rec.ConditionalApproval, &rec.ExceptionalCircumstances,
			&rec.AuthorisationStatus, &rec.RevisionDate, &rec.URL,
			&rec.BaseProcedureID, &rec.ActiveSubstanceList, &rec.ATCCodeList, &status,
			&rec.SporMAHID, &rec.ValidFrom, &rec.ValidTo, &rec.IsCurrent, &rec.RowHash,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan silver row")
		}
		if status != nil {
			rec.StatusNormalized = model.Status(*status)
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: load history iterate")
}

func (s *PostgresStore) ReplaceHistory(ctx context.Context, records []model.SilverRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace history")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM silver_history`); err != nil {
		return eris.Wrap(err, "postgres: clear history")
	}

	copyRows := make([][]any, 0, len(records))
	for _, r := range records {
		copyRows = append(copyRows, []any{
			r.ProductNumber, r.Category, r.MedicineName, r.MarketingAuthorisationHolder,
			r.ActiveSubstance, r.TherapeuticArea, r.ATCCode,
			r.Generic, r.Biosimilar, r.Orphan, r.ConditionalApproval, r.ExceptionalCircumstances,
			r.AuthorisationStatus, r.RevisionDate, r.URL,
			r.BaseProcedureID, r.ActiveSubstanceList, r.ATCCodeList, statusArg(r.StatusNormalized),
			r.SporMAHID, r.ValidFrom, r.ValidTo, r.IsCurrent, r.RowHash,
		})
	}
	if _, err := db.CopyFromTx(ctx, tx, "silver_history", silverColumns, copyRows); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace history")
}

func (s *PostgresStore) ReplaceGold(ctx context.Context, tables gold.Tables) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace gold")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, table := range []string{"dim_medicine", "fact_regulatory_history", "bridge_medicine_features"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table); err != nil {
			return eris.Wrapf(err, "postgres: clear %s", table)
		}
	}

	dimRows := make([][]any, 0, len(tables.DimMedicine))
	for _, d := range tables.DimMedicine {
		dimRows = append(dimRows, []any{
			d.CoreasonID, d.MedicineName, d.BaseProcedureID, d.BrandName,
			d.IsBiosimilar, d.IsGeneric, d.IsOrphan, d.EMAProductURL,
		})
	}
	if _, err := db.CopyFromTx(ctx, tx, "dim_medicine", dimColumns, dimRows); err != nil {
		return err
	}

	factRows := make([][]any, 0, len(tables.FactRegulatoryHistory))
	for _, f := range tables.FactRegulatoryHistory {
		factRows = append(factRows, []any{
			f.HistoryID, f.CoreasonID, string(f.Status), f.ValidFrom, f.ValidTo, f.IsCurrent, f.SporMAHID,
		})
	}
	if _, err := db.CopyFromTx(ctx, tx, "fact_regulatory_history", factColumns, factRows); err != nil {
		return err
	}

	bridgeRows := make([][]any, 0, len(tables.BridgeFeatures))
	for _, b := range tables.BridgeFeatures {
		bridgeRows = append(bridgeRows, []any{b.CoreasonID, b.FeatureType, b.FeatureValue})
	}
	if _, err := db.CopyFromTx(ctx, tx, "bridge_medicine_features", bridgeColumns, bridgeRows); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace gold")
}

func (s *PostgresStore) RecordRun(ctx context.Context, run model.RunLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_log (id, started_at, finished_at, status, snapshot_rows, history_rows, updated_rows, spor_match_rate, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.StartedAt, run.FinishedAt, string(run.Status),
		run.SnapshotRows, run.HistoryRows, run.UpdatedRows, run.SporMatchRate, run.Error,
	)
	return eris.Wrap(err, "postgres: record run")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, finished_at, status, snapshot_rows, history_rows, updated_rows, spor_match_rate, error
		 FROM run_log ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunLog
	for rows.Next() {
		var r model.RunLog
		var status string
		var errMsg *string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &status, &r.SnapshotRows, &r.HistoryRows, &r.UpdatedRows, &r.SporMatchRate, &errMsg); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		if errMsg != nil {
			r.Error = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
