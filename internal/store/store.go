// Package store persists the silver history, the gold star schema, and the
// run log. Two implementations exist: SQLite for local single-file use and
// PostgreSQL for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/CoReason-AI/coreason-etl-epar/internal/gold"
	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
)

// Store defines the persistence interface for the ETL pipeline.
type Store interface {
	// Silver history
	LoadHistory(ctx context.Context) ([]model.SilverRecord, error)
	ReplaceHistory(ctx context.Context, records []model.SilverRecord) error

	// Gold layer
	ReplaceGold(ctx context.Context, tables gold.Tables) error

	// Run log
	RecordRun(ctx context.Context, run model.RunLog) error
	ListRuns(ctx context.Context, limit int) ([]model.RunLog, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a store backend.
type Config struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	Path        string     `yaml:"path" mapstructure:"path"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open creates the store named by the config. Recognized drivers are
// "sqlite" and "postgres".
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &cfg.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// silverColumns is the column order shared by both backends for the silver
// history table.
var silverColumns = []string{
	"product_number", "category", "medicine_name", "marketing_authorisation_holder",
	"active_substance", "therapeutic_area", "atc_code",
	"generic", "biosimilar", "orphan", "conditional_approval", "exceptional_circumstances",
	"authorisation_status", "revision_date", "url",
	"base_procedure_id", "active_substance_list", "atc_code_list", "status_normalized",
	"spor_mah_id", "valid_from", "valid_to", "is_current", "row_hash",
}

var dimColumns = []string{
	"coreason_id", "medicine_name", "base_procedure_id", "brand_name",
	"is_biosimilar", "is_generic", "is_orphan", "ema_product_url",
}

var factColumns = []string{
	"history_id", "coreason_id", "status", "valid_from", "valid_to", "is_current", "spor_mah_id",
}

var bridgeColumns = []string{"coreason_id", "feature_type", "feature_value"}
