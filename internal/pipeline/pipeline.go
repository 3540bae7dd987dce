// Package pipeline orchestrates one ETL run end to end: download the EPAR
// index and SPOR export, ingest them, apply the silver transformations
// (cleaning, SCD2 merge, holder resolution), rebuild the gold layer, and
// persist everything with a run log entry.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/CoReason-AI/coreason-etl-epar/internal/enrich"
	"github.com/CoReason-AI/coreason-etl-epar/internal/fetcher"
	"github.com/CoReason-AI/coreason-etl-epar/internal/gold"
	"github.com/CoReason-AI/coreason-etl-epar/internal/ingest"
	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
	"github.com/CoReason-AI/coreason-etl-epar/internal/silver"
	"github.com/CoReason-AI/coreason-etl-epar/internal/store"
	"github.com/CoReason-AI/coreason-etl-epar/internal/table"
)

// HashColumns are the business columns tracked for change detection. The
// normalized columns stand in for their raw counterparts so format noise in
// the source never opens a new version.
var HashColumns = []string{
	model.ColStatusNormalized,
	model.ColMedicineName,
	model.ColMAH,
	model.ColActiveSubstanceList,
	model.ColATCCodeList,
	model.ColTherapeuticArea,
	model.ColGeneric,
	model.ColBiosimilar,
	model.ColOrphan,
	model.ColConditionalApproval,
	model.ColExceptionalCircumstances,
	model.ColURL,
}

// Config holds the source endpoints and working directory of a pipeline.
type Config struct {
	WorkDir   string `yaml:"work_dir" mapstructure:"work_dir"`
	EPARURL   string `yaml:"epar_url" mapstructure:"epar_url"`
	SPORURL   string `yaml:"spor_url" mapstructure:"spor_url"`
	HeaderRow int    `yaml:"header_row" mapstructure:"header_row"`
}

// Pipeline wires the fetcher and store into a runnable ETL.
type Pipeline struct {
	store   store.Store
	fetcher fetcher.Fetcher
	cfg     Config
	now     func() time.Time
}

// New creates a Pipeline. Zero-value config fields fall back to the
// published EMA endpoints and the standard index layout.
func New(st store.Store, f fetcher.Fetcher, cfg Config) *Pipeline {
	if cfg.EPARURL == "" {
		cfg.EPARURL = fetcher.URLEPARIndex
	}
	if cfg.SPORURL == "" {
		cfg.SPORURL = fetcher.URLSPORExport
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = ".coreason_data"
	}
	return &Pipeline{store: st, fetcher: f, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Download fetches both source files concurrently and returns their local
// paths.
func (p *Pipeline) Download(ctx context.Context) (eparPath, sporPath string, err error) {
	eparPath = filepath.Join(p.cfg.WorkDir, "epar_index.xlsx")
	sporPath = filepath.Join(p.cfg.WorkDir, "spor_export.zip")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := p.fetcher.DownloadToFile(gctx, p.cfg.EPARURL, eparPath)
		return err
	})
	g.Go(func() error {
		_, err := p.fetcher.DownloadToFile(gctx, p.cfg.SPORURL, sporPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", "", eris.Wrap(err, "pipeline: download sources")
	}
	return eparPath, sporPath, nil
}

// Run executes a full pipeline run: download, ingest, transform, persist.
// Failed runs are recorded in the run log before the error is returned.
func (p *Pipeline) Run(ctx context.Context) (model.RunLog, error) {
	started := p.now()

	eparPath, sporPath, err := p.Download(ctx)
	if err != nil {
		return p.fail(ctx, started, err)
	}
	return p.transformFiles(ctx, eparPath, sporPath, started)
}

// TransformFiles ingests already-downloaded source files and runs the
// transformation phase. Useful when the download happened out of band.
func (p *Pipeline) TransformFiles(ctx context.Context, eparPath, sporPath string) (model.RunLog, error) {
	return p.transformFiles(ctx, eparPath, sporPath, p.now())
}

func (p *Pipeline) transformFiles(ctx context.Context, eparPath, sporPath string, started time.Time) (model.RunLog, error) {
	records, _, err := ingest.ReadEPAR(eparPath, p.headerRow())
	if err != nil {
		return p.fail(ctx, started, err)
	}
	registry, err := ingest.ReadSPOR(ctx, sporPath, p.cfg.WorkDir)
	if err != nil {
		return p.fail(ctx, started, err)
	}

	run, err := p.transform(ctx, records, registry, started)
	if err != nil {
		return p.fail(ctx, started, err)
	}
	return run, nil
}

// Transform runs the transformation phase on in-memory records.
func (p *Pipeline) Transform(ctx context.Context, records []model.ProductRecord, registry []model.RegistryEntry) (model.RunLog, error) {
	started := p.now()
	run, err := p.transform(ctx, records, registry, started)
	if err != nil {
		return p.fail(ctx, started, err)
	}
	return run, nil
}

func (p *Pipeline) transform(ctx context.Context, records []model.ProductRecord, registry []model.RegistryEntry, started time.Time) (model.RunLog, error) {
	run := model.RunLog{
		ID:           uuid.New().String(),
		StartedAt:    started,
		SnapshotRows: len(records),
	}

	// An empty snapshot is far more likely a broken download than a mass
	// withdrawal; skip the merge instead of closing every open version.
	if len(records) == 0 {
		zap.L().Warn("empty EPAR snapshot, skipping transformations")
		run.FinishedAt = p.now()
		run.Status = model.RunSucceeded
		if err := p.store.RecordRun(ctx, run); err != nil {
			return run, err
		}
		return run, nil
	}

	history, err := p.store.LoadHistory(ctx)
	if err != nil {
		return run, err
	}

	cleaned := silver.CleanAll(records)

	snapshot := table.New(model.SnapshotSchema())
	for _, rec := range cleaned {
		snapshot.Append(rec.Row())
	}
	historyTable := table.New(model.HistorySchema())
	for _, rec := range history {
		historyTable.Append(rec.Row())
	}

	ingestionTS := started
	merged, err := silver.Merge(snapshot, historyTable, silver.MergeParams{
		Key:         model.ColProductNumber,
		IngestionTS: ingestionTS,
		HashColumns: HashColumns,
	})
	if err != nil {
		return run, eris.Wrap(err, "pipeline: SCD2 merge")
	}

	updates := 0
	for _, r := range merged.Rows {
		if t, ok := r[model.ColValidFrom].(time.Time); ok && t.Equal(ingestionTS) {
			updates++
		}
	}
	zap.L().Info("SCD updates count",
		zap.Int("scd_updates_count", updates),
		zap.String("metric", "scd_updates_count"),
	)

	enriched, stats := enrich.Attach(merged, enrich.FilterMAH(registry))

	silverRecords := make([]model.SilverRecord, 0, enriched.Len())
	for _, r := range enriched.Rows {
		silverRecords = append(silverRecords, model.SilverFromRow(r))
	}

	if err := p.store.ReplaceHistory(ctx, silverRecords); err != nil {
		return run, err
	}
	zap.L().Info("silver history updated", zap.Int("rows", len(silverRecords)))

	goldTables := gold.Build(silverRecords)
	if err := p.store.ReplaceGold(ctx, goldTables); err != nil {
		return run, err
	}
	zap.L().Info("gold layer rebuilt",
		zap.Int("dim_medicine", len(goldTables.DimMedicine)),
		zap.Int("fact_regulatory_history", len(goldTables.FactRegulatoryHistory)),
		zap.Int("bridge_medicine_features", len(goldTables.BridgeFeatures)),
	)

	run.FinishedAt = p.now()
	run.Status = model.RunSucceeded
	run.HistoryRows = len(silverRecords)
	run.UpdatedRows = updates
	run.SporMatchRate = stats.MatchRate()

	if err := p.store.RecordRun(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

// fail records a failed run entry best-effort and returns the original error.
func (p *Pipeline) fail(ctx context.Context, started time.Time, cause error) (model.RunLog, error) {
	run := model.RunLog{
		ID:         uuid.New().String(),
		StartedAt:  started,
		FinishedAt: p.now(),
		Status:     model.RunFailed,
		Error:      cause.Error(),
	}
	if err := p.store.RecordRun(ctx, run); err != nil {
		zap.L().Error("failed to record run", zap.Error(err))
	}
	return run, cause
}

func (p *Pipeline) headerRow() int {
	if p.cfg.HeaderRow > 0 {
		return p.cfg.HeaderRow
	}
	return ingest.EPARHeaderRow
}
