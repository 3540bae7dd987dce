package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CoReason-AI/coreason-etl-epar/internal/config"
	"github.com/CoReason-AI/coreason-etl-epar/internal/fetcher"
	"github.com/CoReason-AI/coreason-etl-epar/internal/pipeline"
	"github.com/CoReason-AI/coreason-etl-epar/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "coreason-etl",
	Short: "EMA regulatory data ETL pipeline",
	Long:  "Downloads the EMA EPAR index and SPOR organisation export, maintains a versioned medicine history with change tracking, and rebuilds the analytical star schema.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore opens and migrates the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newFetcher builds the HTTP fetcher from the fetch config section.
func newFetcher() fetcher.Fetcher {
	return fetcher.NewHTTP(cfg.Fetch.HTTPOptions())
}

// newPipeline wires the configured fetcher and store into a pipeline.
func newPipeline(st store.Store) *pipeline.Pipeline {
	return pipeline.New(st, newFetcher(), cfg.Pipeline)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
