package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a full ETL run",
	Long:  "Downloads both EMA sources, ingests them, merges the snapshot into the medicine history, and rebuilds the star schema.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := newPipeline(st)
		run, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", run.ID),
			zap.Int("snapshot_rows", run.SnapshotRows),
			zap.Int("history_rows", run.HistoryRows),
			zap.Int("updated_rows", run.UpdatedRows),
			zap.Float64("spor_match_rate", run.SporMatchRate),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
