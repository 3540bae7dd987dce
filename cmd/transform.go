package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	transformEPAR string
	transformSPOR string
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform already-downloaded source files",
	Long:  "Ingests a local EPAR index spreadsheet and SPOR export archive and runs the merge and star-schema rebuild without downloading.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := newPipeline(st)
		run, err := p.TransformFiles(ctx, transformEPAR, transformSPOR)
		if err != nil {
			return eris.Wrap(err, "pipeline transform")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	transformCmd.Flags().StringVar(&transformEPAR, "epar", "", "path to the EPAR index .xlsx (required)")
	transformCmd.Flags().StringVar(&transformSPOR, "spor", "", "path to the SPOR export .zip (required)")
	_ = transformCmd.MarkFlagRequired("epar")
	_ = transformCmd.MarkFlagRequired("spor")
	rootCmd.AddCommand(transformCmd)
}
