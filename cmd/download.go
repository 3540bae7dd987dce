package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/CoReason-AI/coreason-etl-epar/internal/pipeline"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the EMA source files without transforming them",
	Long:  "Fetches the EPAR index spreadsheet and the SPOR organisation export into the working directory and prints their paths.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// The download phase never touches the store.
		p := pipeline.New(nil, newFetcher(), cfg.Pipeline)

		eparPath, sporPath, err := p.Download(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "download sources")
		}

		fmt.Println(eparPath)
		fmt.Println(sporPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}
