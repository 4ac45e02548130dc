package main

import (
	"github.com/spf13/cobra"

	"github.com/ternarybob/cartograb/internal/app"
)

var (
	runsLimit int

	rowsRunID  string
	rowsOutput string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List previous runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New(config, logger)
		if err != nil {
			return err
		}
		defer application.Close()

		runs, err := application.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		printRuns(runs)
		return nil
	},
}

var rowsCmd = &cobra.Command{
	Use:   "rows",
	Short: "Rewrite the metadata CSV of a stored run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New(config, logger)
		if err != nil {
			return err
		}
		defer application.Close()

		path := rowsOutput
		if path == "" {
			path = config.Paths.MetadataCSV
		}
		_, err = application.WriteRunRows(cmd.Context(), rowsRunID, path)
		return err
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to show (0 = all)")

	rowsCmd.Flags().StringVar(&rowsRunID, "run", "", "Run id as shown by 'cartograb runs'")
	rowsCmd.Flags().StringVarP(&rowsOutput, "output", "o", "", "CSV path (defaults to paths.metadata_csv)")
	_ = rowsCmd.MarkFlagRequired("run")
}
