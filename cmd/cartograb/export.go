package main

import (
	"github.com/spf13/cobra"

	"github.com/ternarybob/cartograb/internal/app"
	"github.com/ternarybob/cartograb/internal/models"
)

var exportCmd = &cobra.Command{
	Use:       "export [datasets|maps]",
	Short:     "Download every asset of a catalog",
	Long:      `Walks the dataset or map listing and downloads each asset as GeoJSON and SHP, falling back to CSV when neither is offered.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"datasets", "maps"},
	RunE:      runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	kind, err := models.ParseAssetKind(args[0])
	if err != nil {
		return err
	}

	application, err := app.New(config, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.StartSession(cmd.Context()); err != nil {
		logger.Error().Err(err).Msg("Failed to establish session")
		return err
	}

	run, err := application.RunExport(cmd.Context(), kind)
	if run != nil {
		printRunSummary(run, application.Ledger.Count())
	}
	return err
}
