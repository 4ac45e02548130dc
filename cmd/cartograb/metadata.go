package main

import (
	"github.com/spf13/cobra"

	"github.com/ternarybob/cartograb/internal/app"
	"github.com/ternarybob/cartograb/internal/models"
)

var outputCSV string

var metadataCmd = &cobra.Command{
	Use:       "metadata [maps|datasets]",
	Short:     "Collect the embedded page metadata of every asset into a CSV",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"maps", "datasets"},
	RunE:      runMetadata,
}

func init() {
	metadataCmd.Flags().StringVarP(&outputCSV, "output", "o", "", "CSV path (overrides paths.metadata_csv)")
}

func runMetadata(cmd *cobra.Command, args []string) error {
	kind := models.AssetKindMap
	if len(args) == 1 {
		k, err := models.ParseAssetKind(args[0])
		if err != nil {
			return err
		}
		kind = k
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

	run, err := application.RunMetadata(cmd.Context(), kind)
	if run != nil {
		printRunSummary(run, application.Ledger.Count())
	}
	return err
}
