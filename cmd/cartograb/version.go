package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/cartograb/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Needs no configuration
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cartograb version %s\n", common.GetFullVersion())
	},
}
