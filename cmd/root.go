package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "property-management-bot",
	Short: "Property operations service",
	Long:  `Single-process service managing property, booking and alert lifecycles, overbooking conflict resolution, mail alert ingestion and scheduled operations jobs`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
