package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conveyor",
	Short: "Conveyor is a pipeline orchestrator for service-center operations",
	Long: `Conveyor drives units of business work (leads, RFQs, quotes, orders)
through a declared graph of stages, enforcing role-based transitions and
recording a full audit trail.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("graph", "", "Path to a YAML graph declaration (default: built-in service-center graph)")
}
