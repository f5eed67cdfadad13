package main

import (
	"os"

	"github.com/spf13/cobra"
)

var catalogPath string
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "landmeter",
	Short: "Question answering over containerized data services",
	Long: `Landmeter answers questions by orchestrating tool calls against
containerized data services (Kadaster, CBS, Rijkswaterstaat and any
other backend listed in the catalog).

Each backend speaks JSON-RPC over a multiplexed stdio stream. Landmeter
discovers the tools every backend offers, lets Claude decide which ones
to call, executes the calls in bounded rounds, and reports the answer
with source citations.

Core capabilities:
- Discovers backend tools and their argument schemas
- Runs tool calls concurrently within each decision round
- Bounds every run to a fixed number of rounds
- Records run transcripts for later review`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Path to the backend catalog YAML (defaults to the built-in services)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print diagnostic output")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
