// Package cmd wires the raggy CLI: an interactive chat loop over an
// ingested corpus, plus corpus ingestion and version commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "raggy",
	Short: "Conversational question answering over your own documents",
	Long: `Raggy answers questions from a corpus you ingest, grounding every
answer in retrieved passages instead of model memory.

Running raggy without a subcommand starts the interactive chat loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

var verbose bool

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
