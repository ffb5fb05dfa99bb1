// Package cmd implements the pragi command line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/datasundae/pragi/internal/log"
)

var (
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "pragi",
	Short: "pragi - knowledge base retrieval and question answering",
	Long: `pragi stores documents as embeddings in PostgreSQL and answers
questions grounded in the stored knowledge.

Run "pragi serve" to expose the pipeline over HTTP, or use the ingest,
search, ask and report subcommands directly.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := log.New(log.Config{Level: log.ParseLevel(logLevel), JSON: logJSON})
		slog.SetDefault(logger)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")
}
