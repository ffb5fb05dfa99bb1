package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/datasundae/pragi/internal/config"
	"github.com/datasundae/pragi/internal/ingestlog"
)

var reportSave bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the ingested documents report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport()
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportSave, "save", false, "also write the report next to the ingestion log")
	rootCmd.AddCommand(reportCmd)
}

// runReport reads the log directly; no database or API key needed.
func runReport() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tracker, err := ingestlog.New(cfg.IngestLogDir, slog.Default())
	if err != nil {
		return fmt.Errorf("opening ingestion log: %w", err)
	}

	ctx := context.Background()
	report, err := tracker.Report(ctx)
	if err != nil {
		return err
	}
	fmt.Print(report)

	if reportSave {
		path, err := tracker.SaveReport(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nReport written to %s\n", path)
	}
	return nil
}
