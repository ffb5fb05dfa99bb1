package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datasundae/pragi/internal/app"
	"github.com/datasundae/pragi/internal/config"
	"github.com/datasundae/pragi/internal/ingest"
)

var (
	ingestTitle  string
	ingestAuthor string
	ingestType   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Add text files to the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(args)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title")
	ingestCmd.Flags().StringVar(&ingestAuthor, "author", "", "document author")
	ingestCmd.Flags().StringVar(&ingestType, "type", "", "document type (book, article, ...)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(paths []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		metadata := map[string]any{}
		if ingestTitle != "" {
			metadata["title"] = ingestTitle
		}
		if ingestAuthor != "" {
			metadata["author"] = ingestAuthor
		}
		if ingestType != "" {
			metadata["type"] = ingestType
		}

		result, err := a.Ingest.Ingest(ctx, ingest.Request{
			Filename: filepath.Base(path),
			Text:     string(data),
			Metadata: metadata,
		})
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		fmt.Printf("Ingested %s as %s\n", path, result.DocID)
	}
	return nil
}
