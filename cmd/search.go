package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datasundae/pragi/internal/app"
	"github.com/datasundae/pragi/internal/config"
	"github.com/datasundae/pragi/internal/retriever"
)

var (
	searchK         int
	searchThreshold float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base by similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(strings.Join(args, " "))
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchK, "k", 0, "number of documents to retrieve (default from config)")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum similarity (default from config)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(query string) error {
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

	var opts []retriever.Option
	if searchK > 0 {
		opts = append(opts, retriever.WithTopK(searchK))
	}
	if searchThreshold != 0 {
		opts = append(opts, retriever.WithThreshold(searchThreshold))
	}

	results, err := a.Retriever.Retrieve(ctx, query, opts...)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matching documents.")
		return nil
	}
	for i, res := range results {
		title, _ := res.Document.Metadata["title"].(string)
		if title == "" {
			title = res.Document.ID
		}
		fmt.Printf("%d. %s (similarity %.4f)\n", i+1, title, res.Similarity)

		text := res.Document.Text
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		fmt.Printf("   %s\n", strings.ReplaceAll(text, "\n", " "))
	}
	return nil
}
