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
	askK         int
	askThreshold float64
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question grounded in the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().IntVar(&askK, "k", 0, "number of documents to retrieve (default from config)")
	askCmd.Flags().Float64Var(&askThreshold, "threshold", 0, "minimum similarity (default from config)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(question string) error {
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
	if askK > 0 {
		opts = append(opts, retriever.WithTopK(askK))
	}
	if askThreshold != 0 {
		opts = append(opts, retriever.WithThreshold(askThreshold))
	}

	ans, err := a.Answer.Ask(ctx, question, opts...)
	if err != nil {
		return err
	}

	fmt.Println(ans.Text)
	if ans.HasContext {
		fmt.Printf("\nSources (%d):\n", len(ans.Sources))
		for _, src := range ans.Sources {
			title, _ := src.Document.Metadata["title"].(string)
			if title == "" {
				title = src.Document.ID
			}
			fmt.Printf("  - %s (similarity %.4f)\n", title, src.Similarity)
		}
	} else {
		fmt.Println("\n(no relevant documents in the knowledge base)")
	}
	return nil
}
