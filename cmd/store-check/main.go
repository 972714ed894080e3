package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/grow-sync/internal/config"
	"github.com/cuongbtq/grow-sync/internal/notion"
	"github.com/cuongbtq/grow-sync/shared/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	timeout    time.Duration
}

// collectionReader is the slice of the store client this command needs
type collectionReader interface {
	RetrieveCollection(ctx context.Context, collectionID string) (string, error)
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}

	cmd := &cobra.Command{
		Use:   "store-check",
		Short: "Verify that the photo and history collections are reachable",
		Long: `Loads the service configuration and retrieves both configured collections
from the record store, printing their titles. Exits non-zero if either one
cannot be read.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to configuration file")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "overall timeout for the check")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *options) error {
	_ = godotenv.Load()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateStore(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: "console",
		Output: "stderr",
		Redact: []string{"api_token"},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	client := notion.NewClient(&notion.Config{
		BaseURL: cfg.Notion.BaseURL,
		Token:   cfg.Notion.APIToken,
		Version: cfg.Notion.Version,
		Timeout: cfg.Notion.RequestTimeout,
	}, appLogger.Logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	return checkCollections(ctx, client, cmd.OutOrStdout(), appLogger.Logger, map[string]string{
		"photos":  cfg.Notion.PhotosDBID,
		"history": cfg.Notion.HistoryDBID,
	})
}

// checkCollections reports every collection before returning the first failure
func checkCollections(ctx context.Context, reader collectionReader, out io.Writer, logger *slog.Logger, collections map[string]string) error {
	var firstErr error

	for _, name := range []string{"photos", "history"} {
		id := collections[name]
		if id == "" {
			fmt.Fprintf(out, "%-8s not configured\n", name)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s collection id is not set", name)
			}
			continue
		}

		title, err := reader.RetrieveCollection(ctx, id)
		if err != nil {
			logger.Error("Collection check failed",
				slog.String("collection", name),
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(out, "%-8s FAILED  %s\n", name, id)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		fmt.Fprintf(out, "%-8s ok      %s  %q\n", name, id, title)
	}

	return firstErr
}
