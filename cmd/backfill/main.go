package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-backfill/internal/backfill/engine"
	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/backfill"
	"github.com/rxtech-lab/argo-backfill/pkg/cache"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

// configFlag is shared by every command that needs a client.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Path to the YAML client configuration file",
		Value:    "backfill.yaml",
		Required: false,
	}
}

// newClientFromFlags loads the configuration and assembles a client.
func newClientFromFlags(ctx context.Context, cmd *cli.Command) (*backfill.Client, error) {
	config, err := backfill.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var appLogger *logger.Logger
	if cmd.Bool("verbose") {
		appLogger, err = logger.NewDevelopmentLogger()
	} else {
		appLogger, err = logger.NewLogger()
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	client, err := backfill.NewClient(ctx, config, appLogger)
	if err != nil {
		if errors.IsSchemaMismatchError(err) {
			return nil, fmt.Errorf("failed to create backfill client: %w (the cache was written by an incompatible build; delete it or switch builds)", err)
		}

		return nil, fmt.Errorf("failed to create backfill client: %w", err)
	}

	return client, nil
}

// runAction starts the engine and keeps it running until interrupted.
func runAction(ctx context.Context, cmd *cli.Command) error {
	client, err := newClientFromFlags(ctx, cmd)
	if err != nil {
		return err
	}

	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing client: %v", err)
		}
	}()

	// Setup signal handling
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, stopping...")
		cancel()
	}()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Backfilling"),
		progressbar.OptionShowCount())

	onStateChange := engine.OnStateChangeCallback(func(oldState, newState types.EngineState) {
		fmt.Printf("\nEngine state: %s -> %s\n", oldState, newState)
	})
	onTaskComplete := engine.OnTaskCompleteCallback(func(task types.BackfillTask, candles int, err error) {
		if err != nil {
			fmt.Printf("\nTask failed: %s: %v\n", task, err)

			return
		}

		_ = bar.Add(1)
	})
	onPassComplete := engine.OnPassCompleteCallback(func(stats types.BackfillStats) {
		fmt.Printf("\nProgressive pass %d complete: %d candles stored, %d tasks failed\n",
			stats.PassesCompleted, stats.CandlesStored, stats.TasksFailed)
	})

	callbacks := engine.BackfillCallbacks{
		OnStateChange:  &onStateChange,
		OnTaskStart:    nil,
		OnTaskComplete: &onTaskComplete,
		OnPassComplete: &onPassComplete,
	}

	fmt.Printf("Starting backfill for %s using %s provider...\n",
		cmd.String("config"), client.ProviderName())

	if err := client.Start(runCtx, callbacks); err != nil {
		if runCtx.Err() != nil {
			fmt.Println("Backfill stopped by user")

			return nil
		}

		return fmt.Errorf("engine failed to start: %w", err)
	}

	fmt.Println("Initial load complete; progressive loading runs until interrupted.")

	<-runCtx.Done()
	client.Stop()

	stats := client.Stats()
	fmt.Printf("Session finished: %d tasks succeeded, %d failed, %d skipped, %d candles stored\n",
		stats.TasksSucceeded, stats.TasksFailed, stats.TasksSkipped, stats.CandlesStored)

	if statsOut := cmd.String("stats-out"); statsOut != "" {
		if err := client.WriteStats(statsOut); err != nil {
			return fmt.Errorf("failed to write stats file: %w", err)
		}

		fmt.Printf("Session stats written to %s\n", statsOut)
	}

	return nil
}

// latestAction refreshes the newest candle for one symbol.
func latestAction(ctx context.Context, cmd *cli.Command) error {
	client, err := newClientFromFlags(ctx, cmd)
	if err != nil {
		return err
	}

	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing client: %v", err)
		}
	}()

	symbol := cmd.String("symbol")

	if err := client.UpdateLatest(ctx, symbol); err != nil {
		return fmt.Errorf("latest update failed: %w", err)
	}

	fmt.Printf("Latest candles updated for %s\n", symbol)

	return nil
}

// coverageAction prints the stored history extent per granularity.
func coverageAction(ctx context.Context, cmd *cli.Command) error {
	client, err := newClientFromFlags(ctx, cmd)
	if err != nil {
		return err
	}

	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing client: %v", err)
		}
	}()

	symbol := cmd.String("symbol")

	entries, err := client.Coverage(ctx, symbol)
	if err != nil {
		return fmt.Errorf("coverage query failed: %w", err)
	}

	fmt.Printf("Coverage for %s:\n", symbol)

	for _, entry := range entries {
		if entry.Extent.IsNone() {
			fmt.Printf("  %-4s  %8d candles  (empty)\n", entry.Granularity, entry.Candles)

			continue
		}

		extent := entry.Extent.Unwrap()
		fmt.Printf("  %-4s  %8d candles  %s -> %s\n",
			entry.Granularity, entry.Candles,
			extent.Start.Format("2006-01-02 15:04"),
			extent.End.Format("2006-01-02 15:04"))
	}

	return nil
}

// exportAction copies stored candles to a CSV or Parquet file.
func exportAction(ctx context.Context, cmd *cli.Command) error {
	client, err := newClientFromFlags(ctx, cmd)
	if err != nil {
		return err
	}

	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing client: %v", err)
		}
	}()

	granularity, err := types.ParseGranularity(cmd.String("granularity"))
	if err != nil {
		return err
	}

	symbol := cmd.String("symbol")
	start := cmd.Timestamp("start")
	end := cmd.Timestamp("end")
	format := cache.ExportFormat(cmd.String("format"))
	output := cmd.String("output")

	if err := client.Export(ctx, symbol, granularity, start, end, format, output); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("Exported %s %s [%s, %s) to %s\n",
		symbol, granularity,
		start.Format("2006-01-02"), end.Format("2006-01-02"), output)

	return nil
}

// schemaAction prints the JSON schema of the client configuration.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	schema, err := backfill.GetClientConfigSchema()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Println(schema)

	return nil
}

// listAction prints the supported providers and cache backends.
func listAction(ctx context.Context, cmd *cli.Command) error {
	fmt.Println("Providers:")

	for _, name := range backfill.GetSupportedProviders() {
		info, err := backfill.GetProviderInfo(name)
		if err != nil {
			return err
		}

		auth := "no auth"
		if info.RequiresAuth {
			auth = "requires auth"
		}

		fmt.Printf("  %-10s  %s (%s)\n", info.Name, info.Description, auth)
	}

	fmt.Println("Cache backends:")

	for _, name := range backfill.GetSupportedCaches() {
		info, err := backfill.GetCacheInfo(name)
		if err != nil {
			return err
		}

		fmt.Printf("  %-10s  %s\n", info.Name, info.Description)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backfill",
		Usage: "Progressively backfill historical OHLCV candles into a local cache",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Start the backfill engine and keep it running until interrupted",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "stats-out",
						Usage:    "Write session statistics to this YAML file on shutdown",
						Required: false,
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Enable debug logging",
					},
				},
				Action: runAction,
			},
			{
				Name:  "latest",
				Usage: "Fetch the newest candle for a symbol at every configured granularity",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "symbol",
						Aliases:  []string{"s"},
						Usage:    "Symbol to refresh",
						Required: true,
					},
				},
				Action: latestAction,
			},
			{
				Name:  "coverage",
				Usage: "Show the stored history extent for a symbol",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "symbol",
						Aliases:  []string{"s"},
						Usage:    "Symbol to inspect",
						Required: true,
					},
				},
				Action: coverageAction,
			},
			{
				Name:  "export",
				Usage: "Export stored candles to a CSV or Parquet file",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "symbol",
						Aliases:  []string{"s"},
						Usage:    "Symbol to export",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "granularity",
						Aliases:  []string{"g"},
						Usage:    "Granularity to export (1m, 5m, 15m, 1h, 6h, 1d)",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:    "start",
						Usage:   "Start date in `YYYY-MM-DD` format",
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
						Required: true,
					},
					&cli.TimestampFlag{
						Name:  "end",
						Usage: "End date in `YYYY-MM-DD` format. Defaults to today.",
						Value: time.Now(),
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
						Required: false,
					},
					&cli.StringFlag{
						Name:     "format",
						Aliases:  []string{"f"},
						Usage:    fmt.Sprintf("Output format (%s, %s)", cache.ExportFormatCSV, cache.ExportFormatParquet),
						Value:    string(cache.ExportFormatCSV),
						Required: false,
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Output file path",
						Required: true,
					},
				},
				Action: exportAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the client configuration",
				Action: schemaAction,
			},
			{
				Name:   "list",
				Usage:  "List supported providers and cache backends",
				Action: listAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
