package main

import (
	"context"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-backfill/internal/backfill/engine"
	"github.com/rxtech-lab/argo-backfill/internal/backfill/engine/engine_v1"
	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/pkg/backfill"
	"github.com/rxtech-lab/argo-backfill/pkg/cache"
	"github.com/rxtech-lab/argo-backfill/pkg/marketdata/provider"
)

func runMonitor(ctx context.Context, cmd *cli.Command) error {
	config, err := backfill.LoadConfig(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The TUI owns the terminal, so the engine logs nowhere.
	appLogger := logger.NewNopLogger()

	dataProvider, err := provider.NewProvider(config.Provider, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	store, err := cache.NewCache(ctx, config.Cache, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}

	defer func() {
		_ = store.Close()
	}()

	// Provider and cache outlive the engine: editing the symbol list in the
	// UI rebuilds the engine against the same cache.
	newEngine := func(symbols []string) (engine.BackfillEngine, error) {
		engineConfig := config.Engine
		engineConfig.Symbols = symbols

		return engine_v1.NewBackfillEngineV1(engineConfig, dataProvider, store, appLogger)
	}

	m := NewModel(newEngine, config.Engine.Symbols)
	p := tea.NewProgram(&m, tea.WithAltScreen())
	m.SetProgram(p)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("monitor terminated: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backfill-monitor",
		Usage: "Interactive dashboard for the candle backfill engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML client configuration file",
				Value:    "backfill.yaml",
				Required: false,
			},
		},
		Action: runMonitor,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
