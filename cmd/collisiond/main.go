// Package main is the entry point for the headless collision runner.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/tilecollide/internal/assets"
	"github.com/Faultbox/tilecollide/internal/config"
	"github.com/Faultbox/tilecollide/internal/logger"
	"github.com/Faultbox/tilecollide/internal/sim"
	"github.com/Faultbox/tilecollide/internal/world"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Tile Collision Service ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("collisiond failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("stopped normally")
}

func run(cfg *config.Config) error {
	a := assets.NewManager()
	defer a.Close()
	for _, root := range cfg.Assets.Roots {
		if err := a.AddRoot(root); err != nil {
			return fmt.Errorf("asset root: %w", err)
		}
	}

	m := world.NewManager(a, world.OptionsFromConfig(cfg))
	if err := m.Load(cfg.Assets.Map); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Assets.Watch {
		g.Go(func() error {
			return m.Watch(ctx, a.Dirs(), cfg.Assets.WatchDebounce)
		})
	}

	if cfg.Simulation.Enabled {
		s, err := sim.New(m.Current, sim.OptionsFromConfig(cfg.Simulation))
		if err != nil {
			return fmt.Errorf("simulation: %w", err)
		}
		if _, err := s.Spawn(); err != nil {
			return fmt.Errorf("simulation: %w", err)
		}
		g.Go(func() error {
			return s.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	})

	return g.Wait()
}
