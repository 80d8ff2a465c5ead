package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/navsim/internal/config"
	"github.com/newthinker/navsim/internal/logger"
	"github.com/newthinker/navsim/internal/storage/archive"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "navsim",
	Short: "NAVSIM - portfolio backtest and performance analysis",
	Long: `NAVSIM replays a rebalancing schedule and an exposure signal against daily
close prices, producing a normalized value series, per-day holdings and a
table of performance metrics.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env holds what every command needs.
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	storage archive.Storage
}

// setup loads and validates the config, then builds the logger and the
// storage backend.
func setup() (*env, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log, err := logger.NewWithLevel(debug, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	storage, err := archive.New(cfg.Archive())
	if err != nil {
		return nil, fmt.Errorf("creating storage: %w", err)
	}

	return &env{cfg: cfg, log: log, storage: storage}, nil
}
