// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"

	"github.com/ChrisMcGann/mzkit/internal/config"
	"github.com/ChrisMcGann/mzkit/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Persistent flags
	configFile string
	logLevel   string
	logFormat  string

	// Set up by setup before any command runs
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "mzkit",
	Short: "mzkit - Mass spectrometry peak processing toolkit",
	Long: `mzkit reads mzML runs and MSP spectral libraries and processes their peaks.

Fast, memory-efficient, and cross-platform processing with support for:
- Conversion to SQLite with peak filtering (top-N, intensity cutoff, m/z window)
- Extracted ion chromatograms with quality scoring
- Binned m/z range queries
- Peak merging with fixed, hierarchical, density-aware or automatic strategies
- Ion mobility frame aggregation and calibration
- mzML binary array encoding and decoding`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json or console (overrides config)")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(xicCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(mobilityCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(codecCmd)
}

// setup loads the configuration and builds the logger
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configFile != "" {
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("Configuration loaded",
		zap.String("config", configFile),
		zap.String("command", cmd.Name()))
	return nil
}
