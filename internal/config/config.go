package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ChrisMcGann/mzkit/pkg/codec"
	"github.com/ChrisMcGann/mzkit/pkg/merge"
	"gopkg.in/yaml.v3"
)

// ExtractionConfig holds XIC extraction settings
type ExtractionConfig struct {
	PPMTolerance float64 `yaml:"ppm_tolerance"`
	NumIsotopes  int     `yaml:"num_isotopes"`
	Workers      int     `yaml:"workers"`
	BinSize      float64 `yaml:"bin_size"`
}

// MergeConfig holds peak merging settings
type MergeConfig struct {
	Strategy      string  `yaml:"strategy"`
	Tolerance     float64 `yaml:"tolerance"`
	DensityWindow int     `yaml:"density_window"`
}

// CodecConfig holds binary array encoding settings
type CodecConfig struct {
	Encoding    string `yaml:"encoding"`
	Compression string `yaml:"compression"`
}

// MobilityConfig holds ion mobility aggregation settings
type MobilityConfig struct {
	MZTolerance float64 `yaml:"mz_tolerance"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// Config represents the complete mzkit configuration
type Config struct {
	Extraction ExtractionConfig `yaml:"extraction"`
	Merge      MergeConfig      `yaml:"merge"`
	Codec      CodecConfig      `yaml:"codec"`
	Mobility   MobilityConfig   `yaml:"mobility"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Extraction.PPMTolerance == 0 {
		cfg.Extraction.PPMTolerance = 10
	}
	if cfg.Extraction.NumIsotopes == 0 {
		cfg.Extraction.NumIsotopes = 3
	}
	if cfg.Extraction.Workers == 0 {
		cfg.Extraction.Workers = 4
	}
	if cfg.Extraction.BinSize == 0 {
		cfg.Extraction.BinSize = 1.0
	}

	if cfg.Merge.Strategy == "" {
		cfg.Merge.Strategy = "average"
	}
	if cfg.Merge.Tolerance == 0 {
		cfg.Merge.Tolerance = 0.01
	}
	if cfg.Merge.DensityWindow == 0 {
		cfg.Merge.DensityWindow = merge.DefaultDensityWindow
	}

	if cfg.Codec.Encoding == "" {
		cfg.Codec.Encoding = codec.Float64Little.String()
	}
	if cfg.Codec.Compression == "" {
		cfg.Codec.Compression = codec.Zlib.String()
	}

	if cfg.Mobility.MZTolerance == 0 {
		cfg.Mobility.MZTolerance = 0.01
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Extraction.PPMTolerance <= 0 {
		return fmt.Errorf("extraction.ppm_tolerance must be positive")
	}
	if c.Extraction.NumIsotopes < 1 {
		return fmt.Errorf("extraction.num_isotopes must be at least 1")
	}
	if c.Extraction.Workers < 1 {
		return fmt.Errorf("extraction.workers must be at least 1")
	}
	if c.Extraction.BinSize <= 0 {
		return fmt.Errorf("extraction.bin_size must be positive")
	}
	if _, err := merge.ParseStrategy(c.Merge.Strategy); err != nil {
		return fmt.Errorf("merge.strategy: %w", err)
	}
	if c.Merge.Tolerance <= 0 {
		return fmt.Errorf("merge.tolerance must be positive")
	}
	if c.Merge.DensityWindow < 1 {
		return fmt.Errorf("merge.density_window must be at least 1")
	}
	if _, err := codec.ParseEncoding(c.Codec.Encoding); err != nil {
		return fmt.Errorf("codec.encoding: %w", err)
	}
	if _, err := codec.ParseCompression(c.Codec.Compression); err != nil {
		return fmt.Errorf("codec.compression: %w", err)
	}
	if c.Mobility.MZTolerance <= 0 {
		return fmt.Errorf("mobility.mz_tolerance must be positive")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}

// NewCodec builds the codec described by the codec section.
func (c *Config) NewCodec() (*codec.Codec, error) {
	enc, err := codec.ParseEncoding(c.Codec.Encoding)
	if err != nil {
		return nil, err
	}
	comp, err := codec.ParseCompression(c.Codec.Compression)
	if err != nil {
		return nil, err
	}
	return codec.New(codec.WithEncoding(enc), codec.WithCompression(comp)), nil
}

// NewMerger builds the merger described by the merge section.
func (c *Config) NewMerger() (*merge.Merger, error) {
	s, err := merge.ParseStrategy(c.Merge.Strategy)
	if err != nil {
		return nil, err
	}
	return merge.New(s, merge.WithDensityWindow(c.Merge.DensityWindow)), nil
}
