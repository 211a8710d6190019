package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/mzkit/internal/metrics"
	"github.com/ChrisMcGann/mzkit/pkg/core"
	"github.com/ChrisMcGann/mzkit/pkg/reader/mgf"
	"github.com/ChrisMcGann/mzkit/pkg/reader/msp"
	"github.com/ChrisMcGann/mzkit/pkg/reader/mzml"
	"github.com/ChrisMcGann/mzkit/pkg/writer/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Input formats
const (
	formatMzML   = "mzml"
	formatMGF    = "mgf"
	formatMSP    = "msp"
	formatSQLite = "sqlite"
)

// spectrumReader is satisfied by the streaming readers
type spectrumReader interface {
	Next() bool
	Spectrum() *core.Spectrum
	Err() error
}

// detectFormat returns the explicit format or guesses it from the extension
func detectFormat(path, format string) (string, error) {
	if format != "" {
		format = strings.ToLower(format)
		switch format {
		case formatMzML, formatMGF, formatMSP, formatSQLite:
			return format, nil
		}
		return "", fmt.Errorf("invalid input format '%s', must be mzml, mgf, msp, or sqlite", format)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mzml":
		return formatMzML, nil
	case ".mgf":
		return formatMGF, nil
	case ".msp":
		return formatMSP, nil
	case ".db", ".sqlite":
		return formatSQLite, nil
	}
	return "", fmt.Errorf("cannot auto-detect format from extension '%s', please specify --from", ext)
}

// openReader opens a streaming reader over an mzML, MGF or MSP file
func openReader(path, format string) (spectrumReader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}

	switch format {
	case formatMzML:
		return mzml.NewReader(f, mzml.WithLogger(logger)), f, nil
	case formatMGF:
		return mgf.NewReader(f), f, nil
	case formatMSP:
		return msp.NewReader(f, loadModDatabase()), f, nil
	}
	f.Close()
	return nil, nil, fmt.Errorf("format '%s' cannot be streamed", format)
}

// loadSpectra reads every spectrum of the input file into memory
func loadSpectra(path, format string) ([]*core.Spectrum, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file does not exist: %s", path)
	}

	format, err := detectFormat(path, format)
	if err != nil {
		return nil, err
	}
	if format == formatSQLite {
		return sqlite.ReadSpectra(path)
	}

	reader, closer, err := openReader(path, format)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var spectra []*core.Spectrum
	for reader.Next() {
		spectra = append(spectra, reader.Spectrum())
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("error reading input file: %w", err)
	}
	if r, ok := reader.(*mzml.Reader); ok && r.Skipped() > 0 {
		logger.Info("Skipped spectra", zap.Int("count", r.Skipped()))
	}

	logger.Debug("Loaded spectra",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("count", len(spectra)))
	return spectra, nil
}

// loadModDatabase returns the default modifications plus unimod_custom.csv
// from the working directory, if present
func loadModDatabase() *core.ModDatabase {
	modDB := core.DefaultModDatabase()

	f, err := os.Open("unimod_custom.csv")
	if err != nil {
		return modDB
	}
	defer f.Close()

	if err := modDB.LoadFromCSV(f); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load unimod_custom.csv: %v\n", err)
	}
	return modDB
}

// startMetrics serves a fresh registry on addr, or on the configured address
// when metrics are enabled. With neither it returns nil metrics, which
// record nothing.
func startMetrics(addr string) (*metrics.Metrics, func()) {
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Addr
	}
	if addr == "" {
		return nil, func() {}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	srv := metrics.NewServer(addr, cfg.Metrics.Path, reg, logger)
	srv.Start()
	return m, func() {
		if err := srv.Stop(); err != nil {
			logger.Warn("Failed to stop metrics server", zap.Error(err))
		}
	}
}
