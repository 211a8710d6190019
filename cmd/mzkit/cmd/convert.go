package cmd

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/mzkit/pkg/filter"
	"github.com/ChrisMcGann/mzkit/pkg/writer/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for convert command
	convertIn     string
	convertFrom   string
	convertOut    string
	topN          int
	cutoffPercent float64
	minMZ         float64
	maxMZ         float64
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert mzML, MGF or MSP spectra to a SQLite database",
	Long: `Convert spectra from an mzML run, an MGF peak list or an MSP spectral library to a
SQLite database. Peak arrays are stored with the configured codec.

Examples:
  # Convert an mzML run with default settings
  mzkit convert --in run.mzML --out run.db

  # Convert a library keeping the 150 most intense peaks above 1% of the base peak
  mzkit convert --in library.msp --out library.db --top-n 150 --cutoff 1`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertIn, "in", "i", "", "Input file path (required)")
	convertCmd.Flags().StringVarP(&convertFrom, "from", "f", "", "Input format: mzml, mgf or msp (auto-detect if not specified)")
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "Output database file (required)")
	convertCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense peaks (0 = no limit)")
	convertCmd.Flags().Float64Var(&cutoffPercent, "cutoff", 0, "Intensity cutoff as % of base peak (0 = no cutoff)")
	convertCmd.Flags().Float64Var(&minMZ, "min-mz", 0, "Lower m/z bound (0 = none)")
	convertCmd.Flags().Float64Var(&maxMZ, "max-mz", 0, "Upper m/z bound (0 = none)")

	convertCmd.MarkFlagRequired("in")
	convertCmd.MarkFlagRequired("out")
}

func runConvert(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(convertIn); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", convertIn)
	}

	format, err := detectFormat(convertIn, convertFrom)
	if err != nil {
		return err
	}
	if format == formatSQLite {
		return fmt.Errorf("input is already a SQLite database")
	}

	filterConfig := &filter.Config{
		TopN:            topN,
		IntensityCutoff: cutoffPercent,
		MinMZ:           minMZ,
		MaxMZ:           maxMZ,
	}
	if err := filterConfig.Validate(); err != nil {
		return err
	}

	fmt.Printf("Converting %s to %s...\n", convertIn, convertOut)
	fmt.Printf("Format: %s\n", format)
	fmt.Printf("Encoding: %s, compression: %s\n", cfg.Codec.Encoding, cfg.Codec.Compression)
	if topN > 0 {
		fmt.Printf("Top N filter: %d\n", topN)
	}
	if cutoffPercent > 0 {
		fmt.Printf("Intensity cutoff: %.1f%%\n", cutoffPercent)
	}
	if minMZ > 0 || maxMZ > 0 {
		fmt.Printf("m/z window: %g - %g\n", minMZ, maxMZ)
	}

	reader, closer, err := openReader(convertIn, format)
	if err != nil {
		return err
	}
	defer closer.Close()

	c, err := cfg.NewCodec()
	if err != nil {
		return err
	}
	writer, err := sqlite.NewWriter(convertOut, c)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	count := 0
	skipped := 0
	removed := 0

	for reader.Next() {
		spec := reader.Spectrum()

		removed += filter.RemoveZeroIntensityPeaks(spec)

		n, err := filterConfig.Apply(spec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to filter spectrum %d: %v\n", spec.ScanNumber(), err)
			skipped++
			continue
		}
		removed += n

		if err := spec.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: invalid spectrum %d: %v\n", spec.ScanNumber(), err)
			skipped++
			continue
		}

		if err := writer.WriteSpectrum(spec); err != nil {
			return fmt.Errorf("failed to write spectrum %d: %w", spec.ScanNumber(), err)
		}

		count++
		if count%1000 == 0 {
			fmt.Printf("Processed %d spectra...\n", count)
		}
	}

	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading input file: %w", err)
	}

	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	logger.Info("Conversion complete",
		zap.Int("written", count),
		zap.Int("skipped", skipped),
		zap.Int("peaks_removed", removed))

	fmt.Printf("\nConversion complete!\n")
	fmt.Printf("Processed: %d spectra\n", count)
	if skipped > 0 {
		fmt.Printf("Skipped: %d spectra (validation errors)\n", skipped)
	}
	fmt.Printf("Peaks removed by filters: %d\n", removed)
	fmt.Printf("Output: %s\n", convertOut)

	return nil
}
