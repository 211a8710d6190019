package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/mzkit/pkg/core"
	"github.com/ChrisMcGann/mzkit/pkg/mobility"
	"github.com/spf13/cobra"
)

var (
	// Flags for mobility command
	mobilityIn          string
	mobilityFrom        string
	mobilityMZ          float64
	mobilityTolerance   float64
	mobilityRTStart     float64
	mobilityRTEnd       float64
	mobilityCalibration string
)

var mobilityCmd = &cobra.Command{
	Use:   "mobility",
	Short: "Aggregate ion mobility frames and report drift-time statistics",
	Long: `Group spectra with a drift time into frames of whole milliseconds and
report the drift range, the most intense frame and the frame distribution.

With --mz, print the mobility chromatogram of that ion. With --calibration,
fit a linear calibration from a CSV of mz,drift_time pairs and report the
calibrated value at the optimal drift time.

Examples:
  mzkit mobility --in run.mzML
  mzkit mobility --in run.mzML --mz 622.03 --tolerance 0.02`,
	RunE: runMobility,
}

func init() {
	mobilityCmd.Flags().StringVarP(&mobilityIn, "in", "i", "", "Input file path (required)")
	mobilityCmd.Flags().StringVarP(&mobilityFrom, "from", "f", "", "Input format: mzml, mgf, msp or sqlite (auto-detect if not specified)")
	mobilityCmd.Flags().Float64Var(&mobilityMZ, "mz", 0, "Target m/z for a mobility chromatogram")
	mobilityCmd.Flags().Float64Var(&mobilityTolerance, "tolerance", 0, "m/z tolerance (overrides config)")
	mobilityCmd.Flags().Float64Var(&mobilityRTStart, "rt-start", 0, "Retention time window start in seconds")
	mobilityCmd.Flags().Float64Var(&mobilityRTEnd, "rt-end", 0, "Retention time window end in seconds")
	mobilityCmd.Flags().StringVar(&mobilityCalibration, "calibration", "", "Path to calibration CSV (mz,drift_time)")

	mobilityCmd.MarkFlagRequired("in")
}

func runMobility(cmd *cobra.Command, args []string) error {
	tol := cfg.Mobility.MZTolerance
	if cmd.Flags().Changed("tolerance") {
		tol = mobilityTolerance
	}

	opts := mobility.Options{
		MZTolerance: tol,
		Workers:     cfg.Extraction.Workers,
	}
	if cmd.Flags().Changed("rt-start") || cmd.Flags().Changed("rt-end") {
		opts.RTRange = &core.Range{Low: mobilityRTStart, High: mobilityRTEnd}
	}

	spectra, err := loadSpectra(mobilityIn, mobilityFrom)
	if err != nil {
		return err
	}

	analyzer := mobility.NewAnalyzer(spectra, opts)
	summary, ok := analyzer.Summary()
	if !ok {
		fmt.Fprintf(os.Stderr, "Warning: no spectra with a drift time\n")
		return nil
	}

	fmt.Printf("Frames: %d\n", summary.Frames)
	fmt.Printf("Drift range: %.4f - %.4f s\n", summary.DriftRange.Low, summary.DriftRange.High)
	fmt.Printf("Peaks: %d total, %.1f per frame (min %d, max %d)\n",
		summary.TotalPeaks, summary.AvgPeaksPerFrame, summary.MinPeaks, summary.MaxPeaks)
	fmt.Printf("Busiest frame: %.4f s\n", summary.BusiestDriftTime)

	optimal, _ := analyzer.OptimalDriftTime()
	fmt.Printf("Optimal drift time: %.4f s (TIC %.4g)\n", optimal.DriftTime, optimal.Intensity)

	if mobilityCalibration != "" {
		points, err := loadCalibrationPoints(mobilityCalibration)
		if err != nil {
			return fmt.Errorf("failed to load calibration: %w", err)
		}
		cal, err := mobility.FitLinearCalibration(points)
		if err != nil {
			return err
		}
		analyzer.SetCalibration(cal)
		value, _ := analyzer.CalibratedValue(optimal.DriftTime)
		fmt.Printf("Calibration: mz = %.6g * drift + %.6g (R^2 %.4f)\n", cal.Slope, cal.Intercept, cal.RSquared)
		fmt.Printf("Calibrated optimal drift: %.4f\n", value)
	}

	if cmd.Flags().Changed("mz") {
		fmt.Printf("\nMobility chromatogram for m/z %.4f (tolerance %g)\n", mobilityMZ, tol)
		for _, p := range analyzer.MobilityChromatogram(mobilityMZ, tol) {
			fmt.Printf("%10.4f %14.2f\n", p.DriftTime, p.Intensity)
		}
	}
	return nil
}

// loadCalibrationPoints reads mz,drift_time rows after a header line
func loadCalibrationPoints(path string) ([]mobility.CalibrationPoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var points []mobility.CalibrationPoint
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 || line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: expected 2 fields (mz,drift_time), got %d", lineNum, len(parts))
		}
		mz, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid m/z '%s'", lineNum, parts[0])
		}
		drift, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid drift time '%s'", lineNum, parts[1])
		}
		points = append(points, mobility.CalibrationPoint{MZ: mz, DriftTime: drift})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return points, nil
}
