package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/mzkit/pkg/core"
	"github.com/ChrisMcGann/mzkit/pkg/merge"
	"github.com/ChrisMcGann/mzkit/pkg/writer/sqlite"
	"github.com/spf13/cobra"
)

var (
	// Flags for merge command
	mergeIn           string
	mergeFrom         string
	mergeStrategy     string
	mergeTolerance    float64
	mergeHierarchical string
	mergeDensity      bool
	mergeAuto         bool
	mergeOut          string
	mergeMetricsAddr  string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge nearby peaks within each spectrum",
	Long: `Merge peaks closer than a tolerance within each spectrum and report how
much the peak lists shrink.

Modes:
  default         one pass at --tolerance
  --hierarchical  successive passes, e.g. 0.001,0.01,0.05
  --density       tolerance scaled by local peak density
  --auto          strategy and tolerance chosen per spectrum from its peaks

Examples:
  mzkit merge --in run.mzML --strategy max --tolerance 0.02
  mzkit merge --in run.mzML --auto --out merged.db`,
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeIn, "in", "i", "", "Input file path (required)")
	mergeCmd.Flags().StringVarP(&mergeFrom, "from", "f", "", "Input format: mzml, mgf, msp or sqlite (auto-detect if not specified)")
	mergeCmd.Flags().StringVar(&mergeStrategy, "strategy", "", "Merge strategy: max, average, sum, weighted (overrides config)")
	mergeCmd.Flags().Float64Var(&mergeTolerance, "tolerance", 0, "Merge tolerance in m/z (overrides config)")
	mergeCmd.Flags().StringVar(&mergeHierarchical, "hierarchical", "", "Comma-separated tolerances applied in order")
	mergeCmd.Flags().BoolVar(&mergeDensity, "density", false, "Scale the tolerance by local peak density")
	mergeCmd.Flags().BoolVar(&mergeAuto, "auto", false, "Choose strategy and tolerance per spectrum")
	mergeCmd.Flags().StringVarP(&mergeOut, "out", "o", "", "Output database for merged spectra")
	mergeCmd.Flags().StringVar(&mergeMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	mergeCmd.MarkFlagRequired("in")
	mergeCmd.MarkFlagsMutuallyExclusive("hierarchical", "density", "auto")
}

func runMerge(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("strategy") {
		cfg.Merge.Strategy = mergeStrategy
	}
	if cmd.Flags().Changed("tolerance") {
		cfg.Merge.Tolerance = mergeTolerance
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tolerances, err := parseTolerances(mergeHierarchical)
	if err != nil {
		return err
	}

	merger, err := cfg.NewMerger()
	if err != nil {
		return err
	}
	advanced := merge.NewAdvanced(nil, merge.WithDensityWindow(cfg.Merge.DensityWindow))

	m, stopMetrics := startMetrics(mergeMetricsAddr)
	defer stopMetrics()

	spectra, err := loadSpectra(mergeIn, mergeFrom)
	if err != nil {
		return err
	}

	var writer *sqlite.Writer
	if mergeOut != "" {
		c, err := cfg.NewCodec()
		if err != nil {
			return err
		}
		writer, err = sqlite.NewWriter(mergeOut, c, sqlite.WithMetrics(m))
		if err != nil {
			return fmt.Errorf("failed to create output database: %w", err)
		}
		defer writer.Close()
	}

	var before, after int
	var retention float64
	chosen := make(map[merge.Strategy]int)

	for _, spec := range spectra {
		peaks := spec.Peaks()

		var merged []core.Peak
		strategy := merger.Strategy()
		switch {
		case mergeAuto:
			if s, _, ok := advanced.Plan(peaks); ok {
				strategy = s
			}
			merged = advanced.IntelligentMerge(peaks)
		case len(tolerances) > 0:
			merged = merger.Hierarchical(peaks, tolerances)
		case mergeDensity:
			merged = merger.DensityBased(peaks, cfg.Merge.Tolerance)
		default:
			merged = merger.Merge(peaks, cfg.Merge.Tolerance)
		}
		chosen[strategy]++

		stats := merge.New(strategy).Statistics(peaks, merged)
		m.ObserveMerge(stats.ReductionRatio)
		before += stats.OriginalCount
		after += stats.MergedCount
		retention += stats.IntensityRetention

		if writer != nil {
			if err := spec.SetPeaks(merged); err != nil {
				return err
			}
			if err := writer.WriteSpectrum(spec); err != nil {
				return fmt.Errorf("failed to write spectrum %d: %w", spec.ScanNumber(), err)
			}
		}
	}

	if writer != nil {
		if err := writer.Finalize(); err != nil {
			return fmt.Errorf("failed to finalize database: %w", err)
		}
	}

	fmt.Printf("Spectra: %d\n", len(spectra))
	fmt.Printf("Peaks: %d -> %d\n", before, after)
	if before > 0 {
		fmt.Printf("Reduction: %.1f%%\n", 100*(1-float64(after)/float64(before)))
	}
	if len(spectra) > 0 {
		fmt.Printf("Mean intensity retention: %.3f\n", retention/float64(len(spectra)))
	}
	for _, s := range []merge.Strategy{merge.MaxIntensity, merge.AverageIntensity, merge.SumIntensity, merge.WeightedAverage} {
		if n := chosen[s]; n > 0 {
			fmt.Printf("Strategy %s: %d spectra\n", s, n)
		}
	}
	if writer != nil {
		fmt.Printf("Output: %s\n", mergeOut)
	}
	return nil
}

// parseTolerances parses a comma-separated list of positive tolerances
func parseTolerances(list string) ([]float64, error) {
	if list == "" {
		return nil, nil
	}
	var out []float64
	for _, part := range strings.Split(list, ",") {
		tol, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || tol <= 0 {
			return nil, fmt.Errorf("invalid tolerance '%s'", part)
		}
		out = append(out, tol)
	}
	return out, nil
}
