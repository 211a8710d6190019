package cmd

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/mzkit/pkg/core"
	"github.com/ChrisMcGann/mzkit/pkg/writer/sqlite"
	"github.com/ChrisMcGann/mzkit/pkg/xic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for xic command
	xicIn          string
	xicFrom        string
	xicTargets     string
	xicMZ          []float64
	xicCharge      int
	xicRTStart     float64
	xicRTEnd       float64
	xicPPM         float64
	xicIsotopes    int
	xicWorkers     int
	xicFragCharge  int
	xicOut         string
	xicMetricsAddr string
)

var xicCmd = &cobra.Command{
	Use:   "xic",
	Short: "Extract ion chromatograms from MS1 spectra",
	Long: `Extract ion chromatograms (XICs) from the MS1 spectra of a run and score
their shape.

Targets come either from --mz values sharing one retention-time window, or
from a CSV file with one of these headers:
  label,mz,charge,rt_start,rt_end
  sequence,charge,rt_start,rt_end,mods

Peptide targets extract the monoisotopic trace, isotope traces and b/y
fragment traces. Mods use the name@position form, separated by ';'.

Examples:
  # Two m/z values over the first ten minutes at 5 ppm
  mzkit xic --in run.mzML --mz 500.25 --mz 622.8 --rt-start 0 --rt-end 600 --ppm 5

  # Peptide targets, saving traces and quality metrics
  mzkit xic --in run.mzML --targets peptides.csv --out xic.db`,
	RunE: runXIC,
}

func init() {
	xicCmd.Flags().StringVarP(&xicIn, "in", "i", "", "Input file path (required)")
	xicCmd.Flags().StringVarP(&xicFrom, "from", "f", "", "Input format: mzml, mgf, msp or sqlite (auto-detect if not specified)")
	xicCmd.Flags().StringVar(&xicTargets, "targets", "", "Path to targets CSV file")
	xicCmd.Flags().Float64SliceVar(&xicMZ, "mz", nil, "Target m/z (repeatable)")
	xicCmd.Flags().IntVar(&xicCharge, "charge", 1, "Charge of --mz targets")
	xicCmd.Flags().Float64Var(&xicRTStart, "rt-start", 0, "Retention time window start in seconds")
	xicCmd.Flags().Float64Var(&xicRTEnd, "rt-end", 0, "Retention time window end in seconds (default: end of run)")
	xicCmd.Flags().Float64Var(&xicPPM, "ppm", 0, "Mass tolerance in ppm (overrides config)")
	xicCmd.Flags().IntVar(&xicIsotopes, "isotopes", 0, "Traces per precursor including the monoisotopic one (overrides config)")
	xicCmd.Flags().IntVar(&xicWorkers, "workers", 0, "Concurrent extractions (overrides config)")
	xicCmd.Flags().IntVar(&xicFragCharge, "fragment-charge", 1, "Maximum fragment charge for peptide targets")
	xicCmd.Flags().StringVarP(&xicOut, "out", "o", "", "Output database for traces")
	xicCmd.Flags().StringVar(&xicMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	xicCmd.MarkFlagRequired("in")
}

func runXIC(cmd *cobra.Command, args []string) error {
	if xicTargets == "" && len(xicMZ) == 0 {
		return fmt.Errorf("either --targets or --mz is required")
	}

	ppm := cfg.Extraction.PPMTolerance
	if cmd.Flags().Changed("ppm") {
		ppm = xicPPM
	}
	isotopes := cfg.Extraction.NumIsotopes
	if cmd.Flags().Changed("isotopes") {
		isotopes = xicIsotopes
	}
	workers := cfg.Extraction.Workers
	if cmd.Flags().Changed("workers") {
		workers = xicWorkers
	}
	rtEnd := math.Inf(1)
	if cmd.Flags().Changed("rt-end") {
		rtEnd = xicRTEnd
	}

	m, stopMetrics := startMetrics(xicMetricsAddr)
	defer stopMetrics()

	spectra, err := loadSpectra(xicIn, xicFrom)
	if err != nil {
		return err
	}

	extractor, err := xic.NewExtractor(ppm, xic.WithLogger(logger), xic.WithMetrics(m))
	if err != nil {
		return err
	}
	extractor.Load(spectra)
	fmt.Printf("Loaded %d MS1 and %d MS2 spectra\n", extractor.MS1Count(), extractor.MS2Count())
	fmt.Printf("Tolerance: %g ppm\n", ppm)

	var results []xic.Result
	if xicTargets != "" {
		targets, err := loadTargets(xicTargets, loadModDatabase(), xicFragCharge)
		if err != nil {
			return fmt.Errorf("failed to load targets: %w", err)
		}
		fmt.Printf("Loaded %d targets\n", len(targets))

		for _, t := range targets {
			traces, err := extractor.ExtractPrecursor(t, isotopes)
			if err != nil {
				return fmt.Errorf("target %s: %w", t.Sequence, err)
			}
			results = append(results, traces...)

			fragments, err := extractor.ExtractFragments(t)
			if err != nil {
				return fmt.Errorf("target %s: %w", t.Sequence, err)
			}
			results = append(results, fragments...)
		}
	} else {
		batch := make([]xic.BatchTarget, len(xicMZ))
		for i, mz := range xicMZ {
			batch[i] = xic.BatchTarget{MZ: mz, Charge: xicCharge, IonType: strconv.FormatFloat(mz, 'f', 4, 64)}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		results, err = extractor.ExtractBatchParallel(ctx, batch, xicRTStart, rtEnd, workers)
		if err != nil {
			return err
		}
	}

	var writer *sqlite.Writer
	if xicOut != "" {
		c, err := cfg.NewCodec()
		if err != nil {
			return err
		}
		writer, err = sqlite.NewWriter(xicOut, c, sqlite.WithMetrics(m))
		if err != nil {
			return fmt.Errorf("failed to create output database: %w", err)
		}
		defer writer.Close()
	}

	fmt.Printf("\n%-24s %12s %6s %10s %8s %8s %8s\n", "Ion", "m/z", "Points", "Max", "S/N", "Symmetry", "ppm")
	for _, r := range results {
		q := xic.EvaluateQuality(r)
		fmt.Printf("%-24s %12.4f %6d %10.4g %8.2f %8.3f %8.2f\n",
			r.IonType, r.MZ, q.Points, q.MaxIntensity, q.SignalToNoise, q.Symmetry, r.PPMError)

		if writer != nil {
			if err := writer.WriteXIC(r, q); err != nil {
				return err
			}
		}
	}

	if writer != nil {
		if err := writer.Finalize(); err != nil {
			return fmt.Errorf("failed to finalize database: %w", err)
		}
		fmt.Printf("\nOutput: %s\n", xicOut)
	}

	logger.Info("Extraction complete", zap.Int("traces", len(results)))
	return nil
}

// loadTargets reads a targets CSV. The header selects between plain m/z
// rows (label,mz,charge,rt_start,rt_end) and peptide rows
// (sequence,charge,rt_start,rt_end,mods).
func loadTargets(path string, modDB *core.ModDatabase, fragmentCharge int) ([]xic.Target, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty targets file")
	}

	columns := make(map[string]int)
	for i, name := range strings.Split(scanner.Text(), ",") {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	_, peptides := columns["sequence"]
	required := []string{"label", "mz", "charge", "rt_start", "rt_end"}
	if peptides {
		required = []string{"sequence", "charge", "rt_start", "rt_end"}
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var targets []xic.Target
	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		field := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(parts) {
				return ""
			}
			return strings.TrimSpace(parts[i])
		}
		number := func(name string) (float64, error) {
			v, err := strconv.ParseFloat(field(name), 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: invalid %s '%s'", lineNum, name, field(name))
			}
			return v, nil
		}

		charge, err := strconv.Atoi(field("charge"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid charge '%s'", lineNum, field("charge"))
		}
		rtStart, err := number("rt_start")
		if err != nil {
			return nil, err
		}
		rtEnd, err := number("rt_end")
		if err != nil {
			return nil, err
		}

		if peptides {
			mods, err := modDB.ParseModString(field("mods"))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			t, err := xic.PeptideTarget(field("sequence"), mods, charge, rtStart, rtEnd, fragmentCharge)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			targets = append(targets, t)
			continue
		}

		mz, err := number("mz")
		if err != nil {
			return nil, err
		}
		targets = append(targets, xic.Target{
			Sequence: field("label"),
			Charge:   charge,
			MZ:       mz,
			RT:       (rtStart + rtEnd) / 2,
			RTStart:  rtStart,
			RTEnd:    rtEnd,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return targets, nil
}
