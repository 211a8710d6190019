package cmd

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cobra"
)

var summarizeFrom string

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize spectra in an mzML, MGF, MSP or SQLite file",
	Long:  `Print summary statistics about a file including spectrum and peak counts, m/z and retention time ranges, and the MS level breakdown.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeFrom, "from", "f", "", "Input format: mzml, mgf, msp or sqlite (auto-detect if not specified)")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	spectra, err := loadSpectra(args[0], summarizeFrom)
	if err != nil {
		return err
	}

	levels := make(map[int]int)
	peaks := 0
	withPrecursor := 0
	withDrift := 0
	mzLo, mzHi := math.Inf(1), math.Inf(-1)
	rtLo, rtHi := math.Inf(1), math.Inf(-1)

	for _, s := range spectra {
		levels[s.Level()]++
		peaks += s.PeakCount()
		if _, ok := s.Precursor(); ok {
			withPrecursor++
		}
		if s.DriftTime() > 0 {
			withDrift++
		}
		if r, ok := s.MZRange(); ok {
			mzLo = math.Min(mzLo, r.Low)
			mzHi = math.Max(mzHi, r.High)
		}
		rtLo = math.Min(rtLo, s.RetentionTime())
		rtHi = math.Max(rtHi, s.RetentionTime())
	}

	fmt.Printf("File: %s\n", args[0])
	fmt.Printf("Spectra: %d\n", len(spectra))
	fmt.Printf("Peaks: %d\n", peaks)
	if len(spectra) == 0 {
		return nil
	}

	fmt.Printf("Mean peaks per spectrum: %.1f\n", float64(peaks)/float64(len(spectra)))
	if mzLo <= mzHi {
		fmt.Printf("m/z range: %.4f - %.4f\n", mzLo, mzHi)
	}
	fmt.Printf("Retention time range: %.2f - %.2f s\n", rtLo, rtHi)
	fmt.Printf("With precursor: %d\n", withPrecursor)
	fmt.Printf("With drift time: %d\n", withDrift)

	keys := make([]int, 0, len(levels))
	for level := range levels {
		keys = append(keys, level)
	}
	sort.Ints(keys)
	for _, level := range keys {
		fmt.Printf("MS%d: %d\n", level, levels[level])
	}
	return nil
}
