// Package filter provides peak filtering functions
package filter

import (
	"fmt"
	"math"
	"sort"

	"github.com/ChrisMcGann/mzkit/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 // Keep only peaks at or above this % of base peak (0 = no cutoff)
	MinMZ           float64 // Lower m/z bound (0 = none)
	MaxMZ           float64 // Upper m/z bound (0 = none)
}

// IsZero reports whether the config filters nothing.
func (c *Config) IsZero() bool {
	return *c == Config{}
}

// Validate checks the configured bounds
func (c *Config) Validate() error {
	if c.TopN < 0 {
		return fmt.Errorf("top-n must not be negative, got %d", c.TopN)
	}
	if c.IntensityCutoff < 0 || c.IntensityCutoff > 100 {
		return fmt.Errorf("intensity cutoff must be between 0 and 100, got %g", c.IntensityCutoff)
	}
	if c.MinMZ < 0 || c.MaxMZ < 0 {
		return fmt.Errorf("m/z bounds must not be negative")
	}
	if c.MaxMZ > 0 && c.MinMZ > c.MaxMZ {
		return fmt.Errorf("min m/z %g exceeds max m/z %g", c.MinMZ, c.MaxMZ)
	}
	return nil
}

// Apply applies all configured filters to a spectrum and reports how many
// peaks were removed. Peaks are sorted by m/z afterwards.
func (c *Config) Apply(spec *core.Spectrum) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	before := spec.PeakCount()

	// The m/z window runs first so the base peak comes from what remains
	if c.MinMZ > 0 || c.MaxMZ > 0 {
		c.filterByMZ(spec)
	}

	if c.IntensityCutoff > 0 {
		c.filterByIntensity(spec)
	}

	if c.TopN > 0 {
		if err := c.filterTopN(spec); err != nil {
			return 0, err
		}
	}

	spec.SortPeaks()
	return before - spec.PeakCount(), nil
}

// filterByMZ keeps peaks inside [MinMZ, MaxMZ]
func (c *Config) filterByMZ(spec *core.Spectrum) {
	hi := c.MaxMZ
	if hi == 0 {
		hi = math.Inf(1)
	}
	spec.FilterByMZRange(c.MinMZ, hi)
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(spec *core.Spectrum) {
	base, ok := spec.BasePeak()
	if !ok {
		return
	}
	threshold := (c.IntensityCutoff / 100.0) * base.Intensity
	spec.FilterByIntensity(threshold)
}

// filterTopN keeps only the N most intense peaks
func (c *Config) filterTopN(spec *core.Spectrum) error {
	if spec.PeakCount() <= c.TopN {
		return nil
	}

	peaks := spec.Peaks()
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})

	return spec.SetPeaks(peaks[:c.TopN])
}

// RemoveZeroIntensityPeaks removes peaks with zero intensity and reports how
// many were removed
func RemoveZeroIntensityPeaks(spec *core.Spectrum) int {
	return spec.RetainPeaks(func(p core.Peak) bool { return p.Intensity > 0 })
}
