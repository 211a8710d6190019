// Package merge collapses runs of close m/z values into representative peaks.
package merge

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ChrisMcGann/mzkit/pkg/core"
)

// ErrUnknownStrategy is returned by ParseStrategy for unrecognised names.
var ErrUnknownStrategy = errors.New("merge: unknown strategy")

// Strategy selects how a closed group of peaks becomes one peak.
type Strategy int

const (
	// MaxIntensity keeps the most intense peak of the group unchanged.
	MaxIntensity Strategy = iota
	// AverageIntensity emits the intensity-weighted m/z and the mean intensity.
	AverageIntensity
	// SumIntensity emits the intensity-weighted m/z and the summed intensity.
	SumIntensity
	// WeightedAverage weights m/z by intensity/max and emits the max intensity.
	WeightedAverage
)

func (s Strategy) String() string {
	switch s {
	case MaxIntensity:
		return "max"
	case AverageIntensity:
		return "average"
	case SumIntensity:
		return "sum"
	case WeightedAverage:
		return "weighted"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy accepts the String forms plus a few long aliases.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "max", "max_intensity", "maxintensity":
		return MaxIntensity, nil
	case "average", "avg", "average_intensity", "averageintensity":
		return AverageIntensity, nil
	case "sum", "sum_intensity", "sumintensity":
		return SumIntensity, nil
	case "weighted", "weighted_average", "weightedaverage":
		return WeightedAverage, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// DefaultDensityWindow is the number of neighbours on each side used by DensityBased.
const DefaultDensityWindow = 5

// Merger merges peaks with a fixed strategy. It holds no mutable state and
// is safe for concurrent use.
type Merger struct {
	strategy      Strategy
	densityWindow int
}

// Option configures a Merger.
type Option func(*Merger)

// WithDensityWindow sets the neighbour window used by DensityBased.
func WithDensityWindow(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.densityWindow = n
		}
	}
}

// New creates a Merger.
func New(strategy Strategy, opts ...Option) *Merger {
	m := &Merger{strategy: strategy, densityWindow: DefaultDensityWindow}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Strategy returns the aggregation rule.
func (m *Merger) Strategy() Strategy {
	return m.strategy
}

func sortedCopy(peaks []core.Peak) []core.Peak {
	out := append([]core.Peak(nil), peaks...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MZ < out[j].MZ })
	return out
}

// Merge sorts a copy of peaks by m/z and chains neighbours whose gap to the
// previously added peak is within tolerance. The chain is measured
// peak-to-peak, so a long run of close peaks merges even if its ends are far
// apart.
func (m *Merger) Merge(peaks []core.Peak, tolerance float64) []core.Peak {
	return m.mergeSorted(sortedCopy(peaks), func(int) float64 { return tolerance })
}

func (m *Merger) mergeSorted(sorted []core.Peak, tolerance func(i int) float64) []core.Peak {
	if len(sorted) == 0 {
		return nil
	}

	var merged []core.Peak
	start := 0
	for i := 1; i < len(sorted); i++ {
		if sorted[i].MZ-sorted[i-1].MZ <= tolerance(i) {
			continue
		}
		merged = append(merged, m.aggregate(sorted[start:i]))
		start = i
	}
	return append(merged, m.aggregate(sorted[start:]))
}

// aggregate collapses a non-empty group. Groups whose weights sum to zero
// fall back to the unweighted mean m/z.
func (m *Merger) aggregate(group []core.Peak) core.Peak {
	if len(group) == 1 {
		return group[0]
	}

	var sumI, sumMZ, sumWeighted, maxI float64
	best := group[0]
	for _, p := range group {
		sumI += p.Intensity
		sumMZ += p.MZ
		sumWeighted += p.MZ * p.Intensity
		if p.Intensity > best.Intensity {
			best = p
		}
		maxI = math.Max(maxI, p.Intensity)
	}
	n := float64(len(group))

	centroid := sumMZ / n
	if sumI > 0 {
		centroid = sumWeighted / sumI
	}

	switch m.strategy {
	case AverageIntensity:
		return core.Peak{MZ: centroid, Intensity: sumI / n}
	case SumIntensity:
		return core.Peak{MZ: centroid, Intensity: sumI}
	case WeightedAverage:
		// Weights intensity/max give the same centroid as intensity weights.
		return core.Peak{MZ: centroid, Intensity: maxI}
	default:
		return best
	}
}

// MergeMultiple pools several peak lists and merges them as one.
func (m *Merger) MergeMultiple(lists [][]core.Peak, tolerance float64) []core.Peak {
	var all []core.Peak
	for _, l := range lists {
		all = append(all, l...)
	}
	return m.Merge(all, tolerance)
}

// Hierarchical applies Merge once per tolerance, each pass on the previous
// output. Supply tolerances smallest first for progressive coarsening.
func (m *Merger) Hierarchical(peaks []core.Peak, tolerances []float64) []core.Peak {
	current := sortedCopy(peaks)
	for _, tol := range tolerances {
		current = m.Merge(current, tol)
	}
	return current
}

// DensityBased scales the grouping tolerance per peak by local density:
// tolerance = base * (1.5 - normalisedDensity), so crowded regions merge
// less aggressively. Density is neighbours/span over a window of
// densityWindow peaks each side; a zero span counts as the densest possible.
// Fewer than three peaks fall back to Merge.
func (m *Merger) DensityBased(peaks []core.Peak, baseTolerance float64) []core.Peak {
	if len(peaks) < 3 {
		return m.Merge(peaks, baseTolerance)
	}

	sorted := sortedCopy(peaks)
	factors := densityFactors(sorted, m.densityWindow)
	return m.mergeSorted(sorted, func(i int) float64 {
		return baseTolerance * (1.5 - factors[i])
	})
}

// densityFactors returns each peak's density normalised to [0, 1]. When all
// finite densities are equal the factor is 0.5.
func densityFactors(sorted []core.Peak, window int) []float64 {
	n := len(sorted)
	densities := make([]float64, n)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range sorted {
		start := max(i-window, 0)
		end := min(i+window, n-1)
		spanMZ := sorted[end].MZ - sorted[start].MZ
		if spanMZ <= 0 {
			densities[i] = math.Inf(1)
			continue
		}
		d := float64(end-start) / spanMZ
		densities[i] = d
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}

	factors := make([]float64, n)
	for i, d := range densities {
		switch {
		case math.IsInf(d, 1):
			factors[i] = 1
		case hi > lo:
			factors[i] = (d - lo) / (hi - lo)
		default:
			factors[i] = 0.5
		}
	}
	return factors
}
