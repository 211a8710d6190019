package merge

import (
	"math"

	"github.com/ChrisMcGann/mzkit/pkg/core"
)

// Statistics summarises the effect of a merge.
type Statistics struct {
	OriginalCount      int
	MergedCount        int
	ReductionRatio     float64 // 1 - merged/original, 0 for empty input
	IntensityRetention float64 // merged/original total intensity, 1 when original is zero
	Strategy           Strategy
}

// Statistics compares a peak list with its merged form.
func (m *Merger) Statistics(original, merged []core.Peak) Statistics {
	st := Statistics{
		OriginalCount:      len(original),
		MergedCount:        len(merged),
		IntensityRetention: 1.0,
		Strategy:           m.strategy,
	}
	if len(original) > 0 {
		st.ReductionRatio = 1 - float64(len(merged))/float64(len(original))
	}
	if before := totalIntensity(original); before > 0 {
		st.IntensityRetention = totalIntensity(merged) / before
	}
	return st
}

func totalIntensity(peaks []core.Peak) float64 {
	total := 0.0
	for _, p := range peaks {
		total += p.Intensity
	}
	return total
}

// Features are summary statistics of a peak list used to pick a strategy.
type Features struct {
	Count        int
	MaxIntensity float64
	MinIntensity float64
	AvgIntensity float64
	MZSpan       float64
	Density      float64 // peaks per m/z unit; +Inf when all peaks share one m/z
	IntensityCV  float64 // sample standard deviation / mean
}

// AnalyzeFeatures computes Features. It needs at least two peaks.
func AnalyzeFeatures(peaks []core.Peak) (Features, bool) {
	if len(peaks) < 2 {
		return Features{}, false
	}

	f := Features{
		Count:        len(peaks),
		MinIntensity: math.Inf(1),
		MaxIntensity: math.Inf(-1),
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	sum := 0.0
	for _, p := range peaks {
		sum += p.Intensity
		f.MinIntensity = math.Min(f.MinIntensity, p.Intensity)
		f.MaxIntensity = math.Max(f.MaxIntensity, p.Intensity)
		lo = math.Min(lo, p.MZ)
		hi = math.Max(hi, p.MZ)
	}
	n := float64(len(peaks))
	f.AvgIntensity = sum / n
	f.MZSpan = hi - lo
	f.Density = n / f.MZSpan
	if f.MZSpan == 0 {
		f.Density = math.Inf(1)
	}

	variance := 0.0
	for _, p := range peaks {
		d := p.Intensity - f.AvgIntensity
		variance += d * d
	}
	variance /= n - 1
	if f.AvgIntensity > 0 {
		f.IntensityCV = math.Sqrt(variance) / f.AvgIntensity
	}
	return f, true
}

// Selector picks a strategy and tolerance from peak features.
type Selector interface {
	Select(Features) (Strategy, float64)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(Features) (Strategy, float64)

// Select calls f.
func (f SelectorFunc) Select(ft Features) (Strategy, float64) { return f(ft) }

// Default selection thresholds.
const (
	DefaultTolerance   = 0.01
	highCVThreshold    = 1.0
	denseThreshold     = 10.0
	veryDenseThreshold = 20.0
	sparseThreshold    = 1.0
)

// DefaultSelector is a heuristic: MaxIntensity for highly variable
// intensities, WeightedAverage for dense lists, AverageIntensity otherwise.
// The tolerance starts at 0.01, halved above 20 peaks per unit and doubled
// below 1. It does not guarantee an optimal merge.
func DefaultSelector(f Features) (Strategy, float64) {
	strategy := AverageIntensity
	switch {
	case f.IntensityCV > highCVThreshold:
		strategy = MaxIntensity
	case f.Density > denseThreshold:
		strategy = WeightedAverage
	}

	tol := DefaultTolerance
	switch {
	case f.Density > veryDenseThreshold:
		tol *= 0.5
	case f.Density < sparseThreshold:
		tol *= 2
	}
	return strategy, tol
}

// AdvancedMerger chooses strategy and tolerance per call from the input.
// Callers needing deterministic behaviour should use Merger directly.
type AdvancedMerger struct {
	selector Selector
	opts     []Option
}

// NewAdvanced creates an AdvancedMerger. A nil selector uses DefaultSelector.
func NewAdvanced(selector Selector, opts ...Option) *AdvancedMerger {
	if selector == nil {
		selector = SelectorFunc(DefaultSelector)
	}
	return &AdvancedMerger{selector: selector, opts: opts}
}

// Plan reports the strategy and tolerance IntelligentMerge would use.
func (a *AdvancedMerger) Plan(peaks []core.Peak) (Strategy, float64, bool) {
	f, ok := AnalyzeFeatures(peaks)
	if !ok {
		return 0, 0, false
	}
	s, tol := a.selector.Select(f)
	return s, tol, true
}

// IntelligentMerge merges with the selected strategy. Lists shorter than two
// peaks are returned as a copy.
func (a *AdvancedMerger) IntelligentMerge(peaks []core.Peak) []core.Peak {
	strategy, tol, ok := a.Plan(peaks)
	if !ok {
		return append([]core.Peak(nil), peaks...)
	}
	return New(strategy, a.opts...).Merge(peaks, tol)
}
