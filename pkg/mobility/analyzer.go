package mobility

import (
	"sort"

	"github.com/ChrisMcGann/mzkit/pkg/core"
)

// Point is one drift-time sample.
type Point struct {
	DriftTime float64
	Intensity float64
}

// Summary describes how peaks distribute across frames.
type Summary struct {
	Frames           int
	TotalPeaks       int
	AvgPeaksPerFrame float64
	MaxPeaks         int
	MinPeaks         int
	BusiestDriftTime float64 // first frame holding MaxPeaks
	DriftRange       core.Range
}

// Analyzer answers queries over aggregated frames.
type Analyzer struct {
	frames      []Frame
	calibration *Calibration
}

// NewAnalyzer aggregates spectra with opts.
func NewAnalyzer(spectra []*core.Spectrum, opts Options) *Analyzer {
	return NewAnalyzerFromFrames(Aggregate(spectra, opts))
}

// NewAnalyzerFromFrames wraps frames already in ascending drift order.
func NewAnalyzerFromFrames(frames []Frame) *Analyzer {
	return &Analyzer{frames: frames}
}

// Frames returns a copy of the frame list.
func (a *Analyzer) Frames() []Frame {
	return append([]Frame(nil), a.frames...)
}

// DriftRange returns the lowest and highest frame drift times in seconds.
func (a *Analyzer) DriftRange() (core.Range, bool) {
	if len(a.frames) == 0 {
		return core.Range{}, false
	}
	return core.Range{Low: a.frames[0].DriftTime(), High: a.frames[len(a.frames)-1].DriftTime()}, true
}

// FrameAt returns the frame nearest driftTime when it lies within tolerance
// seconds, compared in whole milliseconds. Equal distances pick the lower
// drift time.
func (a *Analyzer) FrameAt(driftTime, tolerance float64) (Frame, bool) {
	target, tolMS := driftKey(driftTime), driftKey(tolerance)
	best, bestDist := -1, 0
	for i, f := range a.frames {
		d := f.DriftMS - target
		if d < 0 {
			d = -d
		}
		if d <= tolMS && (best < 0 || d < bestDist) {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Frame{}, false
	}
	f := a.frames[best]
	f.Peaks = append([]core.Peak(nil), f.Peaks...)
	return f, true
}

// TotalIonCurrent returns the TIC of each frame in drift order.
func (a *Analyzer) TotalIonCurrent() []Point {
	out := make([]Point, len(a.frames))
	for i, f := range a.frames {
		out[i] = Point{DriftTime: f.DriftTime(), Intensity: f.TotalIonCurrent()}
	}
	return out
}

// OptimalDriftTime returns the frame with the highest TIC, the lowest drift
// time winning ties.
func (a *Analyzer) OptimalDriftTime() (Point, bool) {
	var best Point
	found := false
	for _, p := range a.TotalIonCurrent() {
		if !found || p.Intensity > best.Intensity {
			best, found = p, true
		}
	}
	return best, found
}

// MobilityChromatogram sums intensities within tolerance of targetMZ in each
// frame. Frames without a match are omitted.
func (a *Analyzer) MobilityChromatogram(targetMZ, tolerance float64) []Point {
	var out []Point
	lo, hi := targetMZ-tolerance, targetMZ+tolerance
	for _, f := range a.frames {
		start := sort.Search(len(f.Peaks), func(i int) bool { return f.Peaks[i].MZ >= lo })
		sum, matched := 0.0, false
		for _, p := range f.Peaks[start:] {
			if p.MZ > hi {
				break
			}
			sum += p.Intensity
			matched = true
		}
		if matched {
			out = append(out, Point{DriftTime: f.DriftTime(), Intensity: sum})
		}
	}
	return out
}

// Summary reports the peak distribution across frames.
func (a *Analyzer) Summary() (Summary, bool) {
	if len(a.frames) == 0 {
		return Summary{}, false
	}
	s := Summary{Frames: len(a.frames), MinPeaks: len(a.frames[0].Peaks)}
	s.DriftRange, _ = a.DriftRange()
	for _, f := range a.frames {
		n := len(f.Peaks)
		s.TotalPeaks += n
		if n > s.MaxPeaks {
			s.MaxPeaks = n
			s.BusiestDriftTime = f.DriftTime()
		}
		s.MinPeaks = min(s.MinPeaks, n)
	}
	if s.MaxPeaks == 0 {
		s.BusiestDriftTime = a.frames[0].DriftTime()
	}
	s.AvgPeaksPerFrame = float64(s.TotalPeaks) / float64(s.Frames)
	return s, true
}

// SetCalibration attaches a drift-time calibration.
func (a *Analyzer) SetCalibration(c Calibration) {
	a.calibration = &c
}

// Calibration returns the attached calibration.
func (a *Analyzer) Calibration() (Calibration, bool) {
	if a.calibration == nil {
		return Calibration{}, false
	}
	return *a.calibration, true
}

// CalibratedValue applies the attached calibration to driftTime.
func (a *Analyzer) CalibratedValue(driftTime float64) (float64, bool) {
	if a.calibration == nil {
		return 0, false
	}
	return a.calibration.Apply(driftTime), true
}
