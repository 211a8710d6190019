// Package mobility groups ion-mobility spectra into drift-time frames and
// analyses them.
package mobility

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/mzkit/pkg/core"
	"github.com/ChrisMcGann/mzkit/pkg/merge"
	"golang.org/x/sync/errgroup"
)

// DefaultMZTolerance is the m/z tolerance used to collapse peaks in a frame.
const DefaultMZTolerance = 0.01

// Frame holds the merged peaks of every spectrum sharing one drift time,
// keyed by whole milliseconds.
type Frame struct {
	DriftMS int
	Peaks   []core.Peak // ascending m/z
}

// DriftTime returns the frame's drift time in seconds.
func (f Frame) DriftTime() float64 {
	return float64(f.DriftMS) / 1000
}

// TotalIonCurrent sums the frame's intensities.
func (f Frame) TotalIonCurrent() float64 {
	tic := 0.0
	for _, p := range f.Peaks {
		tic += p.Intensity
	}
	return tic
}

// Options control Aggregate.
type Options struct {
	// RTRange restricts input spectra by retention time when non-nil.
	RTRange *core.Range
	// MZTolerance is the merge tolerance; zero selects DefaultMZTolerance.
	MZTolerance float64
	// Workers bounds concurrent frame merges; zero or less means one.
	Workers int
}

func driftKey(seconds float64) int {
	return int(seconds * 1000)
}

// Aggregate groups spectra with a positive drift time by integer drift
// milliseconds, pools each group's peaks and collapses them with a
// MaxIntensity merge. Frames are returned in ascending drift order.
func Aggregate(spectra []*core.Spectrum, opts Options) []Frame {
	tol := opts.MZTolerance
	if !(tol > 0) || math.IsInf(tol, 0) {
		tol = DefaultMZTolerance
	}

	pooled := make(map[int][]core.Peak)
	for _, s := range spectra {
		if s == nil || !(s.DriftTime() > 0) {
			continue
		}
		if opts.RTRange != nil && !opts.RTRange.Contains(s.RetentionTime()) {
			continue
		}
		key := driftKey(s.DriftTime())
		pooled[key] = append(pooled[key], s.Peaks()...)
	}

	frames := make([]Frame, 0, len(pooled))
	for key, peaks := range pooled {
		frames = append(frames, Frame{DriftMS: key, Peaks: peaks})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].DriftMS < frames[j].DriftMS })

	merger := merge.New(merge.MaxIntensity)
	var g errgroup.Group
	g.SetLimit(max(opts.Workers, 1))
	for i := range frames {
		g.Go(func() error {
			frames[i].Peaks = merger.Merge(frames[i].Peaks, tol)
			return nil
		})
	}
	_ = g.Wait() // merges cannot fail

	return frames
}
