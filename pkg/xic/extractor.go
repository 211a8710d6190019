package xic

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ChrisMcGann/mzkit/internal/metrics"
	"github.com/ChrisMcGann/mzkit/pkg/core"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Extractor holds level-1 and level-2 spectra and extracts traces from the
// level-1 set. Load must complete before any extraction; after that the
// extractor is read-only and safe for concurrent extraction.
type Extractor struct {
	ms1     []*core.Spectrum
	ms2     []*core.Spectrum
	ppm     float64
	loaded  bool
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics reports load and extraction counters to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// NewExtractor creates an empty extractor.
func NewExtractor(ppmTolerance float64, opts ...Option) (*Extractor, error) {
	if !(ppmTolerance > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTolerance, ppmTolerance)
	}
	e := &Extractor{ppm: ppmTolerance, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Load replaces the held spectra with copies of the level-1 and level-2
// members of spectra. Other levels are ignored. Level-1 spectra are ordered
// by retention time with ties kept in input order, and their peaks sorted.
func (e *Extractor) Load(spectra []*core.Spectrum) {
	var ms1, ms2 []*core.Spectrum
	ignored := 0
	for _, s := range spectra {
		if s == nil {
			continue
		}
		switch s.Level() {
		case 1:
			c := s.Clone()
			c.SortPeaks()
			ms1 = append(ms1, c)
		case 2:
			ms2 = append(ms2, s.Clone())
		default:
			ignored++
		}
	}
	sort.SliceStable(ms1, func(i, j int) bool {
		return ms1[i].RetentionTime() < ms1[j].RetentionTime()
	})

	e.ms1, e.ms2 = ms1, ms2
	e.loaded = true

	e.metrics.SpectraLoaded(1, len(ms1))
	e.metrics.SpectraLoaded(2, len(ms2))
	e.logger.Debug("Loaded spectra",
		zap.Int("ms1", len(ms1)),
		zap.Int("ms2", len(ms2)),
		zap.Int("ignored", ignored))
}

// IsLoaded reports whether Load has been called.
func (e *Extractor) IsLoaded() bool { return e.loaded }

// MS1Count returns the number of level-1 spectra held.
func (e *Extractor) MS1Count() int { return len(e.ms1) }

// MS2Count returns the number of level-2 spectra held.
func (e *Extractor) MS2Count() int { return len(e.ms2) }

// PPMTolerance returns the mass tolerance in parts per million.
func (e *Extractor) PPMTolerance() float64 { return e.ppm }

// SetPPMTolerance changes the tolerance. It must not be called concurrently
// with extraction.
func (e *Extractor) SetPPMTolerance(ppm float64) error {
	if !(ppm > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, ppm)
	}
	e.ppm = ppm
	return nil
}

// ExtractSingle builds the trace of mz over [rtStart, rtEnd]. Each level-1
// spectrum in the window contributes one point holding the summed intensity
// of its peaks within mz*ppm*1e-6; spectra without a match contribute
// nothing. A reversed window yields an empty trace.
func (e *Extractor) ExtractSingle(mz float64, charge int, ionType string, rtStart, rtEnd float64) (Result, error) {
	if !e.loaded {
		return Result{}, ErrNotLoaded
	}
	started := time.Now()

	res := Result{MZ: mz, IonType: ionType, Charge: charge}
	tol := mz * e.ppm * 1e-6

	var weightedPPM, totalIntensity, plainPPM float64
	matched := 0

	first := sort.Search(len(e.ms1), func(i int) bool {
		return e.ms1[i].RetentionTime() >= rtStart
	})
	for _, s := range e.ms1[first:] {
		rt := s.RetentionTime()
		if rt > rtEnd {
			break
		}

		idx := s.PeaksInTolerance(mz, tol)
		if len(idx) == 0 {
			continue
		}
		sum := 0.0
		for _, i := range idx {
			p := s.PeakAt(i)
			dev := (p.MZ - mz) / mz * 1e6
			sum += p.Intensity
			weightedPPM += dev * p.Intensity
			plainPPM += dev
			matched++
		}
		totalIntensity += sum
		res.RT = append(res.RT, rt)
		res.Intensity = append(res.Intensity, sum)
	}

	switch {
	case totalIntensity > 0:
		res.PPMError = weightedPPM / totalIntensity
	case matched > 0:
		res.PPMError = plainPPM / float64(matched)
	}

	e.metrics.ObserveExtraction(time.Since(started), res.Len())
	return res, nil
}

// ExtractPrecursor extracts the monoisotopic trace of target followed by
// numIsotopes-1 isotope traces at mz + i/charge, labelled "SEQ[i+z]".
// numIsotopes below one is treated as one.
func (e *Extractor) ExtractPrecursor(target Target, numIsotopes int) ([]Result, error) {
	if !e.loaded {
		return nil, ErrNotLoaded
	}
	if target.Charge <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCharge, target.Charge)
	}
	numIsotopes = max(numIsotopes, 1)

	results := make([]Result, 0, numIsotopes)
	mono, err := e.ExtractSingle(target.MZ, target.Charge, target.Sequence, target.RTStart, target.RTEnd)
	if err != nil {
		return nil, err
	}
	results = append(results, mono)

	for isotope := 1; isotope < numIsotopes; isotope++ {
		mz := target.MZ + float64(isotope)/float64(target.Charge)
		label := fmt.Sprintf("%s[%d+%d]", target.Sequence, isotope, target.Charge)
		r, err := e.ExtractSingle(mz, target.Charge, label, target.RTStart, target.RTEnd)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// ExtractFragments extracts one trace per fragment ion of target, over the
// target's window.
func (e *Extractor) ExtractFragments(target Target) ([]Result, error) {
	if !e.loaded {
		return nil, ErrNotLoaded
	}
	results := make([]Result, 0, len(target.Fragments))
	for _, f := range target.Fragments {
		r, err := e.ExtractSingle(f.MZ, f.Charge, f.IonType, target.RTStart, target.RTEnd)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// ExtractBatch extracts every target sequentially over one window.
func (e *Extractor) ExtractBatch(targets []BatchTarget, rtStart, rtEnd float64) ([]Result, error) {
	if !e.loaded {
		return nil, ErrNotLoaded
	}
	results := make([]Result, 0, len(targets))
	for _, t := range targets {
		r, err := e.ExtractSingle(t.MZ, t.Charge, t.IonType, rtStart, rtEnd)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// ExtractBatchParallel is ExtractBatch spread over at most workers
// goroutines. Results are in input order. It stops early when ctx is done.
func (e *Extractor) ExtractBatchParallel(ctx context.Context, targets []BatchTarget, rtStart, rtEnd float64, workers int) ([]Result, error) {
	if !e.loaded {
		return nil, ErrNotLoaded
	}
	results := make([]Result, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i, t := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := e.ExtractSingle(t.MZ, t.Charge, t.IonType, rtStart, rtEnd)
			if err != nil {
				return fmt.Errorf("target %d (%s): %w", i, t.IonType, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Debug("Batch extraction complete",
		zap.Int("targets", len(targets)),
		zap.Int("workers", workers))
	return results, nil
}

// FilterByRT returns the spectra whose retention time lies in [start, end],
// in input order.
func FilterByRT(spectra []*core.Spectrum, start, end float64) []*core.Spectrum {
	var out []*core.Spectrum
	for _, s := range spectra {
		if rt := s.RetentionTime(); rt >= start && rt <= end {
			out = append(out, s)
		}
	}
	return out
}
