// Package index provides bucketed m/z indexes for repeated range queries
// over a static collection of spectra.
package index

import (
	"math"

	"github.com/ChrisMcGann/mzkit/pkg/core"
)

// Location identifies one peak inside the index's spectrum arena.
type Location struct {
	Spectrum int // position in the indexed collection
	Offset   int // peak position inside that spectrum
}

// Bin is a half-open m/z interval [Low, High) and the peaks that fall in it.
// The last bin also holds peaks at exactly the global maximum.
type Bin struct {
	Low       float64
	High      float64
	Locations []Location
}

// BinnedSpectraIndex partitions peaks of many spectra into equal-width bins.
// It owns private copies of its spectra and is read-only once built, so
// concurrent queries need no locking.
type BinnedSpectraIndex struct {
	spectra []*core.Spectrum
	binSize float64
	mzRange core.Range
	bins    []Bin
}

// NewBinnedSpectraIndex builds an index over clones of spectra. It never
// fails: empty input, a non-positive bin size or a non-finite m/z range
// produce an empty index.
func NewBinnedSpectraIndex(spectra []*core.Spectrum, binSize float64) *BinnedSpectraIndex {
	idx := &BinnedSpectraIndex{binSize: binSize}

	owned := make([]*core.Spectrum, 0, len(spectra))
	for _, s := range spectra {
		if s != nil {
			owned = append(owned, s.Clone())
		}
	}
	idx.spectra = owned

	r, ok := globalRange(owned)
	if !ok || !(binSize > 0) || math.IsInf(binSize, 0) {
		return idx
	}
	idx.mzRange = r

	n := binCount(r, binSize)
	if n <= 0 {
		return idx
	}
	idx.bins = make([]Bin, n)
	for i := range idx.bins {
		idx.bins[i].Low = r.Low + float64(i)*binSize
		idx.bins[i].High = r.Low + float64(i+1)*binSize
	}

	for si, s := range owned {
		for off, p := range s.All() {
			b := idx.binOf(p.MZ)
			idx.bins[b].Locations = append(idx.bins[b].Locations, Location{Spectrum: si, Offset: off})
		}
	}
	return idx
}

func globalRange(spectra []*core.Spectrum) (core.Range, bool) {
	r := core.Range{Low: math.Inf(1), High: math.Inf(-1)}
	for _, s := range spectra {
		if sr, ok := s.MZRange(); ok {
			r.Low = math.Min(r.Low, sr.Low)
			r.High = math.Max(r.High, sr.High)
		}
	}
	if math.IsInf(r.Low, 0) || math.IsInf(r.High, 0) || math.IsNaN(r.Width()) {
		return core.Range{}, false
	}
	return r, true
}

// binCount is ceil(width/binSize) with at least one bin so a collection
// whose peaks share one m/z is still indexed.
func binCount(r core.Range, binSize float64) int {
	n := math.Ceil(r.Width() / binSize)
	if math.IsNaN(n) || n > math.MaxInt32 {
		return 0
	}
	return max(int(n), 1)
}

// binOf maps an m/z to its bin, clamping to the valid index range before
// the integer conversion.
func (idx *BinnedSpectraIndex) binOf(mz float64) int {
	q := math.Floor((mz - idx.mzRange.Low) / idx.binSize)
	last := len(idx.bins) - 1
	switch {
	case !(q > 0):
		return 0
	case q >= float64(last):
		return last
	}
	return int(q)
}

// SearchLocations returns handles of peaks with lo <= m/z <= hi, in bin order.
// Reversed, NaN or out-of-range queries return nil.
func (idx *BinnedSpectraIndex) SearchLocations(lo, hi float64) []Location {
	if len(idx.bins) == 0 || !(lo <= hi) {
		return nil
	}
	if hi < idx.mzRange.Low || lo > idx.mzRange.High {
		return nil
	}
	lo = math.Max(lo, idx.mzRange.Low)
	hi = math.Min(hi, idx.mzRange.High)

	var out []Location
	for b := idx.binOf(lo); b <= idx.binOf(hi); b++ {
		for _, loc := range idx.bins[b].Locations {
			if mz := idx.Peak(loc).MZ; mz >= lo && mz <= hi {
				out = append(out, loc)
			}
		}
	}
	return out
}

// SearchRange returns copies of peaks with lo <= m/z <= hi in bin order,
// not globally sorted by m/z.
func (idx *BinnedSpectraIndex) SearchRange(lo, hi float64) []core.Peak {
	locs := idx.SearchLocations(lo, hi)
	if len(locs) == 0 {
		return nil
	}
	peaks := make([]core.Peak, len(locs))
	for i, loc := range locs {
		peaks[i] = idx.Peak(loc)
	}
	return peaks
}

// Peak resolves a handle returned by SearchLocations.
func (idx *BinnedSpectraIndex) Peak(loc Location) core.Peak {
	return idx.spectra[loc.Spectrum].PeakAt(loc.Offset)
}

// Spectrum returns a copy of the i-th indexed spectrum.
func (idx *BinnedSpectraIndex) Spectrum(i int) *core.Spectrum {
	return idx.spectra[i].Clone()
}

// Bins returns the bin boundaries and occupancy counts.
func (idx *BinnedSpectraIndex) Bins() []Bin {
	out := make([]Bin, len(idx.bins))
	for i, b := range idx.bins {
		out[i] = Bin{Low: b.Low, High: b.High, Locations: append([]Location(nil), b.Locations...)}
	}
	return out
}

// BinCount returns the number of bins.
func (idx *BinnedSpectraIndex) BinCount() int { return len(idx.bins) }

// BinSize returns the configured bin width.
func (idx *BinnedSpectraIndex) BinSize() float64 { return idx.binSize }

// SpectrumCount returns the number of indexed spectra.
func (idx *BinnedSpectraIndex) SpectrumCount() int { return len(idx.spectra) }

// PeakCount returns the number of indexed peaks.
func (idx *BinnedSpectraIndex) PeakCount() int {
	n := 0
	for _, b := range idx.bins {
		n += len(b.Locations)
	}
	return n
}

// Range returns the global m/z range; ok is false for an empty index.
func (idx *BinnedSpectraIndex) Range() (core.Range, bool) {
	return idx.mzRange, len(idx.bins) > 0
}
