package index

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/mzkit/pkg/core"
)

type span struct {
	first, last int // inclusive indexes into peaks
}

// BinnedSpectra is the lightweight variant: all peaks flattened into one
// m/z-sorted array, with each occupied bucket floor(mz/binSize) recorded as
// an index span into it. Spectrum identity is not kept.
type BinnedSpectra struct {
	binSize float64
	peaks   []core.Peak
	keys    []int
	spans   []span
}

// NewBinnedSpectra flattens spectra into a sorted bucketed array. Invalid bin
// sizes yield an empty index.
func NewBinnedSpectra(spectra []*core.Spectrum, binSize float64) *BinnedSpectra {
	bs := &BinnedSpectra{binSize: binSize}
	if !(binSize > 0) || math.IsInf(binSize, 0) {
		return bs
	}

	for _, s := range spectra {
		if s != nil {
			bs.peaks = append(bs.peaks, s.Peaks()...)
		}
	}
	sort.SliceStable(bs.peaks, func(i, j int) bool {
		return bs.peaks[i].MZ < bs.peaks[j].MZ
	})

	for i, p := range bs.peaks {
		key := bs.bucket(p.MZ)
		if n := len(bs.keys); n > 0 && bs.keys[n-1] == key {
			bs.spans[n-1].last = i
			continue
		}
		bs.keys = append(bs.keys, key)
		bs.spans = append(bs.spans, span{first: i, last: i})
	}
	return bs
}

// maxBucket saturates bucket keys so they stay ordered for any m/z.
const maxBucket = math.MaxInt32

func (bs *BinnedSpectra) bucket(mz float64) int {
	q := math.Floor(mz / bs.binSize)
	switch {
	case !(q > 0):
		return 0
	case q >= maxBucket:
		return maxBucket
	}
	return int(q)
}

// Search returns peaks with lo <= m/z <= hi in ascending m/z order.
func (bs *BinnedSpectra) Search(lo, hi float64) []core.Peak {
	if len(bs.peaks) == 0 || !(lo <= hi) {
		return nil
	}
	lo = math.Max(lo, 0)
	if hi < lo {
		return nil
	}

	first, last := bs.bucket(lo), bs.bucket(math.Min(hi, bs.peaks[len(bs.peaks)-1].MZ))
	var out []core.Peak
	start := sort.SearchInts(bs.keys, first)
	for k := start; k < len(bs.keys) && bs.keys[k] <= last; k++ {
		sp := bs.spans[k]
		for _, p := range bs.peaks[sp.first : sp.last+1] {
			if p.MZ >= lo && p.MZ <= hi {
				out = append(out, p)
			}
		}
	}
	return out
}

// PeakCount returns the number of flattened peaks.
func (bs *BinnedSpectra) PeakCount() int { return len(bs.peaks) }

// BucketCount returns the number of occupied buckets.
func (bs *BinnedSpectra) BucketCount() int { return len(bs.keys) }
