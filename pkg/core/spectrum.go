// Package core provides the spectrum model, its validation rules and the
// peptide chemistry used to derive extraction targets.
package core

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sort"
)

// MS level bounds accepted by NewSpectrum.
const (
	MinMSLevel = 1
	MaxMSLevel = 10
)

// Spectrum represents a single scan: its peaks plus acquisition metadata.
//
// The sorted flag records whether peaks are known to be ascending by m/z.
// Every mutating peak operation clears it; SortPeaks and ClearPeaks set it.
type Spectrum struct {
	level     int
	peaks     []Peak
	sorted    bool
	scan      ScanInfo
	precursor *PrecursorInfo
	info      Metadata
}

// NewSpectrum creates an empty spectrum at the given MS level.
func NewSpectrum(level int) (*Spectrum, error) {
	if level < MinMSLevel || level > MaxMSLevel {
		return nil, invalid("level", ErrInvalidMSLevel, "must be between %d and %d, got %d", MinMSLevel, MaxMSLevel, level)
	}
	return &Spectrum{level: level, sorted: true}, nil
}

// Level returns the MS level.
func (s *Spectrum) Level() int {
	return s.level
}

// AddPeak appends a peak. Negative or non-finite values are rejected.
func (s *Spectrum) AddPeak(mz, intensity float64) error {
	p := Peak{MZ: mz, Intensity: intensity}
	if !p.Valid() {
		return invalid("peak", ErrInvalidPeakData, "m/z %v, intensity %v must be finite and non-negative", mz, intensity)
	}
	s.peaks = append(s.peaks, p)
	s.sorted = false
	return nil
}

// AddPeaks appends all peaks or none of them.
func (s *Spectrum) AddPeaks(peaks []Peak) error {
	if err := checkPeaks(peaks); err != nil {
		return err
	}
	s.peaks = append(s.peaks, peaks...)
	s.sorted = false
	return nil
}

// SetPeaks replaces the peak list with a copy of peaks.
func (s *Spectrum) SetPeaks(peaks []Peak) error {
	if err := checkPeaks(peaks); err != nil {
		return err
	}
	s.peaks = append([]Peak(nil), peaks...)
	s.sorted = false
	return nil
}

// SetPeaksFromArrays replaces the peak list from parallel m/z and intensity arrays.
func (s *Spectrum) SetPeaksFromArrays(mz, intensity []float64) error {
	if len(mz) != len(intensity) {
		return invalid("peaks", ErrLengthMismatch, "%d m/z values, %d intensities", len(mz), len(intensity))
	}
	peaks := make([]Peak, len(mz))
	for i := range mz {
		peaks[i] = Peak{MZ: mz[i], Intensity: intensity[i]}
	}
	return s.SetPeaks(peaks)
}

func checkPeaks(peaks []Peak) error {
	for i, p := range peaks {
		if !p.Valid() {
			return invalid("peak", ErrInvalidPeakData, "peak %d (m/z %v, intensity %v) must be finite and non-negative", i, p.MZ, p.Intensity)
		}
	}
	return nil
}

// ClearPeaks removes all peaks. An empty list is sorted.
func (s *Spectrum) ClearPeaks() {
	s.peaks = nil
	s.sorted = true
}

// SortPeaks sorts peaks by m/z in ascending order. Equal m/z keep insertion order.
func (s *Spectrum) SortPeaks() {
	if s.sorted {
		return
	}
	sort.SliceStable(s.peaks, func(i, j int) bool {
		return s.peaks[i].MZ < s.peaks[j].MZ
	})
	s.sorted = true
}

// IsSorted reports the sorted flag. It is not recomputed from the data.
func (s *Spectrum) IsSorted() bool {
	return s.sorted
}

// Peaks returns a copy of the peak list.
func (s *Spectrum) Peaks() []Peak {
	out := make([]Peak, len(s.peaks))
	copy(out, s.peaks)
	return out
}

// PeakAt returns the i-th peak in current order.
func (s *Spectrum) PeakAt(i int) Peak {
	return s.peaks[i]
}

// PeakCount returns the number of peaks.
func (s *Spectrum) PeakCount() int {
	return len(s.peaks)
}

// All iterates peaks in current order without copying.
func (s *Spectrum) All() iter.Seq2[int, Peak] {
	return func(yield func(int, Peak) bool) {
		for i, p := range s.peaks {
			if !yield(i, p) {
				return
			}
		}
	}
}

// Validate checks the spectrum invariants. It never mutates the spectrum.
func (s *Spectrum) Validate() error {
	var errs []error

	if s.level < MinMSLevel || s.level > MaxMSLevel {
		errs = append(errs, invalid("level", ErrInvalidMSLevel, "must be between %d and %d, got %d", MinMSLevel, MaxMSLevel, s.level))
	}
	if len(s.peaks) == 0 {
		errs = append(errs, invalid("peaks", ErrEmptyPeakList, "at least one peak is required"))
	}
	if err := checkPeaks(s.peaks); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// TotalIonCurrent returns the sum of all intensities.
func (s *Spectrum) TotalIonCurrent() float64 {
	total := 0.0
	for _, p := range s.peaks {
		total += p.Intensity
	}
	return total
}

// BasePeak returns the most intense peak. Ties go to the first maximum in
// current peak order, so the answer depends on whether the list was sorted.
func (s *Spectrum) BasePeak() (Peak, bool) {
	if len(s.peaks) == 0 {
		return Peak{}, false
	}
	best := s.peaks[0]
	for _, p := range s.peaks[1:] {
		if p.Intensity > best.Intensity {
			best = p
		}
	}
	return best, true
}

// MZRange returns the tight [min, max] m/z interval regardless of sort state.
func (s *Spectrum) MZRange() (Range, bool) {
	if len(s.peaks) == 0 {
		return Range{}, false
	}
	r := Range{Low: s.peaks[0].MZ, High: s.peaks[0].MZ}
	for _, p := range s.peaks[1:] {
		r.Low = math.Min(r.Low, p.MZ)
		r.High = math.Max(r.High, p.MZ)
	}
	return r, true
}

// FindPeakRange returns the half-open index range [start, end) of peaks with
// lo <= m/z <= hi. ok is false when the spectrum is unsorted, empty, or no
// peak falls in the range; callers should sort first or scan linearly.
func (s *Spectrum) FindPeakRange(lo, hi float64) (start, end int, ok bool) {
	if !s.sorted || len(s.peaks) == 0 {
		return 0, 0, false
	}
	start = sort.Search(len(s.peaks), func(i int) bool { return s.peaks[i].MZ >= lo })
	end = sort.Search(len(s.peaks), func(i int) bool { return s.peaks[i].MZ > hi })
	if start >= end {
		return 0, 0, false
	}
	return start, end, true
}

// PeaksInTolerance returns indices of peaks within tol of target.
func (s *Spectrum) PeaksInTolerance(target, tol float64) []int {
	lo, hi := target-tol, target+tol
	if s.sorted {
		start, end, ok := s.FindPeakRange(lo, hi)
		if !ok {
			return nil
		}
		idx := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			idx = append(idx, i)
		}
		return idx
	}

	var idx []int
	for i, p := range s.peaks {
		if p.MZ >= lo && p.MZ <= hi {
			idx = append(idx, i)
		}
	}
	return idx
}

// RetainPeaks keeps only peaks for which keep returns true and reports how
// many were removed.
func (s *Spectrum) RetainPeaks(keep func(Peak) bool) int {
	kept := s.peaks[:0]
	for _, p := range s.peaks {
		if keep(p) {
			kept = append(kept, p)
		}
	}
	removed := len(s.peaks) - len(kept)
	clear(s.peaks[len(kept):])
	s.peaks = kept
	s.sorted = false
	return removed
}

// FilterByIntensity removes peaks below minIntensity.
func (s *Spectrum) FilterByIntensity(minIntensity float64) int {
	return s.RetainPeaks(func(p Peak) bool { return p.Intensity >= minIntensity })
}

// FilterByMZRange removes peaks outside [lo, hi].
func (s *Spectrum) FilterByMZRange(lo, hi float64) int {
	return s.RetainPeaks(func(p Peak) bool { return p.MZ >= lo && p.MZ <= hi })
}

// ScanInfo returns a copy of the scan metadata.
func (s *Spectrum) ScanInfo() ScanInfo {
	info := s.scan
	info.Info = s.scan.Info.Clone()
	return info
}

// SetScanInfo replaces the scan metadata after validating times.
func (s *Spectrum) SetScanInfo(info ScanInfo) error {
	if err := info.validate(); err != nil {
		return err
	}
	info.Info = info.Info.Clone()
	s.scan = info
	return nil
}

// ScanNumber returns the scan number.
func (s *Spectrum) ScanNumber() uint32 {
	return s.scan.ScanNumber
}

// SetScanNumber sets the scan number.
func (s *Spectrum) SetScanNumber(n uint32) {
	s.scan.ScanNumber = n
}

// RetentionTime returns the retention time in seconds.
func (s *Spectrum) RetentionTime() float64 {
	return s.scan.RetentionTime
}

// SetRetentionTime sets the retention time in seconds.
func (s *Spectrum) SetRetentionTime(rt float64) error {
	if !validValue(rt) {
		return invalid("retention_time", ErrInvalidRetentionTime, "must be finite and non-negative, got %v", rt)
	}
	s.scan.RetentionTime = rt
	return nil
}

// DriftTime returns the ion mobility drift time in seconds.
func (s *Spectrum) DriftTime() float64 {
	return s.scan.DriftTime
}

// SetDriftTime sets the drift time in seconds.
func (s *Spectrum) SetDriftTime(dt float64) error {
	if !validValue(dt) {
		return invalid("drift_time", ErrInvalidDriftTime, "must be finite and non-negative, got %v", dt)
	}
	s.scan.DriftTime = dt
	return nil
}

// SetScanWindow sets the acquisition m/z window.
func (s *Spectrum) SetScanWindow(lo, hi float64) {
	s.scan.ScanWindow = Range{Low: lo, High: hi}
}

// Precursor returns a copy of the precursor, if any.
func (s *Spectrum) Precursor() (PrecursorInfo, bool) {
	if s.precursor == nil {
		return PrecursorInfo{}, false
	}
	return *s.precursor, true
}

// SetPrecursor attaches precursor information. MS1 spectra cannot carry one.
func (s *Spectrum) SetPrecursor(p PrecursorInfo) error {
	if s.level == 1 {
		return invalid("precursor", ErrPrecursorOnMS1, "ms level 1 spectra have no precursor")
	}
	if err := p.validate(); err != nil {
		return err
	}
	s.precursor = &p
	return nil
}

// ClearPrecursor removes precursor information.
func (s *Spectrum) ClearPrecursor() {
	s.precursor = nil
}

// AddAdditionalInfo records a free-form key/value pair on the spectrum.
func (s *Spectrum) AddAdditionalInfo(key, value string) error {
	return s.info.Add(key, value)
}

// AdditionalInfo returns a copy of the spectrum metadata.
func (s *Spectrum) AdditionalInfo() Metadata {
	return s.info.Clone()
}

// Clone returns a deep copy.
func (s *Spectrum) Clone() *Spectrum {
	c := &Spectrum{
		level:  s.level,
		peaks:  s.Peaks(),
		sorted: s.sorted,
		scan:   s.ScanInfo(),
		info:   s.info.Clone(),
	}
	if s.precursor != nil {
		p := *s.precursor
		c.precursor = &p
	}
	return c
}

func (s *Spectrum) String() string {
	return fmt.Sprintf("Spectrum(level=%d, scan=%d, rt=%.2f, peaks=%d)",
		s.level, s.scan.ScanNumber, s.scan.RetentionTime, len(s.peaks))
}
