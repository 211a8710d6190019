package core

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpectrum(t *testing.T, level int, peaks ...Peak) *Spectrum {
	t.Helper()
	s, err := NewSpectrum(level)
	require.NoError(t, err)
	require.NoError(t, s.AddPeaks(peaks))
	return s
}

func TestNewSpectrumLevels(t *testing.T) {
	tests := []struct {
		level   int
		wantErr bool
	}{
		{level: 0, wantErr: true},
		{level: 1},
		{level: 2},
		{level: 10},
		{level: 11, wantErr: true},
		{level: -1, wantErr: true},
	}

	for _, tt := range tests {
		s, err := NewSpectrum(tt.level)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidMSLevel, "level %d", tt.level)
			assert.Nil(t, s)
			continue
		}
		require.NoError(t, err, "level %d", tt.level)
		assert.Equal(t, tt.level, s.Level())
		assert.True(t, s.IsSorted(), "new spectrum should start sorted")
	}
}

func TestTotalIonCurrentAndBasePeak(t *testing.T) {
	s := newSpectrum(t, 1)
	require.NoError(t, s.AddPeak(100.0, 1000.0))
	require.NoError(t, s.AddPeak(200.0, 2000.0))

	assert.Equal(t, 3000.0, s.TotalIonCurrent())
	bp, ok := s.BasePeak()
	require.True(t, ok)
	assert.Equal(t, Peak{MZ: 200.0, Intensity: 2000.0}, bp)
}

func TestBasePeakFirstMaximumWins(t *testing.T) {
	s := newSpectrum(t, 1, Peak{300, 50}, Peak{100, 50}, Peak{200, 10})

	bp, _ := s.BasePeak()
	assert.Equal(t, 300.0, bp.MZ)

	s.SortPeaks()
	bp, _ = s.BasePeak()
	assert.Equal(t, 100.0, bp.MZ, "tie resolves by current order")
}

func TestEmptySpectrumQueries(t *testing.T) {
	s := newSpectrum(t, 1)

	assert.Zero(t, s.TotalIonCurrent())
	_, ok := s.BasePeak()
	assert.False(t, ok)
	_, ok = s.MZRange()
	assert.False(t, ok)
	_, _, ok = s.FindPeakRange(0, 1000)
	assert.False(t, ok)
}

func TestAddPeakRejectsInvalid(t *testing.T) {
	tests := []struct {
		name      string
		mz        float64
		intensity float64
	}{
		{"negative mz", -1, 10},
		{"negative intensity", 100, -0.5},
		{"nan mz", math.NaN(), 10},
		{"inf intensity", 100, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSpectrum(t, 1)
			err := s.AddPeak(tt.mz, tt.intensity)
			assert.ErrorIs(t, err, ErrInvalidPeakData)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "peak", verr.Field)
			assert.Zero(t, s.PeakCount())
		})
	}
}

func TestAddPeaksIsAtomic(t *testing.T) {
	s := newSpectrum(t, 1, Peak{100, 1})
	s.SortPeaks()

	err := s.AddPeaks([]Peak{{200, 1}, {-5, 1}})
	assert.ErrorIs(t, err, ErrInvalidPeakData)
	assert.Equal(t, 1, s.PeakCount())
	assert.True(t, s.IsSorted(), "failed bulk add leaves state untouched")

	require.NoError(t, s.AddPeaks([]Peak{{50, 1}}))
	assert.False(t, s.IsSorted(), "bulk add invalidates sort flag")
}

func TestSetPeaksFromArrays(t *testing.T) {
	s := newSpectrum(t, 1)

	err := s.SetPeaksFromArrays([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	require.NoError(t, s.SetPeaksFromArrays([]float64{300, 100}, []float64{3, 1}))
	assert.Equal(t, []Peak{{300, 3}, {100, 1}}, s.Peaks())
}

func TestSortedFlagStateMachine(t *testing.T) {
	s := newSpectrum(t, 1, Peak{300, 1}, Peak{100, 2}, Peak{200, 3})
	assert.False(t, s.IsSorted())

	_, _, ok := s.FindPeakRange(0, 1000)
	assert.False(t, ok, "unsorted spectrum must not answer range lookups")

	s.SortPeaks()
	assert.True(t, s.IsSorted())
	peaks := s.Peaks()
	for i := 1; i < len(peaks); i++ {
		assert.LessOrEqual(t, peaks[i-1].MZ, peaks[i].MZ)
	}

	require.NoError(t, s.AddPeak(400, 1))
	assert.False(t, s.IsSorted())
	_, _, ok = s.FindPeakRange(0, 1000)
	assert.False(t, ok)

	s.SortPeaks()
	s.FilterByIntensity(2)
	assert.False(t, s.IsSorted(), "filters invalidate the flag")

	s.ClearPeaks()
	assert.True(t, s.IsSorted())
	assert.Zero(t, s.PeakCount())
}

func TestSortPeaksRandomized(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	s := newSpectrum(t, 1)
	for range 500 {
		require.NoError(t, s.AddPeak(rng.Float64()*2000, rng.Float64()*1e6))
	}
	s.SortPeaks()

	prev := -1.0
	for _, p := range s.All() {
		assert.GreaterOrEqual(t, p.MZ, prev)
		prev = p.MZ
	}
}

func TestFindPeakRange(t *testing.T) {
	s := newSpectrum(t, 1, Peak{100, 1}, Peak{150, 1}, Peak{200, 1}, Peak{200, 2}, Peak{250, 1})
	s.SortPeaks()

	tests := []struct {
		name       string
		lo, hi     float64
		start, end int
		ok         bool
	}{
		{"exact bounds inclusive", 150, 200, 1, 4, true},
		{"all", 0, 1000, 0, 5, true},
		{"single", 250, 250, 4, 5, true},
		{"gap", 160, 190, 0, 0, false},
		{"reversed", 200, 100, 0, 0, false},
		{"above", 300, 400, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := s.FindPeakRange(tt.lo, tt.hi)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestPeaksInToleranceSortedAndUnsorted(t *testing.T) {
	s := newSpectrum(t, 1, Peak{500.004, 1}, Peak{100, 1}, Peak{499.996, 1}, Peak{500.2, 1})

	unsorted := s.PeaksInTolerance(500, 0.005)
	assert.Len(t, unsorted, 2)

	s.SortPeaks()
	sorted := s.PeaksInTolerance(500, 0.005)
	assert.Equal(t, []int{1, 2}, sorted)
}

func TestMZRangeIgnoresOrder(t *testing.T) {
	s := newSpectrum(t, 2, Peak{300, 1}, Peak{120.5, 1}, Peak{900.1, 1})
	r, ok := s.MZRange()
	require.True(t, ok)
	assert.Equal(t, Range{Low: 120.5, High: 900.1}, r)
}

func TestValidate(t *testing.T) {
	s := newSpectrum(t, 1)
	assert.ErrorIs(t, s.Validate(), ErrEmptyPeakList)

	require.NoError(t, s.AddPeak(100, 1))
	assert.NoError(t, s.Validate())

	bad := &Spectrum{level: 12}
	err := bad.Validate()
	assert.ErrorIs(t, err, ErrInvalidMSLevel)
	assert.ErrorIs(t, err, ErrEmptyPeakList)
}

func TestAdditionalInfoDuplicateKey(t *testing.T) {
	s := newSpectrum(t, 1)
	require.NoError(t, s.AddAdditionalInfo("filter", "FTMS"))
	require.NoError(t, s.AddAdditionalInfo("polarity", "+"))

	err := s.AddAdditionalInfo("filter", "ITMS")
	assert.ErrorIs(t, err, ErrDuplicateKey)

	info := s.AdditionalInfo()
	v, ok := info.Get("filter")
	assert.True(t, ok)
	assert.Equal(t, "FTMS", v)
	assert.Equal(t, []KeyValue{{"filter", "FTMS"}, {"polarity", "+"}}, info.Entries())
}

func TestScanTimes(t *testing.T) {
	s := newSpectrum(t, 1)

	assert.ErrorIs(t, s.SetRetentionTime(-1), ErrInvalidRetentionTime)
	assert.ErrorIs(t, s.SetDriftTime(math.NaN()), ErrInvalidDriftTime)
	require.NoError(t, s.SetRetentionTime(12.5))
	require.NoError(t, s.SetDriftTime(0.021))

	err := s.SetScanInfo(ScanInfo{RetentionTime: 1, DriftTime: -2})
	assert.ErrorIs(t, err, ErrInvalidDriftTime)
	assert.Equal(t, 12.5, s.RetentionTime(), "rejected scan info is not applied")

	info := ScanInfo{ScanNumber: 7, RetentionTime: 30, ScanWindow: Range{100, 2000}}
	require.NoError(t, info.Info.Add("filter", "FTMS + p"))
	require.NoError(t, s.SetScanInfo(info))
	assert.Equal(t, uint32(7), s.ScanNumber())
	assert.Equal(t, 30.0, s.RetentionTime())
}

func TestPrecursorOwnership(t *testing.T) {
	ms1 := newSpectrum(t, 1)
	assert.ErrorIs(t, ms1.SetPrecursor(PrecursorInfo{MZ: 500}), ErrPrecursorOnMS1)

	ms2 := newSpectrum(t, 2)
	_, ok := ms2.Precursor()
	assert.False(t, ok)

	require.NoError(t, ms2.SetPrecursor(PrecursorInfo{MZ: 500.25, Charge: 2, ActivationMethod: "HCD"}))
	p, ok := ms2.Precursor()
	require.True(t, ok)
	p.MZ = 1
	p2, _ := ms2.Precursor()
	assert.Equal(t, 500.25, p2.MZ, "returned precursor is a copy")

	ms2.ClearPrecursor()
	_, ok = ms2.Precursor()
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	s := newSpectrum(t, 2, Peak{100, 1})
	require.NoError(t, s.SetPrecursor(PrecursorInfo{MZ: 400}))
	require.NoError(t, s.AddAdditionalInfo("k", "v"))

	c := s.Clone()
	require.NoError(t, c.AddPeak(200, 2))
	require.NoError(t, c.AddAdditionalInfo("k2", "v2"))

	assert.Equal(t, 1, s.PeakCount())
	assert.Equal(t, 1, s.AdditionalInfo().Len())
	p, _ := c.Precursor()
	assert.Equal(t, 400.0, p.MZ)
}
