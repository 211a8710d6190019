package merge

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/ChrisMcGann/mzkit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioPeaks = []core.Peak{
	{MZ: 100.0, Intensity: 1000},
	{MZ: 100.005, Intensity: 800},
	{MZ: 101.0, Intensity: 1200},
	{MZ: 200.0, Intensity: 500},
}

func TestMergeMaxIntensityScenario(t *testing.T) {
	merged := New(MaxIntensity).Merge(scenarioPeaks, 0.01)

	require.Len(t, merged, 3)
	assert.Equal(t, core.Peak{MZ: 100.0, Intensity: 1000}, merged[0])
	assert.Equal(t, core.Peak{MZ: 101.0, Intensity: 1200}, merged[1])
	assert.Equal(t, core.Peak{MZ: 200.0, Intensity: 500}, merged[2])
}

func TestMergeStrategies(t *testing.T) {
	pair := []core.Peak{{MZ: 100.0, Intensity: 300}, {MZ: 100.004, Intensity: 100}}
	centroid := (100.0*300 + 100.004*100) / 400

	tests := []struct {
		strategy Strategy
		want     core.Peak
	}{
		{MaxIntensity, core.Peak{MZ: 100.0, Intensity: 300}},
		{AverageIntensity, core.Peak{MZ: centroid, Intensity: 200}},
		{SumIntensity, core.Peak{MZ: centroid, Intensity: 400}},
		{WeightedAverage, core.Peak{MZ: centroid, Intensity: 300}},
	}

	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			merged := New(tt.strategy).Merge(pair, 0.01)
			require.Len(t, merged, 1)
			assert.InDelta(t, tt.want.MZ, merged[0].MZ, 1e-9)
			assert.InDelta(t, tt.want.Intensity, merged[0].Intensity, 1e-9)
		})
	}
}

func TestMergeZeroIntensityGroupUsesPlainMean(t *testing.T) {
	pair := []core.Peak{{MZ: 100.0, Intensity: 0}, {MZ: 100.002, Intensity: 0}}
	for _, s := range []Strategy{AverageIntensity, SumIntensity, WeightedAverage} {
		merged := New(s).Merge(pair, 0.01)
		require.Len(t, merged, 1)
		assert.InDelta(t, 100.001, merged[0].MZ, 1e-9, s.String())
		assert.Zero(t, merged[0].Intensity)
	}
}

func TestMergeChainsPeakToPeak(t *testing.T) {
	var chain []core.Peak
	for i := range 10 {
		chain = append(chain, core.Peak{MZ: 100 + float64(i)*0.008, Intensity: 1})
	}
	merged := New(SumIntensity).Merge(chain, 0.01)
	require.Len(t, merged, 1, "ends are 0.072 apart but each step is within tolerance")
	assert.Equal(t, 10.0, merged[0].Intensity)
}

func TestMergeSortsAndDoesNotMutateInput(t *testing.T) {
	in := []core.Peak{{MZ: 200, Intensity: 1}, {MZ: 100, Intensity: 2}, {MZ: 100.001, Intensity: 3}}
	orig := append([]core.Peak(nil), in...)

	merged := New(MaxIntensity).Merge(in, 0.01)
	assert.Equal(t, orig, in)
	assert.Equal(t, []core.Peak{{MZ: 100.001, Intensity: 3}, {MZ: 200, Intensity: 1}}, merged)
}

func TestMergeEmptyAndSingle(t *testing.T) {
	m := New(AverageIntensity)
	assert.Empty(t, m.Merge(nil, 0.01))
	assert.Equal(t, []core.Peak{{MZ: 5, Intensity: 6}}, m.Merge([]core.Peak{{MZ: 5, Intensity: 6}}, 0.01))
}

func TestMergeIsIdempotentOnSeparatedPeaks(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for _, s := range []Strategy{MaxIntensity, AverageIntensity, SumIntensity, WeightedAverage} {
		var peaks []core.Peak
		for range 200 {
			peaks = append(peaks, core.Peak{MZ: 100 + rng.Float64()*50, Intensity: rng.Float64() * 1000})
		}
		m := New(s)
		once := m.Merge(peaks, 0.05)
		twice := m.Merge(once, 0.05)

		// Representatives stay inside their group's m/z span, so adjacent
		// outputs remain farther apart than the tolerance.
		assert.Equal(t, once, twice, s.String())
		for i := 1; i < len(twice); i++ {
			assert.Greater(t, twice[i].MZ-twice[i-1].MZ, 0.05)
		}
	}

	separated := []core.Peak{{MZ: 100, Intensity: 1}, {MZ: 101, Intensity: 2}, {MZ: 102, Intensity: 3}}
	assert.Equal(t, separated, New(AverageIntensity).Merge(separated, 0.01))
}

func TestMergeMultiple(t *testing.T) {
	a := []core.Peak{{MZ: 100, Intensity: 1}, {MZ: 300, Intensity: 1}}
	b := []core.Peak{{MZ: 100.002, Intensity: 2}}
	merged := New(SumIntensity).MergeMultiple([][]core.Peak{a, b}, 0.01)
	require.Len(t, merged, 2)
	assert.Equal(t, 3.0, merged[0].Intensity)
}

func TestHierarchical(t *testing.T) {
	peaks := []core.Peak{
		{MZ: 100.000, Intensity: 1},
		{MZ: 100.004, Intensity: 1},
		{MZ: 100.030, Intensity: 1},
		{MZ: 100.500, Intensity: 1},
	}
	m := New(SumIntensity)

	assert.Len(t, m.Hierarchical(peaks, []float64{0.005}), 3)
	assert.Len(t, m.Hierarchical(peaks, []float64{0.005, 0.05}), 2)
	assert.Len(t, m.Hierarchical(peaks, []float64{0.005, 0.05, 1}), 1)
	assert.Len(t, m.Hierarchical(peaks, nil), 4)
}

func TestDensityBased(t *testing.T) {
	m := New(MaxIntensity)

	small := []core.Peak{{MZ: 100, Intensity: 1}, {MZ: 100.005, Intensity: 2}}
	assert.Equal(t, m.Merge(small, 0.01), m.DensityBased(small, 0.01))

	// Tolerance stays within [0.5, 1.5] * base whatever the factors.
	var uniform []core.Peak
	for i := range 20 {
		uniform = append(uniform, core.Peak{MZ: 100 + float64(i)*0.02, Intensity: 1})
	}
	assert.Len(t, m.DensityBased(uniform, 0.01), 20)
	assert.Len(t, m.DensityBased(uniform, 0.05), 1)

	identical := []core.Peak{{MZ: 100, Intensity: 1}, {MZ: 100, Intensity: 3}, {MZ: 100, Intensity: 2}}
	merged := m.DensityBased(identical, 0.01)
	require.Len(t, merged, 1)
	assert.Equal(t, 3.0, merged[0].Intensity)
}

func TestDensityFactorsNormalised(t *testing.T) {
	peaks := []core.Peak{
		{MZ: 100}, {MZ: 100.001}, {MZ: 100.002}, {MZ: 100.003},
		{MZ: 110}, {MZ: 120}, {MZ: 130}, {MZ: 140},
	}
	factors := densityFactors(peaks, 2)
	for _, f := range factors {
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
	assert.Greater(t, factors[1], factors[6])
}

func TestStatistics(t *testing.T) {
	m := New(MaxIntensity)
	merged := m.Merge(scenarioPeaks, 0.01)
	st := m.Statistics(scenarioPeaks, merged)

	assert.Equal(t, 4, st.OriginalCount)
	assert.Equal(t, 3, st.MergedCount)
	assert.InDelta(t, 0.25, st.ReductionRatio, 1e-12)
	assert.InDelta(t, 2700.0/3500.0, st.IntensityRetention, 1e-12)
	assert.Equal(t, MaxIntensity, st.Strategy)

	empty := m.Statistics(nil, nil)
	assert.Zero(t, empty.ReductionRatio)
	assert.Equal(t, 1.0, empty.IntensityRetention)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{MaxIntensity, AverageIntensity, SumIntensity, WeightedAverage} {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("median")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestAnalyzeFeatures(t *testing.T) {
	_, ok := AnalyzeFeatures([]core.Peak{{MZ: 1, Intensity: 1}})
	assert.False(t, ok)

	f, ok := AnalyzeFeatures([]core.Peak{{MZ: 100, Intensity: 10}, {MZ: 102, Intensity: 30}})
	require.True(t, ok)
	assert.Equal(t, 2, f.Count)
	assert.Equal(t, 20.0, f.AvgIntensity)
	assert.Equal(t, 2.0, f.MZSpan)
	assert.Equal(t, 1.0, f.Density)
	assert.InDelta(t, math.Sqrt(200)/20, f.IntensityCV, 1e-12)

	same, ok := AnalyzeFeatures([]core.Peak{{MZ: 100, Intensity: 1}, {MZ: 100, Intensity: 1}})
	require.True(t, ok)
	assert.True(t, math.IsInf(same.Density, 1))
}

func TestDefaultSelector(t *testing.T) {
	tests := []struct {
		name     string
		f        Features
		strategy Strategy
		tol      float64
	}{
		{"high cv", Features{IntensityCV: 1.5, Density: 5}, MaxIntensity, 0.01},
		{"dense", Features{IntensityCV: 0.2, Density: 15}, WeightedAverage, 0.01},
		{"very dense", Features{IntensityCV: 0.2, Density: 25}, WeightedAverage, 0.005},
		{"sparse", Features{IntensityCV: 0.2, Density: 0.5}, AverageIntensity, 0.02},
		{"high cv and dense", Features{IntensityCV: 3, Density: 50}, MaxIntensity, 0.005},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, tol := DefaultSelector(tt.f)
			assert.Equal(t, tt.strategy, s)
			assert.InDelta(t, tt.tol, tol, 1e-12)
		})
	}
}

func TestIntelligentMerge(t *testing.T) {
	a := NewAdvanced(nil)
	single := []core.Peak{{MZ: 100, Intensity: 1}}
	assert.Equal(t, single, a.IntelligentMerge(single))

	merged := a.IntelligentMerge(scenarioPeaks)
	assert.Len(t, merged, 3)

	var called Features
	custom := NewAdvanced(SelectorFunc(func(f Features) (Strategy, float64) {
		called = f
		return SumIntensity, 150
	}))
	out := custom.IntelligentMerge(scenarioPeaks)
	assert.Equal(t, 4, called.Count)
	require.Len(t, out, 1)
	assert.Equal(t, 3500.0, out[0].Intensity)
}
