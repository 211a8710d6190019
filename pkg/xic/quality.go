package xic

// QualityMetrics summarises the shape of a trace.
type QualityMetrics struct {
	Points        int
	MaxIntensity  float64
	MeanIntensity float64
	SignalToNoise float64
	Symmetry      float64 // 0..1, 1 for equal area either side of the apex
	SignalPoints  int
	NoisePoints   int
}

// noiseFraction sets the assumed noise floor as a fraction of the mean.
const noiseFraction = 0.1

// EvaluateQuality scores r with simple heuristics. The noise floor is a fixed
// 10% of the mean intensity, so SignalToNoise is max/(0.1*mean) and not a
// statistical estimate. Symmetry splits the area at the first maximum, with
// the apex counted on the right. An empty trace scores zero throughout.
func EvaluateQuality(r Result) QualityMetrics {
	n := len(r.Intensity)
	if n == 0 {
		return QualityMetrics{}
	}

	apex := 0
	total := 0.0
	for i, v := range r.Intensity {
		total += v
		if v > r.Intensity[apex] {
			apex = i
		}
	}

	q := QualityMetrics{
		Points:        n,
		MaxIntensity:  r.Intensity[apex],
		MeanIntensity: total / float64(n),
	}

	noise := q.MeanIntensity * noiseFraction
	for _, v := range r.Intensity {
		if v > noise {
			q.SignalPoints++
		}
	}
	q.NoisePoints = n - q.SignalPoints
	if noise > 0 {
		q.SignalToNoise = q.MaxIntensity / noise
	}

	left := 0.0
	for _, v := range r.Intensity[:apex] {
		left += v
	}
	right := total - left
	if left+right > 0 {
		q.Symmetry = 2 * min(left, right) / (left + right)
	}
	return q
}
