// Package xic extracts ion chromatograms from level-1 spectra and scores
// their shape.
package xic

import "errors"

// Sentinel errors for extraction.
var (
	ErrNotLoaded        = errors.New("xic: extractor has no spectra loaded")
	ErrInvalidCharge    = errors.New("xic: charge must be positive")
	ErrInvalidTolerance = errors.New("xic: ppm tolerance must be positive")
	ErrInvalidTarget    = errors.New("xic: invalid target")
)

// Result is an extracted trace. RT and Intensity are parallel and RT is
// non-decreasing. Retention times with no matching peak are absent.
type Result struct {
	RT        []float64
	Intensity []float64
	MZ        float64
	PPMError  float64 // intensity-weighted mean deviation of matched peaks
	IonType   string
	Charge    int
}

// Len returns the number of points.
func (r Result) Len() int {
	return len(r.RT)
}

// FragmentIon is one product ion to extract.
type FragmentIon struct {
	IonType string
	Charge  int
	MZ      float64
}

// Target describes a precursor and its fragments over a retention-time window.
type Target struct {
	Sequence         string
	ModifiedSequence string
	Charge           int
	MZ               float64
	RT               float64
	RTStart          float64
	RTEnd            float64
	Fragments        []FragmentIon
}

// BatchTarget is one entry of a batch extraction.
type BatchTarget struct {
	MZ      float64
	Charge  int
	IonType string
}
