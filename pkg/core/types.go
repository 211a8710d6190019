package core

import "math"

// Peak represents a single m/z, intensity pair.
type Peak struct {
	MZ        float64
	Intensity float64
}

// Valid reports whether both values are finite and non-negative.
func (p Peak) Valid() bool {
	return validValue(p.MZ) && validValue(p.Intensity)
}

// Range is a closed numeric interval [Low, High].
type Range struct {
	Low  float64
	High float64
}

// Contains reports whether v lies inside the interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// Width returns High - Low.
func (r Range) Width() float64 {
	return r.High - r.Low
}

// IsZero reports whether the interval was never set.
func (r Range) IsZero() bool {
	return r.Low == 0 && r.High == 0
}

// ScanInfo holds acquisition metadata for a single scan.
type ScanInfo struct {
	ScanNumber    uint32
	RetentionTime float64 // seconds
	DriftTime     float64 // seconds
	ScanWindow    Range
	Info          Metadata
}

func (s ScanInfo) validate() error {
	if !validValue(s.RetentionTime) {
		return invalid("retention_time", ErrInvalidRetentionTime, "must be finite and non-negative, got %v", s.RetentionTime)
	}
	if !validValue(s.DriftTime) {
		return invalid("drift_time", ErrInvalidDriftTime, "must be finite and non-negative, got %v", s.DriftTime)
	}
	return nil
}

// PrecursorInfo describes the ion selected for fragmentation in an MSn scan.
type PrecursorInfo struct {
	RefScanNumber    uint32
	MZ               float64
	Intensity        float64
	Charge           int8
	ActivationMethod string // CID, HCD, ETD, ...
	ActivationEnergy float64
	IsolationWindow  Range
}

func (p PrecursorInfo) validate() error {
	if !validValue(p.MZ) {
		return invalid("precursor.mz", ErrInvalidPeakData, "must be finite and non-negative, got %v", p.MZ)
	}
	if !validValue(p.Intensity) {
		return invalid("precursor.intensity", ErrInvalidPeakData, "must be finite and non-negative, got %v", p.Intensity)
	}
	return nil
}

func validValue(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
