package mobility

import (
	"errors"
	"fmt"
)

// Sentinel errors for calibration fitting.
var (
	ErrInsufficientPoints    = errors.New("mobility: at least 2 calibration points are required")
	ErrDegenerateCalibration = errors.New("mobility: calibration drift times have zero variance")
)

// CalibrationPoint pairs a known m/z with its observed drift time.
type CalibrationPoint struct {
	MZ        float64
	DriftTime float64
}

// Calibration is a least-squares line m/z = Slope*drift + Intercept.
type Calibration struct {
	Slope     float64
	Intercept float64
	RSquared  float64 // 0 when the reference m/z values are all equal
}

// Apply maps a drift time to a calibrated value.
func (c Calibration) Apply(driftTime float64) float64 {
	return c.Slope*driftTime + c.Intercept
}

// FitLinearCalibration fits a Calibration by ordinary least squares.
func FitLinearCalibration(points []CalibrationPoint) (Calibration, error) {
	if len(points) < 2 {
		return Calibration{}, fmt.Errorf("%w: got %d", ErrInsufficientPoints, len(points))
	}

	n := float64(len(points))
	var sumX, sumY, sumXY, sumX2 float64
	for _, p := range points {
		sumX += p.DriftTime
		sumY += p.MZ
		sumXY += p.DriftTime * p.MZ
		sumX2 += p.DriftTime * p.DriftTime
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return Calibration{}, ErrDegenerateCalibration
	}

	c := Calibration{Slope: (n*sumXY - sumX*sumY) / denom}
	c.Intercept = (sumY - c.Slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for _, p := range points {
		ssTot += (p.MZ - meanY) * (p.MZ - meanY)
		r := p.MZ - c.Apply(p.DriftTime)
		ssRes += r * r
	}
	if ssTot > 0 {
		c.RSquared = 1 - ssRes/ssTot
	}
	return c, nil
}
