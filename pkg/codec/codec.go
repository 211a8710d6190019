package codec

import (
	"fmt"

	"github.com/ChrisMcGann/mzkit/pkg/core"
)

// EncodedSpectrum is a spectrum with its peak arrays in wire form.
type EncodedSpectrum struct {
	Level         int
	ScanNumber    uint32
	RetentionTime float64
	DriftTime     float64
	MZ            BinaryDataArray
	Intensity     BinaryDataArray
}

// Codec encodes spectra with a fixed encoding and compression.
type Codec struct {
	encoding    Encoding
	compression Compression
}

// Option configures a Codec.
type Option func(*Codec)

// WithEncoding sets the float encoding used for both arrays.
func WithEncoding(enc Encoding) Option {
	return func(c *Codec) { c.encoding = enc }
}

// WithCompression sets the payload compression.
func WithCompression(comp Compression) Option {
	return func(c *Codec) { c.compression = comp }
}

// New returns a Codec defaulting to little-endian float64 with zlib.
func New(opts ...Option) *Codec {
	c := &Codec{encoding: Float64Little, compression: Zlib}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encoding returns the configured encoding.
func (c *Codec) Encoding() Encoding { return c.encoding }

// Compression returns the configured compression.
func (c *Codec) Compression() Compression { return c.compression }

// EncodeArray encodes values with the codec settings.
func (c *Codec) EncodeArray(values []float64) (BinaryDataArray, error) {
	return Encode(values, c.encoding, c.compression)
}

// EncodeBase64Array encodes values and returns the transport text.
func (c *Codec) EncodeBase64Array(values []float64) (string, error) {
	arr, err := c.EncodeArray(values)
	if err != nil {
		return "", err
	}
	return EncodeBase64(arr.Data), nil
}

// DecodeBase64Array decodes transport text holding length values in the codec settings.
func (c *Codec) DecodeBase64Array(text string, length int) ([]float64, error) {
	data, err := DecodeBase64(text)
	if err != nil {
		return nil, err
	}
	arr := BinaryDataArray{Length: length, Encoding: c.encoding, Compression: c.compression, Data: data}
	return arr.DecodeFloat64()
}

// EncodeSpectrum encodes the peak arrays and scan header of s.
func (c *Codec) EncodeSpectrum(s *core.Spectrum) (EncodedSpectrum, error) {
	mz := make([]float64, 0, s.PeakCount())
	intensity := make([]float64, 0, s.PeakCount())
	for _, p := range s.All() {
		mz = append(mz, p.MZ)
		intensity = append(intensity, p.Intensity)
	}

	mzArr, err := c.EncodeArray(mz)
	if err != nil {
		return EncodedSpectrum{}, fmt.Errorf("encode m/z array: %w", err)
	}
	intArr, err := c.EncodeArray(intensity)
	if err != nil {
		return EncodedSpectrum{}, fmt.Errorf("encode intensity array: %w", err)
	}

	return EncodedSpectrum{
		Level:         s.Level(),
		ScanNumber:    s.ScanNumber(),
		RetentionTime: s.RetentionTime(),
		DriftTime:     s.DriftTime(),
		MZ:            mzArr,
		Intensity:     intArr,
	}, nil
}

// DecodeSpectrum rebuilds a validated spectrum. The arrays carry their own
// encoding, so the codec settings are not consulted.
func (c *Codec) DecodeSpectrum(e EncodedSpectrum) (*core.Spectrum, error) {
	mz, err := e.MZ.DecodeFloat64()
	if err != nil {
		return nil, fmt.Errorf("decode m/z array: %w", err)
	}
	intensity, err := e.Intensity.DecodeFloat64()
	if err != nil {
		return nil, fmt.Errorf("decode intensity array: %w", err)
	}

	s, err := core.NewSpectrum(e.Level)
	if err != nil {
		return nil, err
	}
	s.SetScanNumber(e.ScanNumber)
	if err := s.SetRetentionTime(e.RetentionTime); err != nil {
		return nil, err
	}
	if err := s.SetDriftTime(e.DriftTime); err != nil {
		return nil, err
	}
	if err := s.SetPeaksFromArrays(mz, intensity); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeSpectra decodes a batch, stopping at the first failure.
func (c *Codec) DecodeSpectra(encoded []EncodedSpectrum) ([]*core.Spectrum, error) {
	spectra := make([]*core.Spectrum, 0, len(encoded))
	for i, e := range encoded {
		s, err := c.DecodeSpectrum(e)
		if err != nil {
			return nil, fmt.Errorf("spectrum %d: %w", i, err)
		}
		spectra = append(spectra, s)
	}
	return spectra, nil
}
