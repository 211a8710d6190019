// Package mzml provides a streaming reader for mzML files
package mzml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/mzkit/pkg/codec"
	"github.com/ChrisMcGann/mzkit/pkg/core"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

var (
	// ErrMissingArray means a non-empty spectrum lacks its m/z or intensity array.
	ErrMissingArray = errors.New("mzml: missing binary data array")
	// ErrUnknownUnit means a time value carries a unit the reader cannot convert.
	ErrUnknownUnit = errors.New("mzml: unknown unit")

	errSkip = errors.New("skipped")
)

// Metadata keys set on spectra read from mzML
const (
	KeyNativeID       = "native_id"
	KeyRepresentation = "representation"
)

// CV accessions read from <spectrum> and its children
const (
	accMSLevel     = "MS:1000511"
	accCentroid    = "MS:1000127"
	accProfile     = "MS:1000128"
	accScanStart   = "MS:1000016"
	accWindowLow   = "MS:1000501"
	accWindowHigh  = "MS:1000500"
	accDriftTime   = "MS:1002476"
	accSelectedMZ  = "MS:1000744"
	accPeakInt     = "MS:1000042"
	accCharge      = "MS:1000041"
	accEnergy      = "MS:1000045"
	accIsoTarget   = "MS:1000827"
	accIsoLower    = "MS:1000828"
	accIsoUpper    = "MS:1000829"
	accMZArray     = "MS:1000514"
	accIntensArray = "MS:1000515"
)

// Unit accessions
const (
	unitSecond      = "UO:0000010"
	unitMinute      = "UO:0000031"
	unitMinuteMS    = "MS:1000038"
	unitMillisecond = "UO:0000028"
)

var activationMethods = map[string]string{
	"MS:1000133": "CID",
	"MS:1000134": "PD",
	"MS:1000135": "PSD",
	"MS:1000136": "SID",
	"MS:1000422": "HCD",
	"MS:1000598": "ETD",
	"MS:1000250": "ECD",
	"MS:1000599": "PQD",
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger logs skipped spectra at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reader provides streaming access to the spectra of an mzML file.
// Each <spectrum> element is decoded only when Next reaches it.
type Reader struct {
	dec     *xml.Decoder
	logger  *zap.Logger
	current *core.Spectrum
	skipped int
	err     error
	done    bool
}

// NewReader creates a new mzML reader
func NewReader(r io.Reader, opts ...Option) *Reader {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	reader := &Reader{dec: dec, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// Next advances to the next usable spectrum. Returns false at the end of
// the file or on error. Empty spectra and unsupported levels are skipped.
func (r *Reader) Next() bool {
	r.current = nil
	if r.done || r.err != nil {
		return false
	}

	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			r.done = true
			return false
		}
		if err != nil {
			r.err = fmt.Errorf("read mzML: %w", err)
			return false
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "spectrum" {
			continue
		}

		var raw xmlSpectrum
		if err := r.dec.DecodeElement(&raw, &start); err != nil {
			r.err = fmt.Errorf("read mzML: %w", err)
			return false
		}

		spec, err := raw.toSpectrum()
		if errors.Is(err, errSkip) {
			r.skipped++
			r.logger.Debug("Skipped spectrum",
				zap.String("id", raw.ID),
				zap.Int("index", raw.Index),
				zap.Error(err))
			continue
		}
		if err != nil {
			r.err = fmt.Errorf("spectrum %q: %w", raw.ID, err)
			return false
		}
		r.current = spec
		return true
	}
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// Skipped returns how many spectra were passed over so far
func (r *Reader) Skipped() int {
	return r.skipped
}

// ReadAll reads every usable spectrum from r.
func ReadAll(r io.Reader, opts ...Option) ([]*core.Spectrum, int, error) {
	reader := NewReader(r, opts...)
	var spectra []*core.Spectrum
	for reader.Next() {
		spectra = append(spectra, reader.Spectrum())
	}
	if err := reader.Err(); err != nil {
		return nil, reader.Skipped(), err
	}
	return spectra, reader.Skipped(), nil
}

// toSpectrum converts the decoded element. Errors wrapping errSkip mark
// spectra that are valid mzML but carry nothing to read.
func (x *xmlSpectrum) toSpectrum() (*core.Spectrum, error) {
	level := 1
	if cv, ok := x.find(accMSLevel); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cv.Value))
		if err != nil {
			return nil, fmt.Errorf("invalid ms level %q", cv.Value)
		}
		level = n
	}
	if level < 1 || level > 10 {
		return nil, fmt.Errorf("%w: ms level %d", errSkip, level)
	}
	if x.DefaultArrayLength == 0 {
		return nil, fmt.Errorf("%w: no peaks", errSkip)
	}

	spec, err := core.NewSpectrum(level)
	if err != nil {
		return nil, err
	}
	spec.SetScanNumber(scanNumber(x.ID, x.Index))
	if x.ID != "" {
		if err := spec.AddAdditionalInfo(KeyNativeID, x.ID); err != nil {
			return nil, err
		}
	}
	if _, ok := x.find(accCentroid); ok {
		err = spec.AddAdditionalInfo(KeyRepresentation, "centroid")
	} else if _, ok := x.find(accProfile); ok {
		err = spec.AddAdditionalInfo(KeyRepresentation, "profile")
	}
	if err != nil {
		return nil, err
	}

	if len(x.Scans) > 0 {
		if err := applyScan(spec, x.Scans[0]); err != nil {
			return nil, err
		}
	}

	if level > 1 && len(x.Precursors) > 0 {
		prec, ok, err := x.Precursors[0].toPrecursor()
		if err != nil {
			return nil, err
		}
		if ok {
			if err := spec.SetPrecursor(prec); err != nil {
				return nil, err
			}
		}
	}

	mz, intensity, err := x.decodeArrays()
	if err != nil {
		return nil, err
	}
	if err := spec.SetPeaksFromArrays(mz, intensity); err != nil {
		return nil, err
	}
	spec.SortPeaks()
	return spec, nil
}

// applyScan copies time, drift and scan window terms onto spec
func applyScan(spec *core.Spectrum, scan xmlScan) error {
	if cv, ok := scan.find(accScanStart); ok {
		rt, err := strconv.ParseFloat(strings.TrimSpace(cv.Value), 64)
		if err != nil {
			return fmt.Errorf("invalid scan start time %q", cv.Value)
		}
		switch cv.UnitAccession {
		case "", unitSecond:
		case unitMinute, unitMinuteMS:
			rt *= 60
		default:
			return fmt.Errorf("%w: scan start time in %s", ErrUnknownUnit, cv.UnitAccession)
		}
		if err := spec.SetRetentionTime(rt); err != nil {
			return err
		}
	}

	if cv, ok := scan.find(accDriftTime); ok {
		drift, err := strconv.ParseFloat(strings.TrimSpace(cv.Value), 64)
		if err != nil {
			return fmt.Errorf("invalid drift time %q", cv.Value)
		}
		switch cv.UnitAccession {
		case "", unitMillisecond:
			drift /= 1000
		case unitSecond:
		default:
			return fmt.Errorf("%w: drift time in %s", ErrUnknownUnit, cv.UnitAccession)
		}
		if err := spec.SetDriftTime(drift); err != nil {
			return err
		}
	}

	if len(scan.Windows) > 0 {
		w := scan.Windows[0]
		lo, okLo, err := w.float(accWindowLow)
		if err != nil {
			return err
		}
		hi, okHi, err := w.float(accWindowHigh)
		if err != nil {
			return err
		}
		if okLo && okHi {
			spec.SetScanWindow(lo, hi)
		}
	}
	return nil
}

// toPrecursor reads the first selected ion, the isolation window and the
// activation. ok is false when no selected ion m/z is present.
func (p xmlPrecursor) toPrecursor() (core.PrecursorInfo, bool, error) {
	var prec core.PrecursorInfo
	if len(p.SelectedIons) == 0 {
		return prec, false, nil
	}
	ion := p.SelectedIons[0]

	mz, ok, err := ion.float(accSelectedMZ)
	if err != nil || !ok {
		return prec, false, err
	}
	prec.MZ = mz
	prec.RefScanNumber = scanNumber(p.SpectrumRef, -1)

	if v, ok, err := ion.float(accPeakInt); err != nil {
		return prec, false, err
	} else if ok {
		prec.Intensity = v
	}
	if cv, ok := ion.find(accCharge); ok {
		z, err := strconv.ParseInt(strings.TrimSpace(cv.Value), 10, 8)
		if err != nil {
			return prec, false, fmt.Errorf("invalid charge state %q", cv.Value)
		}
		prec.Charge = int8(z)
	}

	target, okTarget, err := p.IsolationWindow.float(accIsoTarget)
	if err != nil {
		return prec, false, err
	}
	if okTarget {
		lower, _, err := p.IsolationWindow.float(accIsoLower)
		if err != nil {
			return prec, false, err
		}
		upper, _, err := p.IsolationWindow.float(accIsoUpper)
		if err != nil {
			return prec, false, err
		}
		prec.IsolationWindow = core.Range{Low: target - lower, High: target + upper}
	}

	for _, cv := range p.Activation.CVParams {
		if method, ok := activationMethods[cv.Accession]; ok && prec.ActivationMethod == "" {
			prec.ActivationMethod = method
		}
	}
	if v, ok, err := p.Activation.float(accEnergy); err != nil {
		return prec, false, err
	} else if ok {
		prec.ActivationEnergy = v
	}
	return prec, true, nil
}

// decodeArrays decodes the m/z and intensity arrays. Other arrays are ignored.
func (x *xmlSpectrum) decodeArrays() ([]float64, []float64, error) {
	var mz, intensity []float64
	var haveMZ, haveIntensity bool

	for _, arr := range x.Arrays {
		_, isMZ := arr.find(accMZArray)
		_, isIntensity := arr.find(accIntensArray)
		if !isMZ && !isIntensity {
			continue
		}

		length := arr.ArrayLength
		if length == 0 {
			length = x.DefaultArrayLength
		}
		values, err := arr.decode(length)
		if err != nil {
			if isMZ {
				return nil, nil, fmt.Errorf("m/z array: %w", err)
			}
			return nil, nil, fmt.Errorf("intensity array: %w", err)
		}

		if isMZ {
			mz, haveMZ = values, true
		} else {
			intensity, haveIntensity = values, true
		}
	}

	if !haveMZ {
		return nil, nil, fmt.Errorf("%w: m/z", ErrMissingArray)
	}
	if !haveIntensity {
		return nil, nil, fmt.Errorf("%w: intensity", ErrMissingArray)
	}
	return mz, intensity, nil
}

// decode reads the encoding and compression terms and decodes the payload
func (a xmlBinaryArray) decode(length int) ([]float64, error) {
	var enc codec.Encoding
	var comp codec.Compression
	haveEnc := false

	for _, cv := range a.CVParams {
		switch cv.Accession {
		case codec.AccessionFloat32, codec.AccessionFloat64, codec.AccessionInt32, codec.AccessionInt64:
			e, err := codec.ParseEncoding(cv.Accession)
			if err != nil {
				return nil, err
			}
			enc, haveEnc = e, true
		case codec.AccessionZlib, codec.AccessionNoCompression:
			c, err := codec.ParseCompression(cv.Accession)
			if err != nil {
				return nil, err
			}
			comp = c
		default:
			if strings.Contains(strings.ToLower(cv.Name), "compression") {
				return nil, fmt.Errorf("%w: %s (%s)", codec.ErrInvalidCompression, cv.Name, cv.Accession)
			}
		}
	}
	if !haveEnc {
		return nil, fmt.Errorf("%w: no binary data type term", codec.ErrInvalidBinaryEncoding)
	}

	data, err := codec.DecodeBase64(a.Binary)
	if err != nil {
		return nil, err
	}
	arr := codec.BinaryDataArray{Length: length, Encoding: enc, Compression: comp, Data: data}

	if enc.IsFloat() {
		return arr.DecodeFloat64()
	}
	ints, err := arr.DecodeInt64()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ints))
	for i, v := range ints {
		out[i] = float64(v)
	}
	return out, nil
}

// scanNumber takes N from a "scan=N" native id, falling back to index+1
func scanNumber(id string, index int) uint32 {
	for _, field := range strings.Fields(id) {
		key, value, found := strings.Cut(field, "=")
		if !found || key != "scan" {
			continue
		}
		if n, err := strconv.ParseUint(value, 10, 32); err == nil {
			return uint32(n)
		}
	}
	if index < 0 {
		return 0
	}
	return uint32(index + 1)
}
