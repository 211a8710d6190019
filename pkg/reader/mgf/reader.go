// Package mgf provides a streaming reader for Mascot Generic Format peak lists
package mgf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/mzkit/pkg/core"
)

// KeyTitle holds the TITLE line of an entry. Other unrecognised entry
// parameters are kept under their own names.
const KeyTitle = "title"

// ErrUnterminated is returned when the input ends inside BEGIN IONS.
var ErrUnterminated = errors.New("mgf: missing END IONS")

// Reader provides streaming access to MGF files
type Reader struct {
	scanner     *bufio.Scanner
	lineNum     int
	header      core.Metadata
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MGF reader
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil
	if r.err != nil {
		return false
	}

	spec, err := r.readEntry()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Header returns the file-level "#key=value" lines read so far. Repeated
// keys keep their first value.
func (r *Reader) Header() core.Metadata {
	return r.header.Clone()
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// entry accumulates one BEGIN IONS block
type entry struct {
	level     int
	precursor core.PrecursorInfo
	hasMass   bool
	rt        float64
	hasRT     bool
	scan      uint32
	info      []core.KeyValue
	peaks     []core.Peak
}

// readEntry skips to the next BEGIN IONS and reads through END IONS
func (r *Reader) readEntry() (*core.Spectrum, error) {
	var e *entry

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		if e == nil {
			switch {
			case strings.HasPrefix(line, "#"):
				if key, value, ok := strings.Cut(line[1:], "="); ok {
					// Repeated keys are ignored
					_ = r.header.Add(strings.TrimSpace(key), strings.TrimSpace(value))
				}
			case line == "BEGIN IONS":
				e = &entry{level: 2}
			}
			continue
		}

		if line == "END IONS" {
			spec, err := e.finish()
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			return spec, nil
		}

		if key, value, ok := strings.Cut(line, "="); ok {
			if err := e.parseParam(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			continue
		}

		p, err := parsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		e.peaks = append(e.peaks, p)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if e != nil {
		return nil, fmt.Errorf("line %d: %w", r.lineNum, ErrUnterminated)
	}
	return nil, io.EOF
}

// parseParam handles one KEY=value line inside an entry
func (e *entry) parseParam(key, value string) error {
	switch strings.ToUpper(key) {
	case "TITLE":
		e.info = append(e.info, core.KeyValue{Key: KeyTitle, Value: value})
	case "PEPMASS":
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return fmt.Errorf("empty PEPMASS")
		}
		mz, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fmt.Errorf("invalid PEPMASS '%s'", value)
		}
		e.precursor.MZ = mz
		if len(fields) > 1 {
			intensity, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return fmt.Errorf("invalid PEPMASS intensity '%s'", fields[1])
			}
			e.precursor.Intensity = intensity
		}
		e.hasMass = true
	case "CHARGE":
		charge, err := parseCharge(value)
		if err != nil {
			return err
		}
		e.precursor.Charge = charge
	case "RTINSECONDS":
		rt, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid RTINSECONDS '%s'", value)
		}
		e.rt, e.hasRT = rt, true
	case "SCANS":
		first, _, _ := strings.Cut(value, "-")
		n, err := strconv.ParseUint(strings.TrimSpace(first), 10, 32)
		if err != nil {
			return fmt.Errorf("invalid SCANS '%s'", value)
		}
		e.scan = uint32(n)
	case "MSLEVEL":
		level, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MSLEVEL '%s'", value)
		}
		e.level = level
	default:
		e.info = append(e.info, core.KeyValue{Key: key, Value: value})
	}
	return nil
}

// parseCharge accepts "2", "2+", "3-" and takes the first of "2+ and 3+"
func parseCharge(value string) (int8, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty CHARGE")
	}
	s := fields[0]
	sign := 1
	switch {
	case strings.HasSuffix(s, "+"):
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "-"):
		s, sign = s[:len(s)-1], -1
	}
	n, err := strconv.ParseInt(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid CHARGE '%s'", value)
	}
	return int8(sign * int(n)), nil
}

// finish builds the validated spectrum for a closed entry
func (e *entry) finish() (*core.Spectrum, error) {
	spec, err := core.NewSpectrum(e.level)
	if err != nil {
		return nil, err
	}
	spec.SetScanNumber(e.scan)
	if e.hasRT {
		if err := spec.SetRetentionTime(e.rt); err != nil {
			return nil, err
		}
	}
	if e.hasMass && e.level > 1 {
		if err := spec.SetPrecursor(e.precursor); err != nil {
			return nil, err
		}
	}
	for _, kv := range e.info {
		if err := spec.AddAdditionalInfo(kv.Key, kv.Value); err != nil {
			return nil, err
		}
	}
	if err := spec.AddPeaks(e.peaks); err != nil {
		return nil, err
	}
	spec.SortPeaks()
	return spec, nil
}

// parsePeak parses a single peak line (format: "mz intensity [charge]")
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}
	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}
	return core.Peak{MZ: mz, Intensity: intensity}, nil
}
