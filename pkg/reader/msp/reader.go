// Package msp provides streaming readers for MSP (Prosit) format spectral libraries
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/mzkit/pkg/core"
)

// Metadata keys set on every spectrum read from an MSP library
const (
	KeySequence      = "sequence"
	KeyModifications = "modifications"
	KeyIRT           = "irt"
)

// entry accumulates one library record while its lines are read
type entry struct {
	spec     *core.Spectrum
	sequence string
	charge   int
	parent   float64
	energy   float64
	irt      string
	modText  string
	mods     []core.Modification
}

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner     *bufio.Scanner
	modDB       *core.ModDatabase
	lineNum     int
	currentSpec *core.Spectrum
	currentMods []core.Modification
	err         error
}

// NewReader creates a new MSP reader
func NewReader(r io.Reader, modDB *core.ModDatabase) *Reader {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Reader{
		scanner: scanner,
		modDB:   modDB,
	}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil
	r.currentMods = nil

	e, err := r.readEntry()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	spec, err := e.finish()
	if err != nil {
		r.err = fmt.Errorf("line %d: %w", r.lineNum, err)
		return false
	}

	r.currentSpec = spec
	r.currentMods = e.mods
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Modifications returns the resolved modifications of the current spectrum
func (r *Reader) Modifications() []core.Modification {
	return append([]core.Modification(nil), r.currentMods...)
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readEntry reads a single library entry from the MSP file
func (r *Reader) readEntry() (*entry, error) {
	spec, err := core.NewSpectrum(2)
	if err != nil {
		return nil, err
	}
	e := &entry{spec: spec, energy: -1}

	var numPeaks int
	inPeaks := false
	peaksRead := 0

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip empty lines between entries
		if line == "" {
			if e.sequence == "" || !inPeaks {
				continue
			}
			return e, nil
		}

		if !inPeaks {
			switch {
			case strings.HasPrefix(line, "Name: "):
				if err := e.parseName(strings.TrimPrefix(line, "Name: ")); err != nil {
					return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
				}
			case strings.HasPrefix(line, "MW: "):
				// Recomputed from the sequence when needed
			case strings.HasPrefix(line, "Comment: "):
				r.parseComment(e, strings.TrimPrefix(line, "Comment: "))
			case strings.HasPrefix(line, "Num peaks: "):
				n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Num peaks: ")))
				if err != nil || n < 0 {
					return nil, fmt.Errorf("line %d: invalid num peaks %q", r.lineNum, line)
				}
				if e.sequence == "" {
					return nil, fmt.Errorf("line %d: peak list before Name", r.lineNum)
				}
				numPeaks = n
				inPeaks = true
				if numPeaks == 0 {
					return e, nil
				}
			}
			continue
		}

		peak, err := parsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		if err := e.spec.AddPeak(peak.MZ, peak.Intensity); err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		peaksRead++

		if peaksRead >= numPeaks {
			return e, nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// If we have a partially read spectrum, return it
	if e.sequence != "" {
		return e, nil
	}

	return nil, io.EOF
}

// parseName extracts sequence and charge from Name field (format: "SEQUENCE/CHARGE")
func (e *entry) parseName(name string) error {
	seq, chargeStr, found := strings.Cut(name, "/")
	if !found || seq == "" {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}

	charge, err := strconv.Atoi(chargeStr)
	if err != nil || charge < 1 || charge > 127 {
		return fmt.Errorf("invalid charge in name '%s'", name)
	}
	e.sequence = seq
	e.charge = charge
	return nil
}

// parseComment extracts metadata from Comment field
func (r *Reader) parseComment(e *entry, comment string) {
	// Comment format: key=value key=value...
	// Example: Parent=414.71 Collision_energy=35 Mods=1/-1,R,TMT_Pro ModString=SEQUENCE//TMT_Pro@R-1/4 iRT=61.01
	for _, field := range strings.Fields(comment) {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}

		switch key {
		case "Parent":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				e.parent = mz
			}

		case "Collision_energy", "CollisionEnergy":
			if ce, err := strconv.ParseFloat(value, 64); err == nil {
				e.energy = ce
			}

		case "iRT", "RetentionTime":
			e.irt = value

		case "Mods":
			// Only used when no ModString is present
			if e.modText == "" {
				e.mods, e.modText = r.parseMods(value)
			}

		case "ModString":
			if mods, text, ok := r.parseModString(value); ok {
				e.mods, e.modText = mods, text
			}
		}
	}
}

// parseMods parses the "count/pos,AA,Name/pos,AA,Name" Mods field
func (r *Reader) parseMods(modsStr string) ([]core.Modification, string) {
	parts := strings.Split(modsStr, "/")
	if len(parts) < 2 {
		return nil, ""
	}

	var mods []core.Modification
	var specs []string
	for _, p := range parts[1:] {
		fields := strings.Split(p, ",")
		if len(fields) < 3 {
			continue
		}
		pos, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		name := fields[2]
		mass, ok := r.modDB.Mass(name)
		if !ok {
			continue
		}
		// Mods positions are 0-based; the rendered form is 1-based like ModString
		mods = append(mods, core.Modification{Mass: mass, Position: pos, Name: name})
		label := pos
		if pos >= 0 {
			label = pos + 1
		}
		specs = append(specs, fmt.Sprintf("%s@%s%d", name, fields[1], label))
	}
	return mods, strings.Join(specs, ";")
}

// parseModString parses modification information from ModString field
func (r *Reader) parseModString(modString string) ([]core.Modification, string, bool) {
	// Format: SEQUENCE//Mod@Pos;Mod@Pos/Charge
	// Example: EIESAGDITFNR//TMT_Pro@R-1/4
	_, modPart, found := strings.Cut(modString, "//")
	if !found {
		return nil, "", false
	}
	modPart, _, _ = strings.Cut(modPart, "/")

	mods, err := r.modDB.ParseModString(modPart)
	if err != nil {
		return nil, "", false
	}
	return mods, modPart, true
}

// finish attaches precursor and metadata to the accumulated spectrum
func (e *entry) finish() (*core.Spectrum, error) {
	spec := e.spec
	if e.parent > 0 {
		prec := core.PrecursorInfo{MZ: e.parent, Charge: int8(e.charge)}
		if e.energy >= 0 {
			prec.ActivationEnergy = e.energy
		}
		if err := spec.SetPrecursor(prec); err != nil {
			return nil, err
		}
	}

	if err := spec.AddAdditionalInfo(KeySequence, e.sequence); err != nil {
		return nil, err
	}
	if e.modText != "" {
		if err := spec.AddAdditionalInfo(KeyModifications, e.modText); err != nil {
			return nil, err
		}
	}
	if e.irt != "" {
		if err := spec.AddAdditionalInfo(KeyIRT, e.irt); err != nil {
			return nil, err
		}
		// Negative iRT is valid library data but not a retention time
		if rt, err := strconv.ParseFloat(e.irt, 64); err == nil && rt >= 0 {
			if err := spec.SetRetentionTime(rt); err != nil {
				return nil, err
			}
		}
	}
	spec.SortPeaks()
	return spec, nil
}

// parsePeak parses a single peak line (format: "mz\tintensity\t\"annotation\"")
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
