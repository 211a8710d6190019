package core

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ModDatabase maps modification names to mass shifts.
type ModDatabase struct {
	mods map[string]float64
}

// NewModDatabase creates an empty modification database.
func NewModDatabase() *ModDatabase {
	return &ModDatabase{mods: make(map[string]float64)}
}

// unimodMasses are the monoisotopic shifts preloaded by DefaultModDatabase.
var unimodMasses = map[string]float64{
	"Acetyl":          42.010565,
	"Amidated":        -0.984016,
	"Carbamidomethyl": 57.021464,
	"Carbamyl":        43.005814,
	"Deamidated":      0.984016,
	"Dimethyl":        28.0313,
	"Gln->pyro-Glu":   -17.026549,
	"Glu->pyro-Glu":   -18.010565,
	"GlyGly":          114.042927,
	"HexNAc":          203.079373,
	"Methyl":          14.01565,
	"Oxidation":       15.994915,
	"Phospho":         79.966331,
	"Propionamide":    71.037114,
	"TMT6plex":        229.162932,
	"TMTPro":          304.207146,
	"iTRAQ4plex":      144.102063,
	"iTRAQ8plex":      304.205360,
}

// DefaultModDatabase returns a database preloaded with common unimod entries.
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()
	maps.Copy(db.mods, unimodMasses)
	return db
}

// LoadFromCSV adds entries from CSV text (header line, then name,massshift[,...]).
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 || line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: expected at least 2 comma-separated fields", lineNum)
		}
		mass, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value %q: %w", lineNum, parts[1], err)
		}
		db.mods[strings.TrimSpace(parts[0])] = mass
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}
	return nil
}

// Mass returns the mass shift registered under name.
func (db *ModDatabase) Mass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

// Add registers or replaces a modification.
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
}

// Names returns the registered names in sorted order.
func (db *ModDatabase) Names() []string {
	return slices.Sorted(maps.Keys(db.mods))
}

// ParseModString parses "name@pos;mass@pos" lists such as
// "Carbamidomethyl@C2;15.994915@8". Positions are 1-based in the string and
// 0-based in the result; "-1" (or a position ending in -1) marks the N-terminus.
func (db *ModDatabase) ParseModString(modStr string) ([]Modification, error) {
	var mods []Modification
	for part := range strings.SplitSeq(modStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		nameOrMass, posStr, found := strings.Cut(part, "@")
		if !found {
			return nil, fmt.Errorf("invalid modification %q, expected name@position", part)
		}
		nameOrMass = strings.TrimSpace(nameOrMass)

		mass, err := strconv.ParseFloat(nameOrMass, 64)
		if err != nil {
			var ok bool
			if mass, ok = db.Mass(nameOrMass); !ok {
				return nil, fmt.Errorf("unknown modification %q", nameOrMass)
			}
		}

		pos, err := parsePosition(posStr)
		if err != nil {
			return nil, fmt.Errorf("invalid position %q: %w", posStr, err)
		}
		mods = append(mods, Modification{Mass: mass, Position: pos, Name: nameOrMass})
	}
	return mods, nil
}

// parsePosition accepts "2", "C2" or "R-1".
func parsePosition(posStr string) (int, error) {
	posStr = strings.TrimSpace(posStr)
	if strings.HasSuffix(posStr, "-1") {
		return -1, nil
	}
	pos, err := strconv.Atoi(strings.TrimLeft(posStr, "ACDEFGHIKLMNPQRSTVWY"))
	if err != nil {
		return 0, err
	}
	if pos > 0 {
		pos--
	}
	return pos, nil
}
