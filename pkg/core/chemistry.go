package core

import (
	"fmt"
	"math"
)

// Monoisotopic element masses.
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900

	// ProtonMass is used for all charge state conversions.
	ProtonMass = 1.00727646688

	// WaterMass is added once per intact peptide and once per y ion.
	WaterMass = 2*MassH + MassO
)

// Composition counts atoms of each element in a residue.
type Composition struct {
	C, H, N, O, S int
}

// Mass returns the monoisotopic mass of the composition.
func (c Composition) Mass() float64 {
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS
}

// ResidueCompositions maps amino acid one-letter codes to residue compositions.
var ResidueCompositions = map[rune]Composition{
	'A': {C: 3, H: 5, N: 1, O: 1},
	'R': {C: 6, H: 12, N: 4, O: 1},
	'N': {C: 4, H: 6, N: 2, O: 2},
	'D': {C: 4, H: 5, N: 1, O: 3},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3},
	'Q': {C: 5, H: 8, N: 2, O: 2},
	'G': {C: 2, H: 3, N: 1, O: 1},
	'H': {C: 6, H: 7, N: 3, O: 1},
	'I': {C: 6, H: 11, N: 1, O: 1},
	'L': {C: 6, H: 11, N: 1, O: 1},
	'K': {C: 6, H: 12, N: 2, O: 1},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1},
	'P': {C: 5, H: 7, N: 1, O: 1},
	'S': {C: 3, H: 5, N: 1, O: 2},
	'T': {C: 4, H: 7, N: 1, O: 2},
	'W': {C: 11, H: 10, N: 2, O: 1},
	'Y': {C: 9, H: 9, N: 1, O: 2},
	'V': {C: 5, H: 9, N: 1, O: 1},
}

// Modification is a mass shift at a residue position.
type Modification struct {
	Mass     float64
	Position int    // 0-based; -1 for N-term, len(seq) for C-term
	Name     string // e.g. "Carbamidomethyl", "Oxidation"
}

// residueMasses returns per-residue masses with modifications folded in,
// plus the terminal shifts. Unknown residues contribute zero.
func residueMasses(sequence string, mods []Modification) (residues []float64, nTerm, cTerm float64) {
	for _, aa := range sequence {
		residues = append(residues, ResidueCompositions[aa].Mass())
	}
	for _, mod := range mods {
		switch {
		case mod.Position < 0:
			nTerm += mod.Mass
		case mod.Position >= len(residues):
			cTerm += mod.Mass
		default:
			residues[mod.Position] += mod.Mass
		}
	}
	return residues, nTerm, cTerm
}

// CalculateNeutralMass computes the neutral monoisotopic mass of a peptide.
func CalculateNeutralMass(sequence string, mods []Modification) float64 {
	residues, nTerm, cTerm := residueMasses(sequence, mods)
	mass := WaterMass + nTerm + cTerm
	for _, m := range residues {
		mass += m
	}
	return mass
}

// MassToMZ converts a neutral mass to m/z at the given charge.
func MassToMZ(neutral float64, charge int) float64 {
	return (neutral + float64(charge)*ProtonMass) / float64(charge)
}

// CalculatePeptideMass returns the precursor m/z of a modified peptide.
func CalculatePeptideMass(sequence string, charge int, mods []Modification) float64 {
	return MassToMZ(CalculateNeutralMass(sequence, mods), charge)
}

// Fragment is a single b or y ion of a peptide.
type Fragment struct {
	Type   byte // 'b' or 'y'
	Number int  // residues contained
	Charge int
	MZ     float64
}

// Label returns the annotation form used in spectral libraries, e.g. "y4" or "b2^2".
func (f Fragment) Label() string {
	if f.Charge > 1 {
		return fmt.Sprintf("%c%d^%d", f.Type, f.Number, f.Charge)
	}
	return fmt.Sprintf("%c%d", f.Type, f.Number)
}

// FragmentIons returns the b and y ion ladders for charges 1..maxCharge,
// b ions first, each ladder in increasing ion number.
func FragmentIons(sequence string, mods []Modification, maxCharge int) []Fragment {
	residues, nTerm, cTerm := residueMasses(sequence, mods)
	n := len(residues)
	if n < 2 || maxCharge < 1 {
		return nil
	}

	frags := make([]Fragment, 0, 2*(n-1)*maxCharge)
	for z := 1; z <= maxCharge; z++ {
		b := nTerm
		for i := 0; i < n-1; i++ {
			b += residues[i]
			frags = append(frags, Fragment{Type: 'b', Number: i + 1, Charge: z, MZ: MassToMZ(b, z)})
		}
	}
	for z := 1; z <= maxCharge; z++ {
		y := WaterMass + cTerm
		for i := n - 1; i > 0; i-- {
			y += residues[i]
			frags = append(frags, Fragment{Type: 'y', Number: n - i, Charge: z, MZ: MassToMZ(y, z)})
		}
	}
	return frags
}

// RoundFloat rounds a float to n decimal places.
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
