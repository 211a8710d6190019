package xic

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/mzkit/pkg/core"
)

// PeptideTarget builds a Target for a modified peptide at the given
// precursor charge, with b and y fragments up to fragmentCharge. RT is the
// window midpoint.
func PeptideTarget(sequence string, mods []core.Modification, charge int, rtStart, rtEnd float64, fragmentCharge int) (Target, error) {
	sequence = strings.ToUpper(strings.TrimSpace(sequence))
	if sequence == "" {
		return Target{}, fmt.Errorf("%w: empty sequence", ErrInvalidTarget)
	}
	for _, aa := range sequence {
		if _, ok := core.ResidueCompositions[aa]; !ok {
			return Target{}, fmt.Errorf("%w: unknown residue %q in %s", ErrInvalidTarget, aa, sequence)
		}
	}
	if charge <= 0 {
		return Target{}, fmt.Errorf("%w: %d", ErrInvalidCharge, charge)
	}

	t := Target{
		Sequence:         sequence,
		ModifiedSequence: modifiedSequence(sequence, mods),
		Charge:           charge,
		MZ:               core.CalculatePeptideMass(sequence, charge, mods),
		RT:               (rtStart + rtEnd) / 2,
		RTStart:          rtStart,
		RTEnd:            rtEnd,
	}
	for _, f := range core.FragmentIons(sequence, mods, fragmentCharge) {
		t.Fragments = append(t.Fragments, FragmentIon{IonType: f.Label(), Charge: f.Charge, MZ: f.MZ})
	}
	return t, nil
}

// modifiedSequence renders mass shifts inline, e.g. "PEPC[+57.0215]TIDE".
// Terminal shifts are written before or after the sequence.
func modifiedSequence(sequence string, mods []core.Modification) string {
	if len(mods) == 0 {
		return sequence
	}
	shifts := make(map[int]float64, len(mods))
	for _, m := range mods {
		pos := m.Position
		switch {
		case pos < 0:
			pos = -1
		case pos >= len(sequence):
			pos = len(sequence)
		}
		shifts[pos] += m.Mass
	}

	var b strings.Builder
	if d, ok := shifts[-1]; ok {
		fmt.Fprintf(&b, "[%+.4f]-", d)
	}
	for i, aa := range sequence {
		b.WriteRune(aa)
		if d, ok := shifts[i]; ok {
			fmt.Fprintf(&b, "[%+.4f]", d)
		}
	}
	if d, ok := shifts[len(sequence)]; ok {
		fmt.Fprintf(&b, "-[%+.4f]", d)
	}
	return b.String()
}
