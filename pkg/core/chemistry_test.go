package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePeptideMass(t *testing.T) {
	tests := []struct {
		name      string
		sequence  string
		charge    int
		mods      []Modification
		wantMZ    float64
		tolerance float64
	}{
		{"AAA charge 1", "AAA", 1, nil, 232.1292, 0.001},
		{"AAA charge 2", "AAA", 2, nil, 116.5682, 0.001},
		{"carbamidomethyl", "PEPTIDE", 2, []Modification{{Mass: 57.021464, Position: 0}}, 429.1980, 0.001},
		{"n-term shift", "PEPTIDE", 1, []Modification{{Mass: 42.010565, Position: -1}}, 842.3779, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePeptideMass(tt.sequence, tt.charge, tt.mods)
			assert.InDelta(t, tt.wantMZ, got, tt.tolerance)
		})
	}
}

func TestCalculateNeutralMass(t *testing.T) {
	assert.InDelta(t, 799.3600, CalculateNeutralMass("PEPTIDE", nil), 0.001)
	assert.InDelta(t, WaterMass, CalculateNeutralMass("", nil), 1e-9)
}

func TestFragmentIons(t *testing.T) {
	frags := FragmentIons("PEPTIDE", nil, 2)
	require.Len(t, frags, 2*6*2)

	byLabel := map[string]Fragment{}
	for _, f := range frags {
		byLabel[f.Label()] = f
	}

	assert.InDelta(t, 227.1026, byLabel["b2"].MZ, 0.001)
	assert.InDelta(t, 148.0604, byLabel["y1"].MZ, 0.001)
	assert.InDelta(t, (148.0604+ProtonMass)/2, byLabel["y1^2"].MZ, 0.001)

	for _, f := range frags {
		assert.True(t, strings.ContainsRune("by", rune(f.Type)))
		assert.Less(t, f.Number, 7)
	}
}

func TestFragmentIonsCarryModifications(t *testing.T) {
	mods := []Modification{{Mass: 15.994915, Position: 6}}
	plain := FragmentIons("PEPTIDM", nil, 1)
	modded := FragmentIons("PEPTIDM", mods, 1)

	for i := range plain {
		delta := modded[i].MZ - plain[i].MZ
		if plain[i].Type == 'y' {
			assert.InDelta(t, 15.994915, delta, 1e-9, plain[i].Label())
		} else {
			assert.InDelta(t, 0, delta, 1e-9, plain[i].Label())
		}
	}
}

func TestFragmentIonsDegenerate(t *testing.T) {
	assert.Nil(t, FragmentIons("K", nil, 2))
	assert.Nil(t, FragmentIons("PEPTIDE", nil, 0))
}

func TestModDatabase(t *testing.T) {
	db := DefaultModDatabase()
	mass, ok := db.Mass("Oxidation")
	require.True(t, ok)
	assert.Equal(t, 15.994915, mass)

	csv := "mod,massshift,aa\nMyMod,12.5,K\n\n"
	require.NoError(t, db.LoadFromCSV(strings.NewReader(csv)))
	mass, ok = db.Mass("MyMod")
	require.True(t, ok)
	assert.Equal(t, 12.5, mass)
	assert.Contains(t, db.Names(), "MyMod")

	err := db.LoadFromCSV(strings.NewReader("header\nbad\n"))
	assert.Error(t, err)
}

func TestParseModString(t *testing.T) {
	db := DefaultModDatabase()

	mods, err := db.ParseModString("Carbamidomethyl@C2;15.994915@8;Acetyl@A-1")
	require.NoError(t, err)
	require.Len(t, mods, 3)
	assert.Equal(t, Modification{Mass: 57.021464, Position: 1, Name: "Carbamidomethyl"}, mods[0])
	assert.Equal(t, 7, mods[1].Position)
	assert.Equal(t, -1, mods[2].Position)

	_, err = db.ParseModString("Unknown@3")
	assert.Error(t, err)
	_, err = db.ParseModString("Oxidation")
	assert.Error(t, err)

	mods, err = db.ParseModString("")
	require.NoError(t, err)
	assert.Empty(t, mods)
}
