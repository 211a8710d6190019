package mgf

import (
	"strings"
	"testing"

	"github.com/ChrisMcGann/mzkit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peakList = `#SEARCH=MIS
#COM=exported
#SEARCH=ignored

BEGIN IONS
TITLE=run1.1234.1234.2
PEPMASS=450.25 12000
CHARGE=2+
RTINSECONDS=123.5
SCANS=1234
INSTRUMENT=Orbitrap
300.1 120
147.1 1000 1+
500.2	40
END IONS

BEGIN IONS
TITLE=negative
PEPMASS=622.8
CHARGE=3- and 4-
300 5
END IONS

BEGIN IONS
MSLEVEL=1
PEPMASS=100
RTINSECONDS=1
SCANS=7-9
END IONS
`

func readAll(t *testing.T, text string) ([]*core.Spectrum, *Reader, error) {
	t.Helper()
	r := NewReader(strings.NewReader(text))
	var spectra []*core.Spectrum
	for r.Next() {
		spectra = append(spectra, r.Spectrum())
	}
	return spectra, r, r.Err()
}

func TestReaderParsesEntries(t *testing.T) {
	spectra, r, err := readAll(t, peakList)
	require.NoError(t, err)
	require.Len(t, spectra, 3)

	first := spectra[0]
	assert.Equal(t, 2, first.Level())
	assert.Equal(t, uint32(1234), first.ScanNumber())
	assert.Equal(t, 123.5, first.RetentionTime())
	assert.True(t, first.IsSorted())
	assert.Equal(t, []core.Peak{{MZ: 147.1, Intensity: 1000}, {MZ: 300.1, Intensity: 120}, {MZ: 500.2, Intensity: 40}}, first.Peaks())

	prec, ok := first.Precursor()
	require.True(t, ok)
	assert.Equal(t, 450.25, prec.MZ)
	assert.Equal(t, 12000.0, prec.Intensity)
	assert.Equal(t, int8(2), prec.Charge)

	info := first.AdditionalInfo()
	title, _ := info.Get(KeyTitle)
	assert.Equal(t, "run1.1234.1234.2", title)
	instrument, _ := info.Get("INSTRUMENT")
	assert.Equal(t, "Orbitrap", instrument)

	second, ok := spectra[1].Precursor()
	require.True(t, ok)
	assert.Equal(t, int8(-3), second.Charge)
	assert.Zero(t, second.Intensity)

	ms1 := spectra[2]
	assert.Equal(t, 1, ms1.Level())
	assert.Equal(t, uint32(7), ms1.ScanNumber())
	assert.Zero(t, ms1.PeakCount())
	_, ok = ms1.Precursor()
	assert.False(t, ok)

	header := r.Header()
	assert.Equal(t, 2, header.Len())
	search, _ := header.Get("SEARCH")
	assert.Equal(t, "MIS", search)
}

func TestReaderEmpty(t *testing.T) {
	spectra, _, err := readAll(t, "#only=header\n\n")
	require.NoError(t, err)
	assert.Empty(t, spectra)
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{name: "unterminated", text: "BEGIN IONS\nPEPMASS=100\n100 1\n", want: ErrUnterminated},
		{name: "bad peak", text: "BEGIN IONS\n100\nEND IONS\n"},
		{name: "bad intensity", text: "BEGIN IONS\n100 abc\nEND IONS\n"},
		{name: "negative intensity", text: "BEGIN IONS\n100 -1\nEND IONS\n", want: core.ErrInvalidPeakData},
		{name: "bad charge", text: "BEGIN IONS\nCHARGE=two\nEND IONS\n"},
		{name: "bad pepmass", text: "BEGIN IONS\nPEPMASS=\nEND IONS\n"},
		{name: "negative rt", text: "BEGIN IONS\nRTINSECONDS=-5\nEND IONS\n", want: core.ErrInvalidRetentionTime},
		{name: "bad level", text: "BEGIN IONS\nMSLEVEL=11\nEND IONS\n", want: core.ErrInvalidMSLevel},
		{name: "duplicate key", text: "BEGIN IONS\nFOO=1\nFOO=2\nEND IONS\n", want: core.ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spectra, _, err := readAll(t, tt.text)
			require.Error(t, err)
			assert.Empty(t, spectra)
			assert.Contains(t, err.Error(), "line ")
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestReaderStopsAfterError(t *testing.T) {
	r := NewReader(strings.NewReader("BEGIN IONS\nbad\nEND IONS\nBEGIN IONS\n100 1\nEND IONS\n"))
	assert.False(t, r.Next())
	require.Error(t, r.Err())
	assert.False(t, r.Next())
	assert.Nil(t, r.Spectrum())
}

func TestParseCharge(t *testing.T) {
	tests := map[string]int8{"2": 2, "2+": 2, "3-": -3, "2+ and 3+": 2, " 4+ ": 4}
	for in, want := range tests {
		got, err := parseCharge(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "+", "x+", "300"} {
		_, err := parseCharge(in)
		assert.Error(t, err, in)
	}
}
