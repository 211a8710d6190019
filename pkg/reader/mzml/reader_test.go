package mzml

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ChrisMcGann/mzkit/pkg/codec"
	"github.com/ChrisMcGann/mzkit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeArray(t *testing.T, values []float64, enc codec.Encoding, comp codec.Compression) string {
	t.Helper()
	arr, err := codec.Encode(values, enc, comp)
	require.NoError(t, err)
	return codec.EncodeBase64(arr.Data)
}

func encodeIntArray(t *testing.T, values []int64, enc codec.Encoding, comp codec.Compression) string {
	t.Helper()
	arr, err := codec.EncodeInt(values, enc, comp)
	require.NoError(t, err)
	return codec.EncodeBase64(arr.Data)
}

func wrap(spectra ...string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
  <run id="run1">
    <spectrumList count="` + fmt.Sprint(len(spectra)) + `">
` + strings.Join(spectra, "\n") + `
    </spectrumList>
    <chromatogramList count="1">
      <chromatogram index="0" id="TIC" defaultArrayLength="0"/>
    </chromatogramList>
  </run>
</mzML>`
}

func binaryArray(kind, typeAcc, compAcc, data string) string {
	return `<binaryDataArray encodedLength="` + fmt.Sprint(len(data)) + `">
  <cvParam cvRef="MS" accession="` + typeAcc + `" name="type"/>
  <cvParam cvRef="MS" accession="` + compAcc + `" name="compression"/>
  <cvParam cvRef="MS" accession="` + kind + `" name="array"/>
  <binary>` + data + `</binary>
</binaryDataArray>`
}

func ms1Spectrum(t *testing.T) string {
	mz := encodeArray(t, []float64{100, 200, 300}, codec.Float64Little, codec.Zlib)
	intensity := encodeArray(t, []float64{10, 20, 30}, codec.Float32Little, codec.NoCompression)
	return `<spectrum index="0" id="controllerType=0 controllerNumber=1 scan=17" defaultArrayLength="3">
  <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="1"/>
  <cvParam cvRef="MS" accession="MS:1000127" name="centroid spectrum"/>
  <scanList count="1">
    <scan>
      <cvParam cvRef="MS" accession="MS:1000016" name="scan start time" value="0.5" unitCvRef="UO" unitAccession="UO:0000031" unitName="minute"/>
      <cvParam cvRef="MS" accession="MS:1002476" name="ion mobility drift time" value="12.5" unitCvRef="UO" unitAccession="UO:0000028" unitName="millisecond"/>
      <scanWindowList count="1">
        <scanWindow>
          <cvParam cvRef="MS" accession="MS:1000501" name="scan window lower limit" value="100"/>
          <cvParam cvRef="MS" accession="MS:1000500" name="scan window upper limit" value="2000"/>
        </scanWindow>
      </scanWindowList>
    </scan>
  </scanList>
  <binaryDataArrayList count="2">
` + binaryArray("MS:1000514", "MS:1000523", "MS:1000574", mz) + `
` + binaryArray("MS:1000515", "MS:1000521", "MS:1000576", intensity) + `
  </binaryDataArrayList>
</spectrum>`
}

func ms2Spectrum(t *testing.T) string {
	mz := encodeArray(t, []float64{150, 250}, codec.Float64Little, codec.NoCompression)
	intensity := encodeIntArray(t, []int64{5, 7}, codec.Int32Little, codec.Zlib)
	return `<spectrum index="1" id="index=1" defaultArrayLength="2">
  <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="2"/>
  <cvParam cvRef="MS" accession="MS:1000128" name="profile spectrum"/>
  <scanList count="1">
    <scan>
      <cvParam cvRef="MS" accession="MS:1000016" name="scan start time" value="31" unitCvRef="UO" unitAccession="UO:0000010" unitName="second"/>
    </scan>
  </scanList>
  <precursorList count="1">
    <precursor spectrumRef="controllerType=0 controllerNumber=1 scan=17">
      <isolationWindow>
        <cvParam cvRef="MS" accession="MS:1000827" name="isolation window target m/z" value="450"/>
        <cvParam cvRef="MS" accession="MS:1000828" name="isolation window lower offset" value="1"/>
        <cvParam cvRef="MS" accession="MS:1000829" name="isolation window upper offset" value="1.5"/>
      </isolationWindow>
      <selectedIonList count="1">
        <selectedIon>
          <cvParam cvRef="MS" accession="MS:1000744" name="selected ion m/z" value="450.5"/>
          <cvParam cvRef="MS" accession="MS:1000041" name="charge state" value="2"/>
          <cvParam cvRef="MS" accession="MS:1000042" name="peak intensity" value="10000"/>
        </selectedIon>
      </selectedIonList>
      <activation>
        <cvParam cvRef="MS" accession="MS:1000133" name="collision-induced dissociation"/>
        <cvParam cvRef="MS" accession="MS:1000045" name="collision energy" value="35"/>
      </activation>
    </precursor>
  </precursorList>
  <binaryDataArrayList count="2">
` + binaryArray("MS:1000514", "MS:1000523", "MS:1000576", mz) + `
` + binaryArray("MS:1000515", "MS:1000519", "MS:1000574", intensity) + `
  </binaryDataArrayList>
</spectrum>`
}

const emptySpectrum = `<spectrum index="2" id="scan=19" defaultArrayLength="0">
  <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="1"/>
  <binaryDataArrayList count="0"/>
</spectrum>`

const deepSpectrum = `<spectrum index="3" id="scan=20" defaultArrayLength="1">
  <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="11"/>
</spectrum>`

func TestReaderParsesSpectra(t *testing.T) {
	doc := wrap(ms1Spectrum(t), ms2Spectrum(t), emptySpectrum, deepSpectrum)

	spectra, skipped, err := ReadAll(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, spectra, 2)
	assert.Equal(t, 2, skipped)

	ms1 := spectra[0]
	assert.Equal(t, 1, ms1.Level())
	assert.Equal(t, uint32(17), ms1.ScanNumber())
	assert.InDelta(t, 30.0, ms1.RetentionTime(), 1e-9)
	assert.InDelta(t, 0.0125, ms1.DriftTime(), 1e-12)
	assert.Equal(t, core.Range{Low: 100, High: 2000}, ms1.ScanInfo().ScanWindow)
	assert.Equal(t, []core.Peak{{MZ: 100, Intensity: 10}, {MZ: 200, Intensity: 20}, {MZ: 300, Intensity: 30}}, ms1.Peaks())
	rep, _ := ms1.AdditionalInfo().Get(KeyRepresentation)
	assert.Equal(t, "centroid", rep)
	id, _ := ms1.AdditionalInfo().Get(KeyNativeID)
	assert.Equal(t, "controllerType=0 controllerNumber=1 scan=17", id)

	ms2 := spectra[1]
	assert.Equal(t, 2, ms2.Level())
	assert.Equal(t, uint32(2), ms2.ScanNumber(), "falls back to index+1")
	assert.Equal(t, 31.0, ms2.RetentionTime())
	assert.Equal(t, []core.Peak{{MZ: 150, Intensity: 5}, {MZ: 250, Intensity: 7}}, ms2.Peaks())
	rep, _ = ms2.AdditionalInfo().Get(KeyRepresentation)
	assert.Equal(t, "profile", rep)

	prec, ok := ms2.Precursor()
	require.True(t, ok)
	assert.Equal(t, core.PrecursorInfo{
		RefScanNumber:    17,
		MZ:               450.5,
		Intensity:        10000,
		Charge:           2,
		ActivationMethod: "CID",
		ActivationEnergy: 35,
		IsolationWindow:  core.Range{Low: 449, High: 451.5},
	}, prec)
}

func TestReaderStreams(t *testing.T) {
	r := NewReader(strings.NewReader(wrap(emptySpectrum, ms1Spectrum(t), ms2Spectrum(t))))

	require.True(t, r.Next())
	assert.Equal(t, 1, r.Spectrum().Level())
	assert.Equal(t, 1, r.Skipped())

	require.True(t, r.Next())
	assert.Equal(t, 2, r.Spectrum().Level())

	assert.False(t, r.Next())
	assert.Nil(t, r.Spectrum())
	assert.NoError(t, r.Err())
	assert.False(t, r.Next(), "stays at end")
}

func TestReaderNoSpectra(t *testing.T) {
	spectra, skipped, err := ReadAll(strings.NewReader(wrap()))
	require.NoError(t, err)
	assert.Empty(t, spectra)
	assert.Zero(t, skipped)
}

func TestReaderErrors(t *testing.T) {
	mz := encodeArray(t, []float64{100}, codec.Float64Little, codec.NoCompression)

	withScan := func(scan string) string {
		return `<spectrum index="0" id="scan=1" defaultArrayLength="1">
  <cvParam accession="MS:1000511" value="1"/>
  <scanList><scan>` + scan + `</scan></scanList>
  <binaryDataArrayList>
` + binaryArray("MS:1000514", "MS:1000523", "MS:1000576", mz) + `
` + binaryArray("MS:1000515", "MS:1000523", "MS:1000576", mz) + `
  </binaryDataArrayList>
</spectrum>`
	}
	withArrays := func(arrays ...string) string {
		return `<spectrum index="0" id="scan=1" defaultArrayLength="1">
  <cvParam accession="MS:1000511" value="1"/>
  <binaryDataArrayList>` + strings.Join(arrays, "\n") + `</binaryDataArrayList>
</spectrum>`
	}

	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "unknown time unit",
			doc:  wrap(withScan(`<cvParam accession="MS:1000016" value="1" unitAccession="UO:0000032"/>`)),
			want: ErrUnknownUnit,
		},
		{
			name: "missing intensity array",
			doc:  wrap(withArrays(binaryArray("MS:1000514", "MS:1000523", "MS:1000576", mz))),
			want: ErrMissingArray,
		},
		{
			name: "no binary data type",
			doc: wrap(withArrays(
				binaryArray("MS:1000514", "MS:1000000", "MS:1000576", mz),
				binaryArray("MS:1000515", "MS:1000523", "MS:1000576", mz),
			)),
			want: codec.ErrInvalidBinaryEncoding,
		},
		{
			name: "unsupported compression",
			doc: wrap(withArrays(
				`<binaryDataArray>
  <cvParam accession="MS:1000523" name="64-bit float"/>
  <cvParam accession="MS:1002312" name="MS-Numpress linear prediction compression"/>
  <cvParam accession="MS:1000514" name="m/z array"/>
  <binary>`+mz+`</binary>
</binaryDataArray>`,
				binaryArray("MS:1000515", "MS:1000523", "MS:1000576", mz),
			)),
			want: codec.ErrInvalidCompression,
		},
		{
			name: "length disagrees with payload",
			doc: wrap(strings.Replace(withArrays(
				binaryArray("MS:1000514", "MS:1000523", "MS:1000576", mz),
				binaryArray("MS:1000515", "MS:1000523", "MS:1000576", mz),
			), `defaultArrayLength="1"`, `defaultArrayLength="2"`, 1)),
			want: codec.ErrCorruptedData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.doc))
			assert.False(t, r.Next())
			assert.ErrorIs(t, r.Err(), tt.want)
		})
	}

	t.Run("malformed xml", func(t *testing.T) {
		_, _, err := ReadAll(strings.NewReader(`<mzML><run><spectrumList><spectrum index="0"`))
		assert.Error(t, err)
	})
}

func TestScanNumber(t *testing.T) {
	assert.Equal(t, uint32(42), scanNumber("controllerType=0 controllerNumber=1 scan=42", 0))
	assert.Equal(t, uint32(8), scanNumber("index=7", 7))
	assert.Equal(t, uint32(0), scanNumber("", -1))
}
