package mzml

import (
	"fmt"
	"strconv"
	"strings"
)

// cvParam is a controlled vocabulary term with its value and unit
type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
	UnitName      string `xml:"unitName,attr"`
}

type paramGroup struct {
	CVParams []cvParam `xml:"cvParam"`
}

// find returns the first term with the given accession
func (g paramGroup) find(accession string) (cvParam, bool) {
	for _, cv := range g.CVParams {
		if cv.Accession == accession {
			return cv, true
		}
	}
	return cvParam{}, false
}

// float parses the value of the first term with the given accession
func (g paramGroup) float(accession string) (float64, bool, error) {
	cv, ok := g.find(accession)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(cv.Value), 64)
	if err != nil {
		return 0, true, fmt.Errorf("%s (%s): invalid value %q", cv.Name, accession, cv.Value)
	}
	return v, true, nil
}

// xmlSpectrum mirrors the parts of <spectrum> that are read
type xmlSpectrum struct {
	Index              int    `xml:"index,attr"`
	ID                 string `xml:"id,attr"`
	DefaultArrayLength int    `xml:"defaultArrayLength,attr"`
	paramGroup
	Scans      []xmlScan        `xml:"scanList>scan"`
	Precursors []xmlPrecursor   `xml:"precursorList>precursor"`
	Arrays     []xmlBinaryArray `xml:"binaryDataArrayList>binaryDataArray"`
}

type xmlScan struct {
	paramGroup
	Windows []paramGroup `xml:"scanWindowList>scanWindow"`
}

type xmlPrecursor struct {
	SpectrumRef     string       `xml:"spectrumRef,attr"`
	IsolationWindow paramGroup   `xml:"isolationWindow"`
	SelectedIons    []paramGroup `xml:"selectedIonList>selectedIon"`
	Activation      paramGroup   `xml:"activation"`
}

type xmlBinaryArray struct {
	ArrayLength int `xml:"arrayLength,attr"`
	paramGroup
	Binary string `xml:"binary"`
}
