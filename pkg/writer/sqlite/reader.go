package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/ChrisMcGann/mzkit/pkg/codec"
	"github.com/ChrisMcGann/mzkit/pkg/core"
	"github.com/ChrisMcGann/mzkit/pkg/xic"
	"gopkg.in/yaml.v3"
)

// ReadSpectra reads every spectrum of a database written by Writer, in
// insertion order.
func ReadSpectra(path string) ([]*core.Spectrum, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT MSLevel, ScanNumber, RetentionTime, DriftTime,
			PrecursorMZ, PrecursorIntensity, PrecursorCharge, ActivationMethod,
			CollisionEnergy, PeakCount, Encoding, Compression, Metadata,
			blobMass, blobIntensity
		FROM SpectrumTable ORDER BY SpectrumId
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query spectra: %w", err)
	}
	defer rows.Close()

	dec := codec.New()
	var spectra []*core.Spectrum
	for rows.Next() {
		var (
			e                  codec.EncodedSpectrum
			scan               int64
			precMZ, precInt    sql.NullFloat64
			energy             sql.NullFloat64
			charge             sql.NullInt64
			method, meta       sql.NullString
			count              int
			encName, compName  string
			mzBlob, intensBlob []byte
		)
		if err := rows.Scan(&e.Level, &scan, &e.RetentionTime, &e.DriftTime,
			&precMZ, &precInt, &charge, &method, &energy, &count,
			&encName, &compName, &meta, &mzBlob, &intensBlob); err != nil {
			return nil, fmt.Errorf("failed to scan spectrum row: %w", err)
		}

		enc, err := codec.ParseEncoding(encName)
		if err != nil {
			return nil, err
		}
		comp, err := codec.ParseCompression(compName)
		if err != nil {
			return nil, err
		}
		e.ScanNumber = uint32(scan)
		e.MZ = codec.BinaryDataArray{Length: count, Encoding: enc, Compression: comp, Data: mzBlob}
		e.Intensity = codec.BinaryDataArray{Length: count, Encoding: enc, Compression: comp, Data: intensBlob}

		spec, err := dec.DecodeSpectrum(e)
		if err != nil {
			return nil, fmt.Errorf("spectrum %d: %w", len(spectra)+1, err)
		}
		spec.SortPeaks()

		if precMZ.Valid {
			prec := core.PrecursorInfo{
				MZ:               precMZ.Float64,
				Intensity:        precInt.Float64,
				Charge:           int8(charge.Int64),
				ActivationMethod: method.String,
				ActivationEnergy: energy.Float64,
			}
			if err := spec.SetPrecursor(prec); err != nil {
				return nil, fmt.Errorf("spectrum %d: %w", len(spectra)+1, err)
			}
		}

		if meta.Valid {
			if err := decodeMetadata(spec, meta.String); err != nil {
				return nil, fmt.Errorf("spectrum %d: %w", len(spectra)+1, err)
			}
		}
		spectra = append(spectra, spec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read spectra: %w", err)
	}
	return spectra, nil
}

// ReadXICs reads every stored trace with its quality metrics.
func ReadXICs(path string) ([]xic.Result, []xic.QualityMetrics, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT IonType, MZ, Charge, PPMError, Points, MaxIntensity,
			MeanIntensity, SignalToNoise, Symmetry, SignalPoints, NoisePoints,
			Encoding, Compression, blobRetentionTime, blobIntensity
		FROM XICTable ORDER BY XICId
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var results []xic.Result
	var quality []xic.QualityMetrics
	for rows.Next() {
		var (
			r                  xic.Result
			q                  xic.QualityMetrics
			encName, compName  string
			rtBlob, intensBlob []byte
		)
		if err := rows.Scan(&r.IonType, &r.MZ, &r.Charge, &r.PPMError, &q.Points,
			&q.MaxIntensity, &q.MeanIntensity, &q.SignalToNoise, &q.Symmetry,
			&q.SignalPoints, &q.NoisePoints, &encName, &compName,
			&rtBlob, &intensBlob); err != nil {
			return nil, nil, fmt.Errorf("failed to scan xic row: %w", err)
		}

		enc, err := codec.ParseEncoding(encName)
		if err != nil {
			return nil, nil, err
		}
		comp, err := codec.ParseCompression(compName)
		if err != nil {
			return nil, nil, err
		}
		rtArr := codec.BinaryDataArray{Length: q.Points, Encoding: enc, Compression: comp, Data: rtBlob}
		if r.RT, err = rtArr.DecodeFloat64(); err != nil {
			return nil, nil, fmt.Errorf("trace %d retention times: %w", len(results)+1, err)
		}
		intensArr := codec.BinaryDataArray{Length: q.Points, Encoding: enc, Compression: comp, Data: intensBlob}
		if r.Intensity, err = intensArr.DecodeFloat64(); err != nil {
			return nil, nil, fmt.Errorf("trace %d intensities: %w", len(results)+1, err)
		}

		results = append(results, r)
		quality = append(quality, q)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read traces: %w", err)
	}
	return results, quality, nil
}

func decodeMetadata(spec *core.Spectrum, text string) error {
	var entries []core.KeyValue
	if err := yaml.Unmarshal([]byte(text), &entries); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}
	for _, kv := range entries {
		if err := spec.AddAdditionalInfo(kv.Key, kv.Value); err != nil {
			return err
		}
	}
	return nil
}
