// Package sqlite provides SQLite storage for spectra and extracted ion chromatograms
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ChrisMcGann/mzkit/internal/metrics"
	"github.com/ChrisMcGann/mzkit/pkg/codec"
	"github.com/ChrisMcGann/mzkit/pkg/core"
	"github.com/ChrisMcGann/mzkit/pkg/xic"
	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Schema version written to HeaderTable
	schemaVersion = 1
)

// Writer handles writing spectra and traces to SQLite database files.
// All rows are written in one transaction committed by Finalize.
type Writer struct {
	db           *sql.DB
	tx           *sql.Tx
	outputPath   string
	codec        *codec.Codec
	metrics      *metrics.Metrics
	spectrumStmt *sql.Stmt
	xicStmt      *sql.Stmt
	spectrumID   int
	xicID        int
	finalized    bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithMetrics counts encoded bytes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// NewWriter creates a new SQLite writer. A nil codec uses codec.New().
func NewWriter(outputPath string, c *codec.Codec, opts ...Option) (*Writer, error) {
	if c == nil {
		c = codec.New()
	}

	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		codec:      c,
		spectrumID: 1,
		xicID:      1,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	w.tx, err = db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := w.prepareStatements(); err != nil {
		w.tx.Rollback()
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS SpectrumTable (
		SpectrumId INTEGER PRIMARY KEY,
		MSLevel INTEGER NOT NULL,
		ScanNumber INTEGER,
		RetentionTime DOUBLE,
		DriftTime DOUBLE,
		PrecursorMZ DOUBLE,
		PrecursorIntensity DOUBLE,
		PrecursorCharge INTEGER,
		ActivationMethod TEXT,
		CollisionEnergy DOUBLE,
		TotalIonCurrent DOUBLE,
		BasePeakMZ DOUBLE,
		BasePeakIntensity DOUBLE,
		PeakCount INTEGER NOT NULL,
		Encoding TEXT NOT NULL,
		Compression TEXT NOT NULL,
		Metadata TEXT,
		blobMass BLOB,
		blobIntensity BLOB
	);

	CREATE TABLE IF NOT EXISTS XICTable (
		XICId INTEGER PRIMARY KEY,
		IonType TEXT,
		MZ DOUBLE,
		Charge INTEGER,
		PPMError DOUBLE,
		Points INTEGER NOT NULL,
		MaxIntensity DOUBLE,
		MeanIntensity DOUBLE,
		SignalToNoise DOUBLE,
		Symmetry DOUBLE,
		SignalPoints INTEGER,
		NoisePoints INTEGER,
		Encoding TEXT NOT NULL,
		Compression TEXT NOT NULL,
		blobRetentionTime BLOB,
		blobIntensity BLOB
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		Description TEXT,
		SpectrumCount INTEGER,
		XICCount INTEGER
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.spectrumStmt, err = w.tx.Prepare(`
		INSERT INTO SpectrumTable (
			SpectrumId, MSLevel, ScanNumber, RetentionTime, DriftTime,
			PrecursorMZ, PrecursorIntensity, PrecursorCharge, ActivationMethod,
			CollisionEnergy, TotalIonCurrent, BasePeakMZ, BasePeakIntensity,
			PeakCount, Encoding, Compression, Metadata, blobMass, blobIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum statement: %w", err)
	}

	w.xicStmt, err = w.tx.Prepare(`
		INSERT INTO XICTable (
			XICId, IonType, MZ, Charge, PPMError, Points, MaxIntensity,
			MeanIntensity, SignalToNoise, Symmetry, SignalPoints, NoisePoints,
			Encoding, Compression, blobRetentionTime, blobIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare xic statement: %w", err)
	}

	return nil
}

// WriteSpectrum writes a single spectrum to the database
func (w *Writer) WriteSpectrum(spec *core.Spectrum) error {
	if w.finalized {
		return fmt.Errorf("writer already finalized")
	}
	spec.SortPeaks()

	enc, err := w.codec.EncodeSpectrum(spec)
	if err != nil {
		return fmt.Errorf("failed to encode spectrum %d: %w", w.spectrumID, err)
	}
	w.metrics.CodecBytes("encode", len(enc.MZ.Data)+len(enc.Intensity.Data))

	// Precursor columns stay NULL without a precursor
	var precMZ, precIntensity, energy, charge, method any
	if prec, ok := spec.Precursor(); ok {
		precMZ = prec.MZ
		precIntensity = prec.Intensity
		energy = prec.ActivationEnergy
		charge = int(prec.Charge)
		method = prec.ActivationMethod
	}

	var baseMZ, baseIntensity any
	if base, ok := spec.BasePeak(); ok {
		baseMZ = base.MZ
		baseIntensity = base.Intensity
	}

	meta, err := encodeMetadata(spec.AdditionalInfo())
	if err != nil {
		return err
	}

	_, err = w.spectrumStmt.Exec(
		w.spectrumID,                // SpectrumId
		spec.Level(),                // MSLevel
		spec.ScanNumber(),           // ScanNumber
		spec.RetentionTime(),        // RetentionTime
		spec.DriftTime(),            // DriftTime
		precMZ,                      // PrecursorMZ
		precIntensity,               // PrecursorIntensity
		charge,                      // PrecursorCharge
		method,                      // ActivationMethod
		energy,                      // CollisionEnergy
		spec.TotalIonCurrent(),      // TotalIonCurrent
		baseMZ,                      // BasePeakMZ
		baseIntensity,               // BasePeakIntensity
		spec.PeakCount(),            // PeakCount
		enc.MZ.Encoding.String(),    // Encoding
		enc.MZ.Compression.String(), // Compression
		meta,                        // Metadata
		enc.MZ.Data,                 // blobMass
		enc.Intensity.Data,          // blobIntensity
	)
	if err != nil {
		return fmt.Errorf("failed to insert spectrum: %w", err)
	}

	w.spectrumID++
	return nil
}

// WriteXIC writes a trace and its quality metrics
func (w *Writer) WriteXIC(r xic.Result, q xic.QualityMetrics) error {
	if w.finalized {
		return fmt.Errorf("writer already finalized")
	}

	rt, err := w.codec.EncodeArray(r.RT)
	if err != nil {
		return fmt.Errorf("failed to encode retention times: %w", err)
	}
	intensity, err := w.codec.EncodeArray(r.Intensity)
	if err != nil {
		return fmt.Errorf("failed to encode intensities: %w", err)
	}
	w.metrics.CodecBytes("encode", len(rt.Data)+len(intensity.Data))

	_, err = w.xicStmt.Exec(
		w.xicID,
		r.IonType,
		r.MZ,
		r.Charge,
		r.PPMError,
		r.Len(),
		q.MaxIntensity,
		q.MeanIntensity,
		q.SignalToNoise,
		q.Symmetry,
		q.SignalPoints,
		q.NoisePoints,
		rt.Encoding.String(),
		rt.Compression.String(),
		rt.Data,
		intensity.Data,
	)
	if err != nil {
		return fmt.Errorf("failed to insert xic: %w", err)
	}

	w.xicID++
	return nil
}

// Finalize writes the header table, commits and closes the database
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	today := time.Now().Format(headerDateFormat)
	_, err := w.tx.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description, SpectrumCount, XICCount)
		VALUES (?, ?, ?, ?, ?, ?)
	`, schemaVersion, today, today, "mzkit", w.spectrumID-1, w.xicID-1)
	if err != nil {
		w.tx.Rollback()
		w.db.Close()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	// Close prepared statements
	if w.spectrumStmt != nil {
		w.spectrumStmt.Close()
	}
	if w.xicStmt != nil {
		w.xicStmt.Close()
	}

	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to commit: %w", err)
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}

// SpectrumCount returns how many spectra have been written
func (w *Writer) SpectrumCount() int {
	return w.spectrumID - 1
}

// encodeMetadata renders entries as a YAML list, or NULL when empty
func encodeMetadata(m core.Metadata) (any, error) {
	if m.Len() == 0 {
		return nil, nil
	}
	data, err := yaml.Marshal(m.Entries())
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}
