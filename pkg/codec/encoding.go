// Package codec encodes and decodes peak arrays in the binary data array
// format used by mzML: fixed-width numbers in a chosen byte order, optionally
// zlib or gzip compressed, carried as base64 text.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedEncoding means values of one kind were encoded with the other kind's encoding.
	ErrUnsupportedEncoding = errors.New("codec: unsupported encoding")
	// ErrInvalidDataType means a float array was decoded as integers or vice versa.
	ErrInvalidDataType = errors.New("codec: invalid data type")
	// ErrCorruptedData means the payload size disagrees with the declared length.
	ErrCorruptedData = errors.New("codec: corrupted data")
	// ErrDecompression means the compressed stream could not be read.
	ErrDecompression = errors.New("codec: decompression failed")
	// ErrCompression means the compressor could not write the payload.
	ErrCompression = errors.New("codec: compression failed")
	// ErrBase64 means the transport text is not valid base64.
	ErrBase64 = errors.New("codec: invalid base64")
	// ErrInvalidBinaryEncoding means an encoding tag was not recognised.
	ErrInvalidBinaryEncoding = errors.New("codec: invalid binary encoding")
	// ErrInvalidCompression means a compression tag was not recognised.
	ErrInvalidCompression = errors.New("codec: invalid compression")
)

// Encoding identifies numeric width, kind and byte order of an array.
type Encoding uint8

const (
	Float32Little Encoding = iota
	Float64Little
	Float32Big
	Float64Big
	Int32Little
	Int64Little
	Int32Big
	Int64Big
)

var encodingNames = [...]string{
	Float32Little: "float32le",
	Float64Little: "float64le",
	Float32Big:    "float32be",
	Float64Big:    "float64be",
	Int32Little:   "int32le",
	Int64Little:   "int64le",
	Int32Big:      "int32be",
	Int64Big:      "int64be",
}

func (e Encoding) String() string {
	if int(e) < len(encodingNames) {
		return encodingNames[e]
	}
	return fmt.Sprintf("Encoding(%d)", uint8(e))
}

// Size returns the element width in bytes.
func (e Encoding) Size() int {
	switch e {
	case Float32Little, Float32Big, Int32Little, Int32Big:
		return 4
	default:
		return 8
	}
}

// IsFloat reports whether the encoding stores floating point values.
func (e Encoding) IsFloat() bool {
	switch e {
	case Float32Little, Float64Little, Float32Big, Float64Big:
		return true
	default:
		return false
	}
}

// IsLittleEndian reports the byte order.
func (e Encoding) IsLittleEndian() bool {
	switch e {
	case Float32Little, Float64Little, Int32Little, Int64Little:
		return true
	default:
		return false
	}
}

func (e Encoding) byteOrder() binary.ByteOrder {
	if e.IsLittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// mzML binary data type accessions. mzML arrays are always little-endian.
const (
	AccessionFloat32 = "MS:1000521"
	AccessionFloat64 = "MS:1000523"
	AccessionInt32   = "MS:1000519"
	AccessionInt64   = "MS:1000522"
)

// Accession returns the mzML CV accession for the value type, ignoring byte order.
func (e Encoding) Accession() string {
	switch e {
	case Float32Little, Float32Big:
		return AccessionFloat32
	case Float64Little, Float64Big:
		return AccessionFloat64
	case Int32Little, Int32Big:
		return AccessionInt32
	default:
		return AccessionInt64
	}
}

// ParseEncoding maps a name, CV accession or CV term name to an Encoding.
// Unknown tags fail with ErrInvalidBinaryEncoding; there is no default guess.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float32le", "float32", "ms:1000521", "32-bit float":
		return Float32Little, nil
	case "float64le", "float64", "ms:1000523", "64-bit float":
		return Float64Little, nil
	case "float32be":
		return Float32Big, nil
	case "float64be":
		return Float64Big, nil
	case "int32le", "int32", "ms:1000519", "32-bit integer":
		return Int32Little, nil
	case "int64le", "int64", "ms:1000522", "64-bit integer":
		return Int64Little, nil
	case "int32be":
		return Int32Big, nil
	case "int64be":
		return Int64Big, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidBinaryEncoding, s)
}

// Compression is the stream compression applied to an encoded payload.
type Compression uint8

const (
	NoCompression Compression = iota
	Zlib
	Gzip
)

// mzML compression accessions.
const (
	AccessionZlib          = "MS:1000574"
	AccessionNoCompression = "MS:1000576"
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case Zlib:
		return "zlib"
	case Gzip:
		return "gzip"
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// ParseCompression maps a name or CV accession to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "no compression", "ms:1000576":
		return NoCompression, nil
	case "zlib", "zlib compression", "ms:1000574":
		return Zlib, nil
	case "gzip":
		return Gzip, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCompression, s)
}
