package codec

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

// BinaryDataArray is one encoded numeric array.
type BinaryDataArray struct {
	Length      int // element count
	Encoding    Encoding
	Compression Compression
	Data        []byte
}

// Stats describes the size effect of compression on an array.
type Stats struct {
	OriginalSize   int
	CompressedSize int
}

// CompressionRatio returns compressed/original, or 1.0 for an empty array.
func (s Stats) CompressionRatio() float64 {
	if s.OriginalSize == 0 {
		return 1.0
	}
	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// Stats reports the raw and stored payload sizes.
func (a BinaryDataArray) Stats() Stats {
	return Stats{
		OriginalSize:   a.Length * a.Encoding.Size(),
		CompressedSize: len(a.Data),
	}
}

// Encode writes float values with a float encoding and compresses the result.
func Encode(values []float64, enc Encoding, comp Compression) (BinaryDataArray, error) {
	if !enc.IsFloat() {
		return BinaryDataArray{}, fmt.Errorf("%w: cannot write floats as %v", ErrUnsupportedEncoding, enc)
	}

	size := enc.Size()
	order := enc.byteOrder()
	buf := make([]byte, len(values)*size)
	for i, v := range values {
		if size == 4 {
			order.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
		} else {
			order.PutUint64(buf[i*8:], math.Float64bits(v))
		}
	}
	return finish(buf, len(values), enc, comp)
}

// EncodeInt writes integer values with an integer encoding and compresses the result.
func EncodeInt(values []int64, enc Encoding, comp Compression) (BinaryDataArray, error) {
	if enc.IsFloat() {
		return BinaryDataArray{}, fmt.Errorf("%w: cannot write integers as %v", ErrUnsupportedEncoding, enc)
	}

	size := enc.Size()
	order := enc.byteOrder()
	buf := make([]byte, len(values)*size)
	for i, v := range values {
		if size == 4 {
			if v < math.MinInt32 || v > math.MaxInt32 {
				return BinaryDataArray{}, fmt.Errorf("%w: value %d overflows %v", ErrUnsupportedEncoding, v, enc)
			}
			order.PutUint32(buf[i*4:], uint32(int32(v)))
		} else {
			order.PutUint64(buf[i*8:], uint64(v))
		}
	}
	return finish(buf, len(values), enc, comp)
}

func finish(raw []byte, n int, enc Encoding, comp Compression) (BinaryDataArray, error) {
	data, err := compress(raw, comp)
	if err != nil {
		return BinaryDataArray{}, err
	}
	return BinaryDataArray{Length: n, Encoding: enc, Compression: comp, Data: data}, nil
}

// raw decompresses the payload and checks it holds exactly Length elements.
func (a BinaryDataArray) raw() ([]byte, error) {
	if a.Length < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrCorruptedData, a.Length)
	}
	want := a.Length * a.Encoding.Size()
	data, err := decompress(a.Data, a.Compression, want)
	if err != nil {
		return nil, err
	}
	if len(data) != want {
		return nil, fmt.Errorf("%w: expected %d bytes for %d %v values, got %d",
			ErrCorruptedData, want, a.Length, a.Encoding, len(data))
	}
	return data, nil
}

// DecodeFloat64 decodes a float array, widening float32 values.
func (a BinaryDataArray) DecodeFloat64() ([]float64, error) {
	if !a.Encoding.IsFloat() {
		return nil, fmt.Errorf("%w: %v is not a float encoding", ErrInvalidDataType, a.Encoding)
	}
	data, err := a.raw()
	if err != nil {
		return nil, err
	}

	order := a.Encoding.byteOrder()
	out := make([]float64, a.Length)
	if a.Encoding.Size() == 4 {
		for i := range out {
			out[i] = float64(math.Float32frombits(order.Uint32(data[i*4:])))
		}
		return out, nil
	}
	for i := range out {
		out[i] = math.Float64frombits(order.Uint64(data[i*8:]))
	}
	return out, nil
}

// DecodeFloat32 decodes a float array, narrowing float64 values.
func (a BinaryDataArray) DecodeFloat32() ([]float32, error) {
	wide, err := a.DecodeFloat64()
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(wide))
	for i, v := range wide {
		out[i] = float32(v)
	}
	return out, nil
}

// DecodeInt64 decodes an integer array, widening int32 values.
func (a BinaryDataArray) DecodeInt64() ([]int64, error) {
	if a.Encoding.IsFloat() {
		return nil, fmt.Errorf("%w: %v is not an integer encoding", ErrInvalidDataType, a.Encoding)
	}
	data, err := a.raw()
	if err != nil {
		return nil, err
	}

	order := a.Encoding.byteOrder()
	out := make([]int64, a.Length)
	if a.Encoding.Size() == 4 {
		for i := range out {
			out[i] = int64(int32(order.Uint32(data[i*4:])))
		}
		return out, nil
	}
	for i := range out {
		out[i] = int64(order.Uint64(data[i*8:]))
	}
	return out, nil
}

// DecodeInt32 decodes an int32 array. 64-bit arrays are rejected rather than truncated.
func (a BinaryDataArray) DecodeInt32() ([]int32, error) {
	if a.Encoding != Int32Little && a.Encoding != Int32Big {
		return nil, fmt.Errorf("%w: %v is not a 32-bit integer encoding", ErrInvalidDataType, a.Encoding)
	}
	wide, err := a.DecodeInt64()
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(wide))
	for i, v := range wide {
		out[i] = int32(v)
	}
	return out, nil
}

// EncodeBase64 returns the standard-alphabet base64 text of data.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 parses standard-alphabet base64 text. Surrounding whitespace is ignored.
func DecodeBase64(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBase64, err)
	}
	return data, nil
}
