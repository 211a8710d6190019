package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// compress applies the stream compression to data.
func compress(data []byte, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser

	switch c {
	case NoCompression:
		return data, nil
	case Zlib:
		w = zlib.NewWriter(&buf)
	case Gzip:
		w = gzip.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidCompression, c)
	}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	return buf.Bytes(), nil
}

// decompress reverses compress, reading at most limit bytes. A malformed
// stream yields ErrDecompression and a longer one ErrCorruptedData.
func decompress(data []byte, c Compression, limit int) ([]byte, error) {
	var r io.ReadCloser
	var err error

	switch c {
	case NoCompression:
		return data, nil
	case Zlib:
		r, err = zlib.NewReader(bytes.NewReader(data))
	case Gzip:
		r, err = gzip.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidCompression, c)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrDecompression, c, err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrDecompression, c, err)
	}
	if len(out) > limit {
		return nil, fmt.Errorf("%w: %v stream inflates past %d bytes", ErrCorruptedData, c, limit)
	}
	return out, nil
}
