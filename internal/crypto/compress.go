package crypto

import (
	"bytes"

	"github.com/pierrec/lz4/v4"
)

// compressMinInput is the minimum input size before compression is even
// attempted (spec §4.1).
const compressMinInput = 100

// LZ4CompressFast compresses data if and only if it is at least 100 bytes
// and the compressed form is strictly smaller than the input; otherwise it
// returns the input unchanged and ok=false so the caller knows not to set
// the compressed flag.
func LZ4CompressFast(data []byte) (out []byte, ok bool, err error) {
	if len(data) < compressMinInput {
		return data, false, nil
	}

	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
		return nil, false, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, false, err
	}
	if err := w.Close(); err != nil {
		return nil, false, err
	}

	if buf.Len() >= len(data) {
		return data, false, nil
	}
	return buf.Bytes(), true, nil
}

// LZ4Decompress reverses LZ4CompressFast. originalSize is an optional
// hint used to pre-size the output buffer; 0 means "unknown".
func LZ4Decompress(data []byte, originalSize int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out := make([]byte, 0, max(originalSize, len(data)*3))
	buf := bytes.NewBuffer(out)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
