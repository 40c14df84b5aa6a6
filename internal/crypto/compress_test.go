package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestLZ4CompressFastSkipsSmallInput(t *testing.T) {
	small := []byte("too small")
	out, ok, err := LZ4CompressFast(small)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected compression to be skipped for small input")
	}
	if !bytes.Equal(out, small) {
		t.Fatal("input should be returned unchanged")
	}
}

func TestLZ4RoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("mesh routing payload ", 50))
	compressed, ok, err := LZ4CompressFast(original)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected compressible input to be compressed")
	}
	if len(compressed) >= len(original) {
		t.Fatal("compressed output not smaller than input")
	}

	decompressed, err := LZ4Decompress(compressed, len(original))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, original) {
		t.Fatal("round trip mismatch")
	}
}

func TestLZ4CompressFastSkipsIncompressible(t *testing.T) {
	// 200 distinct byte values (97 is odd, so i*97 mod 256 never repeats
	// within 256 bytes): no 4-byte match exists for LZ4 to exploit, so the
	// framed output cannot shrink below the original and compression must
	// be reported as skipped (ok=false).
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i * 97)
	}
	_, ok, err := LZ4CompressFast(data)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected compression to be skipped for incompressible input")
	}
}
