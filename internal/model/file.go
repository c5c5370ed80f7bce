package model

import (
	"bytes"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ReadFile loads a model file. Paths ending in .zst are decompressed
// transparently.
func ReadFile(path string) (*Matrix, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		raw, err = dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, err
		}
	}
	return Decode(bytes.NewReader(raw))
}

// WriteFile stores a model file, compressing when the path ends in .zst.
func WriteFile(path string, m *Matrix) error {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return err
	}
	out := buf.Bytes()
	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return err
		}
		out = enc.EncodeAll(out, nil)
		if err := enc.Close(); err != nil {
			return err
		}
	}
	return os.WriteFile(path, out, 0o644)
}
