package trace

import (
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ReadFile loads and decodes a trace file. Paths ending in .zst are
// decompressed transparently.
func ReadFile(path string) ([]Command, error) {
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
	return Decode(raw)
}

// WriteFile encodes and stores a trace file, compressing when the path
// ends in .zst.
func WriteFile(path string, cmds []Command) error {
	raw, err := Encode(cmds)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return err
		}
		raw = enc.EncodeAll(raw, nil)
		if err := enc.Close(); err != nil {
			return err
		}
	}
	return os.WriteFile(path, raw, 0o644)
}
