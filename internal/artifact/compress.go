package artifact

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compress zstd-encodes data.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	out := enc.EncodeAll(data, make([]byte, 0, len(data)/4))
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return out, nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing artifact: %w", err)
	}
	return out, nil
}
