package kjbimage

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// compression identifies a whole-file compression wrapper.
type compression int

const (
	compressNone compression = iota
	compressGzip
	compressZstd
)

var compressionSuffixes = map[string]compression{
	".gz":  compressGzip,
	".zst": compressZstd,
}

// splitCompression strips a compression suffix from name.
func splitCompression(name string) (string, compression) {
	lower := strings.ToLower(name)
	for suffix, c := range compressionSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return name[:len(name)-len(suffix)], c
		}
	}
	return name, compressNone
}

func sniffCompression(data []byte) compression {
	switch {
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		return compressGzip
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x28, 0xb5, 0x2f, 0xfd}):
		return compressZstd
	}
	return compressNone
}

var zstdDecPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
		if err != nil {
			panic(err)
		}
		return dec
	},
}

// decompress unwraps gzip or zstd content. Other data is returned as is.
func decompress(data []byte) ([]byte, compression, error) {
	c := sniffCompression(data)
	switch c {
	case compressGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, c, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, c, fmt.Errorf("gzip: %w", err)
		}
		return out, c, nil
	case compressZstd:
		dec := zstdDecPool.Get().(*zstd.Decoder)
		out, err := dec.DecodeAll(data, nil)
		zstdDecPool.Put(dec)
		if err != nil {
			return nil, c, fmt.Errorf("zstd decode: %w", err)
		}
		return out, c, nil
	}
	return data, c, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// compressWriter wraps w so that what is written to the result is
// compressed with c. Close flushes the compressor but leaves w open.
func compressWriter(w io.Writer, c compression) (io.WriteCloser, error) {
	switch c {
	case compressGzip:
		return gzip.NewWriter(w), nil
	case compressZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, err
		}
		return enc, nil
	}
	return nopWriteCloser{w}, nil
}
