package kjbimage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

func newOptions(opts []func(*Options)) Options {
	o := DefaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// SplitSubImage separates a trailing "[n]" sub-image selector, as used for
// Photo-CD resolutions, from name.
func SplitSubImage(name string) (path, sub string) {
	if !strings.HasSuffix(name, "]") {
		return name, ""
	}
	i := strings.LastIndexByte(name, '[')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i+1 : len(name)-1]
}

// ReadImage reads an image and runs the configured preprocessing: clip
// marking, bloom removal, Photo-CD conversion, gamma correction and dark
// marking. Clip and dark marking are skipped when the file carried its own
// validity, unless reset-invalid-pixels is on.
func ReadImage(ctx context.Context, name string, opts ...func(*Options)) (*Raster, error) {
	o := newOptions(opts)
	log := o.logger().With("file", name)

	r, dec, err := readRaw(ctx, name, o)
	if err != nil {
		return nil, err
	}
	log.Debug("image read", "format", dec.Format, "rows", r.Rows, "cols", r.Cols,
		"converted", dec.Converted, "invalid", CountInvalid(r))

	if o.StripImagesOnRead && r.Rows == fullVideoRows && r.Cols == fullVideoCols {
		if r, err = r.Window(videoStripTop, videoStripLeft, strippedVideoRows, strippedVideoCols); err != nil {
			return nil, err
		}
	}

	recompute := o.ResetInvalidPixels || !dec.EmbeddedValidity
	if recompute {
		if n := MarkClipped(r, o.ClipPoint); n > 0 {
			log.Debug("pixels marked as clipped", "count", n)
		}
	}

	if !o.ConvertPCDYCC {
		for range o.BloomRemovalCount {
			r = MarkBloomingCandidates(r)
		}
	}

	if o.ConvertPCDYCC {
		n := YCCToRGB(r, o.PCDYCCForwardConversion)
		log.Debug("pixels marked invalid converting PCD YCC to RGB", "count", n)
	}

	if o.LinearizePCD {
		if o.InputGammaBeforeOffset > 0 || o.InputGammaAfterOffset > 0 {
			log.Warn("PCD linearization overrides input gamma correction")
		}
		LinearizePCD(r)
	} else {
		for _, g := range []float64{o.InputGammaBeforeOffset, o.InputGammaAfterOffset} {
			if g <= 0 {
				continue
			}
			if err := GammaCorrect(r, gammaVector(g), o); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	if recompute {
		if n := MarkDark(r, o.MinRed, o.MinGreen, o.MinBlue, o.MinSum); n > 0 {
			log.Debug("pixels marked as dark", "count", n)
		}
	}
	log.Debug("image preprocessed", "invalid", CountInvalid(r))
	return r, nil
}

// ReadImageRaw decodes an image without preprocessing. Stripping margins
// still apply.
func ReadImageRaw(ctx context.Context, name string, opts ...func(*Options)) (*Raster, Decoded, error) {
	return readRaw(ctx, name, newOptions(opts))
}

func readRaw(ctx context.Context, name string, o Options) (*Raster, Decoded, error) {
	path, sub := SplitSubImage(name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, Decoded{}, err
	}
	data, comp, err := decompress(raw)
	if err != nil {
		return nil, Decoded{}, fmt.Errorf("%s: %w", path, err)
	}

	src := diskSource{path: path, data: data, compressed: comp != compressNone, tempDir: o.TempDir}
	defer src.cleanup()

	format := SniffBytes(data, int64(len(data)))
	log := o.logger().With("file", path)
	log.Debug("format detected", "format", format, "compressed", comp != compressNone)

	var attempts []error
	switch c := decoders[format]; {
	case format == FormatPCD && o.ReadPCD:
		p, err := src.file()
		if err != nil {
			return nil, Decoded{}, err
		}
		r, err := readPCD(ctx, p, sub, pcdRotation(data), o)
		if err == nil {
			return r, Decoded{Format: FormatPCD}, nil
		}
		if !errors.Is(err, ErrNotHandled) {
			return nil, Decoded{Format: FormatPCD}, fmt.Errorf("%s: %w", path, err)
		}
		attempts = append(attempts, err)
	case format == FormatPCD:
		attempts = append(attempts, notHandledf("PCD reading is off"))
	case c != nil:
		r, dec, err := c.decode(data, o)
		if err == nil {
			return r, dec, nil
		}
		if !errors.Is(err, ErrNotHandled) {
			return nil, dec, fmt.Errorf("%s: %w", path, err)
		}
		attempts = append(attempts, fmt.Errorf("%s reader: %w", c.name, err))
	default:
		attempts = append(attempts, notHandledf("unrecognized image format"))
	}
	log.Debug("native reader declined, trying conversion", "error", errors.Join(attempts...))

	r, dec, err := decodeStdImage(data, o)
	switch {
	case err == nil:
		dec.Format = format
		return r, dec, nil
	case !errors.Is(err, ErrNotHandled):
		return nil, dec, fmt.Errorf("%s: %w", path, err)
	}
	attempts = append(attempts, err)

	p, err := src.file()
	if err != nil {
		return nil, Decoded{}, err
	}
	r, err = convertToRaster(ctx, p, o)
	if err != nil {
		attempts = append(attempts, err)
		return nil, Decoded{Format: format}, fmt.Errorf("%s: %w", path, errors.Join(attempts...))
	}
	return r, Decoded{Format: format, Converted: true}, nil
}

// diskSource hands external tools a path to the decoded bytes, writing a
// temporary copy when the original file was compressed.
type diskSource struct {
	path       string
	data       []byte
	compressed bool
	tempDir    string
	temp       string
}

func (s *diskSource) file() (string, error) {
	if !s.compressed {
		return s.path, nil
	}
	if s.temp != "" {
		return s.temp, nil
	}
	f, err := os.CreateTemp(s.tempDir, "kjbimage-input-")
	if err != nil {
		return "", err
	}
	s.temp = f.Name()
	if _, err := f.Write(s.data); err != nil {
		f.Close()
		return "", err
	}
	return s.temp, f.Close()
}

func (s *diskSource) cleanup() {
	if s.temp != "" {
		os.Remove(s.temp)
	}
}
