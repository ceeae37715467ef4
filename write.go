package kjbimage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// writeCodecs maps lower case file name suffixes to native writers.
var writeCodecs = map[string]*codec{
	"":     sunCodec,
	"sun":  sunCodec,
	"ras":  sunCodec,
	"tif":  tiffCodec,
	"tiff": tiffCodec,
	"jpg":  jpegCodec,
	"jpeg": jpegCodec,
	"kif":  kiffCodec,
	"kiff": kiffCodec,
	"mid":  midCodec,
	"r16":  raw16Codec,
	"bmp":  bmpCodec,
	"ppm":  pnmCodec,
	"pnm":  pnmCodec,
}

// WriteSuffixes lists the file name suffixes written natively.
func WriteSuffixes() []string {
	return lo.Filter(lo.Keys(writeCodecs), func(s string, _ int) bool { return s != "" })
}

// WriteImage writes r to name choosing the format from the file suffix. A
// trailing .gz or .zst compresses the output. Suffixes without a native
// writer, and JPEG encoder failures, go through the external converter from
// a temporary TIFF. The file appears atomically: it is written next to the
// target and renamed into place.
func WriteImage(ctx context.Context, r *Raster, name string, opts ...func(*Options)) error {
	o := newOptions(opts)
	if r == nil || r.Rows < 1 || r.Cols < 1 || len(r.Pix) != r.Rows*r.Cols {
		return invalidArgf("cannot write an empty or inconsistent raster")
	}
	base, comp := splitCompression(name)
	suffix := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	log := o.logger().With("file", name)

	c, native := writeCodecs[suffix]
	if native {
		if err := c.checkAlpha(r); err != nil {
			return err
		}
		err := writeAtomic(name, func(f *os.File) error {
			w, err := compressWriter(f, comp)
			if err != nil {
				return err
			}
			if err := c.encode(w, r, o); err != nil {
				return err
			}
			return w.Close()
		})
		if err == nil {
			log.Debug("image written", "format", c.name)
			return nil
		}
		if c != jpegCodec {
			return fmt.Errorf("%s: %w", name, err)
		}
		log.Debug("JPEG writer failed, trying conversion", "error", err)
		return writeConverted(ctx, r, name, comp, o, err)
	}
	return writeConverted(ctx, r, name, comp, o, nil)
}

// writeConverted writes a temporary TIFF, or a Sun raster if the TIFF writer
// fails, and has the external converter produce name from it.
func writeConverted(ctx context.Context, r *Raster, name string, comp compression, o Options, native error) error {
	inter := tiffCodec
	if comp != compressNone {
		return fmt.Errorf("%s: %w", name, notHandledf("compressed output needs a native writer"))
	}
	if err := inter.checkAlpha(r); err != nil {
		return err
	}
	dir, err := os.MkdirTemp(o.TempDir, "kjbimage-write-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	tmp := filepath.Join(dir, "image.tiff")
	err = encodeFile(tmp, inter, r, o)
	if err != nil && !r.HasAlpha() {
		o.logger().Debug("temporary TIFF failed, using Sun raster", "error", err)
		inter = sunCodec
		tmp = filepath.Join(dir, "image.sun")
		err = encodeFile(tmp, inter, r, o)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, errors.Join(native, err))
	}

	if err := convertFile(ctx, tmp, name, o); err != nil {
		return fmt.Errorf("%s: %w", name, errors.Join(native, err))
	}
	return nil
}

func encodeFile(path string, c *codec, r *Raster, o Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.encode(f, r, o); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeAtomic runs fill on a temporary file next to name and renames it into
// place when fill succeeds. The temporary file is removed otherwise.
func writeAtomic(name string, fill func(f *os.File) error) (err error) {
	f, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".tmp-")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err = fill(f); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(f.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(f.Name(), name)
}
