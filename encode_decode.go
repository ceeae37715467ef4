package kjbimage

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif" // Register GIF decoder for the in-process fallback.
	"image/jpeg"
	_ "image/png" // Register PNG decoder for the in-process fallback.
	"io"

	_ "golang.org/x/image/bmp"  // Register BMP decoder for the in-process fallback.
	_ "golang.org/x/image/webp" // Register WebP decoder for the in-process fallback.
)

// decodeJPEG reads a baseline JPEG as three channel RGB. Grayscale and CMYK
// sources are converted. Decoder failures are reported as not handled so
// that the external converter gets a chance.
func decodeJPEG(data []byte, o Options) (*Raster, Decoded, error) {
	dec := Decoded{Format: FormatJPEG}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, dec, notHandledf("JPEG: %v", err)
	}
	b := img.Bounds()
	w, err := stripWindow(b.Dy(), b.Dx(), o)
	if err != nil {
		return nil, dec, err
	}
	return rasterFromImage(img, w, false), dec, nil
}

func encodeJPEG(w io.Writer, r *Raster, o Options) error {
	q := o.JPEGQuality
	if q < 1 || q > 100 {
		q = defaultJPEGQuality
	}
	return jpeg.Encode(w, r.image8(), &jpeg.Options{Quality: q})
}

// decodeStdImage runs the registered image decoders over data. It is the
// in-process step of the conversion fallback.
func decodeStdImage(data []byte, o Options) (*Raster, Decoded, error) {
	dec := Decoded{Converted: true}
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, dec, notHandledf("image decoders: %v", err)
	}
	b := img.Bounds()
	w, err := stripWindow(b.Dy(), b.Dx(), o)
	if err != nil {
		return nil, dec, err
	}
	o.logger().Debug("decoded in process", "format", name, "rows", b.Dy(), "cols", b.Dx())
	return rasterFromImage(img, w, true), dec, nil
}

// rasterFromImage copies the window w of img into a new raster. Eight bit
// sources keep their exact byte values; deeper sources are scaled by 1/256.
// An alpha plane is kept only when withAlpha is set and some pixel is not
// fully opaque.
func rasterFromImage(img image.Image, w window, withAlpha bool) *Raster {
	out := newRaster(w.rows, w.cols)
	alpha := make([]float32, w.rows*w.cols)
	opaque := true
	b := img.Bounds()
	deep := isDeepImage(img)
	for i := 0; i < w.rows; i++ {
		for j := 0; j < w.cols; j++ {
			x, y := b.Min.X+w.col+j, b.Min.Y+w.row+i
			p := out.At(i, j)
			var a float32
			if deep {
				c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
				p.R, p.G, p.B, a = float32(c.R)/256, float32(c.G)/256, float32(c.B)/256, float32(c.A)/256
				opaque = opaque && c.A == 0xffff
			} else {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				p.R, p.G, p.B, a = float32(c.R), float32(c.G), float32(c.B), float32(c.A)
				opaque = opaque && c.A == 0xff
			}
			alpha[i*w.cols+j] = a
		}
	}
	if withAlpha && !opaque {
		out.Alpha = alpha
	}
	return out
}

func isDeepImage(img image.Image) bool {
	switch img.(type) {
	case *image.Gray16, *image.RGBA64, *image.NRGBA64:
		return true
	default:
		return false
	}
}
