package kjbimage

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// Interpolation selects the resampling filter used by Resample.
type Interpolation int

const (
	// InterpolationNearest is nearest-neighbor sampling.
	InterpolationNearest Interpolation = iota
	// InterpolationBilinear is linear sampling.
	InterpolationBilinear
	// InterpolationBicubic is cubic sampling.
	InterpolationBicubic
	// InterpolationMitchellNetravali is Mitchell-Netravali sampling.
	InterpolationMitchellNetravali
	// InterpolationLanczos2 is Lanczos sampling with a=2.
	InterpolationLanczos2
	// InterpolationLanczos3 is Lanczos sampling with a=3.
	InterpolationLanczos3
)

var interpolationNames = map[string]Interpolation{
	"nearest":  InterpolationNearest,
	"bilinear": InterpolationBilinear,
	"bicubic":  InterpolationBicubic,
	"mitchell": InterpolationMitchellNetravali,
	"lanczos2": InterpolationLanczos2,
	"lanczos3": InterpolationLanczos3,
}

// ParseInterpolation maps a filter name such as "bicubic" to its value.
func ParseInterpolation(name string) (Interpolation, error) {
	if in, ok := interpolationNames[name]; ok {
		return in, nil
	}
	return 0, invalidArgf("unknown interpolation %q", name)
}

func (in Interpolation) filter() resize.InterpolationFunction {
	switch in {
	case InterpolationBilinear:
		return resize.Bilinear
	case InterpolationBicubic:
		return resize.Bicubic
	case InterpolationMitchellNetravali:
		return resize.MitchellNetravali
	case InterpolationLanczos2:
		return resize.Lanczos2
	case InterpolationLanczos3:
		return resize.Lanczos3
	default:
		return resize.NearestNeighbor
	}
}

// Resample returns r scaled to rows x cols. Channel values are resampled on
// a 16 bit scale normalised to the raster maximum, so values above 255
// survive. Each output pixel takes its validity from the nearest source
// pixel.
func Resample(r *Raster, rows, cols int, interp Interpolation) (*Raster, error) {
	if rows < 1 || cols < 1 {
		return nil, invalidArgf("resample target %dx%d", rows, cols)
	}
	peak := float32(0)
	for i := range r.Pix {
		p := &r.Pix[i]
		peak = max(peak, p.R, p.G, p.B)
	}
	if peak <= 0 {
		peak = 1
	}
	scale := 65535 / peak

	src := image.NewRGBA64(image.Rect(0, 0, r.Cols, r.Rows))
	for k := range r.Pix {
		p := &r.Pix[k]
		src.SetRGBA64(k%r.Cols, k/r.Cols, color.RGBA64{
			R: uint16(clampf(p.R*scale, 0, 65535) + extraForRounding),
			G: uint16(clampf(p.G*scale, 0, 65535) + extraForRounding),
			B: uint16(clampf(p.B*scale, 0, 65535) + extraForRounding),
			A: 0xffff,
		})
	}
	f := interp.filter()
	dst := resize.Resize(uint(cols), uint(rows), src, f)

	out := newRaster(rows, cols)
	b := dst.Bounds()
	for i := 0; i < rows; i++ {
		si := min(i*r.Rows/rows, r.Rows-1)
		for j := 0; j < cols; j++ {
			sj := min(j*r.Cols/cols, r.Cols-1)
			c := color.RGBA64Model.Convert(dst.At(b.Min.X+j, b.Min.Y+i)).(color.RGBA64)
			p := out.At(i, j)
			p.R = float32(c.R) / scale
			p.G = float32(c.G) / scale
			p.B = float32(c.B) / scale
			p.Valid = r.At(si, sj).Valid
		}
	}

	if r.Alpha != nil {
		a := image.NewGray16(image.Rect(0, 0, r.Cols, r.Rows))
		for k, v := range r.Alpha {
			a.SetGray16(k%r.Cols, k/r.Cols, color.Gray16{Y: to16(v)})
		}
		ra := resize.Resize(uint(cols), uint(rows), a, f)
		ab := ra.Bounds()
		out.Alpha = make([]float32, rows*cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				g := color.Gray16Model.Convert(ra.At(ab.Min.X+j, ab.Min.Y+i)).(color.Gray16)
				out.Alpha[i*cols+j] = float32(g.Y) / 256
			}
		}
	}
	return out, nil
}
