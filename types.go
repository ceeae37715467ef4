package kjbimage

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// Validity is a per-channel bit set recording why a value may be untrustworthy.
type Validity uint8

const (
	Valid   Validity = 0
	Invalid Validity = 1
	Clipped Validity = 2
	Dark    Validity = 4
)

func (v Validity) String() string {
	if v == Valid {
		return "valid"
	}
	var parts []string
	if v&Invalid != 0 {
		parts = append(parts, "invalid")
	}
	if v&Clipped != 0 {
		parts = append(parts, "clipped")
	}
	if v&Dark != 0 {
		parts = append(parts, "dark")
	}
	if rest := v &^ (Invalid | Clipped | Dark); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%02x", uint8(rest)))
	}
	return strings.Join(parts, "|")
}

// PixelValidity holds the channel flags and their aggregate.
// Pixel is always R|G|B once the owning pixel is settled.
type PixelValidity struct {
	R, G, B Validity
	Pixel   Validity
}

// Pixel is a floating-point RGB sample with validity.
type Pixel struct {
	R, G, B float32
	Valid   PixelValidity
}

// Settle re-derives the aggregate validity from the channel flags.
func (p *Pixel) Settle() {
	p.Valid.Pixel = p.Valid.R | p.Valid.G | p.Valid.B
}

// Raster is a dense row-major grid of pixels with an optional alpha plane.
type Raster struct {
	Rows  int
	Cols  int
	Pix   []Pixel
	Alpha []float32 // nil when the raster has no alpha channel
}

// NewRaster allocates an all-valid black raster.
func NewRaster(rows, cols int) (*Raster, error) {
	if rows < 1 || cols < 1 {
		return nil, invalidArgf("raster dimensions %dx%d", rows, cols)
	}
	return &Raster{Rows: rows, Cols: cols, Pix: make([]Pixel, rows*cols)}, nil
}

func newRaster(rows, cols int) *Raster {
	return &Raster{Rows: rows, Cols: cols, Pix: make([]Pixel, rows*cols)}
}

// At returns the pixel at row, col.
func (r *Raster) At(row, col int) *Pixel {
	return &r.Pix[row*r.Cols+col]
}

// HasAlpha reports whether the raster carries an alpha plane.
func (r *Raster) HasAlpha() bool {
	return r.Alpha != nil
}

// AddAlpha attaches an alpha plane filled with v, replacing any existing one.
func (r *Raster) AddAlpha(v float32) {
	r.Alpha = make([]float32, r.Rows*r.Cols)
	for i := range r.Alpha {
		r.Alpha[i] = v
	}
}

// Resize reallocates the pixel storage for new dimensions. Contents are reset.
func (r *Raster) Resize(rows, cols int) error {
	if rows < 1 || cols < 1 {
		return invalidArgf("raster dimensions %dx%d", rows, cols)
	}
	r.Rows, r.Cols = rows, cols
	r.Pix = make([]Pixel, rows*cols)
	if r.Alpha != nil {
		r.Alpha = make([]float32, rows*cols)
	}
	return nil
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	out := &Raster{Rows: r.Rows, Cols: r.Cols, Pix: make([]Pixel, len(r.Pix))}
	copy(out.Pix, r.Pix)
	if r.Alpha != nil {
		out.Alpha = make([]float32, len(r.Alpha))
		copy(out.Alpha, r.Alpha)
	}
	return out
}

// Window copies the rows x cols sub-raster whose top left corner is row, col.
func (r *Raster) Window(row, col, rows, cols int) (*Raster, error) {
	if rows < 1 || cols < 1 || row < 0 || col < 0 || row+rows > r.Rows || col+cols > r.Cols {
		return nil, invalidArgf("window %dx%d at (%d, %d) outside %dx%d raster",
			rows, cols, row, col, r.Rows, r.Cols)
	}
	out := newRaster(rows, cols)
	if r.Alpha != nil {
		out.Alpha = make([]float32, rows*cols)
	}
	for i := 0; i < rows; i++ {
		src := (row+i)*r.Cols + col
		copy(out.Pix[i*cols:(i+1)*cols], r.Pix[src:src+cols])
		if r.Alpha != nil {
			copy(out.Alpha[i*cols:(i+1)*cols], r.Alpha[src:src+cols])
		}
	}
	return out, nil
}

// Image returns a 16-bit view of the raster with channel values scaled by 256,
// so that the usual 0..255 range fills the 16-bit range.
func (r *Raster) Image() *image.NRGBA64 {
	img := image.NewNRGBA64(image.Rect(0, 0, r.Cols, r.Rows))
	for i := 0; i < r.Rows; i++ {
		for j := 0; j < r.Cols; j++ {
			k := i*r.Cols + j
			p := &r.Pix[k]
			a := uint16(0xffff)
			if r.Alpha != nil {
				a = to16(r.Alpha[k])
			}
			img.SetNRGBA64(j, i, color.NRGBA64{R: to16(p.R), G: to16(p.G), B: to16(p.B), A: a})
		}
	}
	return img
}

// image8 is the eight bit counterpart of Image, rounding each channel.
func (r *Raster) image8() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, r.Cols, r.Rows))
	for k := range r.Pix {
		p := &r.Pix[k]
		a := uint8(0xff)
		if r.Alpha != nil {
			a = to8(r.Alpha[k])
		}
		img.Pix[4*k], img.Pix[4*k+1], img.Pix[4*k+2], img.Pix[4*k+3] = to8(p.R), to8(p.G), to8(p.B), a
	}
	return img
}

func (r *Raster) settle() {
	for i := range r.Pix {
		r.Pix[i].Settle()
	}
}

// to8 clamps to [0, 255] and rounds to the nearest byte.
func to8(v float32) uint8 {
	if v < 0 {
		v = 0
	}
	v += extraForRounding
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// to16 scales a 0..255 value to the 16-bit range, clamped and rounded.
func to16(v float32) uint16 {
	f := 256 * v
	if f < 0 {
		f = 0
	}
	if f > 65535 {
		f = 65535
	}
	return uint16(f + extraForRounding)
}
