package kjbimage

import (
	"fmt"
	"io"
)

// Decoded describes how a raster was read.
type Decoded struct {
	Format Format
	// EmbeddedValidity is set when the file itself carried validity data, in
	// which case the read pipeline leaves clip and dark marking alone unless
	// reset-invalid-pixels is on.
	EmbeddedValidity bool
	// Converted is set when the image went through a fallback decoder.
	Converted bool
}

type decodeFunc func(data []byte, o Options) (*Raster, Decoded, error)

type encodeFunc func(w io.Writer, r *Raster, o Options) error

type codec struct {
	format Format
	name   string
	decode decodeFunc
	encode encodeFunc
	alpha  bool
}

var (
	kiffCodec   = &codec{format: FormatKiff, name: "kiff", decode: decodeKiff, encode: encodeKiff}
	midCodec    = &codec{format: FormatMID, name: "mid image", decode: decodeMID, encode: encodeMID}
	tiffCodec   = &codec{format: FormatTIFF, name: "TIFF", decode: decodeTIFF, encode: encodeTIFF, alpha: true}
	jpegCodec   = &codec{format: FormatJPEG, name: "JPEG", decode: decodeJPEG, encode: encodeJPEG}
	sunCodec    = &codec{format: FormatSunRaster, name: "Sun raster", decode: decodeSunRaster, encode: encodeSunRaster}
	pnmCodec    = &codec{format: FormatPNM, name: "PNM", decode: decodePNM, encode: encodePNM}
	bmpCodec    = &codec{format: FormatBMP, name: "BMP", decode: decodeBMP, encode: encodeBMP}
	dcs460Codec = &codec{format: FormatDCS460, name: "DCS460 raw", decode: decodeDCS460}
	hdrcCodec   = &codec{format: FormatHDRCRaw, name: "HDRC raw", decode: decodeHDRC}
	raw16Codec  = &codec{name: "r16 image", encode: encodeRaw16}
)

var decoders = map[Format]*codec{
	FormatKiff:      kiffCodec,
	FormatMID:       midCodec,
	FormatTIFF:      tiffCodec,
	FormatJPEG:      jpegCodec,
	FormatSunRaster: sunCodec,
	FormatPNM:       pnmCodec,
	FormatBMP:       bmpCodec,
	FormatDCS460:    dcs460Codec,
	FormatHDRCRaw:   hdrcCodec,
}

// checkAlpha rejects rasters with alpha for codecs that cannot store it.
func (c *codec) checkAlpha(r *Raster) error {
	if r.HasAlpha() && !c.alpha {
		return fmt.Errorf("%w: %s writer doesn't currently support alpha channel", ErrAlphaUnsupported, c.name)
	}
	return nil
}

// window is the part of a decoded image that survives stripping.
type window struct {
	row, col   int
	rows, cols int
}

// stripWindow validates the strip margins against the stored dimensions. It
// runs before any pixel data is read.
func stripWindow(rows, cols int, o Options) (window, error) {
	if rows < 1 || cols < 1 {
		return window{}, corruptf("image dimensions %dx%d are invalid", rows, cols)
	}
	if o.StripTop < 0 || o.StripBottom < 0 || o.StripLeft < 0 || o.StripRight < 0 {
		return window{}, invalidArgf("negative strip margin (top %d, bottom %d, left %d, right %d)",
			o.StripTop, o.StripBottom, o.StripLeft, o.StripRight)
	}
	w := window{
		row:  o.StripTop,
		col:  o.StripLeft,
		rows: rows - o.StripTop - o.StripBottom,
		cols: cols - o.StripLeft - o.StripRight,
	}
	if w.rows < 1 || w.cols < 1 {
		return window{}, invalidArgf("stripping (top %d, bottom %d, left %d, right %d) leaves nothing of a %dx%d image",
			o.StripTop, o.StripBottom, o.StripLeft, o.StripRight, rows, cols)
	}
	return w, nil
}

// fitsPayload reports whether rows x cols pixels of size bytes each fit in n
// bytes. The header dimensions are never multiplied, so huge values cannot
// wrap around.
func fitsPayload(rows, cols, size, n int) bool {
	return rows > 0 && cols > 0 && cols <= n/size/rows
}

// fullWindow is used by readers that ignore stripping.
func fullWindow(rows, cols int) window {
	return window{rows: rows, cols: cols}
}
