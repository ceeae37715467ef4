package kjbimage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

// Sun raster header constants.
const (
	sunHeaderLen   = 32
	sunTypeStd     = 1
	sunTypeRGB     = 3
	sunMapNone     = 0
	sunMapEqualRGB = 1
	sunEqualRGBLen = 768
)

type sunHeader struct {
	width, height, depth, length int32
	typ, maptype, maplength     int32
}

func (h sunHeader) supported() bool {
	standard := h.typ == sunTypeStd || h.typ == sunTypeRGB
	switch h.maptype {
	case sunMapNone:
		return standard && (h.depth == 8 || h.depth == 24 || h.depth == 32)
	case sunMapEqualRGB:
		return standard && h.depth == 8 && h.maplength == sunEqualRGBLen
	}
	return false
}

// sunPixelBytes is the smallest stored size of one pixel at depth.
func sunPixelBytes(depth int32) int {
	return max(int(depth)/8, 1)
}

// rowLength is the stored length of one row; 8 and 24 bit rows are padded to
// an even number of bytes.
func (h sunHeader) rowLength() int {
	switch h.depth {
	case 8:
		return int(h.width) + int(h.width)&1
	case 24:
		n := 3 * int(h.width)
		return n + n&1
	default:
		return 4 * int(h.width)
	}
}

func readSunHeader(data []byte) (sunHeader, error) {
	var h sunHeader
	order, ok := magicOrder(data, sunMagic)
	if !ok {
		return h, corruptf("not a valid raster file (incorrect magic number)")
	}
	if len(data) < sunHeaderLen {
		return h, corruptf("raster header is truncated")
	}
	r := bytes.NewReader(data[4:sunHeaderLen])
	for _, f := range []*int32{&h.width, &h.height, &h.depth, &h.length, &h.typ, &h.maptype, &h.maplength} {
		v, err := readI32(r, order)
		if err != nil {
			return h, corruptf("raster header: %v", err)
		}
		*f = v
	}
	return h, nil
}

func decodeSunRaster(data []byte, o Options) (*Raster, Decoded, error) {
	dec := Decoded{Format: FormatSunRaster}
	h, err := readSunHeader(data)
	if err != nil {
		return nil, dec, err
	}
	if !h.supported() {
		return nil, dec, notHandledf("raster type %d, map type %d, map length %d, depth %d",
			h.typ, h.maptype, h.maplength, h.depth)
	}
	if h.height < 1 || h.width < 1 {
		return nil, dec, corruptf("raster dimensions %dx%d are invalid", h.height, h.width)
	}
	if h.maplength < 0 {
		return nil, dec, corruptf("raster map length %d is invalid", h.maplength)
	}
	if !fitsPayload(int(h.height), int(h.width), sunPixelBytes(h.depth), len(data)-sunHeaderLen) {
		return nil, dec, corruptf("not a valid raster file, it has too little data")
	}
	rowLen := h.rowLength()
	want := int64(rowLen)*int64(h.height) + sunHeaderLen + int64(h.maplength)
	if got := int64(len(data)); got != want {
		side := "little"
		if got > want {
			side = "much"
		}
		return nil, dec, corruptf("not a valid raster file, it has too %s data", side)
	}
	w, err := stripWindow(int(h.height), int(h.width), o)
	if err != nil {
		return nil, dec, err
	}

	var cmap []byte
	if h.maptype == sunMapEqualRGB {
		cmap = data[sunHeaderLen : sunHeaderLen+sunEqualRGBLen]
	}
	pixels := data[sunHeaderLen+int(h.maplength):]
	out := newRaster(w.rows, w.cols)
	for i := 0; i < w.rows; i++ {
		row := pixels[(w.row+i)*rowLen:]
		for j := 0; j < w.cols; j++ {
			p := out.At(i, j)
			col := w.col + j
			switch h.depth {
			case 8:
				v := row[col]
				if cmap != nil {
					p.R, p.G, p.B = float32(cmap[v]), float32(cmap[256+int(v)]), float32(cmap[512+int(v)])
				} else {
					p.R, p.G, p.B = float32(v), float32(v), float32(v)
				}
			default:
				var s []byte
				if h.depth == 32 {
					s = row[4*col+1:]
				} else {
					s = row[3*col:]
				}
				if h.typ == sunTypeRGB {
					p.R, p.G, p.B = float32(s[0]), float32(s[1]), float32(s[2])
				} else {
					p.B, p.G, p.R = float32(s[0]), float32(s[1]), float32(s[2])
				}
			}
		}
	}
	return out, dec, nil
}

// encodeSunRaster writes a 24 bit RGB raster with a big-endian header.
func encodeSunRaster(w io.Writer, r *Raster, o Options) error {
	h := sunHeader{width: int32(r.Cols), height: int32(r.Rows), depth: 24, typ: sunTypeRGB, maptype: sunMapNone}
	rowLen := h.rowLength()
	h.length = int32(rowLen * r.Rows)

	bw := bufio.NewWriter(w)
	var hdr [sunHeaderLen]byte
	for i, v := range []int32{sunMagic, h.width, h.height, h.depth, h.length, h.typ, h.maptype, h.maplength} {
		binary.BigEndian.PutUint32(hdr[4*i:], uint32(v))
	}
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	paint := o.InvalidPixelColour
	row := make([]byte, rowLen)
	for i := 0; i < r.Rows; i++ {
		for j := 0; j < r.Cols; j++ {
			p := r.At(i, j)
			s := row[3*j : 3*j+3]
			if paint != nil && p.Valid.Pixel != Valid {
				s[0], s[1], s[2] = uint8(paint.R), uint8(paint.G), uint8(paint.B)
				continue
			}
			s[0], s[1], s[2] = to8(p.R), to8(p.G), to8(p.B)
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}
