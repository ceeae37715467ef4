package kjbimage

import (
	"bufio"
	"encoding/binary"
	"io"
)

const bmpHeaderLen = 54

func decodeBMP(data []byte, o Options) (*Raster, Decoded, error) {
	dec := Decoded{Format: FormatBMP}
	if len(data) < bmpHeaderLen || data[0] != 'B' || data[1] != 'M' {
		return nil, dec, corruptf("not a valid BMP file")
	}
	var order binary.ByteOrder
	switch uint32(len(data)) {
	case binary.LittleEndian.Uint32(data[2:]):
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(data[2:]):
		order = binary.BigEndian
	default:
		return nil, dec, notHandledf("BMP header file size disagrees with the %d byte file", len(data))
	}
	cols := int(int32(order.Uint32(data[18:])))
	rows := int(int32(order.Uint32(data[22:])))
	topDown := rows < 0
	if topDown {
		rows = -rows
	}
	if planes := order.Uint16(data[26:]); planes != 1 {
		return nil, dec, notHandledf("BMP with %d planes", planes)
	}
	if bpp := order.Uint16(data[28:]); bpp != 24 {
		return nil, dec, notHandledf("BMP with %d bits per pixel", bpp)
	}
	if compression := order.Uint32(data[30:]); compression != 0 {
		return nil, dec, notHandledf("compressed BMP (method %d)", compression)
	}
	if rows < 1 || cols < 1 {
		return nil, dec, corruptf("BMP dimensions %dx%d are invalid", rows, cols)
	}
	if !fitsPayload(rows, cols, 3, len(data)-bmpHeaderLen) {
		return nil, dec, notHandledf("BMP pixel data is too short for %dx%d", rows, cols)
	}
	stride := 3 * cols
	if bmpHeaderLen+stride*rows != len(data) {
		stride = (3*cols + 3) &^ 3
		if bmpHeaderLen+stride*rows != len(data) {
			return nil, dec, notHandledf("BMP pixel data does not start at offset %d", bmpHeaderLen)
		}
	}
	w, err := stripWindow(rows, cols, o)
	if err != nil {
		return nil, dec, err
	}

	pixels := data[bmpHeaderLen:]
	out := newRaster(w.rows, w.cols)
	for i := 0; i < w.rows; i++ {
		src := w.row + i
		if !topDown {
			src = rows - 1 - src
		}
		row := pixels[src*stride:]
		for j := 0; j < w.cols; j++ {
			s := row[3*(w.col+j):]
			p := out.At(i, j)
			p.B, p.G, p.R = float32(s[0]), float32(s[1]), float32(s[2])
		}
	}
	return out, dec, nil
}

// encodeBMP writes an uncompressed bottom-up 24 bit BMP with rows padded to
// four bytes.
func encodeBMP(w io.Writer, r *Raster, _ Options) error {
	stride := (3*r.Cols + 3) &^ 3
	size := bmpHeaderLen + stride*r.Rows

	var hdr [bmpHeaderLen]byte
	le := binary.LittleEndian
	hdr[0], hdr[1] = 'B', 'M'
	le.PutUint32(hdr[2:], uint32(size))
	le.PutUint32(hdr[10:], bmpHeaderLen)
	le.PutUint32(hdr[14:], 40)
	le.PutUint32(hdr[18:], uint32(r.Cols))
	le.PutUint32(hdr[22:], uint32(r.Rows))
	le.PutUint16(hdr[26:], 1)
	le.PutUint16(hdr[28:], 24)
	le.PutUint32(hdr[34:], uint32(stride*r.Rows))

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}
	row := make([]byte, stride)
	for i := r.Rows - 1; i >= 0; i-- {
		for j := 0; j < r.Cols; j++ {
			p := r.At(i, j)
			row[3*j], row[3*j+1], row[3*j+2] = to8(p.B), to8(p.G), to8(p.R)
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}
