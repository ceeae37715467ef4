package kjbimage

import (
	"bufio"
	"encoding/binary"
	"io"
)

// decodeDCS460 reads a Kodak DCS460 dump: 2036x3060 interleaved RGB samples
// of 16 bits in the byte order of the machine that wrote them.
func decodeDCS460(data []byte, o Options) (*Raster, Decoded, error) {
	dec := Decoded{Format: FormatDCS460}
	if len(data) != dcs460Size {
		return nil, dec, corruptf("DCS460 raw file has %d bytes, expected %d", len(data), dcs460Size)
	}
	w, err := stripWindow(dcs460Rows, dcs460Cols, o)
	if err != nil {
		return nil, dec, err
	}
	order := nativeOrder()
	out := newRaster(w.rows, w.cols)
	for i := 0; i < w.rows; i++ {
		row := data[(w.row+i)*dcs460Cols*6:]
		for j := 0; j < w.cols; j++ {
			s := row[(w.col+j)*6:]
			p := out.At(i, j)
			p.R = float32(order.Uint16(s[0:])) / 256
			p.G = float32(order.Uint16(s[2:])) / 256
			p.B = float32(order.Uint16(s[4:])) / 256
		}
	}
	return out, dec, nil
}

// decodeHDRC reads a 640x480 HDRC sensor dump. Only the low 10 bits of each
// little-endian sample are significant. Stripping does not apply.
func decodeHDRC(data []byte, o Options) (*Raster, Decoded, error) {
	dec := Decoded{Format: FormatHDRCRaw}
	if len(data) != hdrcSize {
		return nil, dec, corruptf("HDRC raw file has %d bytes, expected %d", len(data), hdrcSize)
	}
	w := fullWindow(hdrcRows, hdrcCols)
	out := newRaster(w.rows, w.cols)
	sensorMin, sensorMax := uint16(0x3ff), uint16(0)
	for k := range out.Pix {
		v := binary.LittleEndian.Uint16(data[2*k:]) & 0x3ff
		sensorMin = min(sensorMin, v)
		sensorMax = max(sensorMax, v)
		p := &out.Pix[k]
		p.R, p.G, p.B = float32(v), float32(v), float32(v)
	}
	o.logger().Debug("raw HDRC sensor range", "min", sensorMin, "max", sensorMax)
	return out, dec, nil
}

// encodeRaw16 writes headerless interleaved RGB as native 16-bit samples of
// 256 times the channel value.
func encodeRaw16(w io.Writer, r *Raster, _ Options) error {
	order := nativeOrder()
	bw := bufio.NewWriter(w)
	var buf [6]byte
	for i := range r.Pix {
		p := &r.Pix[i]
		order.PutUint16(buf[0:], to16(p.R))
		order.PutUint16(buf[2:], to16(p.G))
		order.PutUint16(buf[4:], to16(p.B))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
