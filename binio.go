package kjbimage

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"math/bits"

	"golang.org/x/sys/cpu"
)

// nativeOrder is the byte order of this machine. Formats that carry a magic
// number are written in native order, as the readers detect either order.
func nativeOrder() binary.ByteOrder {
	if cpu.IsBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// magicOrder reports the byte order in which head starts with one of magics.
func magicOrder(head []byte, magics ...uint32) (binary.ByteOrder, bool) {
	if len(head) < 4 {
		return nil, false
	}
	m := binary.BigEndian.Uint32(head)
	sw := bits.ReverseBytes32(m)
	for _, want := range magics {
		if m == want {
			return binary.BigEndian, true
		}
	}
	for _, want := range magics {
		if sw == want {
			return binary.LittleEndian, true
		}
	}
	return nil, false
}

func readU32(r *bytes.Reader, order binary.ByteOrder) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return order.Uint32(buf[:]), nil
}

func readI32(r *bytes.Reader, order binary.ByteOrder) (int32, error) {
	v, err := readU32(r, order)
	return int32(v), err
}

func getF32(b []byte, order binary.ByteOrder) float32 {
	return math.Float32frombits(order.Uint32(b))
}

func putF32(b []byte, order binary.ByteOrder, v float32) {
	order.PutUint32(b, math.Float32bits(v))
}
