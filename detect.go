package kjbimage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
)

// Format identifies an image file format by content.
type Format int

const (
	FormatUnknown Format = iota
	FormatPCD
	FormatDCS460
	FormatHDRCRaw
	FormatKiff
	FormatMID
	FormatTIFF
	FormatJPEG
	FormatSunRaster
	FormatPNM
	FormatBMP
)

var formatNames = [...]string{
	FormatUnknown:   "unknown",
	FormatPCD:       "PCD",
	FormatDCS460:    "DCS460 raw",
	FormatHDRCRaw:   "HDRC raw",
	FormatKiff:      "kiff",
	FormatMID:       "MID",
	FormatTIFF:      "TIFF",
	FormatJPEG:      "JPEG",
	FormatSunRaster: "Sun raster",
	FormatPNM:       "PNM",
	FormatBMP:       "BMP",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// sniffInput is what the detection rules look at: the head of the file, its
// total size and the first four bytes read big-endian in both byte orders.
type sniffInput struct {
	head    []byte
	size    int64
	magic   uint32
	swapped uint32
}

func (in sniffInput) magicIs(want ...uint32) bool {
	if len(in.head) < 4 {
		return false
	}
	for _, w := range want {
		if in.magic == w || in.swapped == w {
			return true
		}
	}
	return false
}

func (in sniffInput) hasPrefix(p string) bool {
	return bytes.HasPrefix(in.head, []byte(p))
}

type sniffRule struct {
	format Format
	match  func(in sniffInput) bool
}

// sniffRules is evaluated in order; the first match wins.
var sniffRules = []sniffRule{
	{FormatPCD, func(in sniffInput) bool {
		return len(in.head) >= pcdSignatureOffset+4 &&
			string(in.head[pcdSignatureOffset:pcdSignatureOffset+4]) == "PCD_"
	}},
	{FormatDCS460, func(in sniffInput) bool { return in.size == dcs460Size }},
	{FormatHDRCRaw, func(in sniffInput) bool { return in.size == hdrcSize }},
	{FormatKiff, func(in sniffInput) bool { return in.magicIs(kiffMagic, kiffLegacyMagic) }},
	{FormatMID, func(in sniffInput) bool { return in.magicIs(midMagic) }},
	{FormatTIFF, func(in sniffInput) bool {
		return len(in.head) >= 4 && (in.magic == tiffMagicLE || in.magic == tiffMagicBE)
	}},
	{FormatJPEG, func(in sniffInput) bool { return len(in.head) >= 4 && in.magic>>16 == jpegSOI }},
	{FormatSunRaster, func(in sniffInput) bool { return in.magicIs(sunMagic) }},
	{FormatPNM, func(in sniffInput) bool { return in.hasPrefix("P6") }},
	{FormatBMP, func(in sniffInput) bool { return in.hasPrefix("BM") }},
}

// SniffBytes classifies a file from its first bytes and its total size.
// head should hold at least the first 0xe03 bytes when the file is that long.
func SniffBytes(head []byte, size int64) Format {
	in := sniffInput{head: head, size: size}
	if len(head) >= 4 {
		in.magic = binary.BigEndian.Uint32(head)
		in.swapped = bits.ReverseBytes32(in.magic)
	}
	for _, rule := range sniffRules {
		if rule.match(in) {
			return rule.format
		}
	}
	return FormatUnknown
}

// Sniff classifies the stream without consuming it: the position is restored
// before returning.
func Sniff(r io.ReadSeeker) (Format, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return FormatUnknown, err
	}
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return FormatUnknown, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, err
	}
	head := make([]byte, sniffHeadLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, err
	}
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return FormatUnknown, err
	}
	return SniffBytes(head[:n], size), nil
}

// pcdRotation returns the quarter-turn code stored in a Photo-CD header.
func pcdRotation(head []byte) int {
	if len(head) <= pcdRotateOffset {
		return 0
	}
	return int(head[pcdRotateOffset] & 0x03)
}
