package kjbimage

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffBytes(t *testing.T) {
	pcd := make([]byte, sniffHeadLen)
	copy(pcd[pcdSignatureOffset:], "PCD_IPI")

	le := func(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
	be := func(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }

	for _, tc := range []struct {
		name string
		head []byte
		size int64
		want Format
	}{
		{"pcd", pcd, 1 << 20, FormatPCD},
		{"pcd beats size", pcd, dcs460Size, FormatPCD},
		{"dcs460", []byte("kiff"), dcs460Size, FormatDCS460},
		{"hdrc", nil, hdrcSize, FormatHDRCRaw},
		{"kiff", be(kiffMagic), 100, FormatKiff},
		{"kiff swapped", le(kiffMagic), 100, FormatKiff},
		{"kiff legacy", le(kiffLegacyMagic), 100, FormatKiff},
		{"mid", le(midMagic), 100, FormatMID},
		{"tiff le", []byte("II*\x00"), 100, FormatTIFF},
		{"tiff be", []byte("MM\x00*"), 100, FormatTIFF},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, 100, FormatJPEG},
		{"sun", be(sunMagic), 100, FormatSunRaster},
		{"sun swapped", le(sunMagic), 100, FormatSunRaster},
		{"pnm", []byte("P6\n1 1\n255\n"), 100, FormatPNM},
		{"ascii pnm", []byte("P3\n1 1\n255\n"), 100, FormatUnknown},
		{"bmp", []byte("BM\x00\x00"), 100, FormatBMP},
		{"short", []byte("BM"), 2, FormatBMP},
		{"png", []byte("\x89PNG\r\n\x1a\n"), 100, FormatUnknown},
		{"empty", nil, 0, FormatUnknown},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SniffBytes(tc.head, tc.size))
			// Same input, same answer.
			assert.Equal(t, tc.want, SniffBytes(tc.head, tc.size))
		})
	}
}

func TestSniff_keepsPosition(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeSunRaster(&buf, byteRaster(2, 2), DefaultOptions()))

	rs := bytes.NewReader(buf.Bytes())
	_, err := rs.Seek(7, io.SeekStart)
	require.NoError(t, err)

	f, err := Sniff(rs)
	require.NoError(t, err)
	assert.Equal(t, FormatSunRaster, f)

	pos, err := rs.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos)

	f2, err := Sniff(rs)
	require.NoError(t, err)
	assert.Equal(t, f, f2)
}

func TestPCDRotation(t *testing.T) {
	head := make([]byte, sniffHeadLen)
	assert.Equal(t, 0, pcdRotation(head))
	head[pcdRotateOffset] = 0xfd
	assert.Equal(t, 1, pcdRotation(head))
	assert.Equal(t, 0, pcdRotation(head[:10]))
}

func TestFormat_String(t *testing.T) {
	assert.Equal(t, "kiff", FormatKiff.String())
	assert.Equal(t, "Format(42)", Format(42).String())
}
