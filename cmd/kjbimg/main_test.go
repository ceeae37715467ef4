package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivilab/kjbimage"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()), strings.Join(args, " "))
	return out.String()
}

func testImage(t *testing.T, dir string) string {
	t.Helper()
	r, err := kjbimage.NewRaster(4, 6)
	require.NoError(t, err)
	for i := range r.Pix {
		v := float32(40 * (i % 6))
		r.Pix[i].R, r.Pix[i].G, r.Pix[i].B = v, v, v
	}
	name := filepath.Join(dir, "in.sun")
	require.NoError(t, kjbimage.WriteImage(context.Background(), r, name))
	return name
}

func TestOptionsCmd(t *testing.T) {
	out := run(t, "options", "--image-clip-point", "240", "--mrv=3")
	assert.Contains(t, out, "clip-point = 240\n")
	assert.Contains(t, out, "min-red-value = 3\n")
	assert.Contains(t, out, "tiff-image-write-bps = 8\n")
}

func TestInfoCmd(t *testing.T) {
	in := testImage(t, t.TempDir())

	out := run(t, "info", in, "--clip-point", "150")
	assert.Equal(t, in+": Sun raster 6x4 alpha=false converted=false invalid=8\n", out)

	out = run(t, "info", "--raw", in, "--clip-point", "150")
	assert.Contains(t, out, "invalid=0")
}

func TestConvertCmd(t *testing.T) {
	dir := t.TempDir()
	in := testImage(t, dir)

	out := filepath.Join(dir, "out.kiff")
	run(t, "convert", in, out, "--min-sum-value", "1")

	r, err := kjbimage.ReadImage(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 4, kjbimage.CountInvalid(r), "validity is kept in the kiff")

	outDir := t.TempDir()
	log := run(t, "convert", "--out-dir", outDir, "--ext", ".mid", "-j", "0", in, out)
	assert.Contains(t, log, filepath.Join(outDir, "in.mid"))
	assert.Contains(t, log, filepath.Join(outDir, "out.mid"))

	var buf bytes.Buffer
	cmd := newRootCmd(&buf)
	cmd.SetArgs([]string{"convert", in})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestThumbCmd(t *testing.T) {
	dir := t.TempDir()
	in := testImage(t, dir)
	out := filepath.Join(dir, "thumb.tiff")

	run(t, "thumb", "-W", "3", "--interp", "bilinear", in, out)

	r, err := kjbimage.ReadImage(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Cols)
	assert.Equal(t, 2, r.Rows)
}

func TestConvertCmd_stopsAfterFailure(t *testing.T) {
	dir := t.TempDir()
	in := testImage(t, dir)
	outDir := t.TempDir()

	var buf bytes.Buffer
	cmd := newRootCmd(&buf)
	cmd.SetArgs([]string{"convert", "--out-dir", outDir, "-j", "1", filepath.Join(dir, "missing.sun"), in + "[1]"})
	err := cmd.ExecuteContext(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)

	// The second input is named without its sub-image suffix and never written.
	_, err = os.Stat(filepath.Join(outDir, "in.kiff"))
	assert.True(t, os.IsNotExist(err))
}
