package kjbimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// runTool runs an external program bounded by the conversion timeout. A
// failure, including expiry of the timeout, is reported as ErrConversion
// with the tool's output attached.
func runTool(ctx context.Context, o Options, program string, args ...string) error {
	if program == "" {
		return fmt.Errorf("%w: no program configured", ErrConversion)
	}
	if o.ConversionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.ConversionTimeout)
		defer cancel()
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	o.logger().Debug("running converter", "program", program, "args", args)
	err := cmd.Run()
	switch {
	case err == nil:
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s timed out after %s", ErrConversion, program, o.ConversionTimeout)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %s: %w", ErrConversion, program, ctx.Err())
	}
	msg := strings.TrimSpace(out.String())
	if msg != "" {
		return fmt.Errorf("%w: %s: %w: %s", ErrConversion, program, err, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrConversion, program, err)
}

// convertToRaster asks the external converter to turn path into a Sun
// raster and decodes that. The temporary raster is always removed.
func convertToRaster(ctx context.Context, path string, o Options) (*Raster, error) {
	dir, err := os.MkdirTemp(o.TempDir, "kjbimage-convert-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	tmp := filepath.Join(dir, "converted.sun")
	if err := runTool(ctx, o, o.ConvertProgram, path, "sun:"+tmp); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s left no output: %w", ErrConversion, o.ConvertProgram, err)
	}
	r, _, err := decodeSunRaster(data, o)
	if err != nil {
		return nil, fmt.Errorf("converted image: %w", err)
	}
	return r, nil
}

// convertFile asks the external converter to write src in the format implied
// by the suffix of dst.
func convertFile(ctx context.Context, src, dst string, o Options) error {
	return runTool(ctx, o, o.ConvertProgram, src, dst)
}
