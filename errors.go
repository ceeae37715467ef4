package kjbimage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotHandled reports a recognised container that the native codec
	// declines. The read and write paths retry such files through conversion.
	ErrNotHandled = errors.New("format not handled natively")

	// ErrCorrupt reports malformed data once a codec has committed to a format.
	ErrCorrupt = errors.New("corrupt image data")

	// ErrInvalidArgument reports a request that cannot be satisfied for the
	// given raster or options.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlphaUnsupported is returned when a raster with alpha is written
	// through a codec that has no alpha channel.
	ErrAlphaUnsupported = fmt.Errorf("%w: alpha channel not supported", ErrInvalidArgument)

	// ErrConversion reports a failed or timed out external converter.
	ErrConversion = errors.New("external conversion failed")
)

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

func notHandledf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotHandled, fmt.Sprintf(format, args...))
}

func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
