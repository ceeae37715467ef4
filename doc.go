// Package kjbimage reads and writes floating-point RGB images with per-channel
// validity tracking.
//
// Images are decoded into a Raster of float32 pixels whose channels carry
// Invalid, Clipped and Dark flags alongside the colour values. Formats are
// recognised by content (kiff, MID, TIFF, JPEG, Sun raster, PNM, BMP and a few
// raw sensor dumps), and anything the native codecs decline is handed to an
// external converter. The read pipeline can then mark clipped and dark pixels,
// remove blooming, convert Photo-CD YCC data and apply gamma tables.
package kjbimage
