package kjbimage

import "time"

const (
	kiffMagic       = 0x6B696666
	kiffLegacyMagic = 0x32363231
	midMagic        = 0x6D69640A
	tiffMagicLE     = 0x49492A00
	tiffMagicBE     = 0x4D4D002A
	sunMagic        = 0x59A66A95
	jpegSOI         = 0xFFD8
)

const (
	pcdSignatureOffset = 0x800
	pcdRotateOffset    = 0x0e02
	sniffHeadLen       = pcdRotateOffset + 1
)

// Raw sensor dumps are recognised by exact file size.
const (
	dcs460Rows = 2036
	dcs460Cols = 3060
	dcs460Size = dcs460Rows * dcs460Cols * 6

	hdrcRows = 480
	hdrcCols = 640
	hdrcSize = hdrcRows * hdrcCols * 2
)

// A full video frame is cropped to the active area when image stripping is on.
const (
	fullVideoRows     = 486
	fullVideoCols     = 720
	strippedVideoRows = 480
	strippedVideoCols = 640
	videoStripTop     = 3
	videoStripLeft    = 40
)

const (
	defaultJPEGQuality    = 75
	defaultTIFFWriteBPS   = 8
	defaultWhitePoint     = 255.0
	defaultPCDShape       = 2
	defaultPCDSubImage    = 3
	extraForRounding      = 0.5
	pcdClipThreshold      = 254.5
	pcdChromaClipLimit    = 0.5
	defaultConvertTool    = "convert"
	defaultPCDTool        = "hpcdtoppm"
	defaultConvertTimeout = 2 * time.Minute
)
