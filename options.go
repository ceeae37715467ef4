package kjbimage

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

// Colour is an RGB triple on the 0..255 scale.
type Colour struct {
	R, G, B float32
}

// Options configures reading and writing. The zero value is not useful, start
// from DefaultOptions. Read and write calls take a copy at call start.
type Options struct {
	// ClipPoint marks channel values above it as Clipped; math.MaxFloat32
	// disables clip marking.
	ClipPoint float32
	MinRed    float32
	MinGreen  float32
	MinBlue   float32
	// MinSum marks all three channels Dark when r+g+b is below it.
	MinSum float32

	ResetInvalidPixels       bool
	InvalidateNegativePixels bool
	ForceValidKiffOnRead     bool
	BloomRemovalCount        int

	StripTop    int
	StripBottom int
	StripLeft   int
	StripRight  int
	// StripImagesOnRead crops full video frames to their active area.
	StripImagesOnRead bool

	WriteValidityKiff bool
	TIFFWriteBPS      int
	JPEGQuality       int
	// InvalidPixelColour paints invalid pixels in Sun raster output; nil
	// writes them like valid ones.
	InvalidPixelColour *Colour

	ReadPCD                 bool
	PCDYCCForwardConversion bool
	ConvertPCDYCC           bool
	LinearizePCD            bool
	PCDShapeFunction        int
	InputGammaBeforeOffset  float64 // 0 is off
	InputGammaAfterOffset   float64 // 0 is off
	LinearWhitePoint        float64
	GammaWhitePoint         float64
	GammaLUTDir             string

	ConvertProgram    string
	PCDProgram        string
	ConversionTimeout time.Duration
	TempDir           string

	Logger *slog.Logger
}

// DefaultOptions returns the option set used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		ClipPoint:                math.MaxFloat32,
		InvalidateNegativePixels: true,
		WriteValidityKiff:        true,
		TIFFWriteBPS:             defaultTIFFWriteBPS,
		JPEGQuality:              defaultJPEGQuality,
		PCDYCCForwardConversion:  true,
		PCDShapeFunction:         defaultPCDShape,
		LinearWhitePoint:         defaultWhitePoint,
		GammaWhitePoint:          defaultWhitePoint,
		ConvertProgram:           defaultConvertTool,
		PCDProgram:               defaultPCDTool,
		ConversionTimeout:        defaultConvertTimeout,
	}
}

// WithOptions replaces the working options with o.
func WithOptions(o Options) func(*Options) {
	return func(dst *Options) { *dst = o }
}

// WithLogger sets the logger used for the verbose trail.
func WithLogger(l *slog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return discardLogger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type optionDef struct {
	names []string // canonical name first
	kind  string
	usage string
	set   func(o *Options, v string) error
	get   func(o *Options) string
}

var optionDefs = []optionDef{
	{
		names: []string{"clip-point", "image-clip-point"},
		kind:  "float", usage: "channel values above this are marked clipped (off disables)",
		set: func(o *Options, v string) error {
			if isOff(v) {
				o.ClipPoint = math.MaxFloat32
				return nil
			}
			f, err := parseFloat32(v)
			if err != nil {
				return err
			}
			o.ClipPoint = f
			return nil
		},
		get: func(o *Options) string {
			if o.ClipPoint >= math.MaxFloat32 {
				return "off"
			}
			return formatFloat(float64(o.ClipPoint))
		},
	},
	floatOption([]string{"min-red-value", "mrv"}, "red values below this are marked dark",
		func(o *Options) *float32 { return &o.MinRed }),
	floatOption([]string{"min-green-value", "mgv"}, "green values below this are marked dark",
		func(o *Options) *float32 { return &o.MinGreen }),
	floatOption([]string{"min-blue-value", "mbv"}, "blue values below this are marked dark",
		func(o *Options) *float32 { return &o.MinBlue }),
	floatOption([]string{"min-sum-value", "msv"}, "pixels whose channel sum is below this are marked dark",
		func(o *Options) *float32 { return &o.MinSum }),
	boolOption([]string{"reset-invalid-pixels", "rip"}, "recompute validity even when the file carries it",
		func(o *Options) *bool { return &o.ResetInvalidPixels }),
	boolOption([]string{"invalidate-negative-pixels", "inp"}, "negative float kiff values mark the channel invalid",
		func(o *Options) *bool { return &o.InvalidateNegativePixels }),
	boolOption([]string{"force-valid-kiff-on-read"}, "discard validity stored in kiff files",
		func(o *Options) *bool { return &o.ForceValidKiffOnRead }),
	{
		names: []string{"bloom-removal-count", "bloom", "brc"},
		kind:  "int", usage: "number of rings of neighbours of clipped pixels to invalidate",
		set: func(o *Options, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return invalidArgf("bloom removal count %q", v)
			}
			if n < 0 {
				return invalidArgf("bloom removal count %d is negative", n)
			}
			o.BloomRemovalCount = n
			return nil
		},
		get: func(o *Options) string { return strconv.Itoa(o.BloomRemovalCount) },
	},
	{
		names: []string{"strip", "strip-image"},
		kind:  "int", usage: "rows and columns stripped from every edge on read",
		set: func(o *Options, v string) error {
			n, err := parseStrip(v)
			if err != nil {
				return err
			}
			o.StripTop, o.StripBottom, o.StripLeft, o.StripRight = n, n, n, n
			return nil
		},
		get: func(o *Options) string {
			return fmt.Sprintf("%d,%d,%d,%d", o.StripTop, o.StripBottom, o.StripLeft, o.StripRight)
		},
	},
	stripOption([]string{"strip-top", "strip-image-top"}, "rows stripped from the top on read",
		func(o *Options) *int { return &o.StripTop }),
	stripOption([]string{"strip-bottom", "strip-image-bottom", "strip-bot", "strip-bottem"}, "rows stripped from the bottom on read",
		func(o *Options) *int { return &o.StripBottom }),
	stripOption([]string{"strip-left", "strip-image-left"}, "columns stripped from the left on read",
		func(o *Options) *int { return &o.StripLeft }),
	stripOption([]string{"strip-right", "strip-image-right"}, "columns stripped from the right on read",
		func(o *Options) *int { return &o.StripRight }),
	boolOption([]string{"image-stripping"}, fmt.Sprintf("crop %dx%d video frames to %dx%d on read",
		fullVideoRows, fullVideoCols, strippedVideoRows, strippedVideoCols),
		func(o *Options) *bool { return &o.StripImagesOnRead }),
	boolOption([]string{"write-validity-kiff", "wvk"}, "write kiff files with validity data",
		func(o *Options) *bool { return &o.WriteValidityKiff }),
	{
		names: tiffBPSNames(),
		kind:  "int", usage: "bits per sample for TIFF output (8 or 16)",
		set: func(o *Options, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || (n != 8 && n != 16) {
				return invalidArgf("TIFF write bits per sample must be 8 or 16, got %q", v)
			}
			o.TIFFWriteBPS = n
			return nil
		},
		get: func(o *Options) string { return strconv.Itoa(o.TIFFWriteBPS) },
	},
	{
		names: []string{"jpeg-quality"},
		kind:  "int", usage: "JPEG output quality (1-100)",
		set: func(o *Options, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 1 || n > 100 {
				return invalidArgf("JPEG quality must be within 1..100, got %q", v)
			}
			o.JPEGQuality = n
			return nil
		},
		get: func(o *Options) string { return strconv.Itoa(o.JPEGQuality) },
	},
	{
		names: []string{"invalid-pixel-colour", "ipc", "invalid-pixel-color"},
		kind:  "colour", usage: "colour of invalid pixels in Sun raster output (r,g,b or off)",
		set: func(o *Options, v string) error {
			if isOff(v) {
				o.InvalidPixelColour = nil
				return nil
			}
			c, err := parseColour(v)
			if err != nil {
				return err
			}
			o.InvalidPixelColour = &c
			return nil
		},
		get: func(o *Options) string {
			if o.InvalidPixelColour == nil {
				return "off"
			}
			c := o.InvalidPixelColour
			return fmt.Sprintf("%s,%s,%s", formatFloat(float64(c.R)), formatFloat(float64(c.G)), formatFloat(float64(c.B)))
		},
	},
	boolOption([]string{"read-pcd", "pcd-read"}, "read Photo-CD files through hpcdtoppm",
		func(o *Options) *bool { return &o.ReadPCD }),
	boolOption([]string{"pcd-ycc-forward-conversion", "pcd-ycc-to-rgb-forward-conversion"}, "use the forward PCD YCC to RGB coefficients",
		func(o *Options) *bool { return &o.PCDYCCForwardConversion }),
	boolOption([]string{"convert-pcd-ycc", "convert-pcd-ycc-to-rgb"}, "convert PCD YCC data to RGB on read",
		func(o *Options) *bool { return &o.ConvertPCDYCC }),
	boolOption([]string{"linearize-pcd"}, "linearize PCD data on read",
		func(o *Options) *bool { return &o.LinearizePCD }),
	{
		names: []string{"pcd-ycc-to-rgb-shape-function", "pcd-lut", "pcd-output-lut", "pcd-ycc-shape-function"},
		kind:  "int", usage: "PCD output shaping table (0, 1 or 2)",
		set: func(o *Options, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 0 || n > 2 {
				return invalidArgf("PCD shape function must be 0, 1 or 2, got %q", v)
			}
			o.PCDShapeFunction = n
			return nil
		},
		get: func(o *Options) string { return strconv.Itoa(o.PCDShapeFunction) },
	},
	gammaOption([]string{"input-gamma-before-offset"}, "linearize input with this gamma before offset removal",
		func(o *Options) *float64 { return &o.InputGammaBeforeOffset }),
	gammaOption([]string{"input-gamma-after-offset"}, "linearize input with this gamma after offset removal",
		func(o *Options) *float64 { return &o.InputGammaAfterOffset }),
	whitePointOption([]string{"linear-white-point", "linear-white"}, "white point of linear data",
		func(o *Options) *float64 { return &o.LinearWhitePoint }),
	whitePointOption([]string{"gamma-white-point", "gamma-white"}, "white point of gamma corrected data",
		func(o *Options) *float64 { return &o.GammaWhitePoint }),
	stringOption([]string{"gamma-lut-dir"}, "directory holding gamma_*.lut and gamma_inversion_*.lut",
		func(o *Options) *string { return &o.GammaLUTDir }),
	stringOption([]string{"convert-program"}, "external converter for unsupported formats",
		func(o *Options) *string { return &o.ConvertProgram }),
	stringOption([]string{"hpcdtoppm-program"}, "Photo-CD extraction program",
		func(o *Options) *string { return &o.PCDProgram }),
	stringOption([]string{"temp-dir"}, "directory for temporary conversion files",
		func(o *Options) *string { return &o.TempDir }),
	{
		names: []string{"conversion-timeout"},
		kind:  "duration", usage: "time limit for external conversion programs",
		set: func(o *Options, v string) error {
			v = strings.TrimSpace(v)
			if secs, err := strconv.ParseFloat(v, 64); err == nil {
				o.ConversionTimeout = time.Duration(secs * float64(time.Second))
				return nil
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return invalidArgf("conversion timeout %q", v)
			}
			o.ConversionTimeout = d
			return nil
		},
		get: func(o *Options) string { return o.ConversionTimeout.String() },
	},
}

var optionIndex = func() map[string]int {
	idx := make(map[string]int)
	for i, d := range optionDefs {
		for _, n := range d.names {
			idx[n] = i
		}
	}
	return idx
}()

func lookupOption(name string) (*optionDef, error) {
	i, ok := optionIndex[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, invalidArgf("unknown option %q", name)
	}
	return &optionDefs[i], nil
}

// SetOption sets an option by name or alias, case-insensitively.
func (o *Options) SetOption(name, value string) error {
	d, err := lookupOption(name)
	if err != nil {
		return err
	}
	if err := d.set(o, value); err != nil {
		return fmt.Errorf("option %s: %w", d.names[0], err)
	}
	return nil
}

// Option returns the current value of an option in the form SetOption accepts.
func (o *Options) Option(name string) (string, error) {
	d, err := lookupOption(name)
	if err != nil {
		return "", err
	}
	return d.get(o), nil
}

// OptionNames lists the canonical option names.
func OptionNames() []string {
	return lo.Map(optionDefs, func(d optionDef, _ int) string { return d.names[0] })
}

// NormalizeOptionName maps option aliases to their canonical flag names.
func NormalizeOptionName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if i, ok := optionIndex[strings.ToLower(name)]; ok {
		return pflag.NormalizedName(optionDefs[i].names[0])
	}
	return pflag.NormalizedName(name)
}

// RegisterFlags exposes every option as a flag bound to o. Aliases are
// accepted through the flag set's normalization function.
func (o *Options) RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(NormalizeOptionName)
	for i := range optionDefs {
		d := &optionDefs[i]
		f := fs.VarPF(optionValue{o: o, def: d}, d.names[0], "", d.usage)
		if d.kind == "bool" {
			f.NoOptDefVal = "true"
		}
	}
}

type optionValue struct {
	o   *Options
	def *optionDef
}

func (v optionValue) String() string {
	if v.o == nil || v.def == nil {
		return ""
	}
	return v.def.get(v.o)
}

func (v optionValue) Set(s string) error { return v.def.set(v.o, s) }

func (v optionValue) Type() string { return v.def.kind }

func boolOption(names []string, usage string, field func(*Options) *bool) optionDef {
	return optionDef{
		names: names, kind: "bool", usage: usage,
		set: func(o *Options, v string) error {
			b, err := parseBool(v)
			if err != nil {
				return err
			}
			*field(o) = b
			return nil
		},
		get: func(o *Options) string { return strconv.FormatBool(*field(o)) },
	}
}

func floatOption(names []string, usage string, field func(*Options) *float32) optionDef {
	return optionDef{
		names: names, kind: "float", usage: usage,
		set: func(o *Options, v string) error {
			f, err := parseFloat32(v)
			if err != nil {
				return err
			}
			*field(o) = f
			return nil
		},
		get: func(o *Options) string { return formatFloat(float64(*field(o))) },
	}
}

func gammaOption(names []string, usage string, field func(*Options) *float64) optionDef {
	return optionDef{
		names: names, kind: "float", usage: usage,
		set: func(o *Options, v string) error {
			if isOff(v) {
				*field(o) = 0
				return nil
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || f < 0 {
				return invalidArgf("gamma %q", v)
			}
			*field(o) = f
			return nil
		},
		get: func(o *Options) string {
			if *field(o) <= 0 {
				return "off"
			}
			return formatFloat(*field(o))
		},
	}
}

func whitePointOption(names []string, usage string, field func(*Options) *float64) optionDef {
	return optionDef{
		names: names, kind: "float", usage: usage,
		set: func(o *Options, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || f <= 0 {
				return invalidArgf("white point must be positive, got %q", v)
			}
			*field(o) = f
			return nil
		},
		get: func(o *Options) string { return formatFloat(*field(o)) },
	}
}

func stripOption(names []string, usage string, field func(*Options) *int) optionDef {
	return optionDef{
		names: names, kind: "int", usage: usage,
		set: func(o *Options, v string) error {
			n, err := parseStrip(v)
			if err != nil {
				return err
			}
			*field(o) = n
			return nil
		},
		get: func(o *Options) string { return strconv.Itoa(*field(o)) },
	}
}

func stringOption(names []string, usage string, field func(*Options) *string) optionDef {
	return optionDef{
		names: names, kind: "string", usage: usage,
		set:   func(o *Options, v string) error { *field(o) = strings.TrimSpace(v); return nil },
		get:   func(o *Options) string { return *field(o) },
	}
}

func tiffBPSNames() []string {
	names := []string{"tiff-image-write-bps"}
	for _, prefix := range []string{"tiff", "tif"} {
		for _, mid := range []string{"-image-write", "-image", ""} {
			for _, suffix := range []string{"-bps", "-bpp", "-bits-per-sample"} {
				if mid == "-image-write" && suffix == "-bpp" {
					continue
				}
				names = append(names, prefix+mid+suffix)
			}
		}
	}
	return lo.Uniq(names)
}

// parseStrip clamps negative margins to zero.
func parseStrip(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, invalidArgf("strip amount %q", v)
	}
	return max(n, 0), nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "t", "true", "y", "yes", "on", "1":
		return true, nil
	case "f", "false", "n", "no", "off", "0":
		return false, nil
	}
	return false, invalidArgf("%q is not a boolean value", v)
}

func isOff(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "off", "none", "f", "false", "no", "n":
		return true
	}
	return false
}

func parseFloat32(v string) (float32, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
	if err != nil {
		return 0, invalidArgf("%q is not a number", v)
	}
	return float32(f), nil
}

func parseColour(v string) (Colour, error) {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) != 3 {
		return Colour{}, invalidArgf("colour %q needs three components", v)
	}
	var rgb [3]float32
	for i, f := range fields {
		c, err := parseFloat32(f)
		if err != nil {
			return Colour{}, err
		}
		if c < 0 || c > 255 {
			return Colour{}, invalidArgf("colour component %v outside 0..255", c)
		}
		rgb[i] = c
	}
	return Colour{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
