// Command kjbimg inspects and converts images through the kjbimage codecs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ivilab/kjbimage"
)

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

type app struct {
	opts    kjbimage.Options
	verbose bool
	out     io.Writer
}

func (a *app) options() func(*kjbimage.Options) {
	o := a.opts
	if a.verbose {
		o.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return kjbimage.WithOptions(o)
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{opts: kjbimage.DefaultOptions(), out: out}
	root := &cobra.Command{
		Use:           "kjbimg",
		Short:         "Read, write and inspect floating point images with validity",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetGlobalNormalizationFunc(kjbimage.NormalizeOptionName)
	a.opts.RegisterFlags(root.PersistentFlags())
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log the read and write pipeline to stderr")

	root.AddCommand(a.infoCmd(), a.convertCmd(), a.thumbCmd(), a.optionsCmd())
	return root
}

func (a *app) infoCmd() *cobra.Command {
	raw := false
	cmd := &cobra.Command{
		Use:   "info <file>...",
		Short: "Print format, size and invalid pixel count",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				r, dec, err := kjbimage.ReadImageRaw(cmd.Context(), name, a.options())
				if err != nil {
					return err
				}
				if !raw {
					if r, err = kjbimage.ReadImage(cmd.Context(), name, a.options()); err != nil {
						return err
					}
				}
				fmt.Fprintf(a.out, "%s: %s %dx%d alpha=%t converted=%t invalid=%d\n",
					name, dec.Format, r.Cols, r.Rows, r.HasAlpha(), dec.Converted, kjbimage.CountInvalid(r))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "count invalid pixels before preprocessing")
	return cmd
}

func (a *app) convertCmd() *cobra.Command {
	var (
		outDir   string
		ext      string
		jobs     int
		pcdShape bool
	)
	cmd := &cobra.Command{
		Use:   "convert <in> <out> | --out-dir DIR --ext EXT <in>...",
		Short: "Convert images, choosing the output format by suffix",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			convert := func(ctx context.Context, in, out string) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				r, err := kjbimage.ReadImage(ctx, in, a.options())
				if err != nil {
					return err
				}
				if pcdShape {
					if _, err := kjbimage.ApplyPCDOutputLUT(r, a.opts.PCDShapeFunction); err != nil {
						return err
					}
				}
				return kjbimage.WriteImage(ctx, r, out, a.options())
			}

			if outDir == "" {
				if len(args) != 2 {
					return errors.New("convert needs <in> <out>, or --out-dir with inputs")
				}
				return convert(cmd.Context(), args[0], args[1])
			}

			ext = strings.TrimPrefix(ext, ".")
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(jobs, 1))
			for _, in := range args {
				path, _ := kjbimage.SplitSubImage(in)
				base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				out := filepath.Join(outDir, base+"."+ext)
				g.Go(func() error {
					if err := convert(ctx, in, out); err != nil {
						return fmt.Errorf("%s: %w", in, err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), in, "->", out)
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "write converted images to this directory")
	cmd.Flags().StringVar(&ext, "ext", "kiff", "output suffix used with --out-dir")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "parallel conversions with --out-dir")
	cmd.Flags().BoolVar(&pcdShape, "apply-pcd-shape", false, "apply the PCD output shaping table after reading")
	return cmd
}

func (a *app) thumbCmd() *cobra.Command {
	var (
		width, height int
		interp        string
	)
	cmd := &cobra.Command{
		Use:   "thumb <in> <out>",
		Short: "Resample an image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if width <= 0 && height <= 0 {
				return errors.New("missing --width or --height")
			}
			in, err := kjbimage.ParseInterpolation(interp)
			if err != nil {
				return err
			}
			r, err := kjbimage.ReadImage(cmd.Context(), args[0], a.options())
			if err != nil {
				return err
			}
			switch {
			case width <= 0:
				width = max(1, r.Cols*height/r.Rows)
			case height <= 0:
				height = max(1, r.Rows*width/r.Cols)
			}
			t, err := kjbimage.Resample(r, height, width, in)
			if err != nil {
				return err
			}
			return kjbimage.WriteImage(cmd.Context(), t, args[1], a.options())
		},
	}
	cmd.Flags().IntVarP(&width, "width", "W", 0, "target width, derived from the aspect ratio when 0")
	cmd.Flags().IntVarP(&height, "height", "H", 0, "target height, derived from the aspect ratio when 0")
	cmd.Flags().StringVar(&interp, "interp", "lanczos3", "nearest, bilinear, bicubic, mitchell, lanczos2 or lanczos3")
	return cmd
}

func (a *app) optionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "Print every option with its current value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := kjbimage.OptionNames()
			sort.Strings(names)
			for _, name := range names {
				v, err := a.opts.Option(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s = %s\n", name, v)
			}
			return nil
		},
	}
}
