package kjbimage_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ivilab/kjbimage"
)

func ExampleMarkClipped() {
	r, err := kjbimage.NewRaster(3, 2)
	if err != nil {
		return
	}
	for i := range r.Pix {
		r.Pix[i].R, r.Pix[i].G, r.Pix[i].B = 100, 100, 100
	}

	fmt.Println(kjbimage.MarkClipped(r, 99.5), kjbimage.CountInvalid(r), r.Pix[0].Valid.R)
	fmt.Println(kjbimage.MarkClipped(r, 100.5), kjbimage.CountInvalid(r))

	// Output:
	// 6 6 clipped
	// 0 0
}

func ExampleReadImage() {
	o := kjbimage.DefaultOptions()
	if err := o.SetOption("image-clip-point", "250"); err != nil {
		return
	}
	if err := o.SetOption("bloom", "1"); err != nil {
		return
	}

	r, err := kjbimage.ReadImage(context.Background(), filepath.FromSlash("testdata/scene.kiff"), kjbimage.WithOptions(o))
	if err != nil {
		return
	}
	fmt.Println(r.Rows, r.Cols, kjbimage.CountInvalid(r))
}

func ExampleWriteImage() {
	r, err := kjbimage.NewRaster(2, 2)
	if err != nil {
		return
	}
	r.Pix[3].R = 255

	dir, err := os.MkdirTemp("", "example")
	if err != nil {
		return
	}
	defer os.RemoveAll(dir)

	name := filepath.Join(dir, "out.kiff.gz")
	if err := kjbimage.WriteImage(context.Background(), r, name); err != nil {
		fmt.Println(err)
		return
	}
	back, err := kjbimage.ReadImage(context.Background(), name)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(back.Pix[3].R)

	// Output:
	// 255
}

func ExampleSniff() {
	f, err := os.Open(filepath.FromSlash("testdata/scene.kiff"))
	if err != nil {
		return
	}
	defer f.Close()

	format, err := kjbimage.Sniff(f)
	if err != nil {
		return
	}
	fmt.Println(format)
}
