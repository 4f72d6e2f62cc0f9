package yolo

import (
	"fmt"
	"image"
	"image/color"

	"github.com/grigone/detweb/pkg/classes"

	"github.com/muesli/gamut"
	"gocv.io/x/gocv"
)

type Palette struct {
	colors []color.RGBA
}

// NewPalette generates n visually distinct box colors. Falls back to a single
// red when the generator can't produce enough.
func NewPalette(n int) Palette {
	if n < 1 {
		n = 1
	}
	generated, err := gamut.Generate(n, gamut.PastelGenerator{})
	if err != nil || len(generated) == 0 {
		return Palette{colors: []color.RGBA{{R: 255, A: 255}}}
	}
	p := Palette{colors: make([]color.RGBA, 0, len(generated))}
	for _, c := range generated {
		rgba := color.RGBAModel.Convert(c).(color.RGBA)
		rgba.A = 255
		p.colors = append(p.colors, rgba)
	}
	return p
}

func (p Palette) Color(i int) color.RGBA {
	if i < 0 {
		i = -i
	}
	return p.colors[i%len(p.colors)]
}

// Annotate burns boxes and "Name 0.87" labels into a clone of img. The input
// frame is left untouched.
func Annotate(img *gocv.Mat, boxes []Box, reg *classes.Registry, pal Palette) gocv.Mat {
	annotated := img.Clone()
	for _, b := range boxes {
		c := pal.Color(b.ClassID)
		gocv.Rectangle(&annotated, b.Rect, c, 2)

		label := fmt.Sprintf("%s %.2f", reg.Name(b.ClassID), b.Confidence)
		text_size := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.5, 1)
		backdrop := image.Rect(
			b.Rect.Min.X,
			b.Rect.Min.Y-text_size.Y-6,
			b.Rect.Min.X+text_size.X+4,
			b.Rect.Min.Y)
		gocv.Rectangle(&annotated, backdrop, c, -1)
		gocv.PutText(
			&annotated, label,
			image.Pt(b.Rect.Min.X+2, b.Rect.Min.Y-4),
			gocv.FontHersheySimplex, 0.5,
			color.RGBA{A: 255}, 1)
	}
	return annotated
}
