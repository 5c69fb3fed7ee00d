package effect

import (
	"context"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/retouch/pkg/errors"
	"github.com/matzehuels/retouch/pkg/imagestate"
)

// sepiaKernel maps (r, g, b) to (r', g', b'); rows are output channels.
var sepiaKernel = [3][3]float64{
	{0.393, 0.769, 0.189},
	{0.349, 0.686, 0.168},
	{0.272, 0.534, 0.131},
}

// ImagingProcessor applies effects with the imaging library.
type ImagingProcessor struct{}

// NewImagingProcessor creates the default processor.
func NewImagingProcessor() *ImagingProcessor {
	return &ImagingProcessor{}
}

// Available reports true.
func (*ImagingProcessor) Available() bool { return true }

// Apply decodes src, applies e and encodes the result as PNG.
func (p *ImagingProcessor) Apply(ctx context.Context, src imagestate.ImageState, e Effect) (imagestate.ImageState, error) {
	if err := e.Validate(); err != nil {
		return imagestate.ImageState{}, err
	}
	if err := ctx.Err(); err != nil {
		return imagestate.ImageState{}, err
	}

	img, err := src.Decode()
	if err != nil {
		return imagestate.ImageState{}, err
	}

	var out image.Image
	switch e.Kind {
	case KindGrayscale:
		out = imaging.Grayscale(img)
	case KindSepia:
		out = sepia(img)
	case KindCrop:
		b := img.Bounds()
		// Rectangles are relative to the image's top-left corner.
		r, err := ClampCrop(e.Rect.Add(b.Min), b)
		if err != nil {
			return imagestate.ImageState{}, err
		}
		out = imaging.Crop(img, r)
	default:
		return imagestate.ImageState{}, errors.New(errors.ErrCodeInvalidEffect, "unsupported effect %q", e.Kind)
	}

	if err := ctx.Err(); err != nil {
		return imagestate.ImageState{}, err
	}
	return imagestate.FromImage(out)
}

func sepia(img image.Image) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R), float64(c.G), float64(c.B)
		return color.NRGBA{
			R: clamp8(sepiaKernel[0][0]*r + sepiaKernel[0][1]*g + sepiaKernel[0][2]*b),
			G: clamp8(sepiaKernel[1][0]*r + sepiaKernel[1][1]*g + sepiaKernel[1][2]*b),
			B: clamp8(sepiaKernel[2][0]*r + sepiaKernel[2][1]*g + sepiaKernel[2][2]*b),
			A: c.A,
		}
	})
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

var _ Processor = (*ImagingProcessor)(nil)
