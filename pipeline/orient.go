package pipeline

import (
	"context"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/photosync/core"
	apperrors "github.com/Skryldev/photosync/errors"
)

// OrientStep applies the EXIF orientation of the source bytes to the decoded
// image, so phone portraits come out upright.  Orientation 1, or no tag, is a
// no-op.
type OrientStep struct {
	Reader core.OrientationReader
}

func (s *OrientStep) Name() string { return "orient" }

func (s *OrientStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	o := s.Reader.Orientation(img.Data)
	if o <= 1 || o > 8 {
		return img, nil
	}

	dst := Orient(src, o)
	out := *img
	out.Image = dst
	out.Meta.Width = dst.Bounds().Dx()
	out.Meta.Height = dst.Bounds().Dy()
	return &out, nil
}

// Orient returns src transformed by EXIF orientation o (2-8).  Orientations
// 5 to 8 swap width and height.  Other values return src unchanged.
func Orient(src image.Image, o int) image.Image {
	if o < 2 || o > 8 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	in, ok := src.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		in = image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.Draw(in, in.Rect, src, b.Min, xdraw.Src)
	}

	dw, dh := w, h
	if o >= 5 {
		dw, dh = h, w
	}
	out := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			var sx, sy int
			switch o {
			case 2: // mirror horizontal
				sx, sy = w-1-x, y
			case 3: // rotate 180
				sx, sy = w-1-x, h-1-y
			case 4: // mirror vertical
				sx, sy = x, h-1-y
			case 5: // transpose
				sx, sy = y, x
			case 6: // rotate 90 clockwise
				sx, sy = y, h-1-x
			case 7: // transverse
				sx, sy = w-1-y, h-1-x
			case 8: // rotate 90 counter-clockwise
				sx, sy = w-1-y, x
			}
			copy(out.Pix[out.PixOffset(x, y):out.PixOffset(x, y)+4], in.Pix[in.PixOffset(sx, sy):in.PixOffset(sx, sy)+4])
		}
	}
	return out
}
