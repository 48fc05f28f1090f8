package encoder

import (
	"bytes"
	"context"

	"github.com/chai2010/webp"

	"github.com/Skryldev/photosync/core"
	apperrors "github.com/Skryldev/photosync/errors"
)

// WebP encodes images to WebP with github.com/chai2010/webp, which bundles
// libwebp and needs no system library.
type WebP struct {
	DefaultQuality int
}

func NewWebP(defaultQuality int) *WebP {
	if defaultQuality <= 0 {
		defaultQuality = 85
	}
	return &WebP{DefaultQuality: defaultQuality}
}

func (w *WebP) CanEncode(format core.Format) bool { return format == core.FormatWebP }

func (w *WebP) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	src, err := pixels(ctx, "webp.encode", img)
	if err != nil {
		return nil, err
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = w.DefaultQuality
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, src, &webp.Options{
		Lossless: opts.Lossless,
		Quality:  float32(quality),
	}); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "webp.encode", err)
	}
	return buf.Bytes(), nil
}
