package decoder

import (
	"context"
	"io"

	"golang.org/x/image/webp"

	"github.com/Skryldev/photosync/core"
)

// WebP decodes WebP images using golang.org/x/image/webp.
// NOTE: x/image/webp decodes lossy and lossless stills, not animations.
type WebP struct{}

func NewWebP() *WebP { return &WebP{} }

func (w *WebP) CanDecode(format core.Format) bool { return format == core.FormatWebP }

func (w *WebP) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decodeWith(ctx, r, core.FormatWebP, webp.Decode)
}
