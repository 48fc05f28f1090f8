//go:build vips

// Package vips is the libvips codec backend.  It is only built with the vips
// build tag, which requires libvips and cgo.
package vips

import (
	"context"
	"fmt"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/photosync/core"
	apperrors "github.com/Skryldev/photosync/errors"
	"github.com/Skryldev/photosync/pipeline"
	"github.com/Skryldev/photosync/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	Quality      int
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
	// AutoRotate applies the EXIF orientation at decode time.
	AutoRotate bool
}

// Backend is a core.Backend whose steps run entirely inside libvips.
// Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.Quality <= 0 {
		cfg.Quality = 85
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.LoggingSettings(nil, govips.LogLevelWarning)
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

func (b *Backend) Name() string { return "vips" }

func (b *Backend) DecodeSteps() []core.Step {
	return []core.Step{&DecodeStep{AutoRotate: b.cfg.AutoRotate}}
}

func (b *Backend) VariantSteps(t core.Target) []core.Step {
	return []core.Step{
		&FitStep{MaxSize: t.MaxWidth},
		&pipeline.FormatStep{Format: t.Format},
		&EncodeStep{Quality: b.cfg.Quality},
	}
}

// ─── Image ────────────────────────────────────────────────────────────────────

// Image wraps a *govips.ImageRef for storage in core.ImageData.Image.
type Image struct {
	ref *govips.ImageRef
}

func (v *Image) Width() int             { return v.ref.Width() }
func (v *Image) Height() int            { return v.ref.Height() }
func (v *Image) Ref() *govips.ImageRef { return v.ref }

func wrap(ref *govips.ImageRef) *Image {
	runtime.SetFinalizer(ref, func(r *govips.ImageRef) { r.Close() })
	return &Image{ref: ref}
}

func imageOf(img *core.ImageData, op string) (*Image, error) {
	vi, ok := img.Image.(*Image)
	if !ok || vi == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, op,
			fmt.Errorf("expected *vips.Image; decode with the vips backend"))
	}
	return vi, nil
}

// ─── DecodeStep ───────────────────────────────────────────────────────────────

// DecodeStep loads img.Data into libvips.
type DecodeStep struct {
	AutoRotate bool
}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "vips.decode", apperrors.ErrEmptyInput)
	}

	ref, err := govips.NewImageFromBuffer(img.Data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}
	if s.AutoRotate {
		if err := ref.AutoRotate(); err != nil {
			ref.Close()
			return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.rotate", err)
		}
	}
	if ref.Width() <= 0 || ref.Height() <= 0 {
		ref.Close()
		return nil, apperrors.New(apperrors.CategoryDecode, "vips.decode", apperrors.ErrInvalidDimensions)
	}

	format := vipsFormatToCore(ref.Format())
	return &core.ImageData{
		Data:   img.Data,
		Format: format,
		Image:  wrap(ref),
		Meta: core.Metadata{
			Width:      ref.Width(),
			Height:     ref.Height(),
			Format:     format,
			ColorSpace: vipsInterpretationToColorSpace(ref.Interpretation()),
			HasAlpha:   ref.HasAlpha(),
			SizeBytes:  img.OriginalSize,
		},
		OriginalSize: img.OriginalSize,
	}, nil
}

// ─── FitStep ──────────────────────────────────────────────────────────────────

// FitStep bounds the longer side with vips_resize() and a Lanczos3 kernel.
// The decoded base is shared between variants, so it resizes a copy.
type FitStep struct {
	MaxSize int
}

func (s *FitStep) Name() string { return "fit" }

func (s *FitStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	vi, err := imageOf(img, s.Name())
	if err != nil {
		return nil, err
	}
	dstW, dstH := utils.FitWithin(img.Meta.Width, img.Meta.Height, s.MaxSize)
	if dstW == img.Meta.Width && dstH == img.Meta.Height {
		return img, nil
	}

	ref, err := vi.ref.Copy()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	scale := float64(max(dstW, dstH)) / float64(max(img.Meta.Width, img.Meta.Height))
	if err := ref.Resize(scale, govips.KernelLanczos3); err != nil {
		ref.Close()
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	out := *img
	out.Image = wrap(ref)
	out.Meta.Width = ref.Width()
	out.Meta.Height = ref.Height()
	return &out, nil
}

// ─── EncodeStep ───────────────────────────────────────────────────────────────

// EncodeStep exports the image in img.Format.  JPEG output of an image with an
// alpha channel is flattened onto white first.
type EncodeStep struct {
	Quality  int
	Lossless bool
}

func (s *EncodeStep) Name() string { return "encode" }

func (s *EncodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode", err)
	}
	vi, err := imageOf(img, "vips.encode")
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode", err)
	}

	var buf []byte
	switch img.Format {
	case core.FormatJPEG:
		ref := vi.ref
		if ref.HasAlpha() {
			if ref, err = ref.Copy(); err != nil {
				return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.jpeg", err)
			}
			defer ref.Close()
			if err := ref.Flatten(&govips.Color{R: 255, G: 255, B: 255}); err != nil {
				return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.jpeg", err)
			}
		}
		ep := govips.NewJpegExportParams()
		ep.Quality = s.Quality
		ep.StripMetadata = true
		buf, _, err = ref.ExportJpeg(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.jpeg", err)
		}

	case core.FormatWebP:
		ep := govips.NewWebpExportParams()
		ep.Quality = s.Quality
		ep.Lossless = s.Lossless
		ep.StripMetadata = true
		buf, _, err = vi.ref.ExportWebp(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.webp", err)
		}

	default:
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}

	out := *img
	out.Data = buf
	out.Meta.SizeBytes = int64(len(buf))
	return &out, nil
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func vipsFormatToCore(f govips.ImageType) core.Format {
	switch f {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeWEBP:
		return core.FormatWebP
	case govips.ImageTypeGIF:
		return core.FormatGIF
	default:
		return core.FormatUnknown
	}
}

func vipsInterpretationToColorSpace(i govips.Interpretation) core.ColorSpace {
	switch i {
	case govips.InterpretationBW, govips.InterpretationGrey16:
		return core.ColorSpaceGray
	case govips.InterpretationCMYK:
		return core.ColorSpaceCMYK
	default:
		return core.ColorSpaceRGB
	}
}

var (
	_ core.Backend = (*Backend)(nil)
	_ core.Step    = (*DecodeStep)(nil)
	_ core.Step    = (*FitStep)(nil)
	_ core.Step    = (*EncodeStep)(nil)
)
