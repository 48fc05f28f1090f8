package core

import (
	"context"
	"strconv"
	"time"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatGIF     Format = "gif"
	FormatUnknown Format = "unknown"
)

// Ext is the short name used in object names and variant keys.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// ColorSpace represents the image colour model.
type ColorSpace string

const (
	ColorSpaceRGB  ColorSpace = "rgb"
	ColorSpaceRGBA ColorSpace = "rgba"
	ColorSpaceCMYK ColorSpace = "cmyk"
	ColorSpaceGray ColorSpace = "gray"
)

// Metadata holds image information gathered while decoding.
type Metadata struct {
	Width      int
	Height     int
	Format     Format
	ColorSpace ColorSpace
	HasAlpha   bool
	SizeBytes  int64
}

// ImageData is the in-memory representation passed through a step chain.
// Data holds encoded bytes; Image holds the decoded pixel buffer.
type ImageData struct {
	// Encoded bytes: the raw source before decode, the variant after encode.
	Data   []byte
	Format Format

	// Decoded pixel buffer.  image.Image for the stdlib backend, the backend's
	// own wrapper type otherwise.  Steps must treat it as read-only and return
	// a new buffer instead of mutating it, since variants share the decoded base.
	Image interface{}

	Meta Metadata

	// Size of the original raw input.
	OriginalSize int64
}

// Target describes one variant to derive: an upper bound on the longer image
// side and an output encoding.  MaxWidth 0 means keep the native resolution.
type Target struct {
	MaxWidth int
	Format   Format
}

// OriginalLabel is the width label of targets that keep native resolution.
const OriginalLabel = "original"

// Label is the width part of the variant key: the bound, or "original".
func (t Target) Label() string {
	if t.MaxWidth <= 0 {
		return OriginalLabel
	}
	return strconv.Itoa(t.MaxWidth)
}

// Key identifies the variant within one photo, e.g. "webp_640" or
// "jpg_original".
func (t Target) Key() string { return t.Format.Ext() + "_" + t.Label() }

// ObjectName is the content-addressed remote name of the variant of the photo
// with the given hash: "{hash}_{ext}_{label}".
func (t Target) ObjectName(contentHash string) string { return contentHash + "_" + t.Key() }

// CanonicalWidths are the published width bounds; 0 is the untouched original.
var CanonicalWidths = []int{640, 1280, 2880, 0}

// CanonicalFormats are the published encodings.
var CanonicalFormats = []Format{FormatWebP, FormatJPEG}

// CanonicalTargets returns the eight targets derived for every new photo,
// encodings outermost.
func CanonicalTargets() []Target {
	out := make([]Target, 0, len(CanonicalFormats)*len(CanonicalWidths))
	for _, f := range CanonicalFormats {
		for _, w := range CanonicalWidths {
			out = append(out, Target{MaxWidth: w, Format: f})
		}
	}
	return out
}

// Variant is one derived, encoded rendition of a source photo.
type Variant struct {
	Target Target
	Data   []byte
	Width  int
	Height int
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality  int  // 1-100; 0 = use encoder default
	Lossless bool // WebP lossless mode
}

// Step is the fundamental building block of a variant chain.  Each Step
// transforms an *ImageData value and must be safe for concurrent use.
type Step interface {
	Name() string
	Execute(ctx context.Context, img *ImageData) (*ImageData, error)
}

// Hook is an optional observer invoked around steps.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, img *ImageData)
	AfterStep(ctx context.Context, stepName string, img *ImageData, d time.Duration, err error)
}
