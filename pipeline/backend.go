package pipeline

import (
	"github.com/Skryldev/photosync/adapters/decoder"
	"github.com/Skryldev/photosync/adapters/encoder"
	"github.com/Skryldev/photosync/core"
)

// Stdlib is the pure-Go core.Backend: registry codecs plus x/image resampling.
type Stdlib struct {
	registry core.Registry
	options  core.EncodeOptions
	orient   core.OrientationReader
}

// NewStdlib returns a Backend using reg for decoding and encoding.
func NewStdlib(reg core.Registry, opts core.EncodeOptions) *Stdlib {
	return &Stdlib{registry: reg, options: opts}
}

// DefaultRegistry returns a registry with every built-in stdlib codec:
// JPEG, PNG, WebP and GIF decoding; JPEG and WebP encoding.
func DefaultRegistry(quality int) *core.DefaultRegistry {
	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterDecoder(core.FormatWebP, decoder.NewWebP())
	reg.RegisterDecoder(core.FormatGIF, decoder.NewGIF())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(quality))
	reg.RegisterEncoder(core.FormatWebP, encoder.NewWebP(quality))
	return reg
}

// SetOrientation makes decoding apply the EXIF orientation read by r.  With
// no reader the pixels are used as stored.
func (b *Stdlib) SetOrientation(r core.OrientationReader) { b.orient = r }

func (b *Stdlib) Name() string { return "stdlib" }

func (b *Stdlib) DecodeSteps() []core.Step {
	steps := []core.Step{&DecodeStep{Registry: b.registry}}
	if b.orient != nil {
		steps = append(steps, &OrientStep{Reader: b.orient})
	}
	return steps
}

func (b *Stdlib) VariantSteps(t core.Target) []core.Step {
	return []core.Step{
		&FitStep{MaxSize: t.MaxWidth},
		&FormatStep{Format: t.Format},
		&EncodeStep{Registry: b.registry, Options: b.options},
	}
}

var _ core.Backend = (*Stdlib)(nil)
