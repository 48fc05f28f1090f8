// Package exif reads capture timestamps and orientation with
// github.com/rwcarlsen/goexif.
package exif

import (
	"bytes"
	"sync"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"

	"github.com/Skryldev/photosync/core"
)

var registerOnce sync.Once

// Extractor implements core.MetadataExtractor and core.OrientationReader.
type Extractor struct{}

// NewExtractor returns an Extractor with the Canon and Nikon maker-note
// parsers registered.
func NewExtractor() *Extractor {
	registerOnce.Do(func() { exif.RegisterParsers(mknote.All...) })
	return &Extractor{}
}

// CaptureTime returns DateTimeOriginal (falling back to DateTime) from the
// EXIF block of raw.  Files without EXIF, or with an unparseable date, report
// ok == false.
func (e *Extractor) CaptureTime(raw []byte) (t time.Time, ok bool) {
	x := decode(raw)
	if x == nil {
		return time.Time{}, false
	}
	tm, err := x.DateTime()
	if err != nil || tm.IsZero() {
		return time.Time{}, false
	}
	return tm, true
}

// Orientation returns the IFD0 Orientation tag, or 0 when raw has no EXIF
// block or the value is out of range.
func (e *Extractor) Orientation(raw []byte) int {
	x := decode(raw)
	if x == nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 0
	}
	return o
}

func decode(raw []byte) *exif.Exif {
	if len(raw) == 0 {
		return nil
	}
	x, err := exif.Decode(bytes.NewReader(raw))
	// goexif returns partial results together with a non-critical error
	// when a maker note or a single tag is malformed.
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil
	}
	return x
}

var (
	_ core.MetadataExtractor = (*Extractor)(nil)
	_ core.OrientationReader = (*Extractor)(nil)
)
