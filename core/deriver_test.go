package core_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/webp"

	"github.com/Skryldev/photosync/core"
	apperrors "github.com/Skryldev/photosync/errors"
	"github.com/Skryldev/photosync/pipeline"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func newRedJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func newBluePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 50, G: 50, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func newDeriver(t *testing.T) *core.Deriver {
	t.Helper()
	reg := pipeline.DefaultRegistry(80)
	return core.NewDeriver(pipeline.NewStdlib(reg, core.EncodeOptions{Quality: 80}))
}

func decodeVariant(t *testing.T, v core.Variant) image.Image {
	t.Helper()
	var (
		img image.Image
		err error
	)
	switch v.Target.Format {
	case core.FormatJPEG:
		img, err = jpeg.Decode(bytes.NewReader(v.Data))
	case core.FormatWebP:
		img, err = webp.Decode(bytes.NewReader(v.Data))
	default:
		t.Fatalf("unexpected format %s", v.Target.Format)
	}
	if err != nil {
		t.Fatalf("%s does not decode: %v", v.Target.Key(), err)
	}
	return img
}

// ── Targets ───────────────────────────────────────────────────────────────────

func TestCanonicalTargets(t *testing.T) {
	want := []string{
		"webp_640", "webp_1280", "webp_2880", "webp_original",
		"jpg_640", "jpg_1280", "jpg_2880", "jpg_original",
	}
	targets := core.CanonicalTargets()
	if len(targets) != len(want) {
		t.Fatalf("got %d targets, want %d", len(targets), len(want))
	}
	for i, tg := range targets {
		if tg.Key() != want[i] {
			t.Errorf("target[%d] key = %s, want %s", i, tg.Key(), want[i])
		}
	}
	if got := targets[0].ObjectName("abc"); got != "abc_webp_640" {
		t.Errorf("ObjectName = %s", got)
	}
}

// ── Derive ────────────────────────────────────────────────────────────────────

func TestDerive_CanonicalVariants(t *testing.T) {
	d := newDeriver(t)
	raw := newRedJPEG(t, 3000, 2000)

	variants, err := d.Derive(context.Background(), raw, core.CanonicalTargets())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(variants) != 8 {
		t.Fatalf("got %d variants, want 8", len(variants))
	}

	for key, v := range variants {
		img := decodeVariant(t, v)
		b := img.Bounds()
		if b.Dx() != v.Width || b.Dy() != v.Height {
			t.Errorf("%s: reported %dx%d, decoded %dx%d", key, v.Width, v.Height, b.Dx(), b.Dy())
		}
		if v.Target.MaxWidth == 0 {
			if b.Dx() != 3000 || b.Dy() != 2000 {
				t.Errorf("%s: original resized to %dx%d", key, b.Dx(), b.Dy())
			}
			continue
		}
		if b.Dx() > v.Target.MaxWidth || b.Dy() > v.Target.MaxWidth {
			t.Errorf("%s: %dx%d exceeds bound %d", key, b.Dx(), b.Dy(), v.Target.MaxWidth)
		}
	}

	// 3:2 landscape fitted into 640 is 640x427.
	if v := variants["jpg_640"]; v.Width != 640 || v.Height != 427 {
		t.Errorf("jpg_640 = %dx%d, want 640x427", v.Width, v.Height)
	}
}

func TestDerive_NeverUpscales(t *testing.T) {
	d := newDeriver(t)
	raw := newBluePNG(t, 300, 500)

	variants, err := d.Derive(context.Background(), raw, core.CanonicalTargets())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	for key, v := range variants {
		if v.Width != 300 || v.Height != 500 {
			t.Errorf("%s: %dx%d, want native 300x500", key, v.Width, v.Height)
		}
		// Still re-encoded into the target encoding.
		decodeVariant(t, v)
	}
}

func TestDerive_PortraitBoundsLongerSide(t *testing.T) {
	d := newDeriver(t)
	raw := newRedJPEG(t, 1000, 2000)

	variants, err := d.Derive(context.Background(), raw, []core.Target{{MaxWidth: 640, Format: core.FormatWebP}})
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	v := variants["webp_640"]
	if v.Width != 320 || v.Height != 640 {
		t.Errorf("webp_640 = %dx%d, want 320x640", v.Width, v.Height)
	}
}

func TestDerive_DecodeErrors(t *testing.T) {
	d := newDeriver(t)
	tests := []struct {
		name string
		raw  []byte
	}{
		{"zero bytes", nil},
		{"text", []byte("definitely not a photo, just some text bytes")},
		{"truncated jpeg", newRedJPEG(t, 100, 100)[:40]},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Derive(context.Background(), tc.raw, core.CanonicalTargets())
			if !apperrors.IsCategory(err, apperrors.CategoryDecode) {
				t.Fatalf("got %v, want decode error", err)
			}
		})
	}
	if d.ErrorCount() != int64(len(tests)) {
		t.Errorf("ErrorCount = %d, want %d", d.ErrorCount(), len(tests))
	}
}

func TestDerive_ZeroBytesIsEmptyInput(t *testing.T) {
	_, err := newDeriver(t).Derive(context.Background(), []byte{}, core.CanonicalTargets())
	if !errors.Is(err, apperrors.ErrEmptyInput) {
		t.Fatalf("got %v, want ErrEmptyInput", err)
	}
}

func TestDerive_ContextCancel(t *testing.T) {
	d := newDeriver(t)
	raw := newRedJPEG(t, 100, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Derive(ctx, raw, core.CanonicalTargets()); err == nil {
		t.Error("expected context cancellation error, got nil")
	}
}

// ── Concurrency ───────────────────────────────────────────────────────────────

func TestDerive_ConcurrentSafety(t *testing.T) {
	d := newDeriver(t)
	raw := newRedJPEG(t, 800, 600)

	const goroutines = 8
	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = d.Derive(context.Background(), raw, core.CanonicalTargets())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("goroutine %d: %v", i, err)
		}
	}
	if d.DerivedCount() != goroutines {
		t.Errorf("DerivedCount = %d, want %d", d.DerivedCount(), goroutines)
	}
}

// ── Hooks ─────────────────────────────────────────────────────────────────────

type countingHook struct {
	mu     sync.Mutex
	after  map[string]int
	failed int
}

func (h *countingHook) BeforeStep(context.Context, string, *core.ImageData) {}

func (h *countingHook) AfterStep(_ context.Context, name string, _ *core.ImageData, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.after[name]++
	if err != nil {
		h.failed++
	}
}

func TestDerive_Hooks(t *testing.T) {
	d := newDeriver(t)
	hook := &countingHook{after: map[string]int{}}
	d.AddHook(hook)

	if _, err := d.Derive(context.Background(), newRedJPEG(t, 100, 80), core.CanonicalTargets()); err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if hook.after["decode"] != 1 {
		t.Errorf("decode ran %d times, want 1", hook.after["decode"])
	}
	if hook.after["encode"] != 8 {
		t.Errorf("encode ran %d times, want 8", hook.after["encode"])
	}
	if hook.failed != 0 {
		t.Errorf("%d steps failed", hook.failed)
	}
}
