package photosync_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Skryldev/photosync"
	"github.com/Skryldev/photosync/config"
	apperrors "github.com/Skryldev/photosync/errors"
	"github.com/Skryldev/photosync/ingest"
	"github.com/Skryldev/photosync/utils"
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
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 50, G: 50, B: 200, A: 128})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

// site lays out a blog checkout: images/photos, _data and _site/photos.
func site(t *testing.T, files map[string][]byte) config.Config {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "images", "photos")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "_data"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(src, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := photosync.DefaultConfig()
	cfg.SourceGlob = filepath.Join(src, "*")
	cfg.CatalogPath = filepath.Join(root, "_data", "photos.yml")
	cfg.Store = config.StoreLocal
	cfg.LocalDir = filepath.Join(root, "_site", "photos")
	cfg.Concurrency = 2
	return cfg
}

func run(t *testing.T, cfg config.Config) *ingest.Report {
	t.Helper()
	s, err := photosync.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

func objects(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// ── End to end ────────────────────────────────────────────────────────────────

func TestSync_LocalStore(t *testing.T) {
	jpg := newRedJPEG(t, 1600, 1200)
	cfg := site(t, map[string][]byte{
		"beach.jpg":  jpg,
		"logo.png":   newBluePNG(t, 300, 200),
		"broken.jpg": []byte("not really a jpeg"),
	})

	report := run(t, cfg)
	if got := report.Count(ingest.StateIngested); got != 2 {
		t.Fatalf("ingested = %d, want 2 (failures: %+v)", got, report.Failures())
	}
	if got := report.Count(ingest.StateFailed); got != 1 {
		t.Errorf("failed = %d, want 1", got)
	}

	names := objects(t, cfg.LocalDir)
	if len(names) != 16 {
		t.Fatalf("got %d objects, want 16: %v", len(names), names)
	}
	hash := utils.Fingerprint(jpg)
	for _, suffix := range []string{"webp_640", "webp_1280", "webp_2880", "webp_original",
		"jpg_640", "jpg_1280", "jpg_2880", "jpg_original"} {
		if _, err := os.Stat(filepath.Join(cfg.LocalDir, hash+"_"+suffix)); err != nil {
			t.Errorf("missing %s: %v", suffix, err)
		}
	}

	data, err := os.ReadFile(cfg.CatalogPath)
	if err != nil {
		t.Fatalf("catalog not written: %v", err)
	}
	text := string(data)
	for _, want := range []string{"original_name: beach.jpg", "original_name: logo.png", "sha256_hash: " + hash} {
		if !strings.Contains(text, want) {
			t.Errorf("catalog missing %q:\n%s", want, text)
		}
	}
	// Candidates are sorted, so beach.jpg is recorded before logo.png.
	if strings.Index(text, "beach.jpg") > strings.Index(text, "logo.png") {
		t.Error("records not in candidate order")
	}
}

func TestSync_SecondRunIsNoop(t *testing.T) {
	cfg := site(t, map[string][]byte{"a.jpg": newRedJPEG(t, 200, 100)})

	run(t, cfg)
	before, _ := os.ReadFile(cfg.CatalogPath)

	report := run(t, cfg)
	if report.Count(ingest.StateSkipped) != 1 || report.Count(ingest.StateIngested) != 0 {
		t.Errorf("second run: %d skipped, %d ingested", report.Count(ingest.StateSkipped), report.Count(ingest.StateIngested))
	}
	after, _ := os.ReadFile(cfg.CatalogPath)
	if !bytes.Equal(before, after) {
		t.Errorf("catalog changed on a no-op run:\n%s\n---\n%s", before, after)
	}
}

func TestSync_DryRun(t *testing.T) {
	cfg := site(t, map[string][]byte{"a.jpg": newRedJPEG(t, 200, 100)})
	cfg.DryRun = true

	report := run(t, cfg)
	if !report.DryRun || report.Outcomes[0].Reason != "dry run" {
		t.Errorf("outcome = %+v", report.Outcomes[0])
	}
	if n := len(objects(t, cfg.LocalDir)); n != 0 {
		t.Errorf("dry run wrote %d objects", n)
	}
	if _, err := os.Stat(cfg.CatalogPath); !os.IsNotExist(err) {
		t.Error("dry run wrote the catalog")
	}
}

func TestSync_Metrics(t *testing.T) {
	cfg := site(t, map[string][]byte{"a.jpg": newRedJPEG(t, 200, 100)})
	s, err := photosync.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := s.Metrics()
	if snap.StepCalls["encode"] != 8 {
		t.Errorf("encode calls = %d, want 8", snap.StepCalls["encode"])
	}
	if snap.Outcomes["ingested"] != 1 || snap.Bytes["uploaded"] == 0 {
		t.Errorf("snapshot = %+v", snap)
	}
	if derived, failed := s.Stats(); derived != 1 || failed != 0 {
		t.Errorf("Stats = %d, %d", derived, failed)
	}
	if s.Catalog().Len() != 1 {
		t.Errorf("catalog len = %d", s.Catalog().Len())
	}
}

func TestSync_MetricsFile(t *testing.T) {
	cfg := site(t, map[string][]byte{"a.jpg": newRedJPEG(t, 200, 100)})
	cfg.MetricsFile = filepath.Join(t.TempDir(), "photosync.prom")
	run(t, cfg)

	data, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(data), `photosync_candidates_total{state="ingested"} 1`) {
		t.Errorf("metrics file:\n%s", data)
	}
}

// ── Fatal errors ──────────────────────────────────────────────────────────────

func TestNew_InvalidConfig(t *testing.T) {
	cfg := photosync.DefaultConfig() // S3 store without endpoint or credentials
	_, err := photosync.New(cfg)
	if !apperrors.IsCategory(err, apperrors.CategoryConfig) {
		t.Fatalf("got %v, want config error", err)
	}
}

func TestNew_MalformedCatalog(t *testing.T) {
	cfg := site(t, nil)
	if err := os.WriteFile(cfg.CatalogPath, []byte("{ this is: [not a list"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := photosync.New(cfg)
	if !apperrors.IsCategory(err, apperrors.CategoryCatalogFormat) {
		t.Fatalf("got %v, want catalog_format error", err)
	}
}

func TestNew_VipsWithoutTag(t *testing.T) {
	if photosync.VipsAvailable {
		t.Skip("built with vips")
	}
	cfg := site(t, nil)
	cfg.Backend = config.CodecVips
	_, err := photosync.New(cfg)
	if !apperrors.IsCategory(err, apperrors.CategoryConfig) {
		t.Fatalf("got %v, want config error", err)
	}
}
