package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Skryldev/photosync/errors"
	"github.com/Skryldev/photosync/utils"
)

// Deriver turns one source photo into a set of encoded variants.  It decodes
// the source once and then runs every target's chain concurrently against a
// copy of the decoded base.  It is safe for concurrent use.
type Deriver struct {
	backend Backend
	hooks   []Hook
	logger  Logger
	metrics MetricsCollector

	derivedCount int64
	errorCount   int64
}

// NewDeriver creates a Deriver running the step chains of b.
func NewDeriver(b Backend) *Deriver {
	return &Deriver{backend: b, logger: NopLogger()}
}

// SetLogger attaches a structured logger.
func (d *Deriver) SetLogger(l Logger) {
	if l != nil {
		d.logger = l
	}
}

// SetMetrics attaches a metrics collector.
func (d *Deriver) SetMetrics(m MetricsCollector) { d.metrics = m }

// AddHook registers a step hook.  Not safe to call while Derive is running.
func (d *Deriver) AddHook(h Hook) { d.hooks = append(d.hooks, h) }

// Backend returns the backend the deriver was built with.
func (d *Deriver) Backend() Backend { return d.backend }

// Derive produces one Variant per target, keyed by Target.Key.  Any failure
// fails the whole call; no partial map is returned.  Source bytes that cannot
// be decoded yield an error in apperrors.CategoryDecode.
func (d *Deriver) Derive(ctx context.Context, src []byte, targets []Target) (map[string]Variant, error) {
	if len(src) == 0 {
		atomic.AddInt64(&d.errorCount, 1)
		return nil, apperrors.New(apperrors.CategoryDecode, "derive", apperrors.ErrEmptyInput)
	}

	start := time.Now()
	raw := &ImageData{
		Data:         src,
		Format:       Format(utils.DetectFormat(src)),
		OriginalSize: int64(len(src)),
	}

	base, err := d.run(ctx, raw, d.backend.DecodeSteps())
	if err != nil {
		atomic.AddInt64(&d.errorCount, 1)
		if apperrors.CategoryOf(err) == "" {
			err = apperrors.Wrap(apperrors.CategoryDecode, "derive.decode", err)
		}
		return nil, err
	}

	out := make(map[string]Variant, len(targets))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		g.Go(func() error {
			// Each chain starts from its own shallow copy so that steps which
			// rewrite fields never race; pixel buffers themselves are replaced,
			// never mutated.
			clone := *base
			res, err := d.run(gctx, &clone, d.backend.VariantSteps(t))
			if err != nil {
				return err
			}
			mu.Lock()
			out[t.Key()] = Variant{
				Target: t,
				Data:   res.Data,
				Width:  res.Meta.Width,
				Height: res.Meta.Height,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		atomic.AddInt64(&d.errorCount, 1)
		return nil, err
	}

	atomic.AddInt64(&d.derivedCount, 1)
	d.logger.Debug("derive.done",
		"backend", d.backend.Name(),
		"variants", len(out),
		"source_width", base.Meta.Width,
		"source_height", base.Meta.Height,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// run executes steps in order, notifying hooks around each one.
func (d *Deriver) run(ctx context.Context, img *ImageData, steps []Step) (*ImageData, error) {
	current := img
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
		}
		d.notifyBefore(ctx, step.Name(), current)
		t := time.Now()
		next, err := step.Execute(ctx, current)
		elapsed := time.Since(t)
		d.notifyAfter(ctx, step.Name(), next, elapsed, err)
		if d.metrics != nil {
			d.metrics.RecordStepTime(step.Name(), elapsed)
			if err != nil {
				d.metrics.RecordError(step.Name(), string(apperrors.CategoryOf(err)))
			}
		}
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func (d *Deriver) notifyBefore(ctx context.Context, name string, img *ImageData) {
	for _, h := range d.hooks {
		h.BeforeStep(ctx, name, img)
	}
}

func (d *Deriver) notifyAfter(ctx context.Context, name string, img *ImageData, dur time.Duration, err error) {
	for _, h := range d.hooks {
		h.AfterStep(ctx, name, img, dur, err)
	}
}

// DerivedCount returns the number of sources fully derived.
func (d *Deriver) DerivedCount() int64 { return atomic.LoadInt64(&d.derivedCount) }

// ErrorCount returns the number of failed Derive calls.
func (d *Deriver) ErrorCount() int64 { return atomic.LoadInt64(&d.errorCount) }
