package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Skryldev/photosync/core"
	apperrors "github.com/Skryldev/photosync/errors"
)

// cleanupTimeout bounds best-effort deletes, which may run after the run
// context has been cancelled.
const cleanupTimeout = 30 * time.Second

// upload writes every variant of one candidate in target order.  On failure
// the names already written are returned alongside the error.
func (p *Pipeline) upload(ctx context.Context, hash string, variants map[string]core.Variant) ([]string, int64, error) {
	var (
		done  []string
		total int64
	)
	for _, t := range p.opts.Targets {
		v, ok := variants[t.Key()]
		if !ok {
			return done, total, apperrors.New(apperrors.CategoryPipeline, "ingest.upload",
				errors.New("missing variant "+t.Key()))
		}
		name := t.ObjectName(hash)
		if err := p.put(ctx, name, v.Data, mimetype.Detect(v.Data).String()); err != nil {
			return done, total, err
		}
		done = append(done, name)
		total += int64(len(v.Data))
		if p.metrics != nil {
			p.metrics.RecordBytes("uploaded", int64(len(v.Data)))
		}
		p.logger.Debug("object.uploaded", "name", name, "bytes", len(v.Data))
	}
	return done, total, nil
}

// put retries retryable failures up to MaxRetries times with a linear backoff.
func (p *Pipeline) put(ctx context.Context, name string, data []byte, contentType string) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = p.putOnce(ctx, name, data, contentType)
		if err == nil {
			return nil
		}
		if attempt >= p.opts.MaxRetries || !apperrors.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		p.logger.Warn("object.retry", "name", name, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.CategoryUpload, "ingest.put", ctx.Err())
		case <-time.After(p.opts.RetryDelay * time.Duration(attempt+1)):
		}
	}
}

func (p *Pipeline) putOnce(ctx context.Context, name string, data []byte, contentType string) error {
	if p.opts.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.UploadTimeout)
		defer cancel()
	}
	err := p.store.Put(ctx, name, data, contentType)
	if err == nil || apperrors.CategoryOf(err) != "" {
		return err
	}
	// Stores that do not classify their errors are assumed to fail transiently.
	return apperrors.Transient(apperrors.CategoryUpload, "ingest.put", err)
}

// cleanup deletes objects left behind by a failed candidate.  Errors are
// logged, never returned.
func (p *Pipeline) cleanup(ctx context.Context, names []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	for _, name := range names {
		if err := p.store.Delete(ctx, name); err != nil {
			p.logger.Warn("object.cleanup_failed", "name", name, "error", err)
			continue
		}
		p.logger.Debug("object.deleted", "name", name)
	}
}
