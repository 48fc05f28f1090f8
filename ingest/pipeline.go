// Package ingest runs one synchronisation pass: it fingerprints candidate
// files, skips the ones already published, derives and uploads the variants of
// the rest, and appends their records to the catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/Skryldev/photosync/catalog"
	"github.com/Skryldev/photosync/core"
	apperrors "github.com/Skryldev/photosync/errors"
	"github.com/Skryldev/photosync/utils"
)

// Options tunes a Pipeline.  Zero values are usable except CatalogPath, which
// is required unless DryRun is set.
type Options struct {
	CatalogPath string
	Targets     []core.Target // default: core.CanonicalTargets()

	Concurrency    int // candidates in flight; <= 0 means runtime.NumCPU()
	UploadTimeout  time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	CleanupPartial bool
	MaxImageBytes  int64

	// DryRun stops after deduplication: nothing is derived, uploaded or saved.
	DryRun bool
}

// SourceReader reads a whole candidate file, failing with utils.ErrTooLarge
// past limit when limit > 0.
type SourceReader func(ctx context.Context, path string, limit int64) ([]byte, error)

// Pipeline owns the catalog for the duration of a run.
type Pipeline struct {
	catalog    *catalog.Catalog
	deriver    *core.Deriver
	store      core.ObjectStore
	metadata   core.MetadataExtractor
	readSource SourceReader
	logger     core.Logger
	metrics    core.MetricsCollector
	opts       Options
}

// New creates a Pipeline.  store may be nil only for dry runs.
func New(cat *catalog.Catalog, d *core.Deriver, store core.ObjectStore, opts Options) (*Pipeline, error) {
	if cat == nil || d == nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "ingest.new", errors.New("catalog and deriver are required"))
	}
	if !opts.DryRun {
		if store == nil {
			return nil, apperrors.New(apperrors.CategoryConfig, "ingest.new", apperrors.ErrStoreUnavailable)
		}
		if opts.CatalogPath == "" {
			return nil, apperrors.New(apperrors.CategoryConfig, "ingest.new", errors.New("catalog path is required"))
		}
	}
	if len(opts.Targets) == 0 {
		opts.Targets = core.CanonicalTargets()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	return &Pipeline{
		catalog:    cat,
		deriver:    d,
		store:      store,
		readSource: utils.ReadSource,
		logger:     core.NopLogger(),
		opts:       opts,
	}, nil
}

// SetLogger attaches a structured logger.
func (p *Pipeline) SetLogger(l core.Logger) {
	if l != nil {
		p.logger = l
	}
}

// SetSourceReader replaces how candidate files are read.
func (p *Pipeline) SetSourceReader(r SourceReader) {
	if r != nil {
		p.readSource = r
	}
}

// SetMetrics attaches a metrics collector.
func (p *Pipeline) SetMetrics(m core.MetricsCollector) { p.metrics = m }

// SetMetadataExtractor sets the capture-date source.  Without one every new
// record has a null date.
func (p *Pipeline) SetMetadataExtractor(m core.MetadataExtractor) { p.metadata = m }

// Run processes paths and, unless this is a dry run, saves the catalog once.
//
// Per-candidate failures are reported in the Report, never as the returned
// error.  The error is reserved for conditions that make the run itself
// unsuccessful: a cancelled context or a catalog that could not be written.
// The Report is returned in both cases.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*Report, error) {
	report := &Report{Started: time.Now(), DryRun: p.opts.DryRun}
	report.Outcomes = make([]Outcome, len(paths))
	for i, path := range paths {
		report.Outcomes[i] = Outcome{Path: path, State: StateDiscovered}
	}

	p.fingerprintAll(ctx, report.Outcomes)
	p.dedup(report.Outcomes)

	if p.opts.DryRun {
		for i := range report.Outcomes {
			o := &report.Outcomes[i]
			if o.State == StateFingerprinted {
				o.raw = nil
				o.State = StateSkipped
				o.Reason = "dry run"
				p.logger.Info("candidate.would_ingest", "path", o.Path, "hash", o.Hash)
			}
		}
		p.finish(report)
		return report, apperrors.Wrap(apperrors.CategoryPipeline, "ingest.run", ctx.Err())
	}

	p.ingestAll(ctx, report.Outcomes)

	// Single writer: records go in after every candidate is terminal, in
	// candidate order.
	for i := range report.Outcomes {
		o := &report.Outcomes[i]
		if o.State != StateIngesting {
			continue
		}
		if err := p.catalog.Append(*o.Record); err != nil {
			o.fail(StateIngesting, err)
			continue
		}
		o.State = StateIngested
	}
	p.finish(report)

	if err := p.catalog.Save(p.opts.CatalogPath); err != nil {
		return report, err
	}
	p.logger.Info("catalog.saved", "path", p.opts.CatalogPath, "records", p.catalog.Len())
	if err := ctx.Err(); err != nil {
		return report, apperrors.Wrap(apperrors.CategoryPipeline, "ingest.run", err)
	}
	return report, nil
}

func (p *Pipeline) finish(report *Report) {
	report.Duration = time.Since(report.Started)
	if p.metrics == nil {
		return
	}
	for _, o := range report.Outcomes {
		p.metrics.RecordOutcome(string(o.State))
		if o.State == StateFailed {
			p.metrics.RecordError("ingest."+string(o.Stage), string(apperrors.CategoryOf(o.Err)))
		}
	}
}

// fingerprintAll reads and hashes every candidate concurrently.  Each file is
// read exactly once; the bytes stay on the outcome until dedup or derive.
func (p *Pipeline) fingerprintAll(ctx context.Context, outcomes []Outcome) {
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i := range outcomes {
		o := &outcomes[i]
		g.Go(func() error {
			raw, err := p.read(ctx, o.Path)
			if err != nil {
				o.fail(StateDiscovered, err)
				return nil
			}
			o.raw = raw
			o.Hash = utils.Fingerprint(raw)
			o.SourceBytes = int64(len(raw))
			o.State = StateFingerprinted
			if p.metrics != nil {
				p.metrics.RecordBytes("source", o.SourceBytes)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// dedup marks candidates already in the catalog, and repeats of an earlier
// candidate in this batch, as skipped.  It walks in candidate order so the
// first of several identical files is the one ingested.
func (p *Pipeline) dedup(outcomes []Outcome) {
	claimed := make(map[string]string)
	for i := range outcomes {
		o := &outcomes[i]
		if o.State != StateFingerprinted {
			continue
		}
		if _, ok := p.catalog.FindByHash(o.Hash); ok {
			o.raw = nil
			o.State = StateSkipped
			o.Reason = "in catalog"
			p.logger.Debug("candidate.skipped", "path", o.Path, "hash", o.Hash, "reason", o.Reason)
			continue
		}
		if first, ok := claimed[o.Hash]; ok {
			o.raw = nil
			o.State = StateSkipped
			o.Reason = "duplicate of " + first
			p.logger.Info("candidate.skipped", "path", o.Path, "hash", o.Hash, "reason", o.Reason)
			continue
		}
		claimed[o.Hash] = o.Path
	}
}

func (p *Pipeline) ingestAll(ctx context.Context, outcomes []Outcome) {
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i := range outcomes {
		o := &outcomes[i]
		if o.State != StateFingerprinted {
			continue
		}
		g.Go(func() error {
			p.ingestOne(ctx, o)
			return nil
		})
	}
	_ = g.Wait()
}

// ingestOne drives one new candidate from Fingerprinted to Ingesting or
// Failed.
func (p *Pipeline) ingestOne(ctx context.Context, o *Outcome) {
	if err := ctx.Err(); err != nil {
		o.fail(StateFingerprinted, apperrors.Wrap(apperrors.CategoryPipeline, "ingest", err))
		return
	}

	raw := o.raw
	o.raw = nil

	o.State = StateDeriving
	variants, err := p.deriver.Derive(ctx, raw, p.opts.Targets)
	if err != nil {
		o.fail(StateDeriving, err)
		return
	}

	o.State = StateUploading
	uploaded, size, err := p.upload(ctx, o.Hash, variants)
	o.Uploaded, o.UploadedBytes = uploaded, size
	if err != nil {
		o.fail(StateUploading, err)
		if p.opts.CleanupPartial && len(uploaded) > 0 {
			p.cleanup(ctx, uploaded)
			o.Uploaded = nil
		}
		return
	}

	o.State = StateIngesting
	o.Record = p.record(o.Path, o.Hash, raw)
	p.logger.Info("candidate.ingested",
		"path", o.Path,
		"hash", o.Hash,
		"variants", len(uploaded),
		"date", o.Record.Date,
	)
}

// record builds the catalog entry for a fully uploaded candidate.  Free-text
// fields start empty for an editor to fill in.  The name is stored in NFC so
// files copied from decomposing filesystems match the rest of the catalog.
func (p *Pipeline) record(path, hash string, raw []byte) *catalog.Record {
	rec := &catalog.Record{
		OriginalName: norm.NFC.String(filepath.Base(path)),
		ContentHash:  hash,
	}
	if p.metadata != nil {
		if t, ok := p.metadata.CaptureTime(raw); ok {
			rec.Date = catalog.NewTimestamp(t)
		}
	}
	return rec
}

func (p *Pipeline) read(ctx context.Context, path string) ([]byte, error) {
	raw, err := p.readSource(ctx, path, p.opts.MaxImageBytes)
	switch {
	case err == nil:
		return raw, nil
	case errors.Is(err, utils.ErrTooLarge):
		return nil, apperrors.New(apperrors.CategoryInput, "ingest.read",
			fmt.Errorf("%w: %w", apperrors.ErrImageTooLarge, err))
	default:
		return nil, apperrors.Wrap(apperrors.CategoryIO, "ingest.read", err)
	}
}
