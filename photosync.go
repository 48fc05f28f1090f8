// Package photosync publishes a folder of photos: new files are derived into
// web variants, uploaded to an object store and recorded in a YAML catalog.
//
// Most programs only need New and Run:
//
//	s, err := photosync.New(config.Default())
//	if err != nil { ... }
//	defer s.Close()
//	report, err := s.Run(ctx)
package photosync

import (
	"context"
	"fmt"

	"github.com/Skryldev/photosync/adapters/exif"
	"github.com/Skryldev/photosync/adapters/storage"
	"github.com/Skryldev/photosync/catalog"
	"github.com/Skryldev/photosync/config"
	"github.com/Skryldev/photosync/core"
	apperrors "github.com/Skryldev/photosync/errors"
	"github.com/Skryldev/photosync/hooks"
	"github.com/Skryldev/photosync/ingest"
	"github.com/Skryldev/photosync/pipeline"
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Syncer is the primary entry point.  It owns the catalog loaded at New and
// the store and backend built from the config.
type Syncer struct {
	cfg      config.Config
	catalog  *catalog.Catalog
	deriver  *core.Deriver
	pipeline *ingest.Pipeline
	logger   core.Logger
	metrics  *hooks.InMemoryMetrics
	prom     *hooks.PrometheusMetrics
	store    core.ObjectStore
	closers  []func()
}

// Option customises a Syncer.
type Option func(*Syncer)

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore replaces the store that would be built from the config.
func WithStore(st core.ObjectStore) Option {
	return func(s *Syncer) { s.store = st }
}

// New validates cfg, loads the catalog and wires every component.  An
// unreadable catalog or a store that cannot be constructed is an error here,
// before any candidate is touched.
func New(cfg config.Config, opts ...Option) (*Syncer, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "photosync.new", err)
	}

	s := &Syncer{cfg: cfg, logger: core.NopLogger(), metrics: hooks.NewInMemoryMetrics()}
	for _, o := range opts {
		o(s)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	s.catalog = cat
	s.logger.Info("catalog.loaded", "path", cfg.CatalogPath, "records", cat.Len())

	backend, closeBackend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	if closeBackend != nil {
		s.closers = append(s.closers, closeBackend)
	}
	var collector core.MetricsCollector = s.metrics
	if cfg.MetricsFile != "" {
		s.prom = hooks.NewPrometheusMetrics()
		collector = hooks.Tee(s.metrics, s.prom)
	}

	s.deriver = core.NewDeriver(backend)
	s.deriver.SetLogger(s.logger)
	s.deriver.SetMetrics(collector)
	s.deriver.AddHook(hooks.NewLoggingHook(s.logger))

	if s.store == nil && !cfg.DryRun {
		if s.store, err = NewStore(cfg); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.pipeline, err = ingest.New(cat, s.deriver, s.store, ingest.Options{
		CatalogPath:    cfg.CatalogPath,
		Targets:        core.CanonicalTargets(),
		Concurrency:    cfg.Concurrency,
		UploadTimeout:  cfg.UploadTimeout,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
		CleanupPartial: cfg.CleanupPartial,
		MaxImageBytes:  cfg.MaxImageBytes,
		DryRun:         cfg.DryRun,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.pipeline.SetLogger(s.logger)
	s.pipeline.SetMetrics(collector)
	s.pipeline.SetMetadataExtractor(exif.NewExtractor())

	s.logger.Debug("photosync.ready",
		"backend", backend.Name(),
		"store", cfg.Store,
		"dry_run", cfg.DryRun,
	)
	return s, nil
}

// NewStore builds the object store selected by cfg.Store.
func NewStore(cfg config.Config) (core.ObjectStore, error) {
	switch cfg.Store {
	case config.StoreS3:
		client, err := storage.NewS3Client(storage.S3Config{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		st, err := storage.NewS3(client, cfg.Bucket)
		if err != nil {
			return nil, apperrors.New(apperrors.CategoryConfig, "photosync.store", err)
		}
		return st, nil
	case config.StoreLocal:
		st, err := storage.NewLocal(cfg.LocalDir, 0)
		if err != nil {
			return nil, apperrors.New(apperrors.CategoryConfig, "photosync.store", err)
		}
		return st, nil
	default:
		return nil, apperrors.New(apperrors.CategoryConfig, "photosync.store",
			fmt.Errorf("unknown store %q", cfg.Store))
	}
}

// Run enumerates the source glob and runs one ingest pass.  The report is
// logged and returned even when err is non-nil.  When MetricsFile is set the
// textfile is rewritten after the pass; failing to write it is only logged.
func (s *Syncer) Run(ctx context.Context) (*ingest.Report, error) {
	paths, err := ingest.Candidates(s.cfg.SourceGlob)
	if err != nil {
		return nil, err
	}
	s.logger.Info("run.start", "glob", s.cfg.SourceGlob, "candidates", len(paths))

	report, err := s.pipeline.Run(ctx, paths)
	if report != nil {
		report.Log(s.logger)
	}
	if s.prom != nil {
		if werr := s.prom.WriteTextfile(s.cfg.MetricsFile); werr != nil {
			s.logger.Warn("metrics.write_failed", "path", s.cfg.MetricsFile, "error", werr.Error())
		}
	}
	return report, err
}

// Catalog returns the in-memory catalog.
func (s *Syncer) Catalog() *catalog.Catalog { return s.catalog }

// Metrics returns a snapshot of step timings, byte counts and outcomes.
func (s *Syncer) Metrics() hooks.MetricsSnapshot { return s.metrics.Snapshot() }

// Stats returns how many photos were derived and how many derivations failed.
func (s *Syncer) Stats() (derived, failed int64) {
	return s.deriver.DerivedCount(), s.deriver.ErrorCount()
}

// Close releases backend resources.  Safe to call more than once.
func (s *Syncer) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func stdlibBackend(cfg config.Config) core.Backend {
	b := pipeline.NewStdlib(pipeline.DefaultRegistry(cfg.Quality), core.EncodeOptions{Quality: cfg.Quality})
	if cfg.AutoRotate {
		b.SetOrientation(exif.NewExtractor())
	}
	return b
}
