package config

import (
	"errors"
	"fmt"
	"time"
)

// StoreBackend selects the object store adapter.
type StoreBackend string

const (
	StoreS3    StoreBackend = "s3"
	StoreLocal StoreBackend = "local"
)

// CodecBackend selects the decode/resize/encode implementation.
type CodecBackend string

const (
	CodecStdlib CodecBackend = "stdlib"
	CodecVips   CodecBackend = "vips" // requires the vips build tag
)

// Config is the top-level configuration struct.  Start from Default() and
// override only what you need.
type Config struct {
	// Inputs and outputs.
	SourceGlob  string // candidate files, e.g. "images/photos/*"
	CatalogPath string // YAML catalog, e.g. "_data/photos.yml"
	Bucket      string

	// Candidate fan-out; 1 reproduces strictly sequential processing.
	Concurrency int // default: runtime.NumCPU()

	// Upload behaviour.
	UploadTimeout  time.Duration // per put call; 0 = no timeout
	MaxRetries     int           // retries for retryable upload errors
	RetryDelay     time.Duration
	CleanupPartial bool // delete already-uploaded variants when a later one fails

	// Encoding.
	Quality       int   // 1-100, shared by the JPEG and WebP encoders
	MaxImageBytes int64 // 0 = no limit on source file size
	Backend       CodecBackend
	AutoRotate    bool // apply the EXIF orientation before resizing

	// Storage.
	Store    StoreBackend
	LocalDir string // root for StoreLocal
	S3       S3Config

	DryRun      bool
	LogLevel    string // "debug", "info", "warn", "error"
	MetricsFile string // Prometheus textfile written after each run; "" = off
}

// S3Config configures the S3-compatible object store.
type S3Config struct {
	Endpoint        string // e.g. an R2 or MinIO URL
	Region          string // default "auto"
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Default returns a Config populated with the defaults the publisher's blog
// layout expects.
func Default() Config {
	return Config{
		SourceGlob:    "images/photos/*",
		CatalogPath:   "_data/photos.yml",
		Bucket:        "blog-photos",
		Concurrency:   0, // resolved at runtime to NumCPU
		UploadTimeout: 2 * time.Minute,
		MaxRetries:    2,
		RetryDelay:    500 * time.Millisecond,
		Quality:       85,
		Backend:       CodecStdlib,
		AutoRotate:    true,
		Store:         StoreS3,
		LocalDir:      "_site/photos",
		S3: S3Config{
			Region: "auto",
		},
		LogLevel: "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	var errs []error
	if c.SourceGlob == "" {
		errs = append(errs, errors.New("config: SourceGlob must be set"))
	}
	if c.CatalogPath == "" {
		errs = append(errs, errors.New("config: CatalogPath must be set"))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, errors.New("config: Quality must be between 1 and 100"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, errors.New("config: Concurrency must not be negative"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("config: MaxRetries must not be negative"))
	}
	switch c.Backend {
	case CodecStdlib, CodecVips:
	default:
		errs = append(errs, fmt.Errorf("config: unknown Backend %q", c.Backend))
	}

	// Dry runs never touch the store, so its settings are not required.
	if !c.DryRun {
		switch c.Store {
		case StoreS3:
			if c.Bucket == "" {
				errs = append(errs, errors.New("config: Bucket must be set"))
			}
			if c.S3.Endpoint == "" {
				errs = append(errs, errors.New("config: S3.Endpoint must be set (S3_ENDPOINT)"))
			}
			if c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "" {
				errs = append(errs, errors.New("config: S3 credentials must be set (S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY)"))
			}
		case StoreLocal:
			if c.LocalDir == "" {
				errs = append(errs, errors.New("config: LocalDir must be set for the local store"))
			}
		default:
			errs = append(errs, fmt.Errorf("config: unknown Store %q", c.Store))
		}
	}
	return errors.Join(errs...)
}
