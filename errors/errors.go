// Package errors defines the categorised error type shared by every photosync
// component.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and exit codes.
type Category string

const (
	// CategoryCatalogFormat marks a catalog file that exists but cannot be parsed.
	// Fatal: the run aborts before any candidate is touched.
	CategoryCatalogFormat Category = "catalog_format"
	// CategoryDecode marks a source photo that is not a decodable raster image.
	CategoryDecode Category = "decode"
	CategoryEncode Category = "encode"
	// CategoryUpload marks a failed put/delete against the object store.
	CategoryUpload Category = "upload"
	// CategoryIO marks local filesystem failures (catalog write, source read).
	CategoryIO       Category = "io"
	CategoryPipeline Category = "pipeline"
	CategoryConfig   Category = "config"
	CategoryInput    Category = "input"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category  Category
	Op        string // operation name
	Err       error
	Retryable bool
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a non-retryable ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Transient creates a retryable ProcessingError in the given category.
func Transient(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.  A nil err yields nil.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.  The outermost
// ProcessingError in the chain decides.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// CategoryOf returns the category of the outermost ProcessingError in err's
// chain, or "" when there is none.
func CategoryOf(err error) Category {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrEmptyInput        = errors.New("empty input")
	ErrImageTooLarge     = errors.New("image exceeds size limit")
	ErrDuplicateHash     = errors.New("content hash already in catalog")
	ErrStoreUnavailable  = errors.New("object store unavailable")
)
