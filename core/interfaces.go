package core

import (
	"context"
	"io"
	"time"
)

// Decoder converts raw bytes into an in-memory ImageData.
// Implementations live in adapters/decoder/.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader) (*ImageData, error)
	CanDecode(format Format) bool
}

// Encoder serialises an ImageData to bytes in a target format.
// Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, img *ImageData, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// Registry maps Format values to Decoder/Encoder implementations.
type Registry interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
}

// Backend supplies the step chains a Deriver runs: one chain that decodes the
// source and one chain per target that resizes and encodes it.
type Backend interface {
	Name() string
	DecodeSteps() []Step
	VariantSteps(t Target) []Step
}

// ObjectStore uploads named byte buffers.  Put must be idempotent per name:
// writing the same name twice overwrites without other side effects.
// Implementations live in adapters/storage/.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Delete(ctx context.Context, name string) error
}

// MetadataExtractor reads the capture timestamp from raw image bytes.  A
// missing timestamp is reported with ok == false and is not an error.
type MetadataExtractor interface {
	CaptureTime(raw []byte) (t time.Time, ok bool)
}

// OrientationReader reads the EXIF orientation (1-8) from raw image bytes.
// 0 means the tag is absent.
type OrientationReader interface {
	Orientation(raw []byte) int
}

// MetricsCollector receives observations from the deriver and the ingest run.
type MetricsCollector interface {
	RecordStepTime(stepName string, d time.Duration)
	RecordBytes(kind string, n int64)
	RecordOutcome(state string)
	RecordError(op string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }
