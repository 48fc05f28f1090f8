// Package hooks provides Hook, Logger and MetricsCollector implementations.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Skryldev/photosync/core"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

// With returns a logger that adds fields to every record.
func (s *SlogLogger) With(fields ...interface{}) *SlogLogger {
	return &SlogLogger{log: s.log.With(fields...)}
}

func (s *SlogLogger) Debug(msg string, fields ...interface{}) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...interface{})  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...interface{})  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...interface{}) { s.log.Error(msg, fields...) }

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each step at debug level, failures at warn.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStep(_ context.Context, stepName string, img *core.ImageData) {
	h.logger.Debug("step.start",
		"step", stepName,
		"format", img.Format,
		"width", img.Meta.Width,
		"height", img.Meta.Height,
	)
}

func (h *LoggingHook) AfterStep(_ context.Context, stepName string, img *core.ImageData, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("step.error",
			"step", stepName,
			"duration_ms", d.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	out := "nil"
	if img != nil {
		out = fmt.Sprintf("%dx%d %s %s", img.Meta.Width, img.Meta.Height, img.Format,
			humanize.Bytes(uint64(max(img.Meta.SizeBytes, 0))))
	}
	h.logger.Debug("step.done",
		"step", stepName,
		"duration_ms", d.Milliseconds(),
		"output", out,
	)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.Mutex

	stepDurationsMs map[string]int64 // cumulative ms per step
	stepCalls       map[string]int64 // call count per step
	errors          map[string]int64 // keyed "op/category"
	bytes           map[string]int64 // keyed by kind: "source", "uploaded"
	outcomes        map[string]int64 // keyed by terminal state
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		stepDurationsMs: make(map[string]int64),
		stepCalls:       make(map[string]int64),
		errors:          make(map[string]int64),
		bytes:           make(map[string]int64),
		outcomes:        make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordStepTime(stepName string, d time.Duration) {
	m.mu.Lock()
	m.stepDurationsMs[stepName] += d.Milliseconds()
	m.stepCalls[stepName]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordBytes(kind string, n int64) {
	m.mu.Lock()
	m.bytes[kind] += n
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordOutcome(state string) {
	m.mu.Lock()
	m.outcomes[state]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordError(op string, category string) {
	m.mu.Lock()
	m.errors[op+"/"+category]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		StepDurationsMs: copyMap(m.stepDurationsMs),
		StepCalls:       copyMap(m.stepCalls),
		Errors:          copyMap(m.errors),
		Bytes:           copyMap(m.bytes),
		Outcomes:        copyMap(m.outcomes),
	}
}

func copyMap(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	StepDurationsMs map[string]int64
	StepCalls       map[string]int64
	Errors          map[string]int64
	Bytes           map[string]int64
	Outcomes        map[string]int64
}

var (
	_ core.Logger           = (*SlogLogger)(nil)
	_ core.Hook             = (*LoggingHook)(nil)
	_ core.MetricsCollector = (*InMemoryMetrics)(nil)
)
