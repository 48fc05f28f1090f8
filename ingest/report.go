package ingest

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Skryldev/photosync/catalog"
	"github.com/Skryldev/photosync/core"
	apperrors "github.com/Skryldev/photosync/errors"
)

// State is the position of one candidate in the ingest state machine:
//
//	Discovered → Fingerprinted → Skipped
//	                           → Deriving → Uploading → Ingesting → Ingested
//	any non-terminal state     → Failed
type State string

const (
	StateDiscovered    State = "discovered"
	StateFingerprinted State = "fingerprinted"
	StateSkipped       State = "skipped"
	StateDeriving      State = "deriving"
	StateUploading     State = "uploading"
	StateIngesting     State = "ingesting"
	StateIngested      State = "ingested"
	StateFailed        State = "failed"
)

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s == StateSkipped || s == StateIngested || s == StateFailed
}

// Outcome is what happened to one candidate file.
type Outcome struct {
	Path  string
	Hash  string
	State State

	// Reason explains a skip, e.g. "in catalog".
	Reason string
	// Stage is the state the candidate was in when it failed.
	Stage State
	Err   error

	SourceBytes   int64
	Uploaded      []string // object names, in upload order
	UploadedBytes int64

	// Record is set once the candidate reaches Ingesting.
	Record *catalog.Record

	// raw holds the source bytes from the fingerprint pass until the
	// candidate is derived or skipped.
	raw []byte
}

func (o *Outcome) fail(stage State, err error) {
	o.raw = nil
	o.Stage = stage
	o.State = StateFailed
	o.Err = err
}

// Report summarises one run.  Outcomes are in candidate order.
type Report struct {
	Started  time.Time
	Duration time.Duration
	DryRun   bool
	Outcomes []Outcome
}

// Count returns how many candidates ended in state s.
func (r *Report) Count(s State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}

// Failures returns the failed outcomes.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.State == StateFailed {
			out = append(out, o)
		}
	}
	return out
}

// UploadedBytes is the total size of every object written.
func (r *Report) UploadedBytes() int64 {
	var n int64
	for _, o := range r.Outcomes {
		n += o.UploadedBytes
	}
	return n
}

// Log writes one line per failure and a summary line.
func (r *Report) Log(l core.Logger) {
	for _, o := range r.Failures() {
		l.Warn("candidate.failed",
			"path", o.Path,
			"hash", o.Hash,
			"stage", o.Stage,
			"category", apperrors.CategoryOf(o.Err),
			"error", o.Err,
		)
	}
	l.Info("run.done",
		"candidates", len(r.Outcomes),
		"ingested", r.Count(StateIngested),
		"skipped", r.Count(StateSkipped),
		"failed", r.Count(StateFailed),
		"uploaded", humanize.Bytes(uint64(r.UploadedBytes())),
		"dry_run", r.DryRun,
		"duration", r.Duration.Round(time.Millisecond),
	)
}
