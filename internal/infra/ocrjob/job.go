// Package ocrjob drives an asynchronous OCR job on a remote endpoint:
// upload → start → poll until a terminal state or the deadline.
//
// Job state is owned by one SubmitAndAwait call and forgotten when it returns.
// A timed-out job may keep running remotely; nothing waits on it.
package ocrjob

import (
	"errors"
	"fmt"
	"strings"
)

// State is the lifecycle of one remote job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether polling can stop.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// ParseRemoteState maps the endpoint's status vocabulary onto State.
// Unknown values count as running: only the deadline ends an unrecognised job.
func ParseRemoteState(raw string) State {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "complete", "succeeded", "success", "done":
		return StateSucceeded
	case "failed", "failure", "error", "cancelled", "canceled":
		return StateFailed
	case "queued", "pending", "waiting", "submitted":
		return StateQueued
	default:
		return StateRunning
	}
}

// Snapshot is one observation of a job returned by Backend.Status.
type Snapshot struct {
	State    State
	Stage    string  // remote pipeline stage, informational
	Progress float64 // 0..1 or 0..100 depending on the endpoint, informational
	Text     string  // set when State is StateSucceeded
	Error    string  // remote error text when State is StateFailed
}

// Result is a completed transcription.
type Result struct {
	JobID string
	Text  string
	Polls int
}

// ─── errors ──────────────────────────────────────────────────────────────────

var (
	// ErrUploadFailed: the endpoint rejected the upload or the job start.
	ErrUploadFailed = errors.New("ocr job: upload failed")
	// ErrJobFailed: the job reached a failed state; the remote error is in *Error.Reason.
	ErrJobFailed = errors.New("ocr job: job failed")
	// ErrJobTimeout: the deadline passed before a terminal state was observed.
	ErrJobTimeout = errors.New("ocr job: deadline exceeded")
)

// Stage names where a job call stopped.
type Stage string

const (
	StageUpload Stage = "upload"
	StageStart  Stage = "start"
	StagePoll   Stage = "poll"
)

// Error describes a failed SubmitAndAwait. It matches exactly one of
// ErrUploadFailed, ErrJobFailed, ErrJobTimeout, plus the underlying cause.
type Error struct {
	Kind   error
	Stage  Stage
	JobID  string // empty before the job was started
	Reason string // remote error text for ErrJobFailed
	Cause  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	fmt.Fprintf(&sb, " (stage=%s", e.Stage)
	if e.JobID != "" {
		fmt.Fprintf(&sb, ", job=%s", e.JobID)
	}
	sb.WriteString(")")
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	} else if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}
