package ocrjob

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Backend is the remote OCR endpoint.
type Backend interface {
	// Upload stores the image and returns a reference usable by Start.
	Upload(ctx context.Context, data []byte, filename string) (string, error)
	// Start launches a job for an uploaded reference and returns its id.
	Start(ctx context.Context, ref, language string) (string, error)
	// Status reads the current job state.
	Status(ctx context.Context, jobID string) (Snapshot, error)
}

// Config tunes one Client.
type Config struct {
	PollInterval time.Duration
	Deadline     time.Duration
	Language     string
}

// DefaultConfig matches the remote endpoint's typical job duration.
func DefaultConfig() Config {
	return Config{PollInterval: 5 * time.Second, Deadline: 15 * time.Minute, Language: "English"}
}

// Client runs jobs against a Backend.
type Client struct {
	backend Backend
	cfg     Config
	logger  *zap.Logger
}

// NewClient creates a Client. Zero durations fall back to DefaultConfig values.
func NewClient(backend Backend, cfg Config, logger *zap.Logger) *Client {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = def.Deadline
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{backend: backend, cfg: cfg, logger: logger.Named("ocrjob")}
}

// SubmitAndAwait uploads data, starts a job and polls it until it succeeds,
// fails or the configured deadline passes.
//
// Cancelling ctx does not stop a transcription; only the deadline does.
// Values (request id, trace) still flow from ctx.
func (c *Client) SubmitAndAwait(ctx context.Context, data []byte, filename string) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Deadline)
	defer cancel()

	started := time.Now()
	ref, err := c.backend.Upload(ctx, data, filename)
	if err != nil {
		return nil, c.fail(ctx, StageUpload, "", err)
	}

	jobID, err := c.backend.Start(ctx, ref, c.cfg.Language)
	if err != nil {
		return nil, c.fail(ctx, StageStart, "", err)
	}
	log := c.logger.With(zap.String("job_id", jobID))
	log.Info("ocr job started", zap.String("ref", ref), zap.Int("bytes", len(data)))

	res, err := c.await(ctx, log, jobID)
	if err != nil {
		log.Warn("ocr job ended without result", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return nil, err
	}
	log.Info("ocr job succeeded", zap.Int("polls", res.Polls), zap.Duration("elapsed", time.Since(started)))
	return res, nil
}

// await polls immediately, then once per interval. The ticker wait is the
// only suspension point besides the status round trips.
func (c *Client) await(ctx context.Context, log *zap.Logger, jobID string) (*Result, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	state := StateQueued
	for polls := 1; ; polls++ {
		snap, err := c.backend.Status(ctx, jobID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, c.timeout(jobID, state, ctx.Err())
		case err != nil:
			// transient; the next tick retries until the deadline
			log.Warn("ocr job status poll failed", zap.Int("poll", polls), zap.Error(err))
		default:
			if snap.State != state {
				log.Debug("ocr job state changed",
					zap.String("from", string(state)),
					zap.String("to", string(snap.State)),
					zap.String("stage", snap.Stage),
					zap.Float64("progress", snap.Progress),
				)
				state = snap.State
			}
			switch snap.State {
			case StateSucceeded:
				return &Result{JobID: jobID, Text: snap.Text, Polls: polls}, nil
			case StateFailed:
				reason := snap.Error
				if reason == "" {
					reason = "remote job reported failure without a message"
				}
				return nil, &Error{Kind: ErrJobFailed, Stage: StagePoll, JobID: jobID, Reason: reason}
			}
		}

		select {
		case <-ctx.Done():
			return nil, c.timeout(jobID, state, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) timeout(jobID string, last State, cause error) error {
	return &Error{
		Kind:   ErrJobTimeout,
		Stage:  StagePoll,
		JobID:  jobID,
		Reason: "no terminal status within " + c.cfg.Deadline.String() + " (last state " + string(last) + ")",
		Cause:  cause,
	}
}

// fail classifies an upload/start error. Running out of time during those
// stages is still a timeout, not a rejection.
func (c *Client) fail(ctx context.Context, stage Stage, jobID string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: ErrJobTimeout, Stage: stage, JobID: jobID, Cause: err}
	}
	return &Error{Kind: ErrUploadFailed, Stage: stage, JobID: jobID, Cause: err}
}
