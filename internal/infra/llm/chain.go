package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrNoProviderAvailable is matched by the error Chain.Generate returns when
// every text provider was unavailable or failed.
var ErrNoProviderAvailable = errors.New("llm: no generation provider available")

// ErrEmptyCompletion is recorded for a provider that answered with no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Descriptor registers a provider in a Chain.
// Rank orders the chain ascending; equal ranks keep declaration order.
type Descriptor struct {
	Name       string
	Rank       int
	Capability Capability
	Provider   LLMProvider
}

// Attempt records what happened to one descriptor during Generate.
type Attempt struct {
	Provider string
	Skipped  bool // availability predicate was false
	Err      error
}

// Generation is a successful chain call.
type Generation struct {
	Content  string
	Provider string
	Tokens   int
	Attempts []Attempt
}

// ExhaustedError lists every attempt of a chain call that produced nothing.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrNoProviderAvailable.Error() + ": no providers registered"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Skipped {
			parts = append(parts, a.Provider+": unavailable")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return ErrNoProviderAvailable.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() error { return ErrNoProviderAvailable }

// Chain tries text providers one at a time in rank order and escalates only on failure.
// It never dispatches to two providers concurrently for the same call.
type Chain struct {
	descriptors []Descriptor
	logger      *zap.Logger
}

// NewChain sorts descriptors by rank. Descriptors without a provider are dropped.
func NewChain(logger *zap.Logger, descriptors ...Descriptor) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	ds := make([]Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Provider == nil {
			continue
		}
		if d.Capability == "" {
			d.Capability = CapabilityTextGeneration
		}
		if d.Name == "" {
			d.Name = d.Provider.ModelInfo().Provider
		}
		ds = append(ds, d)
	}
	sort.SliceStable(ds, func(i, j int) bool { return ds[i].Rank < ds[j].Rank })
	return &Chain{descriptors: ds, logger: logger}
}

// Descriptors returns the registered descriptors in chain order.
func (c *Chain) Descriptors() []Descriptor {
	out := make([]Descriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Available reports whether at least one text provider is available.
func (c *Chain) Available() bool {
	for _, d := range c.descriptors {
		if d.Capability == CapabilityTextGeneration && d.Provider.Available() {
			return true
		}
	}
	return false
}

// Generate returns the first non-empty completion in rank order.
func (c *Chain) Generate(ctx context.Context, req ChatRequest) (*Generation, error) {
	attempts := make([]Attempt, 0, len(c.descriptors))
	for _, d := range c.descriptors {
		if d.Capability != CapabilityTextGeneration {
			continue
		}
		if !d.Provider.Available() {
			attempts = append(attempts, Attempt{Provider: d.Name, Skipped: true})
			continue
		}
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Provider: d.Name, Err: err})
			break
		}

		resp, err := d.Provider.ChatCompletion(ctx, req)
		if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
			err = ErrEmptyCompletion
		}
		if err != nil {
			c.logger.Warn("generation provider failed, escalating",
				zap.String("provider", d.Name),
				zap.Int("rank", d.Rank),
				zap.Error(err),
			)
			attempts = append(attempts, Attempt{Provider: d.Name, Err: err})
			continue
		}

		attempts = append(attempts, Attempt{Provider: d.Name})
		return &Generation{
			Content:  resp.Content,
			Provider: d.Name,
			Tokens:   resp.Tokens,
			Attempts: attempts,
		}, nil
	}
	return nil, &ExhaustedError{Attempts: attempts}
}
