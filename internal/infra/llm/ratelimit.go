package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedProvider paces calls to a wrapped provider with a token bucket.
type rateLimitedProvider struct {
	LLMProvider
	limiter *rate.Limiter
}

// WithRateLimit wraps p so ChatCompletion waits for a token first.
// rps <= 0 returns p unchanged.
func WithRateLimit(p LLMProvider, rps float64) LLMProvider {
	if rps <= 0 {
		return p
	}
	return &rateLimitedProvider{LLMProvider: p, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (r *rateLimitedProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limit wait: %w", r.ModelInfo().Provider, err)
	}
	return r.LLMProvider.ChatCompletion(ctx, req)
}
