package llm

import "context"

// LLMProvider is the model-agnostic interface for text generation.
// Adapters (Groq/OpenAI, Gemini, Anthropic, Ollama) implement it so the
// application is never coupled to a specific vendor.
type LLMProvider interface {
	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta

	// Available reports whether the provider is configured (typically: a
	// credential is present). It must not perform network I/O.
	Available() bool

	// HealthCheck returns nil if the provider is reachable and operational.
	HealthCheck(ctx context.Context) error
}

// MultimodalProvider transcribes an image in a single synchronous round trip.
type MultimodalProvider interface {
	Transcribe(ctx context.Context, img Image, instruction string) (string, error)
	ModelInfo() ModelMeta
	Available() bool
}
