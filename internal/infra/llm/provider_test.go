// Compile-time interface satisfaction checks; no HTTP calls are made.
package llm

import "testing"

func TestProviders_ImplementLLMProvider(t *testing.T) {
	t.Parallel()

	var _ LLMProvider = &OllamaProvider{}
	var _ LLMProvider = &GeminiProvider{}
	var _ LLMProvider = &OpenAIProvider{}
	var _ LLMProvider = &AnthropicProvider{}
	var _ LLMProvider = &rateLimitedProvider{}
}

func TestGeminiProvider_ImplementsMultimodalProvider(t *testing.T) {
	t.Parallel()

	var _ MultimodalProvider = &GeminiProvider{}
}
