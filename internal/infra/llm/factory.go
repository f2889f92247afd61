package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/DARIONZITA/backend-professorIA/internal/infra/config"
)

// Known provider names accepted in GENERATION_PROVIDERS / PROVIDERS_FILE.
const (
	ProviderGroq      = "groq"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Stack is the set of providers built from configuration.
type Stack struct {
	Chain *Chain
	// Vision is the multimodal OCR provider, nil when none is configured.
	Vision MultimodalProvider
}

// NewStackFromConfig builds the generation chain and the multimodal provider.
// Unknown names are an error; known providers without credentials are still
// registered so the chain reports them as unavailable.
func NewStackFromConfig(cfg config.Config, logger *zap.Logger) (*Stack, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	specs, err := cfg.Providers()
	if err != nil {
		return nil, err
	}

	gemini := NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiOCRModel)
	descriptors := make([]Descriptor, 0, len(specs)+1)
	for _, spec := range specs {
		if !spec.Enabled {
			continue
		}
		var p LLMProvider
		switch spec.Name {
		case ProviderGroq:
			p = NewOpenAIProvider(ProviderGroq, cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel, nil)
		case ProviderGemini:
			p = gemini
		case ProviderAnthropic:
			p = NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel, "", nil)
		case ProviderOllama:
			p = NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaChatModel, cfg.OllamaEnabled)
		default:
			return nil, fmt.Errorf("llm: unknown generation provider %q", spec.Name)
		}
		descriptors = append(descriptors, Descriptor{
			Name:       spec.Name,
			Rank:       spec.Rank,
			Capability: CapabilityTextGeneration,
			Provider:   WithRateLimit(p, cfg.GenerationRateLimit),
		})
	}
	descriptors = append(descriptors, Descriptor{
		Name:       ProviderGemini + "-vision",
		Capability: CapabilityMultimodalOCR,
		Provider:   gemini,
	})

	stack := &Stack{Chain: NewChain(logger, descriptors...)}
	if cfg.OCRBackend != config.OCRBackendJobs {
		stack.Vision = gemini
	}

	logger.Info("generation chain configured",
		zap.Int("providers", len(descriptors)-1),
		zap.Bool("text_available", stack.Chain.Available()),
		zap.Bool("vision_available", gemini.Available()),
	)
	return stack, nil
}
