// Package llm defines the model-agnostic provider abstraction.
// All types here are shared between the provider interfaces, the chain and adapters.
package llm

// Message represents a single turn in a conversation (role + content).
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// ChatRequest is the input for a non-streaming chat completion.
type ChatRequest struct {
	// Model overrides the provider default when non-empty.
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	// JSONMode asks the provider for a JSON-only answer when it supports one.
	JSONMode bool
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Content    string // The assistant message text.
	StopReason string // "stop" | "length" | "error"
	Tokens     int    // Total tokens consumed (prompt + completion).
}

// Image is a binary image handed to a multimodal provider.
type Image struct {
	Data     []byte
	MIMEType string // e.g. "image/jpeg"
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID        string // e.g. "gemma2-9b-it", "gemini-2.5-flash"
	Provider  string // e.g. "groq", "gemini"
	Version   string
	MaxTokens int // Maximum context window size.
}

// Capability is what a registered provider is used for.
type Capability string

const (
	CapabilityTextGeneration Capability = "text-generation"
	CapabilityMultimodalOCR  Capability = "multimodal-ocr"
)

// Role constants used when building prompts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
