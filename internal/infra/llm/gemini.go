// Package llm: Gemini REST adapter.
// GeminiProvider covers both capabilities: text generation for the chain and
// the multimodal OCR fast path (image + instruction in one generateContent call).
// Endpoints used:
//   - POST {base}/models/{model}:generateContent?key=…
//   - GET  {base}/models?key=… : health check
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider implements LLMProvider and MultimodalProvider against the Gemini REST API.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	model      string // text generation
	ocrModel   string // multimodal transcription
	httpClient *http.Client
}

// GeminiOption customises a GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithGeminiBaseURL points the provider at another endpoint (tests, proxies).
func WithGeminiBaseURL(u string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithGeminiHTTPClient replaces the default client.
func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.httpClient = c }
}

// NewGeminiProvider creates a GeminiProvider. An empty apiKey makes it unavailable.
func NewGeminiProvider(apiKey, model, ocrModel string, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:     apiKey,
		baseURL:    defaultGeminiBaseURL,
		model:      model,
		ocrModel:   ocrModel,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	if p.ocrModel == "" {
		p.ocrModel = p.model
	}
	return p
}

// ─── internal Gemini JSON types ──────────────────────────────────────────────

type geminiBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      *float32 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsage struct {
	TotalTokenCount int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata geminiUsage       `json:"usageMetadata"`
}

// ─── LLMProvider implementation ─────────────────────────────────────────────

// ChatCompletion maps system messages to systemInstruction and the assistant
// role to Gemini's "model" role.
func (p *GeminiProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body := geminiRequest{GenerationConfig: buildGeminiConfig(req)}
	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			body.Contents = append(body.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			body.Contents = append(body.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
	}

	res, err := p.generate(ctx, model, body)
	if err != nil {
		return nil, err
	}
	return &ChatResponse{
		Content:    res.text(),
		StopReason: strings.ToLower(res.Candidates[0].FinishReason),
		Tokens:     res.UsageMetadata.TotalTokenCount,
	}, nil
}

// Transcribe sends the image inline with the instruction and returns the text answer.
func (p *GeminiProvider) Transcribe(ctx context.Context, img Image, instruction string) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("gemini transcribe: empty image")
	}
	mime := img.MIMEType
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}
	body := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: instruction},
				{InlineData: &geminiBlob{MIMEType: mime, Data: base64.StdEncoding.EncodeToString(img.Data)}},
			},
		}},
	}
	res, err := p.generate(ctx, p.ocrModel, body)
	if err != nil {
		return "", fmt.Errorf("gemini transcribe: %w", err)
	}
	return strings.TrimSpace(res.text()), nil
}

func buildGeminiConfig(req ChatRequest) *geminiGenerationConfig {
	cfg := &geminiGenerationConfig{MaxOutputTokens: req.MaxTokens}
	if req.Temperature != 0 {
		t := req.Temperature
		cfg.Temperature = &t
	}
	if req.JSONMode {
		cfg.ResponseMimeType = mimeJSON
	}
	if cfg.Temperature == nil && cfg.MaxOutputTokens == 0 && cfg.ResponseMimeType == "" {
		return nil
	}
	return cfg
}

// ModelInfo returns static metadata for this provider/model.
func (p *GeminiProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: "gemini", Version: "v1beta", MaxTokens: 1_048_576}
}

// Available reports whether an API key is configured.
func (p *GeminiProvider) Available() bool { return p.apiKey != "" }

// HealthCheck lists models; any 200 means the key and endpoint work.
func (p *GeminiProvider) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/models?key=%s", p.baseURL, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("gemini healthcheck: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini healthcheck: %s", p.redact(err.Error()))
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (r *geminiResponse) text() string {
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func (p *GeminiProvider) generate(ctx context.Context, model string, body geminiRequest) (*geminiResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %s", p.redact(err.Error()))
	}
	req.Header.Set(headerContentType, mimeJSON)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the full URL, key included
		return nil, fmt.Errorf("gemini: %s", p.redact(err.Error()))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, p.redact(strings.TrimSpace(string(msg))))
	}

	var res geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(res.Candidates) == 0 || len(res.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: no content returned")
	}
	return &res, nil
}

func (p *GeminiProvider) redact(s string) string {
	if p.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, p.apiKey, "REDACTED")
}
