// Package config provides application-wide configuration loaded from env vars.
// All fields have safe defaults so the binary runs locally without any env setup:
// with no credentials the generation chain is empty and every analysis uses the
// heuristic path.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OCR backend selection values.
const (
	OCRBackendAuto       = "auto"       // multimodal when a vision provider is available, else jobs
	OCRBackendMultimodal = "multimodal" // multimodal only
	OCRBackendJobs       = "jobs"       // remote job endpoint only
)

// Cache backend values.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds runtime configuration for the Professor IA backend.
type Config struct {
	// HTTP / storage / logging
	HTTPHost     string // HTTP_HOST: default: "0.0.0.0"
	HTTPPort     int    // HTTP_PORT: default: 8080
	DatabasePath string // DATABASE_PATH: default: "./data/professor.db"
	LogMode      string // LOG_MODE: "production" | "development" (default)

	// OCR
	OCRBackend      string        // OCR_BACKEND: default: "auto"
	OCRSpaceURL     string        // OCR_SPACE_URL: remote job endpoint
	OCRLanguage     string        // OCR_LANGUAGE: default: "English"
	OCRPollInterval time.Duration // OCR_POLL_INTERVAL: default: 5s
	OCRJobDeadline  time.Duration // OCR_JOB_DEADLINE: default: 15m

	// Grouping cache
	GroupingCacheTTL time.Duration // GROUPING_CACHE_TTL: default: 120s (bare integers are seconds)
	CacheBackend     string        // CACHE_BACKEND: "memory" (default) | "redis"
	RedisAddr        string        // REDIS_ADDR: default: "localhost:6379"
	RedisPassword    string        // REDIS_PASSWORD
	RedisDB          int           // REDIS_DB: default: 0

	// Generation chain
	GenerationProviders []string // GENERATION_PROVIDERS: default: "groq,gemini,anthropic,ollama"
	GenerationRateLimit float64  // GENERATION_RATE_LIMIT: requests/second per provider, 0 = unlimited
	ProvidersFile       string   // PROVIDERS_FILE: optional YAML overriding rank/enabled

	GroqAPIKey      string // API_GROQ
	GroqModel       string // GROQ_MODEL: default: "gemma2-9b-it"
	GroqBaseURL     string // API_GROQ_URL: default: "https://api.groq.com/openai/v1"
	GeminiAPIKey    string // GEMINI_API_KEY
	GeminiModel     string // GEMINI_MODEL: default: "gemini-1.5-flash-latest"
	GeminiOCRModel  string // GEMINI_OCR_MODEL: default: "gemini-2.5-flash"
	AnthropicAPIKey string // ANTHROPIC_API_KEY
	AnthropicModel  string // ANTHROPIC_MODEL: default: "claude-3-5-haiku-latest"
	OllamaEnabled   bool   // OLLAMA_ENABLED: default: false
	OllamaBaseURL   string // OLLAMA_BASE_URL: default: "http://localhost:11434"
	OllamaChatModel string // OLLAMA_CHAT_MODEL: default: "llama3.2:3b"
}

const (
	envKeyHTTPHost            = "HTTP_HOST"
	envKeyHTTPPort            = "HTTP_PORT"
	envKeyDatabasePath        = "DATABASE_PATH"
	envKeyLogMode             = "LOG_MODE"
	envKeyOCRBackend          = "OCR_BACKEND"
	envKeyOCRSpaceURL         = "OCR_SPACE_URL"
	envKeyOCRLanguage         = "OCR_LANGUAGE"
	envKeyOCRPollInterval     = "OCR_POLL_INTERVAL"
	envKeyOCRJobDeadline      = "OCR_JOB_DEADLINE"
	envKeyGroupingCacheTTL    = "GROUPING_CACHE_TTL"
	envKeyCacheBackend        = "CACHE_BACKEND"
	envKeyRedisAddr           = "REDIS_ADDR"
	envKeyRedisPassword       = "REDIS_PASSWORD"
	envKeyRedisDB             = "REDIS_DB"
	envKeyGenerationProviders = "GENERATION_PROVIDERS"
	envKeyGenerationRateLimit = "GENERATION_RATE_LIMIT"
	envKeyProvidersFile       = "PROVIDERS_FILE"
	envKeyGroqAPIKey          = "API_GROQ"
	envKeyGroqModel           = "GROQ_MODEL"
	envKeyGroqBaseURL         = "API_GROQ_URL"
	envKeyGeminiAPIKey        = "GEMINI_API_KEY"
	envKeyGeminiModel         = "GEMINI_MODEL"
	envKeyGeminiOCRModel      = "GEMINI_OCR_MODEL"
	envKeyAnthropicAPIKey     = "ANTHROPIC_API_KEY"
	envKeyAnthropicModel      = "ANTHROPIC_MODEL"
	envKeyOllamaEnabled       = "OLLAMA_ENABLED"
	envKeyOllamaBaseURL       = "OLLAMA_BASE_URL"
	envKeyOllamaChatModel     = "OLLAMA_CHAT_MODEL"
)

var defaults = map[string]any{
	envKeyHTTPHost:            "0.0.0.0",
	envKeyHTTPPort:            8080,
	envKeyDatabasePath:        "./data/professor.db",
	envKeyLogMode:             "development",
	envKeyOCRBackend:          OCRBackendAuto,
	envKeyOCRSpaceURL:         "https://dnzita-professorIa.hf.space",
	envKeyOCRLanguage:         "English",
	envKeyOCRPollInterval:     "5s",
	envKeyOCRJobDeadline:      "15m",
	envKeyGroupingCacheTTL:    "120",
	envKeyCacheBackend:        CacheBackendMemory,
	envKeyRedisAddr:           "localhost:6379",
	envKeyRedisPassword:       "",
	envKeyRedisDB:             0,
	envKeyGenerationProviders: "groq,gemini,anthropic,ollama",
	envKeyGenerationRateLimit: 0.0,
	envKeyProvidersFile:       "",
	envKeyGroqAPIKey:          "",
	envKeyGroqModel:           "gemma2-9b-it",
	envKeyGroqBaseURL:         "https://api.groq.com/openai/v1",
	envKeyGeminiAPIKey:        "",
	envKeyGeminiModel:         "gemini-1.5-flash-latest",
	envKeyGeminiOCRModel:      "gemini-2.5-flash",
	envKeyAnthropicAPIKey:     "",
	envKeyAnthropicModel:      "claude-3-5-haiku-latest",
	envKeyOllamaEnabled:       false,
	envKeyOllamaBaseURL:       "http://localhost:11434",
	envKeyOllamaChatModel:     "llama3.2:3b",
}

// Load reads configuration from environment variables, applying defaults for missing values.
// An empty variable counts as unset.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	return Config{
		HTTPHost:     v.GetString(envKeyHTTPHost),
		HTTPPort:     v.GetInt(envKeyHTTPPort),
		DatabasePath: v.GetString(envKeyDatabasePath),
		LogMode:      v.GetString(envKeyLogMode),

		OCRBackend:      strings.ToLower(v.GetString(envKeyOCRBackend)),
		OCRSpaceURL:     strings.TrimRight(v.GetString(envKeyOCRSpaceURL), "/"),
		OCRLanguage:     v.GetString(envKeyOCRLanguage),
		OCRPollInterval: durationOr(v.GetString(envKeyOCRPollInterval), 5*time.Second),
		OCRJobDeadline:  durationOr(v.GetString(envKeyOCRJobDeadline), 15*time.Minute),

		GroupingCacheTTL: durationOr(v.GetString(envKeyGroupingCacheTTL), 120*time.Second),
		CacheBackend:     strings.ToLower(v.GetString(envKeyCacheBackend)),
		RedisAddr:        v.GetString(envKeyRedisAddr),
		RedisPassword:    v.GetString(envKeyRedisPassword),
		RedisDB:          v.GetInt(envKeyRedisDB),

		GenerationProviders: splitList(v.GetString(envKeyGenerationProviders)),
		GenerationRateLimit: v.GetFloat64(envKeyGenerationRateLimit),
		ProvidersFile:       v.GetString(envKeyProvidersFile),

		GroqAPIKey:      v.GetString(envKeyGroqAPIKey),
		GroqModel:       v.GetString(envKeyGroqModel),
		GroqBaseURL:     v.GetString(envKeyGroqBaseURL),
		GeminiAPIKey:    v.GetString(envKeyGeminiAPIKey),
		GeminiModel:     v.GetString(envKeyGeminiModel),
		GeminiOCRModel:  v.GetString(envKeyGeminiOCRModel),
		AnthropicAPIKey: v.GetString(envKeyAnthropicAPIKey),
		AnthropicModel:  v.GetString(envKeyAnthropicModel),
		OllamaEnabled:   v.GetBool(envKeyOllamaEnabled),
		OllamaBaseURL:   v.GetString(envKeyOllamaBaseURL),
		OllamaChatModel: v.GetString(envKeyOllamaChatModel),
	}
}

// ─── provider declaration ───────────────────────────────────────────────────

// ProviderSpec declares one generation provider's position in the chain.
type ProviderSpec struct {
	Name    string `yaml:"name"`
	Rank    int    `yaml:"rank"`
	Enabled bool   `yaml:"enabled"`
}

type providersFile struct {
	Providers []ProviderSpec `yaml:"providers"`
}

// Providers returns the generation chain declaration. GENERATION_PROVIDERS sets
// the base order (rank = position); PROVIDERS_FILE entries override rank and
// enabled per name and may add providers.
func (c Config) Providers() ([]ProviderSpec, error) {
	specs := make([]ProviderSpec, 0, len(c.GenerationProviders))
	index := map[string]int{}
	for i, name := range c.GenerationProviders {
		index[name] = len(specs)
		specs = append(specs, ProviderSpec{Name: name, Rank: i + 1, Enabled: true})
	}
	if c.ProvidersFile == "" {
		return specs, nil
	}

	data, err := os.ReadFile(c.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("config: read providers file: %w", err)
	}
	var pf providersFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("config: parse providers file %q: %w", c.ProvidersFile, err)
	}
	for _, p := range pf.Providers {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return nil, fmt.Errorf("config: providers file %q: entry without name", c.ProvidersFile)
		}
		p.Name = name
		if i, ok := index[name]; ok {
			specs[i] = p
			continue
		}
		index[name] = len(specs)
		specs = append(specs, p)
	}
	return specs, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// durationOr parses "90s"/"15m" style values; bare integers are seconds.
func durationOr(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n <= 0 {
			return fallback
		}
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
