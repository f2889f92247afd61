// Tests for config.Load, provider declaration and helpers.
// No t.Parallel(): env vars are process-global and not thread-safe.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for k := range defaults {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.HTTPHost != "0.0.0.0" || cfg.HTTPPort != 8080 {
		t.Errorf("unexpected listener %s:%d", cfg.HTTPHost, cfg.HTTPPort)
	}
	if cfg.OCRBackend != OCRBackendAuto {
		t.Errorf("expected OCRBackend 'auto', got %q", cfg.OCRBackend)
	}
	if cfg.OCRSpaceURL != "https://dnzita-professorIa.hf.space" {
		t.Errorf("unexpected OCRSpaceURL %q", cfg.OCRSpaceURL)
	}
	if cfg.OCRPollInterval != 5*time.Second {
		t.Errorf("expected OCRPollInterval 5s, got %v", cfg.OCRPollInterval)
	}
	if cfg.OCRJobDeadline != 15*time.Minute {
		t.Errorf("expected OCRJobDeadline 15m, got %v", cfg.OCRJobDeadline)
	}
	if cfg.GroupingCacheTTL != 120*time.Second {
		t.Errorf("expected GroupingCacheTTL 120s, got %v", cfg.GroupingCacheTTL)
	}
	if cfg.CacheBackend != CacheBackendMemory {
		t.Errorf("expected memory cache backend, got %q", cfg.CacheBackend)
	}
	want := []string{"groq", "gemini", "anthropic", "ollama"}
	if len(cfg.GenerationProviders) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.GenerationProviders)
	}
	for i := range want {
		if cfg.GenerationProviders[i] != want[i] {
			t.Errorf("provider %d: expected %q, got %q", i, want[i], cfg.GenerationProviders[i])
		}
	}
	if cfg.GroqModel != "gemma2-9b-it" || cfg.GeminiModel != "gemini-1.5-flash-latest" || cfg.GeminiOCRModel != "gemini-2.5-flash" {
		t.Errorf("unexpected model defaults: %+v", cfg)
	}
	if cfg.GroqAPIKey != "" || cfg.GeminiAPIKey != "" || cfg.AnthropicAPIKey != "" {
		t.Error("credentials must default to empty")
	}
	if cfg.OllamaEnabled {
		t.Error("ollama must be disabled by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("OCR_BACKEND", "JOBS")
	t.Setenv("OCR_SPACE_URL", "http://ocr.internal/")
	t.Setenv("OCR_POLL_INTERVAL", "250ms")
	t.Setenv("OCR_JOB_DEADLINE", "2m")
	t.Setenv("GROUPING_CACHE_TTL", "30")
	t.Setenv("GENERATION_PROVIDERS", " Gemini , groq ,, ")
	t.Setenv("GENERATION_RATE_LIMIT", "2.5")
	t.Setenv("API_GROQ", "gsk")
	t.Setenv("OLLAMA_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()

	if cfg.HTTPPort != 9090 {
		t.Errorf("expected HTTPPort 9090, got %d", cfg.HTTPPort)
	}
	if cfg.OCRBackend != OCRBackendJobs {
		t.Errorf("expected OCRBackend 'jobs', got %q", cfg.OCRBackend)
	}
	if cfg.OCRSpaceURL != "http://ocr.internal" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.OCRSpaceURL)
	}
	if cfg.OCRPollInterval != 250*time.Millisecond || cfg.OCRJobDeadline != 2*time.Minute {
		t.Errorf("unexpected OCR timings %v / %v", cfg.OCRPollInterval, cfg.OCRJobDeadline)
	}
	if cfg.GroupingCacheTTL != 30*time.Second {
		t.Errorf("bare integer TTL should be seconds, got %v", cfg.GroupingCacheTTL)
	}
	if len(cfg.GenerationProviders) != 2 || cfg.GenerationProviders[0] != "gemini" || cfg.GenerationProviders[1] != "groq" {
		t.Errorf("unexpected providers %v", cfg.GenerationProviders)
	}
	if cfg.GenerationRateLimit != 2.5 {
		t.Errorf("expected rate limit 2.5, got %v", cfg.GenerationRateLimit)
	}
	if cfg.GroqAPIKey != "gsk" || !cfg.OllamaEnabled || cfg.RedisDB != 3 {
		t.Errorf("unexpected overrides: %+v", cfg)
	}
}

func TestConfig_Providers_FromList(t *testing.T) {
	cfg := Config{GenerationProviders: []string{"groq", "gemini"}}

	specs, err := cfg.Providers()
	if err != nil {
		t.Fatalf("Providers() error = %v", err)
	}
	if len(specs) != 2 || specs[0] != (ProviderSpec{Name: "groq", Rank: 1, Enabled: true}) || specs[1].Rank != 2 {
		t.Errorf("unexpected specs %+v", specs)
	}
}

func TestConfig_Providers_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `providers:
  - name: Groq
    rank: 10
    enabled: false
  - name: ollama
    rank: 0
    enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := Config{GenerationProviders: []string{"groq", "gemini"}, ProvidersFile: path}

	specs, err := cfg.Providers()
	if err != nil {
		t.Fatalf("Providers() error = %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %+v", specs)
	}
	if specs[0] != (ProviderSpec{Name: "groq", Rank: 10, Enabled: false}) {
		t.Errorf("groq not overridden: %+v", specs[0])
	}
	if specs[2] != (ProviderSpec{Name: "ollama", Rank: 0, Enabled: true}) {
		t.Errorf("ollama not appended: %+v", specs[2])
	}
}

func TestConfig_Providers_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte("providers: [: oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := (Config{ProvidersFile: path}).Providers(); err == nil {
		t.Error("expected parse error")
	}
	if _, err := (Config{ProvidersFile: filepath.Join(t.TempDir(), "missing.yaml")}).Providers(); err == nil {
		t.Error("expected read error")
	}
}

func TestDurationOr(t *testing.T) {
	cases := map[string]time.Duration{
		"":      time.Minute,
		"45":    45 * time.Second,
		"1h":    time.Hour,
		"0":     time.Minute,
		"-5s":   time.Minute,
		"bogus": time.Minute,
	}
	for raw, want := range cases {
		if got := durationOr(raw, time.Minute); got != want {
			t.Errorf("durationOr(%q) = %v; want %v", raw, got, want)
		}
	}
}
