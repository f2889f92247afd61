package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/DARIONZITA/backend-professorIA/internal/infra/llm"
)

// ProviderLister exposes the registered providers. *llm.Chain implements it.
type ProviderLister interface {
	Descriptors() []llm.Descriptor
	Available() bool
}

// ProviderHandler reports the generation chain status.
type ProviderHandler struct {
	chain  ProviderLister
	engine func() string
}

// NewProviderHandler creates a ProviderHandler. engine reports the
// transcription engine currently selected and may be nil.
func NewProviderHandler(chain ProviderLister, engine func() string) *ProviderHandler {
	return &ProviderHandler{chain: chain, engine: engine}
}

type providerStatus struct {
	Name       string         `json:"name"`
	Rank       int            `json:"rank"`
	Capability llm.Capability `json:"capability"`
	Model      string         `json:"model"`
	Available  bool           `json:"available"`

	// Healthy and Error are set only for ?probe=true.
	Healthy *bool  `json:"healthy,omitempty"`
	Error   string `json:"error,omitempty"`
}

const probeTimeout = 5 * time.Second

type providersResponse struct {
	Providers           []providerStatus `json:"providers"`
	GenerationAvailable bool             `json:"generation_available"`
	TranscriptionEngine string           `json:"transcription_engine"`
}

// ListProviders handles GET /api/v1/providers?probe=
// With probe=true every available provider is health checked.
func (h *ProviderHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	probe := parseBool(r, "probe")
	resp := providersResponse{Providers: make([]providerStatus, 0)}
	if h.chain != nil {
		for _, d := range h.chain.Descriptors() {
			st := providerStatus{
				Name:       d.Name,
				Rank:       d.Rank,
				Capability: d.Capability,
				Model:      d.Provider.ModelInfo().ID,
				Available:  d.Provider.Available(),
			}
			if probe && st.Available {
				ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
				err := d.Provider.HealthCheck(ctx)
				cancel()
				healthy := err == nil
				st.Healthy = &healthy
				if err != nil {
					st.Error = err.Error()
				}
			}
			resp.Providers = append(resp.Providers, st)
		}
		resp.GenerationAvailable = h.chain.Available()
	}
	if h.engine != nil {
		resp.TranscriptionEngine = h.engine()
	}
	writeJSON(w, http.StatusOK, resp)
}
