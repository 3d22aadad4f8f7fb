package provider

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
	"mediaforge/internal/infra"
)

// Registry maps job kinds to their configured adapters. It is built once at
// startup from explicit configuration; there is no package-level provider
// state.
type Registry struct {
	adapters map[domain.JobKind]Adapter
}

// NewRegistry wires one adapter per configured job kind.
func NewRegistry(cfgs map[domain.JobKind]infra.ProviderConfig, httpClient *http.Client, logger zerolog.Logger) *Registry {
	adapters := make(map[domain.JobKind]Adapter, len(cfgs))
	for kind, cfg := range cfgs {
		opts := Options{
			Name:       cfg.Name,
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			HTTPClient: httpClient,
			Logger:     logger,
		}
		switch kind {
		case domain.JobKindImage:
			adapters[kind] = NewFlux(opts)
		case domain.JobKindVideo, domain.JobKindCompositeSegment:
			adapters[kind] = NewVeo(opts)
		case domain.JobKindAudio:
			adapters[kind] = NewAria(opts)
		case domain.JobKindThreeD:
			adapters[kind] = NewMeshy(opts)
		case domain.JobKindTextTransform:
			adapters[kind] = NewGemini(opts)
		default:
			logger.Warn().Str("kind", string(kind)).Msg("provider: no adapter for configured kind")
		}
	}
	return &Registry{adapters: adapters}
}

// ForKind returns the adapter serving the given job kind.
func (r *Registry) ForKind(kind domain.JobKind) (Adapter, error) {
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("no provider configured for kind %q", kind)
	}
	return adapter, nil
}

// Kinds lists the kinds the registry can serve.
func (r *Registry) Kinds() []domain.JobKind {
	kinds := make([]domain.JobKind, 0, len(r.adapters))
	for kind := range r.adapters {
		kinds = append(kinds, kind)
	}
	return kinds
}

// WithFirstFrame returns spec with the chained segment's bound input artifact
// injected as the first frame. The rest of the spec passes through untouched.
func WithFirstFrame(spec []byte, artifactRef string) ([]byte, error) {
	payload := map[string]any{}
	if len(spec) > 0 {
		if err := json.Unmarshal(spec, &payload); err != nil {
			return nil, fmt.Errorf("decode segment spec: %w", err)
		}
	}
	payload["first_frame"] = artifactRef
	return json.Marshal(payload)
}

func newResult(artifacts []string, lastArtifact string, meta map[string]string) *domain.Result {
	return &domain.Result{
		Artifacts:    artifacts,
		LastArtifact: lastArtifact,
		ProviderMeta: meta,
	}
}
