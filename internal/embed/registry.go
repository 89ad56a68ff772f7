package embed

import "github.com/prism-search/prism/internal/perr"

// Registry maps a schema's model_id to the concrete Provider that
// serves it.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a Registry from a model_id -> Provider mapping.
func NewRegistry(providers map[string]Provider) *Registry {
	return &Registry{providers: providers}
}

// Get resolves modelID to its configured Provider.
func (r *Registry) Get(modelID string) (Provider, error) {
	p, ok := r.providers[modelID]
	if !ok {
		return nil, perr.Configuration("embed.unknown_model", "unknown embedding model_id: "+modelID)
	}
	return p, nil
}
