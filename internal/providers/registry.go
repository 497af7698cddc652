package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"vidforge/internal/services"
)

// Registry resolves model ids to specs and generators.
type Registry struct {
	mu         sync.RWMutex
	models     map[string]ModelSpec
	generators map[ProviderID]Generator
}

// NewRegistry returns a registry holding every built-in model. Generators
// are attached separately with SetGenerator.
func NewRegistry() *Registry {
	r := &Registry{
		models:     map[string]ModelSpec{},
		generators: map[ProviderID]Generator{},
	}
	for _, spec := range veoModels() {
		r.register(spec)
	}
	for _, spec := range klingModels() {
		r.register(spec)
	}
	return r
}

func (r *Registry) register(spec ModelSpec) {
	r.models[spec.ID()] = spec
}

// SetGenerator binds the client used for every model of provider.
func (r *Registry) SetGenerator(provider ProviderID, gen Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen == nil {
		delete(r.generators, provider)
		return
	}
	r.generators[provider] = gen
}

// GetModel returns the spec for id.
func (r *Registry) GetModel(id string) (ModelSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.models[strings.TrimSpace(id)]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "", "get model", fmt.Sprintf("model %q is not registered", id), nil)
	}
	return spec, nil
}

// Models returns every registered spec ordered by id.
func (r *Registry) Models() []ModelSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelSpec, 0, len(r.models))
	for _, spec := range r.models {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ValidateConfig merges user over the model defaults and validates the
// result. A modelId in user must name the requested model. Failures are
// *services.ValidationError; unsupported capabilities additionally match
// services.ErrIncompatible.
func (r *Registry) ValidateConfig(id string, user map[string]any) (ModelConfig, error) {
	spec, err := r.GetModel(id)
	if err != nil {
		return nil, err
	}
	return spec.decode(merge(spec.Defaults(), user))
}

// CheckCompatibility verifies that the model can produce the requested
// aspect ratio and clip length. A zero duration means the model default.
func (r *Registry) CheckCompatibility(id, aspectRatio string, durationSeconds int) error {
	spec, err := r.GetModel(id)
	if err != nil {
		return err
	}
	verr := &services.ValidationError{Subject: spec.ID()}
	caps := spec.Capabilities()
	if aspectRatio != "" && !caps.SupportsAspectRatio(aspectRatio) {
		verr.AddIncompatible("aspectRatio", aspectRatio+" is not supported (supported: "+strings.Join(caps.AspectRatios, ", ")+")")
	}
	checkDuration(caps, durationSeconds, verr)
	return verr.Err()
}

// Generator returns the client for the model's provider.
func (r *Registry) Generator(id string) (Generator, error) {
	spec, err := r.GetModel(id)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	gen, ok := r.generators[spec.Provider()]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "", "resolve generator", fmt.Sprintf("provider %s is not configured", spec.Provider()), nil)
	}
	return gen, nil
}

// Configured reports whether a generator is bound for provider.
func (r *Registry) Configured(provider ProviderID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.generators[provider]
	return ok
}
