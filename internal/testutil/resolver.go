package testutil

import (
	"sync"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/model"
)

// Resolution records one Resolve call.
type Resolution struct {
	Model    string
	Provider core.Provider
	Params   core.GenerationParams
}

// Resolver is a fake provider.Resolver mapping model ids to canned models.
// Unknown ids resolve to an echoing model.MockModel.
type Resolver struct {
	mu     sync.Mutex
	models map[string]model.Model
	errs   map[string]error
	calls  []Resolution
}

// NewResolver creates an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{models: map[string]model.Model{}, errs: map[string]error{}}
}

// With registers m for modelID (chainable).
func (r *Resolver) With(modelID string, m model.Model) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[modelID] = m
	return r
}

// Script registers a MockModel streaming tokens for modelID (chainable).
func (r *Resolver) Script(modelID string, tokens ...string) *Resolver {
	return r.With(modelID, model.NewMockModel(modelID, "test", func(o *model.MockOptions) { o.Tokens = tokens }))
}

// Fail makes resolving modelID return err (chainable).
func (r *Resolver) Fail(modelID string, err error) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[modelID] = err
	return r
}

// Resolve implements provider.Resolver.
func (r *Resolver) Resolve(modelID string, provider core.Provider, params core.GenerationParams) (model.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Resolution{Model: modelID, Provider: provider, Params: params})
	if err, ok := r.errs[modelID]; ok {
		return nil, err
	}
	if m, ok := r.models[modelID]; ok {
		return m, nil
	}
	return model.NewMockModel(modelID, string(provider)), nil
}

// Calls returns the recorded Resolve calls.
func (r *Resolver) Calls() []Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Resolution(nil), r.calls...)
}
