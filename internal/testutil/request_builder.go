package testutil

import (
	"github.com/hupe1980/colloquy/core"
)

// RequestBuilder helps construct simulation requests with fluent chaining.
// Example:
//
//	req := NewRequestBuilder("Is tea better than coffee?").Agent("Ann", "m1").Agent("Bob", "m2").Build()
type RequestBuilder struct {
	req core.Request
}

// NewRequestBuilder creates a debate request on topic with one turn per actor.
func NewRequestBuilder(topic string) *RequestBuilder {
	return &RequestBuilder{req: core.Request{Topic: topic, Mode: core.ModeDebate, TurnLimit: 1}}
}

// Mode sets the interaction mode (chainable).
func (b *RequestBuilder) Mode(m core.Mode) *RequestBuilder { b.req.Mode = m; return b }

// Stage sets the free-text setting (chainable).
func (b *RequestBuilder) Stage(s string) *RequestBuilder { b.req.Stage = s; return b }

// Turns sets the per-actor turn limit (chainable).
func (b *RequestBuilder) Turns(n int) *RequestBuilder { b.req.TurnLimit = n; return b }

// Agent appends an OpenAI backed actor (chainable).
func (b *RequestBuilder) Agent(name, modelID string) *RequestBuilder {
	b.req.Agents = append(b.req.Agents, core.ActorConfig{Name: name, Model: modelID, Provider: core.ProviderOpenAI})
	return b
}

// Actor appends a fully specified actor (chainable).
func (b *RequestBuilder) Actor(a core.ActorConfig) *RequestBuilder {
	b.req.Agents = append(b.req.Agents, a)
	return b
}

// Moderator enables the moderator (chainable).
func (b *RequestBuilder) Moderator(modelID string, frequency int) *RequestBuilder {
	b.req.Moderator = core.FacilitatorConfig{Enabled: true, Model: modelID, Provider: core.ProviderOpenAI, FrequencyTurns: frequency}
	return b
}

// Synthesizer enables the synthesizer (chainable).
func (b *RequestBuilder) Synthesizer(modelID string, frequency int) *RequestBuilder {
	b.req.Synthesizer = core.FacilitatorConfig{Enabled: true, Model: modelID, Provider: core.ProviderOpenAI, FrequencyTurns: frequency}
	return b
}

// Build returns the request.
func (b *RequestBuilder) Build() *core.Request {
	req := b.req
	req.Agents = append([]core.ActorConfig(nil), b.req.Agents...)
	return &req
}
