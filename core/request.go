package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Mode selects the interaction style of a simulation.
type Mode string

const (
	ModeDebate        Mode = "debate"
	ModeCollaboration Mode = "collaboration"
	ModeInteraction   Mode = "interaction"
	ModeCustom        Mode = "custom"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeDebate, ModeCollaboration, ModeInteraction, ModeCustom:
		return true
	}
	return false
}

// Provider tags the backend serving a model.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderOllama    Provider = "ollama"
)

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderOllama:
		return true
	}
	return false
}

// DebateSide is the position an actor argues in debate mode.
type DebateSide string

const (
	SideFor     DebateSide = "for"
	SideAgainst DebateSide = "against"
)

// Request bounds. Server deployments may apply stricter limits on top.
const (
	MinActors          = 2
	MaxActors          = 4
	MaxTurnLimit       = 40
	MaxNameLength      = 64
	MaxModelLength     = 128
	MaxPersonaLength   = 200
	MaxDutyLength      = 200
	MaxFrequencyTurns  = 20
	DefaultFrequency   = 2
	DefaultTurnLimit   = 10
	MaxTemperature     = 2.0
	DefaultModerator   = "Moderator"
	DefaultSynthesizer = "Synthesizer"
)

// GenerationParams are optional per-speaker model settings. Zero values mean
// "provider default".
type GenerationParams struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	ContextSize int      `json:"context_size,omitempty" yaml:"context_size,omitempty"`
}

func (g GenerationParams) validate(field string) error {
	if g.Temperature != nil && (*g.Temperature < 0 || *g.Temperature > MaxTemperature) {
		return invalid(field+".temperature", "must be between 0 and %.1f", MaxTemperature)
	}
	if g.MaxTokens < 0 {
		return invalid(field+".max_tokens", "must not be negative")
	}
	if g.ContextSize < 0 {
		return invalid(field+".context_size", "must not be negative")
	}
	return nil
}

// ActorConfig configures one conversational participant.
type ActorConfig struct {
	Name           string     `json:"name"`
	Model          string     `json:"model"`
	Provider       Provider   `json:"provider"`
	Persona        string     `json:"persona,omitempty"`
	SystemPrompt   string     `json:"system_prompt,omitempty"`
	DebateSide     DebateSide `json:"debate_side,omitempty"`
	Responsibility string     `json:"responsibility,omitempty"`
	GenerationParams
}

// FacilitatorConfig configures the optional moderator or synthesizer.
type FacilitatorConfig struct {
	Enabled        bool     `json:"enabled"`
	Name           string   `json:"name,omitempty"`
	Model          string   `json:"model,omitempty"`
	Provider       Provider `json:"provider,omitempty"`
	SystemPrompt   string   `json:"system_prompt,omitempty"`
	FrequencyTurns int      `json:"frequency_turns,omitempty"`
	GenerationParams
}

// Active reports whether the facilitator is enabled and has a model to call.
func (f FacilitatorConfig) Active() bool { return f.Enabled && f.Model != "" }

// Frequency returns FrequencyTurns or the default when unset.
func (f FacilitatorConfig) Frequency() int {
	if f.FrequencyTurns <= 0 {
		return DefaultFrequency
	}
	return f.FrequencyTurns
}

// DisplayName returns Name or the given fallback.
func (f FacilitatorConfig) DisplayName(fallback string) string {
	if n := strings.TrimSpace(f.Name); n != "" {
		return n
	}
	return fallback
}

func (f FacilitatorConfig) validate(field string) error {
	if !f.Enabled {
		return nil
	}
	if f.Model == "" {
		return invalid(field+".model", "is required when enabled")
	}
	if len(f.Model) > MaxModelLength {
		return invalid(field+".model", "must be at most %d characters", MaxModelLength)
	}
	if f.Provider != "" && !f.Provider.Valid() {
		return invalid(field+".provider", "unsupported provider %q", f.Provider)
	}
	if f.FrequencyTurns < 0 || f.FrequencyTurns > MaxFrequencyTurns {
		return invalid(field+".frequency_turns", "must be between 1 and %d", MaxFrequencyTurns)
	}
	if len(f.Name) > MaxNameLength {
		return invalid(field+".name", "must be at most %d characters", MaxNameLength)
	}
	return f.GenerationParams.validate(field)
}

// Request is the immutable description of a simulation supplied at creation.
type Request struct {
	Topic       string            `json:"topic"`
	Mode        Mode              `json:"mode"`
	Stage       string            `json:"stage"`
	TurnLimit   int               `json:"turn_limit"`
	Agents      []ActorConfig     `json:"agents"`
	Moderator   FacilitatorConfig `json:"moderator"`
	Synthesizer FacilitatorConfig `json:"synthesizer"`
}

// ActorTurnBudget is the total number of actor turns a run may execute.
func (r *Request) ActorTurnBudget() int { return r.TurnLimit * len(r.Agents) }

// Facilitator returns the facilitator configuration for role.
func (r *Request) Facilitator(role Role) (FacilitatorConfig, bool) {
	switch role {
	case RoleModerator:
		return r.Moderator, true
	case RoleSynthesizer:
		return r.Synthesizer, true
	}
	return FacilitatorConfig{}, false
}

// Validate checks structural constraints of the request. Server-configured
// caps (turn limit, actor count, text lengths) are enforced separately.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return invalid("topic", "is required")
	}
	if !r.Mode.Valid() {
		return invalid("mode", "unknown mode %q", r.Mode)
	}
	if r.TurnLimit < 1 || r.TurnLimit > MaxTurnLimit {
		return invalid("turn_limit", "must be between 1 and %d", MaxTurnLimit)
	}
	if len(r.Agents) < MinActors || len(r.Agents) > MaxActors {
		return invalid("agents", "must contain between %d and %d entries", MinActors, MaxActors)
	}

	seen := make(map[string]struct{}, len(r.Agents))
	for i, a := range r.Agents {
		field := fmt.Sprintf("agents[%d]", i)
		name := strings.TrimSpace(a.Name)
		if name == "" || len(a.Name) > MaxNameLength {
			return invalid(field+".name", "must be between 1 and %d characters", MaxNameLength)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return invalid("agents", "agent names must be unique")
		}
		seen[key] = struct{}{}
		if a.Model == "" || len(a.Model) > MaxModelLength {
			return invalid(field+".model", "must be between 1 and %d characters", MaxModelLength)
		}
		if !a.Provider.Valid() {
			return invalid(field+".provider", "unsupported provider %q", a.Provider)
		}
		if utf8.RuneCountInString(a.Persona) > MaxPersonaLength {
			return invalid(field+".persona", "must be at most %d characters", MaxPersonaLength)
		}
		if utf8.RuneCountInString(a.Responsibility) > MaxDutyLength {
			return invalid(field+".responsibility", "must be at most %d characters", MaxDutyLength)
		}
		if a.DebateSide != "" && a.DebateSide != SideFor && a.DebateSide != SideAgainst {
			return invalid(field+".debate_side", "must be %q or %q", SideFor, SideAgainst)
		}
		if err := a.GenerationParams.validate(field); err != nil {
			return err
		}
	}

	return errors.Join(
		r.Moderator.validate("moderator"),
		r.Synthesizer.validate("synthesizer"),
	)
}
