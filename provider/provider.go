// Package provider turns a (model, provider, generation parameters) triple
// into a ready model.Model. Missing credentials and unknown providers are
// reported as *core.ConfigError and never fall back to another provider.
package provider

import (
	"strings"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/logging"
	"github.com/hupe1980/colloquy/model"
	"github.com/hupe1980/colloquy/model/anthropic"
	"github.com/hupe1980/colloquy/model/openai"
)

const (
	// GoogleBaseURL is Gemini's OpenAI compatible endpoint.
	GoogleBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	// DefaultOllamaBaseURL points at a local Ollama server.
	DefaultOllamaBaseURL = "http://localhost:11434/v1/"
)

// Resolver builds the model handle for one speaker.
type Resolver interface {
	Resolve(modelID string, provider core.Provider, params core.GenerationParams) (model.Model, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(modelID string, provider core.Provider, params core.GenerationParams) (model.Model, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(modelID string, provider core.Provider, params core.GenerationParams) (model.Model, error) {
	return f(modelID, provider, params)
}

// Options holds provider credentials and endpoints.
type Options struct {
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	GoogleAPIKey    string
	OllamaBaseURL   string
	Logger          logging.Logger
}

// Factory is the default Resolver backed by the vendor SDK adapters.
type Factory struct {
	opts Options
}

var _ Resolver = (*Factory)(nil)

// NewFactory creates a Factory.
func NewFactory(optFns ...func(o *Options)) *Factory {
	opts := Options{
		OllamaBaseURL: DefaultOllamaBaseURL,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.OllamaBaseURL == "" {
		opts.OllamaBaseURL = DefaultOllamaBaseURL
	}
	return &Factory{opts: opts}
}

// Resolve implements Resolver. An empty provider means OpenAI.
func (f *Factory) Resolve(modelID string, provider core.Provider, params core.GenerationParams) (model.Model, error) {
	if strings.TrimSpace(modelID) == "" {
		return nil, core.NewConfigError("No model configured.")
	}
	if provider == "" {
		provider = core.ProviderOpenAI
	}

	switch provider {
	case core.ProviderOpenAI:
		if f.opts.OpenAIAPIKey == "" {
			return nil, core.NewConfigError("OpenAI API key is not configured on the server.")
		}
		return f.openAICompatible(modelID, provider, params, f.opts.OpenAIAPIKey, f.opts.OpenAIBaseURL, false), nil

	case core.ProviderGoogle:
		if f.opts.GoogleAPIKey == "" {
			return nil, core.NewConfigError("Google API key is not configured on the server.")
		}
		return f.openAICompatible(modelID, provider, params, f.opts.GoogleAPIKey, GoogleBaseURL, true), nil

	case core.ProviderOllama:
		// Ollama ignores the key but the client insists on one.
		return f.openAICompatible(modelID, provider, params, "ollama", f.opts.OllamaBaseURL, true), nil

	case core.ProviderAnthropic:
		if f.opts.AnthropicAPIKey == "" {
			return nil, core.NewConfigError("Anthropic API key is not configured on the server.")
		}
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = modelID
			o.APIKey = f.opts.AnthropicAPIKey
			o.Temperature = params.Temperature
			if params.MaxTokens > 0 {
				o.MaxTokens = int64(params.MaxTokens)
			}
		}), nil
	}

	return nil, core.NewConfigError("Unsupported provider: %s", provider)
}

func (f *Factory) openAICompatible(modelID string, provider core.Provider, params core.GenerationParams, key, baseURL string, legacy bool) model.Model {
	f.opts.Logger.Debug("building chat model", "provider", string(provider), "model", modelID)
	return openai.NewModel(func(o *openai.Options) {
		o.Model = modelID
		o.Provider = string(provider)
		o.APIKey = key
		o.BaseURL = baseURL
		o.Temperature = params.Temperature
		o.MaxCompletionTokens = int64(params.MaxTokens)
		o.LegacyMaxTokens = legacy
		if provider == core.ProviderOllama {
			o.ContextSize = params.ContextSize
		}
	})
}
