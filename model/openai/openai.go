// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions streaming API. The same adapter serves any endpoint that
// speaks the Chat Completions protocol, such as Google Gemini's OpenAI
// compatible surface or a local Ollama server.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/colloquy/model"
)

// Options configure the OpenAI model adapter. Zero values leave the
// corresponding request parameter unset so the server default applies.
type Options struct {
	Model               string
	Temperature         *float64
	MaxCompletionTokens int64
	// LegacyMaxTokens sends the output limit as max_tokens, for endpoints
	// that predate max_completion_tokens.
	LegacyMaxTokens bool
	// ContextSize is forwarded as options.num_ctx, understood by Ollama.
	ContextSize int
	// Provider is reported by Info.
	Provider string
	APIKey   string
	BaseURL  string
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:    openai.ChatModelGPT4oMini,
		Provider: "openai",
	}
}

// Generate streams a completion for req as partial text deltas followed by a
// final response holding the whole text.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- model.ErrNoMessages
			return
		}
		m.handleStreaming(ctx, m.buildParams(req), out, errCh)
	}()
	return out, errCh
}

func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case model.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages: buildMessages(req),
		Model:    m.opts.Model,
	}
	if m.opts.Temperature != nil {
		params.Temperature = openai.Float(*m.opts.Temperature)
	}
	if n := m.opts.MaxCompletionTokens; n > 0 {
		if m.opts.LegacyMaxTokens {
			params.MaxTokens = openai.Int(n)
		} else {
			params.MaxCompletionTokens = openai.Int(n)
		}
	}
	return params
}

func (m *Model) requestOptions() []option.RequestOption {
	if m.opts.ContextSize <= 0 {
		return nil
	}
	return []option.RequestOption{option.WithJSONSet("options.num_ctx", m.opts.ContextSize)}
}

// handleStreaming processes streaming responses and forwards partial / final events.
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params, m.requestOptions()...)
	defer stream.Close()

	var (
		textBuilder  strings.Builder
		finishReason string
		usage        *model.TokenUsage
	)
	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				textBuilder.WriteString(ch.Delta.Content)
				select {
				case out <- model.Response{Partial: true, Text: ch.Delta.Content}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
			if ch.FinishReason != "" {
				finishReason = ch.FinishReason
			}
		}
		if ck.Usage.TotalTokens > 0 {
			usage = &model.TokenUsage{
				PromptTokens:     int(ck.Usage.PromptTokens),
				CompletionTokens: int(ck.Usage.CompletionTokens),
				TotalTokens:      int(ck.Usage.TotalTokens),
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("%s streaming error: %w", m.opts.Provider, err)
		return
	}

	select {
	case out <- model.Response{Text: textBuilder.String(), FinishReason: finishReason, Usage: usage}:
	case <-ctx.Done():
		errCh <- ctx.Err()
	}
}

// Info returns metadata describing this model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.opts.Model,
		Provider: m.opts.Provider,
	}
}
