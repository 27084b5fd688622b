// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/colloquy/model"
)

// DefaultMaxTokens is used when no output limit is configured. The Messages
// API requires one.
const DefaultMaxTokens = 1024

// Options configures the Anthropic model adapter (model id, temperature,
// max tokens, API key).
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client
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

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:     string(anthropic.ModelClaude3_5Sonnet20241022),
		MaxTokens: DefaultMaxTokens,
	}
}

// Generate streams a reply from the Messages API.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		messages := buildMessages(req.Messages)
		if len(messages) == 0 {
			errCh <- model.ErrNoMessages
			return
		}

		maxTokens := m.opts.MaxTokens
		if maxTokens <= 0 {
			maxTokens = DefaultMaxTokens
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(m.opts.Model),
			Messages:  messages,
			MaxTokens: maxTokens,
		}
		if m.opts.Temperature != nil {
			params.Temperature = anthropic.Float(*m.opts.Temperature)
		}
		if system := req.System(); system != "" {
			params.System = []anthropic.TextBlockParam{{Text: system}}
		}

		stream := m.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		var (
			text       strings.Builder
			stopReason string
		)
		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
				if !ok || delta.Text == "" {
					continue
				}
				text.WriteString(delta.Text)
				select {
				case out <- model.Response{Partial: true, Text: delta.Text}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			case anthropic.MessageDeltaEvent:
				if ev.Delta.StopReason != "" {
					stopReason = string(ev.Delta.StopReason)
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("anthropic streaming error: %w", err)
			return
		}

		select {
		case out <- model.Response{Text: text.String(), FinishReason: stopReason}:
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()

	return out, errCh
}

// buildMessages converts the context into Anthropic message params. System
// messages travel separately; consecutive messages of one role are merged
// because the API requires alternation.
func buildMessages(msgs []model.Message) []anthropic.MessageParam {
	var (
		messages []anthropic.MessageParam
		lastRole model.MessageRole
		buf      []string
	)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		block := anthropic.NewTextBlock(strings.Join(buf, "\n"))
		if lastRole == model.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
		buf = nil
	}

	for _, msg := range msgs {
		if msg.Role == model.RoleSystem || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		role := msg.Role
		if role != model.RoleAssistant {
			role = model.RoleUser
		}
		if role != lastRole {
			flush()
			lastRole = role
		}
		buf = append(buf, msg.Content)
	}
	flush()

	return messages
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.opts.Model,
		Provider: "anthropic",
	}
}
