package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MessageRole is the conversational role of a context message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry of the ordered message context.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Request captures the normalized model input.
type Request struct {
	Messages []Message `json:"messages"`
}

// System returns the concatenated system messages.
func (r Request) System() string {
	var parts []string
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model. Partial
// chunks carry one text delta; the final chunk carries the whole text.
type Response struct {
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the minimal interface required to drive one speaking turn.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoMessages is returned when a request carries no messages.
var ErrNoMessages = errors.New("no messages provided")

// MockOptions configures a MockModel.
type MockOptions struct {
	// Tokens are streamed in order. When empty the reply echoes the last message.
	Tokens []string
	// Delay is slept before each token.
	Delay time.Duration
	// FailAfter makes the stream fail with Err after that many tokens. A
	// negative value disables failure.
	FailAfter int
	Err       error
}

// MockModel is a scripted in-memory Model useful for tests & examples. It
// records every request it receives.
type MockModel struct {
	info Info
	opts MockOptions

	mu       sync.Mutex
	requests []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string, optFns ...func(o *MockOptions)) *MockModel {
	opts := MockOptions{FailAfter: -1}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FailAfter >= 0 && opts.Err == nil {
		opts.Err = errors.New("mock stream failure")
	}
	return &MockModel{info: Info{Name: name, Provider: provider}, opts: opts}
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model; emits one partial per token then a final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- ErrNoMessages
			return
		}

		tokens := m.opts.Tokens
		if len(tokens) == 0 {
			last := req.Messages[len(req.Messages)-1]
			tokens = []string{fmt.Sprintf("Mock response to: %s", last.Content)}
		}

		var full strings.Builder
		for i, tok := range tokens {
			if i == m.opts.FailAfter {
				errCh <- m.opts.Err
				return
			}
			if m.opts.Delay > 0 {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case <-time.After(m.opts.Delay):
				}
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- Response{Partial: true, Text: tok}:
			}
			full.WriteString(tok)
		}
		if m.opts.FailAfter >= len(tokens) {
			errCh <- m.opts.Err
			return
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Text: full.String(), FinishReason: "stop"}:
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
