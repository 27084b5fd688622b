package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/logging"
	"github.com/hupe1980/colloquy/model"
	"github.com/hupe1980/colloquy/prompt"
	"github.com/hupe1980/colloquy/provider"
	"github.com/hupe1980/colloquy/session"
)

// TurnSpec describes one speaking turn.
type TurnSpec struct {
	Role     core.Role
	Name     string
	Model    string
	Provider core.Provider
	// SystemPrompt overrides the configured prompt text when non-empty.
	SystemPrompt string
	Params       core.GenerationParams
	AgentID      int
	Turn         int
}

// TurnError reports a failed turn. By the time it is returned the failure has
// already been published to subscribers.
type TurnError struct {
	Role core.Role
	Name string
	Turn int
	Err  error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s %q turn %d: %v", e.Role, e.Name, e.Turn, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Logger    logging.Logger
	Callbacks *CallbackManager
}

// Executor runs single speaking turns.
type Executor struct {
	resolver  provider.Resolver
	logger    logging.Logger
	callbacks *CallbackManager
}

// NewExecutor creates an Executor resolving models through resolver.
func NewExecutor(resolver provider.Resolver, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		Logger:    logging.NoOpLogger{},
		Callbacks: NewCallbackManager(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{resolver: resolver, logger: opts.Logger, callbacks: opts.Callbacks}
}

// ExecuteTurn runs one turn of spec against st and appends the resulting
// message to transcript. It reports whether a facilitator asked to end the
// run. A turn abandoned because st was cancelled returns (false, nil) and
// writes nothing.
func (x *Executor) ExecuteTurn(st *session.State, spec TurnSpec, transcript *core.Transcript) (bool, error) {
	ctx := st.Context()
	cbCtx := &CallbackContext{SimulationID: st.ID(), Turn: spec}
	started := time.Now()

	m, err := x.resolver.Resolve(spec.Model, spec.Provider, spec.Params)
	if err != nil {
		return false, x.fail(ctx, cbCtx, started, err)
	}
	if err := x.callbacks.ExecuteCallbacks(ctx, CallbackBeforeTurn, cbCtx); err != nil {
		return false, x.fail(ctx, cbCtx, started, err)
	}

	speaker := prompt.Speaker{Role: spec.Role, Name: spec.Name, AgentID: spec.AgentID, Override: spec.SystemPrompt}
	msgs := BuildMessages(st.Request(), speaker, transcript.Messages())

	st.Publish(core.NewTypingEvent(spec.Name, spec.Turn))

	out, errCh := m.Generate(ctx, model.Request{Messages: msgs})

	var (
		content  strings.Builder
		final    string
		partials int
	)
	for resp := range out {
		if st.IsCancelled() {
			return false, x.cancelled(ctx, cbCtx, started, partials)
		}
		if !resp.Partial {
			final = resp.Text
			continue
		}
		if resp.Text == "" {
			continue
		}
		partials++
		content.WriteString(resp.Text)
		st.Publish(core.NewTokenEvent(spec.Name, spec.Turn, resp.Text, spec.Role, spec.AgentID))
	}
	if err := <-errCh; err != nil {
		if st.IsCancelled() || errors.Is(err, context.Canceled) {
			return false, x.cancelled(ctx, cbCtx, started, partials)
		}
		return false, x.fail(ctx, cbCtx, started, err)
	}
	if st.IsCancelled() {
		return false, x.cancelled(ctx, cbCtx, started, partials)
	}

	full := content.String()
	if partials == 0 {
		full = final
	}
	full = strings.TrimSpace(full)

	terminate := false
	finalContent := full
	if spec.Role.IsFacilitator() {
		terminate, finalContent = prompt.ParseTermination(full)
	}
	finalContent = prompt.StripSpeakerPrefix(finalContent, spec.Name)

	msg := core.TranscriptMessage{
		Role:    spec.Role,
		Name:    spec.Name,
		Content: finalContent,
		Turn:    spec.Turn,
		Model:   spec.Model,
		AgentID: spec.AgentID,
	}
	transcript.Append(msg)
	st.Publish(core.NewMessageEvent(msg))

	cbCtx.Message = &msg
	cbCtx.Terminate = terminate
	cbCtx.Tokens = partials
	cbCtx.Duration = time.Since(started)
	if err := x.callbacks.ExecuteCallbacks(ctx, CallbackAfterTurn, cbCtx); err != nil {
		x.logger.Warn("after_turn callback failed", "simulation_id", st.ID(), "error", err)
	}

	return terminate, nil
}

func (x *Executor) cancelled(ctx context.Context, cbCtx *CallbackContext, started time.Time, tokens int) error {
	cbCtx.Cancelled = true
	cbCtx.Tokens = tokens
	cbCtx.Duration = time.Since(started)
	if err := x.callbacks.ExecuteCallbacks(ctx, CallbackAfterTurn, cbCtx); err != nil {
		x.logger.Warn("after_turn callback failed", "simulation_id", cbCtx.SimulationID, "error", err)
	}
	return nil
}

func (x *Executor) fail(ctx context.Context, cbCtx *CallbackContext, started time.Time, err error) error {
	cbCtx.Err = err
	cbCtx.Duration = time.Since(started)
	if cbErr := x.callbacks.ExecuteCallbacks(ctx, CallbackOnError, cbCtx); cbErr != nil {
		x.logger.Warn("on_error callback failed", "simulation_id", cbCtx.SimulationID, "error", cbErr)
	}
	return &TurnError{Role: cbCtx.Turn.Role, Name: cbCtx.Turn.Name, Turn: cbCtx.Turn.Turn, Err: err}
}

// userMessage is the text subscribers see for a failed turn.
func userMessage(role core.Role, err error) string {
	var ce *core.ConfigError
	if errors.As(err, &ce) {
		return ce.Message
	}
	switch role {
	case core.RoleModerator:
		return "Moderator model call failed."
	case core.RoleSynthesizer:
		return "Synthesizer model call failed."
	default:
		return "A model call failed. Check configuration and try again."
	}
}

// publishFailure reports a failed turn to subscribers.
func publishFailure(st *session.State, role core.Role, err error) {
	st.Publish(core.NewErrorEvent(userMessage(role, err)))
	st.Publish(core.NewStatusEvent(core.StatusError))
}
