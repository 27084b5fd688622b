package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/logging"
)

// CallbackType defines the turn lifecycle point a callback is attached to.
type CallbackType string

const (
	// CallbackBeforeTurn is triggered after the model was resolved and before
	// the typing status is published. Returning an error fails the turn.
	CallbackBeforeTurn CallbackType = "before_turn"

	// CallbackAfterTurn is triggered after a turn finished, including turns
	// abandoned because the run was cancelled.
	CallbackAfterTurn CallbackType = "after_turn"

	// CallbackOnError is triggered when a turn failed.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnRunEnd is triggered once when the engine leaves a run.
	CallbackOnRunEnd CallbackType = "on_run_end"
)

// CallbackContext carries the data available to a callback. Fields that do
// not apply to the callback type are zero.
type CallbackContext struct {
	CallbackType CallbackType
	SimulationID string
	Turn         TurnSpec

	// Message is the transcript entry written by the turn.
	Message   *core.TranscriptMessage
	Terminate bool
	Cancelled bool
	Tokens    int
	Duration  time.Duration
	Err       error

	// Status is the terminal status of the run for CallbackOnRunEnd.
	Status core.Status
}

// Callback is a hook invoked at one lifecycle point.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback adapts a function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a FunctionCallback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks by type. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback appends callback to the list for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs the callbacks registered for callbackType in
// registration order and stops at the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes turn outcomes to a logger.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a LoggingCallback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	l := logging.With(c.logger, "simulation_id", callbackCtx.SimulationID)
	switch callbackCtx.CallbackType {
	case CallbackAfterTurn, CallbackOnError:
		logging.LogTurn(l, logging.TurnRecord{
			Role:      callbackCtx.Turn.Role.String(),
			Name:      callbackCtx.Turn.Name,
			Model:     callbackCtx.Turn.Model,
			Provider:  string(callbackCtx.Turn.Provider),
			Turn:      callbackCtx.Turn.Turn,
			Tokens:    callbackCtx.Tokens,
			Duration:  callbackCtx.Duration,
			Terminate: callbackCtx.Terminate,
			Cancelled: callbackCtx.Cancelled,
			Err:       callbackCtx.Err,
		})
	case CallbackOnRunEnd:
		l.Info("run ended", "status", string(callbackCtx.Status))
	default:
		l.Debug("turn starting", "name", callbackCtx.Turn.Name, "turn", callbackCtx.Turn.Turn, "role", callbackCtx.Turn.Role.String())
	}
	return nil
}

// RegisterLogging attaches a LoggingCallback for every lifecycle point.
func (cm *CallbackManager) RegisterLogging(logger logging.Logger) {
	for _, t := range []CallbackType{CallbackBeforeTurn, CallbackAfterTurn, CallbackOnError, CallbackOnRunEnd} {
		cm.RegisterCallback(NewLoggingCallback(t, logger))
	}
}
