package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/engine"
	"github.com/hupe1980/colloquy/logging"
	"github.com/hupe1980/colloquy/session"
)

var (
	// ErrActiveSimulation is returned by Launch while another simulation runs.
	ErrActiveSimulation = errors.New("a simulation is already running")

	// ErrNotFound is returned for unknown simulation ids.
	ErrNotFound = errors.New("simulation not found")
)

// crashMessage is published when a run fails for a reason that is neither a
// reported turn failure nor a configuration error.
const crashMessage = "Simulation crashed unexpectedly."

// Engine runs one simulation to completion. *engine.Engine satisfies it.
type Engine interface {
	Run(st *session.State) error
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// EventBuffer sets the per-subscriber queue capacity of new states.
	EventBuffer int
	// Logger receives registry and run lifecycle logs.
	Logger logging.Logger
	// Now is the clock handed to new states.
	Now func() time.Time
	// NewID allocates simulation ids.
	NewID func() string
}

// Runner is the registry of simulations. It owns the id → state map and
// enforces that at most one simulation runs at a time. Public methods are
// safe for concurrent use.
type Runner struct {
	engine Engine

	eventBuffer int
	logger      logging.Logger
	now         func() time.Time
	newID       func() string

	states map[string]*session.State
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// New constructs a Runner executing simulations on eng.
func New(eng Engine, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBuffer: session.DefaultEventBuffer,
		Logger:      logging.NoOpLogger{},
		Now:         time.Now,
		NewID:       core.NewID,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		engine:      eng,
		eventBuffer: opts.EventBuffer,
		logger:      opts.Logger,
		now:         opts.Now,
		newID:       opts.NewID,
		states:      make(map[string]*session.State),
	}
}

// Create allocates a fresh id and stores a new state for req without starting
// it.
func (r *Runner) Create(req *core.Request) *session.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(req)
}

func (r *Runner) create(req *core.Request) *session.State {
	id := r.newID()
	for _, taken := r.states[id]; taken; _, taken = r.states[id] {
		id = r.newID()
	}

	l := logging.With(r.logger, "simulation_id", id)
	st := session.New(id, req, func(o *session.Options) {
		o.EventBuffer = r.eventBuffer
		o.Logger = l
		o.Now = r.now
	})
	r.states[id] = st

	l.Info("simulation created", "mode", string(req.Mode), "agents", len(req.Agents), "turn_limit", req.TurnLimit)

	return st
}

// Start launches the orchestration loop for st in the background. Only the
// first call per state has an effect.
func (r *Runner) Start(st *session.State) {
	if !st.MarkStarted() {
		return
	}

	r.wg.Add(1)
	go r.run(st)
}

// Launch creates and starts a simulation unless one is already running. The
// check and the start happen under the registry lock.
func (r *Runner) Launch(req *core.Request) (*session.State, error) {
	return r.LaunchWith(req, nil)
}

// LaunchWith is Launch with a hook that sees the new state before it starts,
// typically to subscribe so that no event is missed. The hook runs under the
// registry lock and must not call back into the Runner.
func (r *Runner) LaunchWith(req *core.Request, beforeStart func(st *session.State)) (*session.State, error) {
	r.mu.Lock()
	if r.hasActive() {
		r.mu.Unlock()
		return nil, ErrActiveSimulation
	}
	st := r.create(req)
	if beforeStart != nil {
		beforeStart(st)
	}
	st.MarkStarted()
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(st)

	return st, nil
}

func (r *Runner) run(st *session.State) {
	defer r.wg.Done()
	defer st.MarkDone()

	r.supervise(st)
}

// HasActive reports whether any stored simulation is started and not done.
func (r *Runner) HasActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasActive()
}

func (r *Runner) hasActive() bool {
	for _, st := range r.states {
		if st.Active() {
			return true
		}
	}
	return false
}

// Stop publishes status{stopping} and cancels a simulation by id. It returns
// false only when the id is unknown. Stopping a finished run publishes nothing.
func (r *Runner) Stop(id string) bool {
	st, ok := r.Get(id)
	if !ok {
		return false
	}
	if st.IsDone() {
		return true
	}

	st.Publish(core.NewStatusEvent(core.StatusStopping))
	st.Cancel()

	logging.With(r.logger, "simulation_id", id).Info("simulation stop requested", "running", st.Active())

	return true
}

// Get looks up a simulation by id.
func (r *Runner) Get(id string) (*session.State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[id]
	return st, ok
}

// Wait blocks until every started run exited or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every running simulation and waits for them to exit.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	for _, st := range r.states {
		if st.Active() {
			st.Cancel()
		}
	}
	r.mu.RUnlock()

	return r.Wait(ctx)
}

// supervise runs the engine and reports whatever the engine did not.
func (r *Runner) supervise(st *session.State) {
	l := logging.With(r.logger, "simulation_id", st.ID())

	defer func() {
		if rec := recover(); rec != nil {
			l.Error("simulation panicked", "panic", fmt.Sprint(rec))
			st.Publish(core.NewErrorEvent(crashMessage))
			st.Publish(core.NewStatusEvent(core.StatusError))
		}
	}()

	err := r.engine.Run(st)
	l = logging.With(l, "elapsed_ms", r.now().Sub(st.CreatedAt()).Milliseconds())

	var (
		turnErr *engine.TurnError
		cfgErr  *core.ConfigError
	)
	switch {
	case err == nil:
		l.Debug("simulation exited")
	case errors.As(err, &turnErr):
		// Already published by the engine.
		l.Warn("simulation ended by failed turn", "error", err)
	case errors.As(err, &cfgErr):
		l.Warn("simulation rejected", "error", err)
		st.Publish(core.NewErrorEvent(cfgErr.Message))
		st.Publish(core.NewStatusEvent(core.StatusError))
	case errors.Is(err, context.Canceled):
		st.Cancel()
		st.Publish(core.NewStatusEvent(core.StatusStopped))
		l.Info("simulation cancelled before start")
	default:
		l.Error("simulation crashed", "error", err)
		st.Publish(core.NewErrorEvent(crashMessage))
		st.Publish(core.NewStatusEvent(core.StatusError))
	}
}
