package engine

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/logging"
	"github.com/hupe1980/colloquy/provider"
	"github.com/hupe1980/colloquy/session"
)

// Config defines server side limits and scheduling parameters.
type Config struct {
	// MaxTurnLimit caps the per-actor turn limit of a request.
	MaxTurnLimit int
	// MaxAgents caps the number of actors of a request.
	MaxAgents int
	// MaxTopicChars, MaxStageChars and MaxPromptChars cap free text lengths
	// in characters.
	MaxTopicChars  int
	MaxStageChars  int
	MaxPromptChars int

	// IdleShutdown enables the orphan wait before start and the idle check
	// between rounds.
	IdleShutdown bool
	// OrphanGrace is how long a run tolerates having no subscribers.
	OrphanGrace time.Duration
	// PollInterval is the subscriber poll period while waiting to start.
	PollInterval time.Duration

	// CadenceMultiplier scales frequency_turns into the number of actor turns
	// between facilitator calls.
	CadenceMultiplier int
}

// DefaultConfig provides the default limits.
var DefaultConfig = Config{
	MaxTurnLimit:      core.MaxTurnLimit,
	MaxAgents:         core.MaxActors,
	MaxTopicChars:     2000,
	MaxStageChars:     4000,
	MaxPromptChars:    4000,
	IdleShutdown:      true,
	OrphanGrace:       5 * time.Second,
	PollInterval:      50 * time.Millisecond,
	CadenceMultiplier: 2,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains limits and scheduling parameters. Defaults to
	// DefaultConfig.
	Config Config

	// Callbacks receive turn lifecycle notifications. A logging callback for
	// Logger is always registered first.
	Callbacks *CallbackManager

	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// Now is the clock used by the idle detector.
	Now func() time.Time
}

// Engine drives simulation runs. It is safe to use for many runs
// concurrently; every run state is owned by the goroutine calling Run.
type Engine struct {
	config   Config
	executor *Executor
	logger   logging.Logger
	hooks    *CallbackManager
	now      func() time.Time
}

// New creates an Engine resolving speaker models through resolver.
func New(resolver provider.Resolver, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.CadenceMultiplier <= 0 {
		opts.Config.CadenceMultiplier = DefaultConfig.CadenceMultiplier
	}
	if opts.Config.PollInterval <= 0 {
		opts.Config.PollInterval = DefaultConfig.PollInterval
	}

	hooks := NewCallbackManager()
	hooks.RegisterLogging(opts.Logger)
	if opts.Callbacks != nil {
		for _, t := range []CallbackType{CallbackBeforeTurn, CallbackAfterTurn, CallbackOnError, CallbackOnRunEnd} {
			hooks.RegisterCallback(NewFunctionCallback(t, func(ctx context.Context, c *CallbackContext) error {
				return opts.Callbacks.ExecuteCallbacks(ctx, c.CallbackType, c)
			}))
		}
	}

	return &Engine{
		config: opts.Config,
		executor: NewExecutor(resolver, func(o *ExecutorOptions) {
			o.Logger = opts.Logger
			o.Callbacks = hooks
		}),
		logger: opts.Logger,
		hooks:  hooks,
		now:    opts.Now,
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Run executes the simulation held by st until the actor budget is used up,
// the run is cancelled, a facilitator ends it or a turn fails.
//
// Run returns a *core.ConfigError when the request exceeds server limits,
// a *TurnError when a turn failed (already published) and the context error
// when cancellation arrived while waiting for the first subscriber. A run
// that ends because nobody subscribed in time returns nil without
// publishing anything.
func (e *Engine) Run(st *session.State) error {
	transcript := core.NewTranscript()
	defer func() { st.Finalize(transcript.Messages()) }()

	req := st.Request()
	log := logging.With(e.logger, "simulation_id", st.ID())

	if err := e.Preflight(req); err != nil {
		return err
	}

	if e.config.IdleShutdown {
		orphaned, err := e.awaitSubscriber(st)
		if err != nil {
			return err
		}
		if orphaned {
			log.Info("no subscriber attached, run abandoned", "grace", e.config.OrphanGrace)
			return nil
		}
	}

	st.Publish(core.NewStatusEvent(core.StatusStarted))
	log.Info("run started", "mode", string(req.Mode), "agents", len(req.Agents), "turn_limit", req.TurnLimit)

	var (
		turn       int
		actorTurns int
		budget     = req.ActorTurnBudget()
	)

rounds:
	for actorTurns < budget && !st.IsCancelled() {
		for i, a := range req.Agents {
			if st.IsCancelled() || actorTurns >= budget {
				break
			}
			turn++
			if _, err := e.executor.ExecuteTurn(st, TurnSpec{
				Role:     core.RoleAgent,
				Name:     a.Name,
				Model:    a.Model,
				Provider: a.Provider,
				Params:   a.GenerationParams,
				AgentID:  i + 1,
				Turn:     turn,
			}, transcript); err != nil {
				log.Error("actor turn failed", "name", a.Name, "turn", turn, "error", err)
				publishFailure(st, core.RoleAgent, err)
				e.runEnded(st, core.StatusError)
				return err
			}
			actorTurns++
		}

		if st.IsCancelled() {
			break
		}

		if e.idle(st) {
			log.Info("no subscribers within grace period, cancelling run")
			st.Cancel()
			break
		}

		for _, role := range []core.Role{core.RoleModerator, core.RoleSynthesizer} {
			cfg, ok := e.facilitatorDue(req, role, actorTurns, budget)
			if !ok || st.IsCancelled() {
				continue
			}
			terminated, next, err := e.executor.RunFacilitator(st, role, cfg, turn, transcript, actorTurns >= budget)
			turn = next
			if err != nil {
				e.runEnded(st, core.StatusError)
				return err
			}
			if terminated {
				log.Info("facilitator ended the run", "role", role.String(), "turn", turn)
				break rounds
			}
		}
	}

	status := core.StatusFinished
	if st.IsCancelled() {
		status = core.StatusStopped
	}
	st.Publish(core.NewStatusEvent(status))
	e.runEnded(st, status)

	return nil
}

// Preflight rejects requests exceeding the configured limits.
func (e *Engine) Preflight(req *core.Request) error {
	c := e.config
	if c.MaxTurnLimit > 0 && req.TurnLimit > c.MaxTurnLimit {
		return core.NewConfigError("Turn limit exceeds the server maximum of %d.", c.MaxTurnLimit)
	}
	if c.MaxAgents > 0 && len(req.Agents) > c.MaxAgents {
		return core.NewConfigError("Too many agents; the server allows at most %d.", c.MaxAgents)
	}
	if tooLong(req.Topic, c.MaxTopicChars) {
		return core.NewConfigError("Topic exceeds %d characters.", c.MaxTopicChars)
	}
	if tooLong(req.Stage, c.MaxStageChars) {
		return core.NewConfigError("Stage exceeds %d characters.", c.MaxStageChars)
	}
	for _, a := range req.Agents {
		if tooLong(a.SystemPrompt, c.MaxPromptChars) || tooLong(a.Persona, c.MaxPromptChars) {
			return core.NewConfigError("Prompt for %s exceeds %d characters.", a.Name, c.MaxPromptChars)
		}
	}
	if tooLong(req.Moderator.SystemPrompt, c.MaxPromptChars) {
		return core.NewConfigError("Moderator prompt exceeds %d characters.", c.MaxPromptChars)
	}
	if tooLong(req.Synthesizer.SystemPrompt, c.MaxPromptChars) {
		return core.NewConfigError("Synthesizer prompt exceeds %d characters.", c.MaxPromptChars)
	}
	return nil
}

func tooLong(s string, limit int) bool {
	return limit > 0 && utf8.RuneCountInString(s) > limit
}

// awaitSubscriber polls until a subscriber attaches or the grace period
// elapses. orphaned is true when the run was cancelled for lack of
// subscribers.
func (e *Engine) awaitSubscriber(st *session.State) (orphaned bool, err error) {
	if st.SubscriberCount() > 0 {
		return false, nil
	}

	grace := time.NewTimer(e.config.OrphanGrace)
	defer grace.Stop()
	poll := time.NewTicker(e.config.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-st.Cancelled():
			return false, st.Context().Err()
		case <-grace.C:
			if st.SubscriberCount() > 0 {
				return false, nil
			}
			st.Cancel()
			return true, nil
		case <-poll.C:
			if st.SubscriberCount() > 0 {
				return false, nil
			}
		}
	}
}

func (e *Engine) idle(st *session.State) bool {
	if !e.config.IdleShutdown || st.SubscriberCount() > 0 {
		return false
	}
	return e.now().Sub(st.LastSubscriberChange()) > e.config.OrphanGrace
}

// facilitatorDue returns the configuration of role when it should speak after
// actorTurns actor turns.
func (e *Engine) facilitatorDue(req *core.Request, role core.Role, actorTurns, budget int) (core.FacilitatorConfig, bool) {
	cfg, ok := req.Facilitator(role)
	if !ok || !cfg.Active() {
		return cfg, false
	}
	switch {
	case role == core.RoleModerator && req.Mode != core.ModeDebate:
		return cfg, false
	case role == core.RoleSynthesizer && req.Mode != core.ModeCollaboration:
		return cfg, false
	}
	if actorTurns >= budget {
		return cfg, true
	}
	period := e.config.CadenceMultiplier * cfg.Frequency()
	return cfg, actorTurns > 0 && actorTurns%period == 0
}

func (e *Engine) runEnded(st *session.State, status core.Status) {
	_ = e.hooks.ExecuteCallbacks(st.Context(), CallbackOnRunEnd, &CallbackContext{SimulationID: st.ID(), Status: status})
}
