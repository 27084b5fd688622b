// Package colloquy wires the pieces of a multi-party conversation server
// together: configuration, the provider factory, the orchestration engine,
// the simulation registry and the HTTP transport.
//
// Most applications either serve the HTTP API
//
//	cfg, _ := config.Load()
//	app, _ := colloquy.New(func(o *colloquy.Options) { o.Config = cfg })
//	_ = app.Serve(ctx)
//
// or run a simulation in-process with RunSync, which subscribes, starts and
// collects every event until the run has completed.
package colloquy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hupe1980/colloquy/catalog"
	"github.com/hupe1980/colloquy/config"
	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/engine"
	"github.com/hupe1980/colloquy/logging"
	"github.com/hupe1980/colloquy/provider"
	"github.com/hupe1980/colloquy/runner"
	"github.com/hupe1980/colloquy/server"
	"github.com/hupe1980/colloquy/session"
)

// Options configures a Colloquy instance.
type Options struct {
	// Config defaults to config.Defaults().
	Config *config.Config

	// Resolver maps speaker models to implementations. Defaults to a
	// provider.Factory built from Config.Providers.
	Resolver provider.Resolver

	// Callbacks receive turn lifecycle notifications.
	Callbacks *engine.CallbackManager

	// Logger defaults to a slog logger built from Config.Log.
	Logger logging.Logger
}

// Colloquy is the high-level façade over engine, registry and server.
type Colloquy struct {
	cfg      *config.Config
	logger   logging.Logger
	engine   *engine.Engine
	registry *runner.Runner
	catalog  *catalog.Loader
}

// New creates a Colloquy instance.
func New(optFns ...func(o *Options)) (*Colloquy, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg == nil {
		d := config.Defaults()
		cfg = &d
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		logger = logging.New(logging.Config{Level: level, Format: cfg.Log.Format})
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = provider.NewFactory(func(o *provider.Options) {
			o.OpenAIAPIKey = cfg.Providers.OpenAIAPIKey
			o.OpenAIBaseURL = cfg.Providers.OpenAIBaseURL
			o.AnthropicAPIKey = cfg.Providers.AnthropicAPIKey
			o.GoogleAPIKey = cfg.Providers.GoogleAPIKey
			o.OllamaBaseURL = cfg.Providers.OllamaBaseURL
			o.Logger = logger
		})
	}

	eng := engine.New(resolver, func(o *engine.Options) {
		o.Config = EngineConfig(cfg)
		o.Callbacks = opts.Callbacks
		o.Logger = logger
	})

	reg := runner.New(eng, func(o *runner.Options) {
		o.EventBuffer = cfg.Simulation.EventBuffer
		o.Logger = logger
	})

	return &Colloquy{
		cfg:      cfg,
		logger:   logger,
		engine:   eng,
		registry: reg,
		catalog: catalog.NewLoader(func(o *catalog.Options) {
			o.Path = cfg.Catalog.Path
			o.Logger = logger
		}),
	}, nil
}

// EngineConfig maps settings to engine limits and scheduling parameters.
func EngineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		MaxTurnLimit:      cfg.Limits.MaxTurnLimit,
		MaxAgents:         cfg.Limits.MaxAgents,
		MaxTopicChars:     cfg.Limits.MaxTopicChars,
		MaxStageChars:     cfg.Limits.MaxStageChars,
		MaxPromptChars:    cfg.Limits.MaxPromptChars,
		IdleShutdown:      cfg.IdleShutdown(),
		OrphanGrace:       cfg.Simulation.OrphanGrace,
		PollInterval:      cfg.Simulation.PollInterval,
		CadenceMultiplier: cfg.Simulation.CadenceMultiplier,
	}
}

// Registry exposes the simulation registry.
func (c *Colloquy) Registry() *runner.Runner { return c.registry }

// Catalog returns the configured model catalog.
func (c *Colloquy) Catalog() catalog.Catalog { return c.catalog.Load() }

// Launch validates req and starts it in the background.
func (c *Colloquy) Launch(req *core.Request) (*session.State, error) {
	if err := c.check(req); err != nil {
		return nil, err
	}
	return c.registry.Launch(req)
}

func (c *Colloquy) check(req *core.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return c.engine.Preflight(req)
}

// RunSync runs req to completion in the calling goroutine's view: it
// subscribes before the run starts and returns every event published. If ctx
// ends first the run is stopped and the events collected so far are returned
// with ctx's error.
func (c *Colloquy) RunSync(ctx context.Context, req *core.Request) (*session.State, []core.Event, error) {
	if err := c.check(req); err != nil {
		return nil, nil, err
	}
	var sink *session.Sink
	st, err := c.registry.LaunchWith(req, func(st *session.State) { sink = st.Subscribe() })
	if err != nil {
		return nil, nil, err
	}
	defer st.Unsubscribe(sink)

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			c.registry.Stop(st.ID())
			return st, events, ctx.Err()
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-st.Done():
			for {
				select {
				case ev := <-sink.Events():
					events = append(events, ev)
				default:
					return st, events, nil
				}
			}
		}
	}
}

// Handler returns the HTTP API handler.
func (c *Colloquy) Handler() http.Handler { return c.newServer().Handler() }

func (c *Colloquy) newServer() *server.Server {
	return server.New(c.registry, func(o *server.Options) {
		o.Addr = c.cfg.Server.Addr
		o.AllowedOrigins = c.cfg.Server.AllowedOrigins
		o.Keepalive = c.cfg.Server.Keepalive
		o.RateLimit = c.cfg.Server.RateLimit
		o.MaxBodyBytes = c.cfg.Server.MaxBodyBytes
		o.Preflight = c.engine.Preflight
		o.Catalog = c.catalog
		o.Logger = c.logger
	})
}

// Serve runs the HTTP API until ctx is cancelled, then stops running
// simulations.
func (c *Colloquy) Serve(ctx context.Context) error {
	serveErr := c.newServer().Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.registry.Shutdown(shutdownCtx); err != nil {
		return errors.Join(serveErr, fmt.Errorf("stop simulations: %w", err))
	}
	return serveErr
}
