package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/hupe1980/colloquy/catalog"
	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/logging"
	"github.com/hupe1980/colloquy/session"
)

// Registry is the subset of *runner.Runner the HTTP layer needs.
type Registry interface {
	Launch(req *core.Request) (*session.State, error)
	Get(id string) (*session.State, bool)
	Stop(id string) bool
}

// Options configures a Server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	// Keepalive is the idle interval after which streams send a heartbeat.
	Keepalive time.Duration
	// RateLimit is the number of requests per minute per client and path.
	// Zero disables limiting.
	RateLimit    int
	MaxBodyBytes int64
	// Preflight checks a decoded request against server-side limits before
	// it is launched.
	Preflight func(req *core.Request) error
	Catalog   *catalog.Loader
	Logger    logging.Logger
	// ShutdownTimeout bounds graceful shutdown in Start.
	ShutdownTimeout time.Duration
}

// Server is the HTTP front end of a Registry.
type Server struct {
	registry Registry
	opts     Options
	logger   logging.Logger
	limiter  *clientLimiter
}

// New creates a Server serving reg.
func New(reg Registry, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:            ":8000",
		AllowedOrigins:  []string{"http://localhost:5173"},
		Keepalive:       15 * time.Second,
		RateLimit:       120,
		MaxBodyBytes:    1 << 20,
		Logger:          logging.NoOpLogger{},
		ShutdownTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = 15 * time.Second
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.NewLoader(func(o *catalog.Options) { o.Logger = opts.Logger })
	}

	s := &Server{
		registry: reg,
		opts:     opts,
		logger:   logging.With(opts.Logger, "component", "server"),
	}
	if opts.RateLimit > 0 {
		s.limiter = newClientLimiter(opts.RateLimit, time.Minute)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /api/models", gzhttp.GzipHandler(http.HandlerFunc(s.handleModels)))
	mux.HandleFunc("POST /api/simulations", s.handleStart)
	mux.HandleFunc("GET /api/simulations/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /api/simulations/{id}/ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/simulations/{id}/stop", s.handleStop)
	mux.Handle("GET /api/simulations/{id}/download", gzhttp.GzipHandler(http.HandlerFunc(s.handleDownload)))

	return chain(mux,
		s.recoverer,
		s.requestID,
		s.accessLog,
		s.cors,
		s.rateLimit,
	)
}

// Start serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Streams observe the request context and end with ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.opts.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
