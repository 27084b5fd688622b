package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/logging"
)

// DefaultEventBuffer is the per-sink queue capacity used when none is configured.
const DefaultEventBuffer = 256

// Options configures a State.
type Options struct {
	// EventBuffer is the capacity of each subscriber queue.
	EventBuffer int
	Logger      logging.Logger
	// Now is the clock used for subscriber-change timestamps.
	Now func() time.Time
}

// State is the mutable record of one simulation.
type State struct {
	id  string
	req *core.Request

	ctx    context.Context
	cancel context.CancelFunc

	started  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	mu         sync.RWMutex
	sinks      map[*Sink]struct{}
	lastChange time.Time
	seq        uint64

	finalOnce  sync.Once
	finalized  atomic.Bool
	transcript []core.TranscriptMessage

	createdAt time.Time
	opts      Options
}

// New creates the state for a simulation. The request is retained by
// reference and must not be modified afterwards.
func New(id string, req *core.Request, optFns ...func(o *Options)) *State {
	opts := Options{
		EventBuffer: DefaultEventBuffer,
		Logger:      logging.NoOpLogger{},
		Now:         time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := opts.Now()

	return &State{
		id:         id,
		req:        req,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		sinks:      make(map[*Sink]struct{}),
		lastChange: now,
		createdAt:  now,
		opts:       opts,
	}
}

// ID returns the simulation id.
func (s *State) ID() string { return s.id }

// Request returns the immutable simulation request.
func (s *State) Request() *core.Request { return s.req }

// CreatedAt returns the creation time.
func (s *State) CreatedAt() time.Time { return s.createdAt }

// Context is cancelled once the run is cancelled. Blocking work belonging to
// the run must observe it.
func (s *State) Context() context.Context { return s.ctx }

// Cancel sets the cancellation signal. Safe to call any number of times from
// any goroutine.
func (s *State) Cancel() { s.cancel() }

// Cancelled returns a channel closed once the run is cancelled.
func (s *State) Cancelled() <-chan struct{} { return s.ctx.Done() }

// IsCancelled reports whether the cancellation signal is set.
func (s *State) IsCancelled() bool { return s.ctx.Err() != nil }

// MarkStarted records that the background task was launched. It returns true
// only for the first call.
func (s *State) MarkStarted() bool { return s.started.CompareAndSwap(false, true) }

// Started reports whether the background task was launched.
func (s *State) Started() bool { return s.started.Load() }

// MarkDone sets the completion signal. Only the first call has an effect.
func (s *State) MarkDone() { s.doneOnce.Do(func() { close(s.done) }) }

// Done returns a channel closed when the background task has exited.
func (s *State) Done() <-chan struct{} { return s.done }

// IsDone reports whether the completion signal is set.
func (s *State) IsDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Active reports whether the background task was started and has not exited.
func (s *State) Active() bool { return s.Started() && !s.IsDone() }

// Finalize seals the transcript. Only the first call is recorded; it reports
// whether this call sealed it.
func (s *State) Finalize(messages []core.TranscriptMessage) bool {
	sealed := false
	s.finalOnce.Do(func() {
		s.transcript = append([]core.TranscriptMessage(nil), messages...)
		s.finalized.Store(true)
		sealed = true
	})
	return sealed
}

// Transcript returns the sealed transcript. ok is false until Finalize ran.
func (s *State) Transcript() (messages []core.TranscriptMessage, ok bool) {
	if !s.finalized.Load() {
		return nil, false
	}
	return s.transcript, true
}

// Record returns the sealed transcript as a TranscriptRecord.
func (s *State) Record() (core.TranscriptRecord, bool) {
	msgs, ok := s.Transcript()
	if !ok {
		return core.TranscriptRecord{}, false
	}
	return core.TranscriptRecord{
		SimulationID: s.id,
		Topic:        s.req.Topic,
		Mode:         s.req.Mode,
		Messages:     msgs,
	}, true
}
