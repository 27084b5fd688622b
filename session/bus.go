package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/colloquy/core"
)

// Sink is one subscriber's private bounded event queue.
type Sink struct {
	ch        chan core.Event
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// Events returns the receive side of the queue. It is closed on Unsubscribe.
func (k *Sink) Events() <-chan core.Event { return k.ch }

// Dropped returns the number of events discarded because the queue was full.
func (k *Sink) Dropped() uint64 { return k.dropped.Load() }

// Subscribe registers a fresh sink.
func (s *State) Subscribe() *Sink {
	k := &Sink{ch: make(chan core.Event, s.opts.EventBuffer)}

	s.mu.Lock()
	s.sinks[k] = struct{}{}
	s.lastChange = s.opts.Now()
	n := len(s.sinks)
	s.mu.Unlock()

	s.opts.Logger.Debug("subscriber attached", "simulation_id", s.id, "subscribers", n)

	return k
}

// Unsubscribe deregisters k and closes its queue. Calling it again with the
// same sink is a no-op. When the last sink leaves while the background task
// is still active the run is cancelled.
func (s *State) Unsubscribe(k *Sink) {
	if k == nil {
		return
	}

	s.mu.Lock()
	if _, ok := s.sinks[k]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sinks, k)
	s.lastChange = s.opts.Now()
	n := len(s.sinks)
	k.closeOnce.Do(func() { close(k.ch) })
	s.mu.Unlock()

	s.opts.Logger.Debug("subscriber detached", "simulation_id", s.id, "subscribers", n, "dropped", k.Dropped())

	if n == 0 && s.Active() {
		s.opts.Logger.Info("last subscriber left, cancelling run", "simulation_id", s.id)
		s.Cancel()
	}
}

// Publish stamps ev with the next sequence number and offers it to every
// registered sink without blocking. Sinks with a full queue miss the event.
func (s *State) Publish(ev core.Event) core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	ev.Seq = s.seq

	for k := range s.sinks {
		select {
		case k.ch <- ev:
		default:
			k.dropped.Add(1)
		}
	}

	return ev
}

// SubscriberCount returns the number of registered sinks.
func (s *State) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sinks)
}

// LastSubscriberChange returns when the sink set last changed.
func (s *State) LastSubscriberChange() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastChange
}

// Seq returns the sequence number of the most recently published event.
func (s *State) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}
