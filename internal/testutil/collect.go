package testutil

import (
	"time"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/session"
)

// Collect reads events from sink until until returns true for one of them,
// the sink is closed or timeout elapses. The matching event is included.
func Collect(sink *session.Sink, until func(core.Event) bool, timeout time.Duration) []core.Event {
	var got []core.Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-sink.Events():
			if !ok {
				return got
			}
			got = append(got, ev)
			if until != nil && until(ev) {
				return got
			}
		case <-deadline:
			return got
		}
	}
}

// CollectRun reads events from sink until st completes, then drains what is
// still queued.
func CollectRun(st *session.State, sink *session.Sink, timeout time.Duration) []core.Event {
	var got []core.Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-sink.Events():
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-st.Done():
			for {
				select {
				case ev, ok := <-sink.Events():
					if !ok {
						return got
					}
					got = append(got, ev)
				default:
					return got
				}
			}
		case <-deadline:
			return got
		}
	}
}

// IsStatus matches status events carrying one of statuses.
func IsStatus(statuses ...core.Status) func(core.Event) bool {
	return func(ev core.Event) bool {
		st, ok := ev.StatusOf()
		if !ok {
			return false
		}
		for _, s := range statuses {
			if s == st {
				return true
			}
		}
		return false
	}
}

// Statuses extracts the status values in order.
func Statuses(events []core.Event) []core.Status {
	var out []core.Status
	for _, ev := range events {
		if st, ok := ev.StatusOf(); ok && st != core.StatusTyping {
			out = append(out, st)
		}
	}
	return out
}

// Messages extracts message payloads in order.
func Messages(events []core.Event) []core.MessagePayload {
	var out []core.MessagePayload
	for _, ev := range events {
		if mp, ok := ev.Payload.(core.MessagePayload); ok {
			out = append(out, mp)
		}
	}
	return out
}

// OfKind filters events by kind.
func OfKind(events []core.Event, kind core.EventKind) []core.Event {
	var out []core.Event
	for _, ev := range events {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}
