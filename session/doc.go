// Package session holds the mutable record of one running simulation and the
// event bus that fans its events out to observers.
//
// A State is created by the runner registry, written by exactly one
// orchestration goroutine (transcript, cancellation) and read concurrently by
// any number of observers through Subscribe / Unsubscribe. Delivery to each
// Sink is best effort: a full sink drops the event for that sink only and the
// producer never blocks. Every published event carries a per-run sequence
// number so a consumer can tell that it missed something.
package session
