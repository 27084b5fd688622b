// Package core defines the fundamental data model shared by every Colloquy
// component: the immutable simulation request with its actor / facilitator
// configurations, the append-only transcript, the closed set of simulation
// events streamed to observers and the configuration error type.
//
// Types in this package carry no behavior beyond validation, construction and
// serialization. Orchestration lives in package engine, run state and event
// fan-out in package session and simulation lifecycle in package runner.
package core
