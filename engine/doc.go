// Package engine implements turn orchestration for Colloquy simulations.
//
// The Engine is the only component that decides whose turn it is and when a
// run ends. It drives one session.State from start to a terminal status,
// calling the Executor for every actor turn and for the facilitator roles
// (moderator in debate mode, synthesizer in collaboration mode) on their
// cadence.
//
// # Run structure
//
// A run proceeds in rounds. One round is exactly one turn for each configured
// actor in request order. The total actor budget is turn_limit × actors.
// After each round the engine
//
//   - checks the idle detector (no subscribers for longer than the grace period)
//   - invokes each eligible facilitator when the number of actor turns so far
//     is a positive multiple of CadenceMultiplier × frequency_turns, or when
//     the budget is exhausted (the final call)
//   - stops when a facilitator requested early termination
//
// Before the first round the engine waits for a subscriber when idle shutdown
// is enabled. A run nobody attaches to within the grace period is cancelled
// without publishing any event.
//
// # Cancellation
//
// Cancellation is cooperative. The Executor checks the run's signal between
// tokens and abandons the in-flight turn without writing a transcript entry;
// the loop checks it between turns.
//
// # Errors
//
// Every turn failure is reported to subscribers as one error event followed by
// status{error} and returned as a *TurnError. Configuration errors carry their
// own user facing text; other failures are logged in full and reported with a
// generic message. Pre-flight limit violations are returned as
// *core.ConfigError before anything is published.
//
// The accumulated transcript is sealed into the state exactly once on every
// exit path.
package engine
