// Package runner is the simulation registry.
//
// A Runner maps simulation ids to session states and launches one background
// goroutine per simulation that drives the engine. It is the only place that
// enforces the process-wide single-active-run policy (see Launch) and it
// reports outcomes the engine leaves unpublished:
//
//   - configuration errors found before the first turn are published as
//     error + status{error}
//   - a run cancelled while waiting for its first subscriber publishes
//     status{stopped}
//   - any other error or a panic publishes a generic crash message
//
// The completion signal of a state is set as the very last step of its
// goroutine on every exit path.
package runner
