// Package server exposes simulations over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /api/models
//	POST /api/simulations
//	GET  /api/simulations/{id}/events    server-sent events
//	GET  /api/simulations/{id}/ws        WebSocket frames
//	POST /api/simulations/{id}/stop
//	GET  /api/simulations/{id}/download
//
// Every stream subscribes its own sink on the simulation's bus and
// unsubscribes when the client goes away, which is what the engine's idle
// detection observes. Errors are returned as {"error":{"message":"..."}}.
package server
