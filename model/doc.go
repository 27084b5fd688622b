// Package model defines the provider agnostic abstraction every speaker is
// driven through.
//
// A Model streams a reply to an ordered message context as a sequence of
// partial Responses followed by one final Response. Errors are delivered on a
// separate channel that is closed before the response channel, so a consumer
// that has drained the response channel can read the error channel without
// blocking.
//
// Vendor adapters live in sub packages (openai, anthropic) so higher layers
// stay decoupled from SDKs. MockModel is a scripted implementation for tests
// and local demos.
package model
