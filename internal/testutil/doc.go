// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing requests, resolving scripted models
// and draining event sinks. They are not intended for production usage.
package testutil
