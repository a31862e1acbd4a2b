// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the remote store client, the cache store,
// the two indexes and the embedding provider.
//
// Implementations live under internal/adapters, internal/index and
// internal/remote.
package driven
