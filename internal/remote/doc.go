// Package remote implements the read-only client for the notebook API.
// It is the only package in the project that talks to the network.
//
// All outbound calls flow through one shared token-bucket limiter, the
// sole serialization point between sync workers and query fallback legs.
// Pagination, credential refresh and the branch-count ceiling are handled
// here so callers only see domain errors.
package remote
