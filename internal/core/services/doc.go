// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters): the sync engine that mirrors the
// remote store into the cache, and the search planner that answers
// queries from the local indexes with remote fallback.
package services
