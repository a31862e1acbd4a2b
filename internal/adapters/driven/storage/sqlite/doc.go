// Package sqlite provides the durable cache store backed by SQLite.
//
// The database runs in WAL mode: readers always see a consistent
// snapshot while the sync engine writes, and chunk replacement happens
// inside one transaction so a query never observes a half-updated
// chunk set for a document.
package sqlite
