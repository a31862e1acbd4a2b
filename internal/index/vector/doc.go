// Package vector implements the in-memory semantic index: a flat map
// of chunk embeddings searched by brute-force cosine similarity. It is
// rebuilt from stored chunk embeddings at startup.
package vector
