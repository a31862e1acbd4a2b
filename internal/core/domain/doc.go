// Package domain defines the core business entities for notedex.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A cached, normalised remote page
//   - Chunk: The unit of semantic embedding within a document
//   - SyncCursor: A per-branch resumable sync checkpoint
//   - Hierarchy: The remote notebook/section tree
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
