// Package domain defines the core business entities for sercha-kb.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceDocument: A manifest entry resolved into an indexable document
//   - Chunk: A bounded, positionally-tagged segment, the unit of citation
//   - DocState: The sync ledger entry used for change detection
//   - RetrievalResult: Scored chunks returned for a question
//   - QueryRecord / SyncRun: Append-only audit entities
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
