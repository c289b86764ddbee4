// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Ingestion: Indexer (fingerprint, normalise, chunk, embed, upsert, ledger).
// Query path: Retriever, GatingPolicy, AnswerComposer, AuditRecorder,
// composed by QueryService.
//
// Services are pure Go with no CGO or external dependencies.
package services
