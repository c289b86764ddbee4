// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Ingestion
//
//   - ManifestLoader: Reads the declarative document list
//   - DocumentFetcher: Fetches raw bytes from file, http(s) or s3 locations
//   - NormaliserRegistry: Extracts text per document type
//   - PostProcessorPipeline: Splits normalised text into ordered chunks
//   - SyncLedger: Per-document change detection state
//
// # Retrieval and Generation
//
//   - EmbeddingService: Generates vector embeddings (OpenAI, Gemini, Ollama)
//   - VectorIndex: Stores chunk vectors and answers similarity queries
//   - LLMService: Generates grounded answers (OpenAI, Anthropic, Gemini, Ollama)
//   - PromptStore: Customisable prompt templates
//
// # Audit and Configuration
//
//   - AuditStore: Append-only query records and sync runs
//   - ConfigStore: Persistent key/value configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
