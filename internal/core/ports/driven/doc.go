// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentAPI, TopicAPI, QueryAPI, AnalyticsAPI: the RAG backend
//   - DocumentStore: local document collection
//   - TopicStore: local topic collection
//   - ChatStore: chat history (memory or SQLite)
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Notifier: user-facing toasts. Without it, notifications are dropped.
//   - Metrics: request and poll instrumentation.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
