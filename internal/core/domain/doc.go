// Package domain defines the core entities ragdesk works with.
//
// This package is the innermost layer of the hexagon. The types here mirror
// what the RAG backend returns over its JSON interface and what the console
// keeps in its local collections:
//
//   - Document: an uploaded file and its processing status
//   - Chunk: a segment of a processed document's text
//   - Topic: a backend-derived cluster of related chunks
//   - ChatMessage: one turn of a conversation with the backend
//   - QueryResult: the canonical shape of a processed query
//   - Notification: a user-facing toast
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
