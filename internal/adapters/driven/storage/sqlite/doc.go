// Package sqlite provides SQLite-backed implementations of driven store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. A single database holds:
//
//   - ChatStore: the conversation, so chat history survives restarts
//   - DocumentStore: the last document listing, shown when the backend is down
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.ragdesk/data/ragdesk.db
package sqlite
