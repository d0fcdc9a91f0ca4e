// Package mcp exposes ragdesk over the Model Context Protocol, so AI
// assistants can ask questions against the knowledge base and browse
// documents and topics.
package mcp

import "errors"

// ErrMissingChatService is returned when the chat service is not provided.
var ErrMissingChatService = errors.New("mcp: chat service is required")
