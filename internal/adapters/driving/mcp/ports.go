package mcp

import (
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Chat answers questions. Required.
	Chat driving.ChatService

	// Document lists documents and their chunks. Optional.
	Document driving.DocumentService

	// Topic searches topics. Optional.
	Topic driving.TopicService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Chat == nil {
		return ErrMissingChatService
	}
	return nil
}
