package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const uriScheme = "ragdesk://"

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "All uploaded documents",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document-text",
		Description: "Processed text of a document, chunk by chunk",
		MIMEType:    "text/plain",
	}, s.handleDocumentTextResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "topics/{topicId}",
		Name:        "topic",
		Description: "A topic with its relationships",
		MIMEType:    "application/json",
	}, s.handleTopicResource)
}

func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Document == nil {
		return textResult(req.Params.URI, "application/json", "[]"), nil
	}

	docs, err := s.ports.Document.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling documents: %w", err)
	}
	return textResult(req.Params.URI, "application/json", string(data)), nil
}

func (s *Server) handleDocumentTextResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := trimID(req.Params.URI, "documents/")
	if s.ports.Document == nil || id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	chunks, err := s.ports.Document.Chunks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting chunks: %w", err)
	}

	var b strings.Builder
	for i := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(chunks[i].Content)
	}
	return textResult(req.Params.URI, "text/plain", b.String()), nil
}

func (s *Server) handleTopicResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := trimID(req.Params.URI, "topics/")
	if s.ports.Topic == nil || id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	topic, err := s.ports.Topic.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting topic: %w", err)
	}
	related, err := s.ports.Topic.Relationships(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting relationships: %w", err)
	}

	data, err := json.MarshalIndent(map[string]any{
		"topic":         topic,
		"relationships": related,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling topic: %w", err)
	}
	return textResult(req.Params.URI, "application/json", string(data)), nil
}

func textResult(uri, mime, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mime, Text: text}},
	}
}

// trimID extracts the ID from ragdesk://<kind>/<id>.
func trimID(uri, kind string) string {
	prefix := uriScheme + kind
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
