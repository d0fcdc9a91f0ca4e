package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// transcriptEntry is the exported form of a chat message.
type transcriptEntry struct {
	Role      string          `json:"role" yaml:"role"`
	Content   string          `json:"content" yaml:"content"`
	Reasoning string          `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Topics    []analysisEntry `json:"topic_analyses,omitempty" yaml:"topic_analyses,omitempty"`
	Sources   []sourceEntry   `json:"sources,omitempty" yaml:"sources,omitempty"`
	Rating    int             `json:"rating,omitempty" yaml:"rating,omitempty"`
	QueryID   string          `json:"query_id,omitempty" yaml:"query_id,omitempty"`
	Failed    bool            `json:"failed,omitempty" yaml:"failed,omitempty"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
}

type analysisEntry struct {
	TopicID    string        `json:"topic_id" yaml:"topic_id"`
	TopicName  string        `json:"topic_name" yaml:"topic_name"`
	Similarity float64       `json:"similarity_score" yaml:"similarity_score"`
	Summary    string        `json:"aggregated_summary,omitempty" yaml:"aggregated_summary,omitempty"`
	Batches    []string      `json:"batch_responses,omitempty" yaml:"batch_responses,omitempty"`
	Sources    []sourceEntry `json:"sources,omitempty" yaml:"sources,omitempty"`
}

type sourceEntry struct {
	Filename string  `json:"filename,omitempty" yaml:"filename,omitempty"`
	Page     int     `json:"page,omitempty" yaml:"page,omitempty"`
	Score    float64 `json:"score,omitempty" yaml:"score,omitempty"`
	Excerpt  string  `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
}

type transcriptDoc struct {
	ExportedAt time.Time         `json:"exported_at" yaml:"exported_at"`
	Messages   []transcriptEntry `json:"messages" yaml:"messages"`
}

type analysesDoc struct {
	Query    string          `json:"query,omitempty" yaml:"query,omitempty"`
	Answer   string          `json:"answer" yaml:"answer"`
	QueryID  string          `json:"query_id,omitempty" yaml:"query_id,omitempty"`
	Analyses []analysisEntry `json:"topic_analyses" yaml:"topic_analyses"`
}

func renderTranscript(msgs []domain.ChatMessage, format domain.ExportFormat, now time.Time) ([]byte, error) {
	doc := transcriptDoc{ExportedAt: now, Messages: make([]transcriptEntry, 0, len(msgs))}
	for i := range msgs {
		m := &msgs[i]
		doc.Messages = append(doc.Messages, transcriptEntry{
			Role:      string(m.Role),
			Content:   m.Content,
			Reasoning: m.Reasoning,
			Topics:    analysisEntries(m.TopicAnalyses),
			Sources:   sourceEntries(m.Sources),
			Rating:    m.Rating,
			QueryID:   m.QueryID,
			Failed:    m.Failed,
			CreatedAt: m.CreatedAt,
		})
	}

	switch format {
	case domain.FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case domain.FormatYAML:
		return yaml.Marshal(doc)
	case domain.FormatMarkdown:
		return transcriptMarkdown(doc), nil
	}
	return nil, fmt.Errorf("%w: transcripts export as markdown, json or yaml, not %q",
		domain.ErrInvalidInput, format)
}

func renderAnalyses(query string, msg *domain.ChatMessage, format domain.ExportFormat) ([]byte, error) {
	doc := analysesDoc{
		Query:    query,
		Answer:   msg.Content,
		QueryID:  msg.QueryID,
		Analyses: analysisEntries(msg.TopicAnalyses),
	}
	if doc.Analyses == nil {
		doc.Analyses = []analysisEntry{}
	}

	switch format {
	case domain.FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case domain.FormatYAML:
		return yaml.Marshal(doc)
	case domain.FormatMarkdown:
		return analysesMarkdown(doc), nil
	}
	return nil, fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidInput, format)
}

func transcriptMarkdown(doc transcriptDoc) []byte {
	var b strings.Builder
	b.WriteString("# Conversation\n\n")
	fmt.Fprintf(&b, "_Exported %s_\n", doc.ExportedAt.Format(time.RFC1123))

	for _, m := range doc.Messages {
		title := "You"
		if m.Role == string(domain.RoleAssistant) {
			title = "Assistant"
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", title, m.Content)
		if m.Reasoning != "" {
			fmt.Fprintf(&b, "\n<details><summary>Reasoning</summary>\n\n%s\n\n</details>\n", m.Reasoning)
		}
		if len(m.Sources) > 0 {
			b.WriteString("\n**Sources**\n\n")
			writeSources(&b, m.Sources)
		}
		if m.Rating > 0 {
			fmt.Fprintf(&b, "\nRating: %d/%d\n", m.Rating, domain.MaxRating)
		}
	}
	return []byte(b.String())
}

func analysesMarkdown(doc analysesDoc) []byte {
	var b strings.Builder
	b.WriteString("# Topic analyses\n")
	if doc.Query != "" {
		fmt.Fprintf(&b, "\n**Question:** %s\n", doc.Query)
	}
	fmt.Fprintf(&b, "\n**Answer:** %s\n", doc.Answer)

	for _, a := range doc.Analyses {
		fmt.Fprintf(&b, "\n## %s (%.0f%%)\n", a.TopicName, a.Similarity*100)
		if a.Summary != "" {
			fmt.Fprintf(&b, "\n%s\n", a.Summary)
		}
		for i, batch := range a.Batches {
			fmt.Fprintf(&b, "\n### Batch %d\n\n%s\n", i+1, batch)
		}
		if len(a.Sources) > 0 {
			b.WriteString("\n**Sources**\n\n")
			writeSources(&b, a.Sources)
		}
	}
	return []byte(b.String())
}

func writeSources(b *strings.Builder, sources []sourceEntry) {
	for _, src := range sources {
		name := src.Filename
		if name == "" {
			name = "unknown"
		}
		if src.Page > 0 {
			fmt.Fprintf(b, "- %s, page %d\n", name, src.Page)
		} else {
			fmt.Fprintf(b, "- %s\n", name)
		}
	}
}

func analysisEntries(in []domain.TopicAnalysis) []analysisEntry {
	if len(in) == 0 {
		return nil
	}
	out := make([]analysisEntry, 0, len(in))
	for i := range in {
		a := &in[i]
		entry := analysisEntry{
			TopicID:    a.TopicID,
			TopicName:  a.TopicName,
			Similarity: a.SimilarityScore,
			Summary:    a.AggregatedSummary,
			Sources:    sourceEntries(a.Sources),
		}
		for _, br := range a.BatchResponses {
			entry.Batches = append(entry.Batches, br.Response)
		}
		out = append(out, entry)
	}
	return out
}

func sourceEntries(in []domain.Source) []sourceEntry {
	if len(in) == 0 {
		return nil
	}
	out := make([]sourceEntry, 0, len(in))
	for _, src := range in {
		out = append(out, sourceEntry{
			Filename: src.Filename,
			Page:     src.Page,
			Score:    src.Score,
			Excerpt:  src.Content,
		})
	}
	return out
}
