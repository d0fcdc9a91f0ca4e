package domain

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn in a conversation. Messages are append-ordered
// by CreatedAt; only Rating changes after creation.
type ChatMessage struct {
	ID            string          `json:"id"`
	Role          Role            `json:"role"`
	Content       string          `json:"content"`
	Reasoning     string          `json:"reasoning,omitempty"`
	TopicAnalyses []TopicAnalysis `json:"topic_analyses,omitempty"`
	Sources       []Source        `json:"sources,omitempty"`
	Rating        int             `json:"rating,omitempty"`
	QueryID       string          `json:"query_id,omitempty"`
	Failed        bool            `json:"failed,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// IsRated reports whether the user has rated the message.
func (m *ChatMessage) IsRated() bool {
	return m.Rating > 0
}

// MinRating and MaxRating bound a message rating.
const (
	MinRating = 1
	MaxRating = 5
)

// ValidRating reports whether r is an accepted rating value.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// Source is a citation backing an answer.
type Source struct {
	DocumentID string  `json:"document_id,omitempty"`
	Filename   string  `json:"filename,omitempty"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	Content    string  `json:"content,omitempty"`
	Page       int     `json:"page,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// UnmarshalJSON accepts numeric IDs and numbers sent as strings.
func (s *Source) UnmarshalJSON(data []byte) error {
	type plain Source
	var aux struct {
		plain
		DocumentID json.RawMessage `json:"document_id"`
		ChunkID    json.RawMessage `json:"chunk_id"`
		Page       json.RawMessage `json:"page"`
		Score      json.RawMessage `json:"score"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Source(aux.plain)
	s.DocumentID = LooseString(aux.DocumentID)
	s.ChunkID = LooseString(aux.ChunkID)
	s.Page, _ = LooseInt(aux.Page)
	s.Score, _ = LooseFloat(aux.Score)
	return nil
}

// BatchResponse is the raw answer for one batch of chunks inside a topic
// analysis. The backend sends either a bare string or an object.
type BatchResponse struct {
	Batch      int    `json:"batch_number,omitempty"`
	Response   string `json:"response"`
	ChunkCount int    `json:"chunk_count,omitempty"`
}

// UnmarshalJSON accepts both the string and the object encodings.
func (b *BatchResponse) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = BatchResponse{Response: s}
		return nil
	}
	type plain BatchResponse
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = BatchResponse(p)
	return nil
}

// TopicAnalysis is the per-topic breakdown of a query answer.
type TopicAnalysis struct {
	TopicID           string          `json:"topic_id"`
	TopicName         string          `json:"topic_name"`
	TopicDescription  string          `json:"topic_description,omitempty"`
	SimilarityScore   float64         `json:"similarity_score"`
	BatchResponses    []BatchResponse `json:"batch_responses,omitempty"`
	AggregatedSummary string          `json:"aggregated_summary,omitempty"`
	Sources           []Source        `json:"sources,omitempty"`
}

// UnmarshalJSON accepts `summary` as an alias for `aggregated_summary`, a
// numeric topic_id and a similarity_score sent as a string.
func (a *TopicAnalysis) UnmarshalJSON(data []byte) error {
	type plain TopicAnalysis
	var aux struct {
		plain
		TopicID         json.RawMessage `json:"topic_id"`
		SimilarityScore json.RawMessage `json:"similarity_score"`
		Summary         string          `json:"summary"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = TopicAnalysis(aux.plain)
	a.TopicID = LooseString(aux.TopicID)
	a.SimilarityScore, _ = LooseFloat(aux.SimilarityScore)
	if a.AggregatedSummary == "" {
		a.AggregatedSummary = aux.Summary
	}
	return nil
}

// TopicRef names a topic matched or related to a query.
type TopicRef struct {
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity,omitempty"`
}

// UnmarshalJSON accepts a bare topic name as well as an object.
func (r *TopicRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = TopicRef{Name: s}
		return nil
	}
	type plain TopicRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = TopicRef(p)
	return nil
}

// DetailLevel controls how verbose a query answer is.
type DetailLevel string

const (
	DetailBrief    DetailLevel = "brief"
	DetailStandard DetailLevel = "standard"
	DetailDetailed DetailLevel = "detailed"
)

// QueryOptions tune a query request.
type QueryOptions struct {
	MaxTopics        int         `json:"max_topics,omitempty"`
	DetailLevel      DetailLevel `json:"detail_level,omitempty"`
	IncludeReasoning bool        `json:"include_reasoning"`
	FocusTopics      []string    `json:"focus_topics,omitempty"`
	ExcludeTopics    []string    `json:"exclude_topics,omitempty"`
}

// DefaultQueryOptions returns the options used when the caller sets none.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{MaxTopics: 5, DetailLevel: DetailStandard}
}

// QueryRequest is the body of a query-processing call.
type QueryRequest struct {
	Query string `json:"query"`
	QueryOptions
}

// QueryResult is the canonical shape of a processed query.
type QueryResult struct {
	QueryID        string          `json:"query_id"`
	Query          string          `json:"query"`
	Response       string          `json:"response"`
	Reasoning      string          `json:"reasoning,omitempty"`
	TopicAnalyses  []TopicAnalysis `json:"topic_analyses,omitempty"`
	MatchedTopics  []TopicRef      `json:"matched_topics,omitempty"`
	RelatedTopics  []TopicRef      `json:"related_topics,omitempty"`
	ProcessingTime time.Duration   `json:"processing_time"`
	Sources        []Source        `json:"sources,omitempty"`
	ChunksUsed     int             `json:"chunks_used"`
}

// QuerySummary is an entry in query history, popular or search listings.
type QuerySummary struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Count     int       `json:"count,omitempty"`
	Rating    float64   `json:"rating,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// AnalysisAction is an operation over a set of topic analyses.
type AnalysisAction string

const (
	ActionSummarize AnalysisAction = "summarize"
	ActionAnalyze   AnalysisAction = "analyze"
	ActionInsights  AnalysisAction = "insights"
)

// IsValid reports whether a is a known action.
func (a AnalysisAction) IsValid() bool {
	switch a {
	case ActionSummarize, ActionAnalyze, ActionInsights:
		return true
	}
	return false
}

// ExportFormat selects an export encoding.
type ExportFormat string

const (
	FormatMarkdown ExportFormat = "markdown"
	FormatJSON     ExportFormat = "json"
	FormatYAML     ExportFormat = "yaml"
	FormatCSV      ExportFormat = "csv"
)

// ParseExportFormat maps a user-supplied name to a format.
func ParseExportFormat(s string) (ExportFormat, bool) {
	switch s {
	case "md", "markdown":
		return FormatMarkdown, true
	case "json":
		return FormatJSON, true
	case "yaml", "yml":
		return FormatYAML, true
	case "csv":
		return FormatCSV, true
	}
	return "", false
}
