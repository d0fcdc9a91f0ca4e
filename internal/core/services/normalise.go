package services

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

var (
	thinkBlock  = regexp.MustCompile(`(?is)<think>(.*?)</think>`)
	markupToken = regexp.MustCompile(`(?i)</?(?:reasoning|final_answer)>`)
)

// SanitizeAnswer removes model scratch markup from an answer. Every
// <think>…</think> span is deleted with its content, stray <reasoning> and
// <final_answer> tags are dropped while their content is kept, and the
// result is trimmed. It runs to a fixpoint, so applying it twice changes
// nothing.
func SanitizeAnswer(s string) string {
	out, _ := sanitize(s)
	return out
}

// sanitize returns the clean text and the removed <think> contents.
func sanitize(s string) (string, []string) {
	var removed []string
	for {
		for _, m := range thinkBlock.FindAllStringSubmatch(s, -1) {
			if inner := strings.TrimSpace(m[1]); inner != "" {
				removed = append(removed, inner)
			}
		}
		next := thinkBlock.ReplaceAllString(s, "")
		next = markupToken.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == s {
			return next, removed
		}
		s = next
	}
}

// NormaliseQueryResponse reduces a query response to a QueryResult.
//
// Three envelope shapes are accepted, tried in order:
//
//  1. {"data": {"data": {...}}}
//  2. {"data": {"response": ...}}
//  3. {"response": ...}
//
// The first matching shape wins. No match yields domain.ErrNoResponseData;
// an answer that is empty after SanitizeAnswer yields domain.ErrEmptyResponse.
// Metadata fields are read one at a time and a field of an unexpected type
// is skipped, so it never costs the answer.
func NormaliseQueryResponse(raw []byte) (*domain.QueryResult, error) {
	payload, ok := resolveShape(raw)
	if !ok {
		return nil, domain.ErrNoResponseData
	}
	fields, ok := object(payload)
	if !ok {
		return nil, domain.ErrNoResponseData
	}

	answer, thoughts := sanitize(responseText(fields["response"]))
	if answer == "" {
		return nil, domain.ErrEmptyResponse
	}

	result := &domain.QueryResult{
		QueryID:       firstNonEmpty(domain.LooseString(fields["query_id"]), domain.LooseString(fields["id"])),
		Query:         domain.LooseString(fields["query"]),
		Response:      answer,
		Reasoning:     SanitizeAnswer(domain.LooseString(fields["reasoning"])),
		TopicAnalyses: decodeList[domain.TopicAnalysis](fields["topic_analyses"]),
		MatchedTopics: decodeList[domain.TopicRef](fields["matched_topics"]),
		RelatedTopics: decodeList[domain.TopicRef](fields["related_topics"]),
		Sources:       decodeList[domain.Source](fields["sources"]),
	}
	if result.Reasoning == "" && len(thoughts) > 0 {
		result.Reasoning = strings.Join(thoughts, "\n\n")
	}
	for i := range result.TopicAnalyses {
		a := &result.TopicAnalyses[i]
		a.AggregatedSummary = SanitizeAnswer(a.AggregatedSummary)
		for j := range a.BatchResponses {
			a.BatchResponses[j].Response = SanitizeAnswer(a.BatchResponses[j].Response)
		}
	}

	if secs, ok := domain.LooseFloat(fields["processing_time"]); ok {
		result.ProcessingTime = time.Duration(secs * float64(time.Second))
	} else if ms, ok := domain.LooseFloat(fields["processing_time_ms"]); ok {
		result.ProcessingTime = time.Duration(ms * float64(time.Millisecond))
	}
	if n, ok := domain.LooseInt(fields["chunks_used"]); ok {
		result.ChunksUsed = n
	} else if n, ok := domain.LooseInt(fields["total_chunks"]); ok {
		result.ChunksUsed = n
	}
	return result, nil
}

// decodeList decodes a JSON array item by item, dropping items that do not
// decode as T. A missing or malformed array yields nil.
func decodeList[T any](raw json.RawMessage) []T {
	if !present(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Debug("normalise: ignoring non-list field: %v", err)
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			logger.Debug("normalise: skipping item: %v", err)
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// resolveShape returns the object holding the query fields.
func resolveShape(raw []byte) (json.RawMessage, bool) {
	top, ok := object(raw)
	if !ok {
		return nil, false
	}

	if data, ok := object(top["data"]); ok {
		if _, ok := object(data["data"]); ok {
			return data["data"], true
		}
		if present(data["response"]) {
			return top["data"], true
		}
	}
	if present(top["response"]) {
		return raw, true
	}
	return nil, false
}

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, false
	}
	return m, true
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// responseText reads the answer, which is usually a string but is
// occasionally an object with an answer or text member.
func responseText(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Answer   string `json:"answer"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return firstNonEmpty(obj.Answer, obj.Text, obj.Response)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
