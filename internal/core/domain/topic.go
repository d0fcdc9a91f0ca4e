package domain

import (
	"sort"
	"time"
)

// Topic is a backend-derived cluster summarising related chunks.
// Topics are never created client-side.
type Topic struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Keywords      []string  `json:"keywords,omitempty"`
	Category      string    `json:"category,omitempty"`
	DocumentCount int       `json:"document_count"`
	ChunkCount    int       `json:"chunk_count"`
	Relevance     float64   `json:"relevance_score,omitempty"`
	Coherence     float64   `json:"coherence_score,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsEmpty reports whether the topic has no supporting content.
func (t *Topic) IsEmpty() bool {
	return t.ChunkCount == 0 && t.DocumentCount == 0
}

// TopicFilter selects a page of topics.
type TopicFilter struct {
	Page     int
	Limit    int
	Category string
}

// TopicPage is one page of a topic listing.
type TopicPage struct {
	Topics     []Topic `json:"topics"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
}

// HasNext reports whether another page follows.
func (p TopicPage) HasNext() bool {
	return p.Page < p.TotalPages
}

// TopicUpdate carries editable topic fields. Nil fields are left unchanged.
type TopicUpdate struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Keywords    *[]string `json:"keywords,omitempty"`
	Category    *string   `json:"category,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u TopicUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Keywords == nil && u.Category == nil
}

// Apply copies the set fields onto t.
func (u TopicUpdate) Apply(t *Topic) {
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Keywords != nil {
		t.Keywords = append([]string(nil), (*u.Keywords)...)
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
}

// MergeRequest folds source topics into a target topic.
type MergeRequest struct {
	SourceIDs []string `json:"source_topic_ids"`
	TargetID  string   `json:"target_topic_id"`
	NewName   string   `json:"new_name,omitempty"`
}

// DuplicateGroup is a set of topics the backend considers duplicates.
type DuplicateGroup struct {
	Topics     []Topic `json:"topics"`
	Similarity float64 `json:"similarity"`
}

// DeduplicateReport summarises an auto-deduplicate run.
type DeduplicateReport struct {
	DryRun       bool             `json:"dry_run"`
	GroupsFound  int              `json:"groups_found"`
	TopicsMerged int              `json:"topics_merged"`
	Groups       []DuplicateGroup `json:"groups,omitempty"`
}

// CleanupReport summarises removal of empty topics.
type CleanupReport struct {
	Removed    int      `json:"removed"`
	RemovedIDs []string `json:"removed_ids,omitempty"`
}

// TopicRelationship links two topics.
type TopicRelationship struct {
	TopicID   string  `json:"topic_id"`
	TopicName string  `json:"topic_name"`
	Type      string  `json:"relationship_type"`
	Strength  float64 `json:"strength"`
}

// SimilarTopic is a topic with its similarity to a reference topic.
type SimilarTopic struct {
	Topic      Topic   `json:"topic"`
	Similarity float64 `json:"similarity"`
}

// CategoryCount is a category with its topic count.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopicStats summarises the local topic collection.
// It is derived on read and never persisted.
type TopicStats struct {
	Total          int             `json:"total"`
	Empty          int             `json:"empty"`
	WithKeywords   int             `json:"with_keywords"`
	Categories     []CategoryCount `json:"categories"`
	CoveragePct    float64         `json:"coverage_pct"`
	AvgRelevance   float64         `json:"avg_relevance"`
	TotalDocuments int             `json:"total_documents"`
}

// ComputeTopicStats derives statistics from a topic collection.
// Categories are sorted by descending count, then name.
func ComputeTopicStats(topics []Topic) TopicStats {
	stats := TopicStats{Total: len(topics), Categories: []CategoryCount{}}
	if len(topics) == 0 {
		return stats
	}

	counts := make(map[string]int)
	var relevance float64
	covered := 0
	for i := range topics {
		t := &topics[i]
		if t.IsEmpty() {
			stats.Empty++
		} else {
			covered++
		}
		if len(t.Keywords) > 0 {
			stats.WithKeywords++
		}
		category := t.Category
		if category == "" {
			category = "uncategorized"
		}
		counts[category]++
		relevance += t.Relevance
		stats.TotalDocuments += t.DocumentCount
	}

	for name, n := range counts {
		stats.Categories = append(stats.Categories, CategoryCount{Name: name, Count: n})
	}
	sort.Slice(stats.Categories, func(i, j int) bool {
		if stats.Categories[i].Count != stats.Categories[j].Count {
			return stats.Categories[i].Count > stats.Categories[j].Count
		}
		return stats.Categories[i].Name < stats.Categories[j].Name
	})

	stats.CoveragePct = float64(covered) / float64(len(topics)) * 100
	stats.AvgRelevance = relevance / float64(len(topics))
	return stats
}
