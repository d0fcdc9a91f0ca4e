package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// ListTopics returns a page of topics.
func (c *Client) ListTopics(ctx context.Context, filter domain.TopicFilter) (domain.TopicPage, error) {
	q := url.Values{}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}

	data, err := c.call(ctx, request{method: http.MethodGet, route: "/api/topics", path: "/api/topics", query: q})
	if err != nil {
		return emptyPage(filter), err
	}

	page := emptyPage(filter)
	if err := decodeInto(data, &page.Topics, "topics", "items"); err != nil {
		return emptyPage(filter), err
	}
	if page.Topics == nil {
		page.Topics = []domain.Topic{}
	}

	var meta struct {
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
	}
	if json.Unmarshal(data, &meta) == nil {
		if meta.Page > 0 {
			page.Page = meta.Page
		}
		if meta.Limit > 0 {
			page.Limit = meta.Limit
		}
		page.Total = meta.Total
		page.TotalPages = meta.TotalPages
	}
	if page.Total == 0 {
		page.Total = len(page.Topics)
	}
	if page.TotalPages == 0 && page.Limit > 0 {
		page.TotalPages = (page.Total + page.Limit - 1) / page.Limit
	}
	return page, nil
}

func emptyPage(filter domain.TopicFilter) domain.TopicPage {
	page := max(filter.Page, 1)
	return domain.TopicPage{Topics: []domain.Topic{}, Page: page, Limit: filter.Limit}
}

// categoryItem accepts a bare category name or a name/count object.
type categoryItem domain.CategoryCount

func (ci *categoryItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*ci = categoryItem{Name: s}
		return nil
	}
	var obj struct {
		Name     string `json:"name"`
		Category string `json:"category"`
		Count    int    `json:"count"`
		Topics   int    `json:"topic_count"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	name := obj.Name
	if name == "" {
		name = obj.Category
	}
	*ci = categoryItem{Name: name, Count: max(obj.Count, obj.Topics)}
	return nil
}

// TopicCategories returns the known categories.
func (c *Client) TopicCategories(ctx context.Context) ([]domain.CategoryCount, error) {
	var items []categoryItem
	req := request{method: http.MethodGet, route: "/api/topics/categories", path: "/api/topics/categories"}
	if err := c.callInto(ctx, req, &items, "categories"); err != nil {
		return []domain.CategoryCount{}, err
	}
	out := make([]domain.CategoryCount, 0, len(items))
	for _, it := range items {
		out = append(out, domain.CategoryCount(it))
	}
	return out, nil
}

// TopicStatistics returns the backend's topic statistics.
func (c *Client) TopicStatistics(ctx context.Context) (map[string]any, error) {
	return c.getMap(ctx, "/api/topics/stats", "/api/topics/stats", nil)
}

// TopicQuality returns topic quality metrics.
func (c *Client) TopicQuality(ctx context.Context) (map[string]any, error) {
	return c.getMap(ctx, "/api/topics/quality", "/api/topics/quality", nil)
}

// SearchTopics finds topics matching query.
func (c *Client) SearchTopics(ctx context.Context, query string) ([]domain.Topic, error) {
	req := request{
		method: http.MethodGet,
		route:  "/api/topics/search",
		path:   "/api/topics/search",
		query:  url.Values{"q": {query}},
	}
	topics := []domain.Topic{}
	if err := c.callInto(ctx, req, &topics, "topics", "results", "items"); err != nil {
		return []domain.Topic{}, err
	}
	return topics, nil
}

// GetTopic returns one topic.
func (c *Client) GetTopic(ctx context.Context, id string) (*domain.Topic, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errEmptyID
	}
	req := request{method: http.MethodGet, route: "/api/topics/{id}", path: "/api/topics/" + escape(id)}
	var topic domain.Topic
	if err := c.callInto(ctx, req, &topic, "topic"); err != nil {
		return nil, err
	}
	return &topic, nil
}

// TopicRelationships returns topics linked to id.
func (c *Client) TopicRelationships(ctx context.Context, id string) ([]domain.TopicRelationship, error) {
	if strings.TrimSpace(id) == "" {
		return []domain.TopicRelationship{}, errEmptyID
	}
	req := request{
		method: http.MethodGet,
		route:  "/api/topics/{id}/relationships",
		path:   "/api/topics/" + escape(id) + "/relationships",
	}
	rels := []domain.TopicRelationship{}
	if err := c.callInto(ctx, req, &rels, "relationships", "items"); err != nil {
		return []domain.TopicRelationship{}, err
	}
	return rels, nil
}

// TopicContent returns the chunks assigned to a topic.
func (c *Client) TopicContent(ctx context.Context, id string) ([]domain.Chunk, error) {
	if strings.TrimSpace(id) == "" {
		return []domain.Chunk{}, errEmptyID
	}
	req := request{
		method: http.MethodGet,
		route:  "/api/topics/{id}/content",
		path:   "/api/topics/" + escape(id) + "/content",
	}
	chunks := []domain.Chunk{}
	if err := c.callInto(ctx, req, &chunks, "chunks", "content", "items"); err != nil {
		return []domain.Chunk{}, err
	}
	return chunks, nil
}

// UpdateTopic changes a topic's editable fields.
func (c *Client) UpdateTopic(ctx context.Context, id string, update domain.TopicUpdate) (*domain.Topic, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errEmptyID
	}
	req, err := jsonRequest(http.MethodPut, "/api/topics/{id}", "/api/topics/"+escape(id), update)
	if err != nil {
		return nil, err
	}
	var topic domain.Topic
	if err := c.callInto(ctx, req, &topic, "topic"); err != nil {
		return nil, err
	}
	return &topic, nil
}

// DeleteTopic removes a topic.
func (c *Client) DeleteTopic(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errEmptyID
	}
	_, err := c.call(ctx, request{method: http.MethodDelete, route: "/api/topics/{id}", path: "/api/topics/" + escape(id)})
	return err
}

// MergeTopics folds source topics into the target.
func (c *Client) MergeTopics(ctx context.Context, mr domain.MergeRequest) (*domain.Topic, error) {
	req, err := jsonRequest(http.MethodPost, "/api/topics/merge", "/api/topics/merge", mr)
	if err != nil {
		return nil, err
	}
	var topic domain.Topic
	if err := c.callInto(ctx, req, &topic, "merged_topic", "topic"); err != nil {
		return nil, err
	}
	return &topic, nil
}

// FindDuplicateTopics returns groups of likely duplicates.
func (c *Client) FindDuplicateTopics(ctx context.Context, threshold float64) ([]domain.DuplicateGroup, error) {
	req := request{
		method: http.MethodGet,
		route:  "/api/topics/duplicates",
		path:   "/api/topics/duplicates",
		query:  url.Values{"threshold": {strconv.FormatFloat(threshold, 'f', -1, 64)}},
	}
	groups := []domain.DuplicateGroup{}
	if err := c.callInto(ctx, req, &groups, "duplicates", "groups"); err != nil {
		return []domain.DuplicateGroup{}, err
	}
	return groups, nil
}

// AutoDeduplicateTopics merges duplicates, or only reports them on a dry run.
func (c *Client) AutoDeduplicateTopics(ctx context.Context, threshold float64, dryRun bool) (domain.DeduplicateReport, error) {
	req, err := jsonRequest(http.MethodPost, "/api/topics/auto-deduplicate", "/api/topics/auto-deduplicate",
		map[string]any{"similarity_threshold": threshold, "dry_run": dryRun})
	if err != nil {
		return domain.DeduplicateReport{DryRun: dryRun}, err
	}
	report := domain.DeduplicateReport{DryRun: dryRun}
	if err := c.callInto(ctx, req, &report); err != nil {
		return domain.DeduplicateReport{DryRun: dryRun}, err
	}
	return report, nil
}

// CleanupEmptyTopics removes topics with no content.
func (c *Client) CleanupEmptyTopics(ctx context.Context) (domain.CleanupReport, error) {
	req := request{method: http.MethodPost, route: "/api/topics/cleanup-empty", path: "/api/topics/cleanup-empty"}
	var report domain.CleanupReport
	if err := c.callInto(ctx, req, &report); err != nil {
		return domain.CleanupReport{}, err
	}
	if report.Removed == 0 {
		report.Removed = len(report.RemovedIDs)
	}
	return report, nil
}

// SimilarTopics returns topics similar to id.
func (c *Client) SimilarTopics(ctx context.Context, id string, limit int) ([]domain.SimilarTopic, error) {
	if strings.TrimSpace(id) == "" {
		return []domain.SimilarTopic{}, errEmptyID
	}
	req := request{
		method: http.MethodGet,
		route:  "/api/topics/{id}/similar",
		path:   "/api/topics/" + escape(id) + "/similar",
	}
	if limit > 0 {
		req.query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	similar := []domain.SimilarTopic{}
	if err := c.callInto(ctx, req, &similar, "similar_topics", "items"); err != nil {
		return []domain.SimilarTopic{}, err
	}
	return similar, nil
}

// BulkMergeTopics runs several merges in one call.
func (c *Client) BulkMergeTopics(ctx context.Context, reqs []domain.MergeRequest) (domain.BatchResult, error) {
	req, err := jsonRequest(http.MethodPost, "/api/topics/bulk-merge", "/api/topics/bulk-merge",
		map[string]any{"merges": reqs})
	if err != nil {
		return domain.BatchResult{}, err
	}
	var out struct {
		Successful *int `json:"successful"`
		Succeeded  *int `json:"succeeded"`
		Failed     *int `json:"failed"`
	}
	if err := c.callInto(ctx, req, &out); err != nil {
		return domain.BatchResult{}, err
	}

	succeeded := len(reqs)
	switch {
	case out.Successful != nil:
		succeeded = *out.Successful
	case out.Succeeded != nil:
		succeeded = *out.Succeeded
	case out.Failed != nil:
		succeeded = len(reqs) - *out.Failed
	}
	succeeded = min(max(succeeded, 0), len(reqs))
	return domain.BatchResult{Succeeded: succeeded, Failed: len(reqs) - succeeded}, nil
}

// RunTopicMaintenance triggers a backend maintenance action.
func (c *Client) RunTopicMaintenance(ctx context.Context, action string) (map[string]any, error) {
	if strings.TrimSpace(action) == "" {
		return map[string]any{}, errEmptyID
	}
	req := request{
		method: http.MethodPost,
		route:  "/api/topics/maintenance/{action}",
		path:   "/api/topics/maintenance/" + escape(action),
	}
	out := map[string]any{}
	if err := c.callInto(ctx, req, &out); err != nil {
		return map[string]any{}, err
	}
	return out, nil
}

// TopicUsage returns topic usage analytics.
func (c *Client) TopicUsage(ctx context.Context) (map[string]any, error) {
	return c.getMap(ctx, "/api/topics/analytics/usage", "/api/topics/analytics/usage", nil)
}

// TopicPerformance returns topic performance analytics.
func (c *Client) TopicPerformance(ctx context.Context) (map[string]any, error) {
	return c.getMap(ctx, "/api/topics/analytics/performance", "/api/topics/analytics/performance", nil)
}
