package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// ProcessQuery submits a query and returns the body undecoded.
// Only `success: false` is checked here; the envelope shape varies.
func (c *Client) ProcessQuery(ctx context.Context, qr domain.QueryRequest) (json.RawMessage, error) {
	req, err := jsonRequest(http.MethodPost, "/api/queries/process", "/api/queries/process", qr)
	if err != nil {
		return nil, err
	}
	return c.raw(ctx, req)
}

// RegenerateQuery asks the backend to answer a previous query again.
func (c *Client) RegenerateQuery(ctx context.Context, queryID string, opts domain.QueryOptions) (json.RawMessage, error) {
	if strings.TrimSpace(queryID) == "" {
		return nil, errEmptyID
	}
	req, err := jsonRequest(http.MethodPost, "/api/queries/{id}/regenerate",
		"/api/queries/"+escape(queryID)+"/regenerate", opts)
	if err != nil {
		return nil, err
	}
	return c.raw(ctx, req)
}

// raw sends req and returns the whole body after the failure checks.
func (c *Client) raw(ctx context.Context, req request) (json.RawMessage, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.method, Path: req.path, Err: err}
	}
	if _, err := unwrap(body, resp.StatusCode, req.method, req.path); err != nil {
		return nil, err
	}
	return body, nil
}

// QuerySuggestions returns completions for a partial query.
func (c *Client) QuerySuggestions(ctx context.Context, partial string) ([]string, error) {
	req := request{
		method: http.MethodGet,
		route:  "/api/queries/suggestions",
		path:   "/api/queries/suggestions",
		query:  url.Values{"q": {partial}},
	}
	var items []json.RawMessage
	if err := c.callInto(ctx, req, &items, "suggestions", "items"); err != nil {
		return []string{}, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := firstString(it, "query", "text", "suggestion"); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// RateQuery records a 1-5 rating for a query.
func (c *Client) RateQuery(ctx context.Context, queryID string, rating int) error {
	if strings.TrimSpace(queryID) == "" {
		return errEmptyID
	}
	req, err := jsonRequest(http.MethodPost, "/api/queries/{id}/rate", "/api/queries/"+escape(queryID)+"/rate",
		map[string]int{"rating": rating})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, req)
	return err
}

// QueryHistory returns recent queries.
func (c *Client) QueryHistory(ctx context.Context, limit int) ([]domain.QuerySummary, error) {
	return c.querySummaries(ctx, "/api/queries/history", limitQuery(limit), "queries", "history", "items")
}

// PopularQueries returns the most asked queries.
func (c *Client) PopularQueries(ctx context.Context, limit int) ([]domain.QuerySummary, error) {
	return c.querySummaries(ctx, "/api/queries/popular", limitQuery(limit), "queries", "popular", "items")
}

// SearchQueries finds past queries containing text.
func (c *Client) SearchQueries(ctx context.Context, text string) ([]domain.QuerySummary, error) {
	return c.querySummaries(ctx, "/api/queries/search", url.Values{"q": {text}}, "queries", "results", "items")
}

func (c *Client) querySummaries(ctx context.Context, path string, q url.Values, keys ...string) ([]domain.QuerySummary, error) {
	req := request{method: http.MethodGet, route: path, path: path, query: q}
	out := []domain.QuerySummary{}
	if err := c.callInto(ctx, req, &out, keys...); err != nil {
		return []domain.QuerySummary{}, err
	}
	return out, nil
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

// ExportQuery downloads a query and its answer in the given format.
func (c *Client) ExportQuery(ctx context.Context, queryID string, format domain.ExportFormat) ([]byte, error) {
	if strings.TrimSpace(queryID) == "" {
		return nil, errEmptyID
	}
	return c.download(ctx, request{
		method: http.MethodGet,
		route:  "/api/queries/{id}/export",
		path:   "/api/queries/" + escape(queryID) + "/export",
		query:  url.Values{"format": {string(format)}},
	})
}

// download returns a non-envelope body as bytes.
func (c *Client) download(ctx context.Context, req request) ([]byte, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.method, Path: req.path, Err: err}
	}
	return body, nil
}

// AnalyzeTopics runs an action over topic analyses and returns the text.
func (c *Client) AnalyzeTopics(ctx context.Context, action domain.AnalysisAction, query string, analyses []domain.TopicAnalysis) (string, error) {
	if !action.IsValid() {
		return "", fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, action)
	}
	path := "/api/queries/" + string(action)
	req, err := jsonRequest(http.MethodPost, path, path, map[string]any{
		"query":          query,
		"topic_analyses": analyses,
	})
	if err != nil {
		return "", err
	}
	data, err := c.call(ctx, req)
	if err != nil {
		return "", err
	}
	text := firstString(data, "summary", "analysis", "insights", "result", "response")
	if text == "" {
		return "", domain.ErrEmptyResponse
	}
	return text, nil
}
