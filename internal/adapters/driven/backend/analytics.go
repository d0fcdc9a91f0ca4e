package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// SystemHealth reports overall backend health.
func (c *Client) SystemHealth(ctx context.Context) (domain.SystemHealth, error) {
	return c.health(ctx, "/api/analytics/health")
}

// Dashboard returns the headline analytics summary.
func (c *Client) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	req := request{method: http.MethodGet, route: "/api/analytics/dashboard", path: "/api/analytics/dashboard"}
	var summary domain.DashboardSummary
	if err := c.callInto(ctx, req, &summary, "summary", "dashboard"); err != nil {
		return domain.DashboardSummary{}, err
	}
	return summary, nil
}

// Report returns one analytics report. days limits the window when positive.
func (c *Client) Report(ctx context.Context, kind domain.ReportKind, days int) (domain.Report, error) {
	path := "/api/analytics/" + string(kind)
	req := request{method: http.MethodGet, route: path, path: path}
	if days > 0 {
		req.query = url.Values{"days": {strconv.Itoa(days)}}
	}

	report := domain.Report{Kind: kind, Days: days, Data: map[string]any{}}
	var payload any
	if err := c.callInto(ctx, req, &payload); err != nil {
		return report, err
	}
	switch v := payload.(type) {
	case map[string]any:
		report.Data = v
	case nil:
	default:
		report.Data["items"] = v
	}
	return report, nil
}

// ExportAnalytics downloads all analytics in the given format.
func (c *Client) ExportAnalytics(ctx context.Context, format domain.ExportFormat) ([]byte, error) {
	return c.download(ctx, request{
		method: http.MethodGet,
		route:  "/api/analytics/export",
		path:   "/api/analytics/export",
		query:  url.Values{"format": {string(format)}},
	})
}
