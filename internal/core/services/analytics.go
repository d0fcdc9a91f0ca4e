package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// Ensure AnalyticsService implements the interface.
var _ driving.AnalyticsService = (*AnalyticsService)(nil)

// Report window bounds, in days.
const (
	DefaultReportDays = 30
	MaxReportDays     = 365
)

// AnalyticsService fetches analytics views. Every method returns a
// defined value, zeroed on failure.
type AnalyticsService struct {
	api      driven.AnalyticsAPI
	notifier driven.Notifier
	now      func() time.Time
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(api driven.AnalyticsAPI, notifier driven.Notifier) *AnalyticsService {
	return &AnalyticsService{api: api, notifier: notifier, now: time.Now}
}

// Health reports backend health, or unknown when it cannot be reached.
func (s *AnalyticsService) Health(ctx context.Context) (domain.SystemHealth, error) {
	health, err := s.api.SystemHealth(ctx)
	if err != nil {
		notifyError(s.notifier, "Health check failed", err)
		return domain.UnknownHealth(), err
	}
	if health.Status == "" {
		health.Status = domain.HealthUnknown
	}
	if health.CheckedAt.IsZero() {
		health.CheckedAt = s.now()
	}
	return health, nil
}

// Dashboard returns the headline numbers.
func (s *AnalyticsService) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	summary, err := s.api.Dashboard(ctx)
	if err != nil {
		notifyError(s.notifier, "Could not load dashboard", err)
		return domain.DashboardSummary{}, err
	}
	return summary, nil
}

// Report fetches one analytics report covering the last days days.
// A non-positive window uses DefaultReportDays.
func (s *AnalyticsService) Report(ctx context.Context, kind domain.ReportKind, days int) (domain.Report, error) {
	if !kind.IsValid() {
		return domain.EmptyReport(kind), fmt.Errorf("%w: unknown report %q", domain.ErrInvalidInput, kind)
	}
	if days <= 0 {
		days = DefaultReportDays
	}
	if days > MaxReportDays {
		return domain.EmptyReport(kind), fmt.Errorf("%w: report window is limited to %d days",
			domain.ErrInvalidInput, MaxReportDays)
	}

	report, err := s.api.Report(ctx, kind, days)
	if err != nil {
		notifyError(s.notifier, "Could not load "+string(kind)+" analytics", err)
		out := domain.EmptyReport(kind)
		out.Days = days
		return out, err
	}
	report.Kind = kind
	report.Days = days
	if report.Data == nil {
		report.Data = map[string]any{}
	}
	return report, nil
}

// Export renders analytics. JSON and CSV come from the backend export;
// YAML and markdown are built from a local snapshot of the dashboard,
// health and overview.
func (s *AnalyticsService) Export(ctx context.Context, format domain.ExportFormat) ([]byte, error) {
	switch format {
	case domain.FormatJSON, domain.FormatCSV:
		out, err := s.api.ExportAnalytics(ctx, format)
		if err != nil {
			notifyError(s.notifier, "Export failed", err)
			return nil, err
		}
		return out, nil
	case domain.FormatYAML, domain.FormatMarkdown:
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidInput, format)
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if format == domain.FormatYAML {
		return yaml.Marshal(snap)
	}
	return snapshotMarkdown(snap), nil
}

type analyticsSnapshot struct {
	GeneratedAt time.Time               `yaml:"generated_at"`
	Health      domain.HealthState      `yaml:"health"`
	Dashboard   domain.DashboardSummary `yaml:"dashboard"`
	Overview    map[string]any          `yaml:"overview"`
}

func (s *AnalyticsService) snapshot(ctx context.Context) (analyticsSnapshot, error) {
	dash, err := s.Dashboard(ctx)
	if err != nil {
		return analyticsSnapshot{}, err
	}
	health, _ := s.Health(ctx)
	overview, _ := s.Report(ctx, domain.ReportOverview, DefaultReportDays)

	return analyticsSnapshot{
		GeneratedAt: s.now(),
		Health:      health.Status,
		Dashboard:   dash,
		Overview:    overview.Data,
	}, nil
}

func snapshotMarkdown(snap analyticsSnapshot) []byte {
	var b strings.Builder
	b.WriteString("# Analytics\n\n")
	fmt.Fprintf(&b, "_Generated %s_\n\n", snap.GeneratedAt.Format(time.RFC1123))
	fmt.Fprintf(&b, "Backend health: **%s**\n\n", snap.Health)

	d := snap.Dashboard
	b.WriteString("| Metric | Value |\n|---|---|\n")
	rows := [][2]string{
		{"Documents", fmt.Sprintf("%d (%d processed)", d.TotalDocuments, d.ProcessedDocuments)},
		{"Chunks", fmt.Sprint(d.TotalChunks)},
		{"Topics", fmt.Sprint(d.TotalTopics)},
		{"Queries", fmt.Sprintf("%d (%d today)", d.TotalQueries, d.QueriesToday)},
		{"Avg response", fmt.Sprintf("%.0f ms", d.AvgResponseTimeMS)},
		{"Avg rating", fmt.Sprintf("%.1f", d.AvgRating)},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", r[0], r[1])
	}

	if len(snap.Overview) > 0 {
		b.WriteString("\n## Overview\n\n")
		keys := make([]string, 0, len(snap.Overview))
		for k := range snap.Overview {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- **%s**: %s\n", k, FormatValue(snap.Overview[k]))
		}
	}
	return []byte(b.String())
}

// FormatValue renders a free-form analytics value on one line.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%.2f", t)
	case bool, int, int64:
		return fmt.Sprint(t)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
