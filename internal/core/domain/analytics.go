package domain

import (
	"sort"
	"time"
)

// HealthState is the coarse health of the backend or one of its components.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
	HealthUnknown   HealthState = "unknown"
)

// SystemHealth reports backend health.
type SystemHealth struct {
	Status     HealthState            `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     float64                `json:"uptime_seconds,omitempty"`
	Components map[string]HealthState `json:"components,omitempty"`
	CheckedAt  time.Time              `json:"checked_at"`
}

// UnknownHealth is returned when the backend cannot be reached.
func UnknownHealth() SystemHealth {
	return SystemHealth{Status: HealthUnknown, Components: map[string]HealthState{}}
}

// ComponentNames returns component names in stable order.
func (h SystemHealth) ComponentNames() []string {
	names := make([]string, 0, len(h.Components))
	for n := range h.Components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DashboardSummary is the headline analytics view.
type DashboardSummary struct {
	TotalDocuments     int     `json:"total_documents"`
	ProcessedDocuments int     `json:"processed_documents"`
	TotalChunks        int     `json:"total_chunks"`
	TotalTopics        int     `json:"total_topics"`
	TotalQueries       int     `json:"total_queries"`
	QueriesToday       int     `json:"queries_today"`
	AvgResponseTimeMS  float64 `json:"avg_response_time_ms"`
	AvgRating          float64 `json:"avg_rating"`
	StorageBytes       int64   `json:"storage_bytes"`
}

// ReportKind names an analytics report.
type ReportKind string

const (
	ReportQueries     ReportKind = "queries"
	ReportDocuments   ReportKind = "documents"
	ReportTopics      ReportKind = "topics"
	ReportPerformance ReportKind = "performance"
	ReportContent     ReportKind = "content"
	ReportTrends      ReportKind = "trends"
	ReportOverview    ReportKind = "overview"
)

// AllReportKinds lists every report in display order.
var AllReportKinds = []ReportKind{
	ReportOverview,
	ReportQueries,
	ReportDocuments,
	ReportTopics,
	ReportPerformance,
	ReportContent,
	ReportTrends,
}

// IsValid reports whether k is a known report.
func (k ReportKind) IsValid() bool {
	for _, r := range AllReportKinds {
		if r == k {
			return true
		}
	}
	return false
}

// Report is a backend analytics payload. Its fields are free-form and only
// formatted for display.
type Report struct {
	Kind ReportKind     `json:"kind"`
	Days int            `json:"days,omitempty"`
	Data map[string]any `json:"data"`
}

// EmptyReport returns a defined, empty report of the given kind.
func EmptyReport(kind ReportKind) Report {
	return Report{Kind: kind, Data: map[string]any{}}
}

// Keys returns the report's top-level keys in stable order.
func (r Report) Keys() []string {
	keys := make([]string, 0, len(r.Data))
	for k := range r.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
