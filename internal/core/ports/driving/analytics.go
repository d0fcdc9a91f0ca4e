package driving

import (
	"context"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// AnalyticsService reads backend analytics. Every method returns a defined
// value even when the backend fails.
type AnalyticsService interface {
	Health(ctx context.Context) (domain.SystemHealth, error)
	Dashboard(ctx context.Context) (domain.DashboardSummary, error)
	Report(ctx context.Context, kind domain.ReportKind, days int) (domain.Report, error)
	Export(ctx context.Context, format domain.ExportFormat) ([]byte, error)
}
