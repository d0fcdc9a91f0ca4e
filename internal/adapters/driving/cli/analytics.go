package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/services"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

var analyticsCmd = &cobra.Command{
	Use:     "analytics",
	Aliases: []string{"stats"},
	Short:   "Read backend analytics",
}

var analyticsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show backend health",
	Args:  cobra.NoArgs,
	RunE:  runAnalyticsHealth,
}

var analyticsDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the dashboard summary",
	Args:  cobra.NoArgs,
	RunE:  runAnalyticsDashboard,
}

var analyticsReportCmd = &cobra.Command{
	Use:   "report KIND",
	Short: "Show an analytics report",
	Long: `Shows one backend report. KIND is one of:
  overview, queries, documents, topics, performance, content, trends`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: reportKindNames(),
	RunE:      runAnalyticsReport,
}

var analyticsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every report",
	Args:  cobra.NoArgs,
	RunE:  runAnalyticsExport,
}

var reportDays int

func init() {
	analyticsReportCmd.Flags().IntVar(&reportDays, "days", 30, "reporting window in days")
	analyticsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "markdown", "markdown, json, yaml or csv")
	analyticsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")

	analyticsCmd.AddCommand(analyticsHealthCmd, analyticsDashboardCmd, analyticsReportCmd, analyticsExportCmd)
	rootCmd.AddCommand(analyticsCmd)
}

func reportKindNames() []string {
	names := make([]string, 0, len(domain.AllReportKinds))
	for _, k := range domain.AllReportKinds {
		names = append(names, string(k))
	}
	return names
}

func runAnalyticsHealth(cmd *cobra.Command, _ []string) error {
	if analyticsService == nil {
		return notConfigured("analytics")
	}
	h, err := analyticsService.Health(cmd.Context())
	if err != nil {
		logger.Debug("health: %v", err)
	}
	return printHealth(cmd, h)
}

func runAnalyticsDashboard(cmd *cobra.Command, _ []string) error {
	if analyticsService == nil {
		return notConfigured("analytics")
	}
	d, err := analyticsService.Dashboard(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load dashboard: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, d)
	}

	processed := 0.0
	if d.TotalDocuments > 0 {
		processed = float64(d.ProcessedDocuments) / float64(d.TotalDocuments) * 100
	}
	cmd.Printf("Documents:      %s (%.0f%% processed)\n", humanize.Comma(int64(d.TotalDocuments)), processed)
	cmd.Printf("Chunks:         %s\n", humanize.Comma(int64(d.TotalChunks)))
	cmd.Printf("Topics:         %s\n", humanize.Comma(int64(d.TotalTopics)))
	cmd.Printf("Queries:        %s (%s today)\n", humanize.Comma(int64(d.TotalQueries)), humanize.Comma(int64(d.QueriesToday)))
	cmd.Printf("Avg response:   %s ms\n", humanize.CommafWithDigits(d.AvgResponseTimeMS, 1))
	if d.AvgRating > 0 {
		cmd.Printf("Avg rating:     %.1f/%d\n", d.AvgRating, domain.MaxRating)
	}
	cmd.Printf("Storage:        %s\n", humanize.IBytes(uint64(max(d.StorageBytes, 0))))
	return nil
}

func runAnalyticsReport(cmd *cobra.Command, args []string) error {
	if analyticsService == nil {
		return notConfigured("analytics")
	}
	kind := domain.ReportKind(strings.ToLower(args[0]))
	if !kind.IsValid() {
		return fmt.Errorf("%w: unknown report %q, want one of %s",
			domain.ErrInvalidInput, args[0], strings.Join(reportKindNames(), ", "))
	}
	if reportDays < 1 {
		return fmt.Errorf("%w: --days must be at least 1", domain.ErrInvalidInput)
	}

	report, err := analyticsService.Report(cmd.Context(), kind, reportDays)
	if err != nil {
		return fmt.Errorf("failed to load report: %s", services.UserMessage(err))
	}
	if jsonOutput {
		return printJSON(cmd, report)
	}
	cmd.Printf("%s report, last %d days\n\n", strings.ToUpper(string(kind[:1]))+string(kind[1:]), reportDays)
	return printMap(cmd, report.Data)
}

func runAnalyticsExport(cmd *cobra.Command, _ []string) error {
	if analyticsService == nil {
		return notConfigured("analytics")
	}
	format, err := parseFormat()
	if err != nil {
		return err
	}
	data, err := analyticsService.Export(cmd.Context(), format)
	if err != nil {
		return fmt.Errorf("export failed: %s", services.UserMessage(err))
	}
	return writeExport(cmd, data)
}
