// Package analytics provides the backend health, dashboard and report view.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// DefaultDays is the report window.
const DefaultDays = 30

// View is the analytics view.
type View struct {
	styles    *styles.Styles
	analytics driving.AnalyticsService
	ctx       context.Context

	health     domain.SystemHealth
	dashboard  domain.DashboardSummary
	report     domain.Report
	kindIndex  int
	days       int
	loaded     bool
	loadingRep bool
	width      int
	height     int
	err        error
}

// NewView creates a new analytics view.
func NewView(s *styles.Styles, analytics driving.AnalyticsService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:    s,
		analytics: analytics,
		ctx:       context.Background(),
		health:    domain.UnknownHealth(),
		report:    domain.EmptyReport(domain.AllReportKinds[0]),
		days:      DefaultDays,
		width:     80,
		height:    24,
	}
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the dashboard and the selected report.
func (v *View) Init() tea.Cmd {
	return tea.Batch(v.loadDashboard(), v.loadReport())
}

func (v *View) loadDashboard() tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		health, herr := v.analytics.Health(ctx)
		dash, derr := v.analytics.Dashboard(ctx)
		err := derr
		if err == nil {
			err = herr
		}
		return messages.DashboardLoaded{Health: health, Dashboard: dash, Err: err}
	}
}

func (v *View) loadReport() tea.Cmd {
	kind := v.Kind()
	days := v.days
	ctx := v.ctx
	v.loadingRep = true
	return func() tea.Msg {
		report, err := v.analytics.Report(ctx, kind, days)
		return messages.ReportLoaded{Report: report, Err: err}
	}
}

// Update handles messages for the analytics view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DashboardLoaded:
		v.loaded = true
		v.health = msg.Health
		v.dashboard = msg.Dashboard
		v.err = msg.Err
		return v, nil

	case messages.ReportLoaded:
		// Ignore a report for a kind the user already moved away from.
		if msg.Report.Kind != "" && msg.Report.Kind != v.Kind() {
			return v, nil
		}
		v.loadingRep = false
		v.report = msg.Report
		if msg.Err != nil {
			v.err = msg.Err
		}
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case "right", "l", "tab":
		v.kindIndex = (v.kindIndex + 1) % len(domain.AllReportKinds)
		return v, v.loadReport()
	case "left", "h", "shift+tab":
		v.kindIndex = (v.kindIndex + len(domain.AllReportKinds) - 1) % len(domain.AllReportKinds)
		return v, v.loadReport()
	case "+":
		v.days *= 2
		if v.days > 365 {
			v.days = 365
		}
		return v, v.loadReport()
	case "-":
		v.days /= 2
		if v.days < 1 {
			v.days = 1
		}
		return v, v.loadReport()
	case "r":
		v.err = nil
		return v, tea.Batch(v.loadDashboard(), v.loadReport())
	}
	return v, nil
}

// View renders the analytics view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Analytics"))
	b.WriteString("  ")
	b.WriteString(v.renderHealth())
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
	}

	if !v.loaded {
		b.WriteString(v.styles.Muted.Render("Loading dashboard..."))
		b.WriteString("\n")
	} else {
		b.WriteString(v.renderDashboard())
	}

	b.WriteString("\n")
	b.WriteString(v.renderTabs())
	b.WriteString("\n\n")
	b.WriteString(v.renderReport())

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[←/→] report  [+/-] days  [r] refresh  [esc] back"))
	return b.String()
}

func (v *View) renderHealth() string {
	style := v.styles.Muted
	switch v.health.Status {
	case domain.HealthHealthy:
		style = v.styles.Success
	case domain.HealthDegraded:
		style = v.styles.Warning
	case domain.HealthUnhealthy:
		style = v.styles.Error
	}
	text := "backend " + string(v.health.Status)
	if v.health.Version != "" {
		text += " v" + v.health.Version
	}
	if v.health.Uptime > 0 {
		text += ", up " + humanize.RelTime(time.Now().Add(-time.Duration(v.health.Uptime*float64(time.Second))), time.Now(), "", "")
	}
	return style.Render(strings.TrimSpace(text))
}

func (v *View) renderDashboard() string {
	d := v.dashboard
	rows := [][2]string{
		{"Documents", fmt.Sprintf("%s (%s processed)", humanize.Comma(int64(d.TotalDocuments)), humanize.Comma(int64(d.ProcessedDocuments)))},
		{"Chunks", humanize.Comma(int64(d.TotalChunks))},
		{"Topics", humanize.Comma(int64(d.TotalTopics))},
		{"Queries", fmt.Sprintf("%s (%s today)", humanize.Comma(int64(d.TotalQueries)), humanize.Comma(int64(d.QueriesToday)))},
		{"Avg response", fmt.Sprintf("%.0f ms", d.AvgResponseTimeMS)},
		{"Avg rating", fmt.Sprintf("%.1f / %d", d.AvgRating, domain.MaxRating)},
		{"Storage", humanize.IBytes(uint64(max(d.StorageBytes, 0)))},
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %-14s", r[0])))
		b.WriteString(v.styles.Normal.Render(r[1]))
		b.WriteString("\n")
	}
	if names := v.health.ComponentNames(); len(names) > 0 {
		parts := make([]string, 0, len(names))
		for _, n := range names {
			parts = append(parts, n+" "+string(v.health.Components[n]))
		}
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %-14s", "Components")))
		b.WriteString(v.styles.Normal.Render(strings.Join(parts, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}

func (v *View) renderTabs() string {
	parts := make([]string, 0, len(domain.AllReportKinds))
	for i, k := range domain.AllReportKinds {
		if i == v.kindIndex {
			parts = append(parts, v.styles.Selected.Render(" "+string(k)+" "))
		} else {
			parts = append(parts, v.styles.Muted.Render(" "+string(k)+" "))
		}
	}
	return strings.Join(parts, "") + v.styles.Muted.Render(fmt.Sprintf("  last %d days", v.days))
}

func (v *View) renderReport() string {
	if v.loadingRep {
		return v.styles.Muted.Render("Loading report...") + "\n"
	}
	keys := v.report.Keys()
	if len(keys) == 0 {
		return v.styles.Muted.Render("No data for this report.") + "\n"
	}
	limit := v.height - 22
	if limit < 3 {
		limit = 3
	}
	var b strings.Builder
	for i, k := range keys {
		if i == limit {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  … %d more", len(keys)-limit)))
			b.WriteString("\n")
			break
		}
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %-24s", humanizeKey(k))))
		b.WriteString(FormatValue(v.report.Data[k]))
		b.WriteString("\n")
	}
	return b.String()
}

// humanizeKey turns "avg_response_time" into "avg response time".
func humanizeKey(k string) string {
	return strings.ReplaceAll(k, "_", " ")
}

// FormatValue renders a free-form report value on one line.
func FormatValue(val any) string {
	switch x := val.(type) {
	case nil:
		return "-"
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return humanize.Comma(int64(x))
		}
		return humanize.CommafWithDigits(math.Round(x*100)/100, 2)
	case int:
		return humanize.Comma(int64(x))
	case int64:
		return humanize.Comma(x)
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case string:
		return x
	case []any:
		return fmt.Sprintf("%d items", len(x))
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if _, nested := x[k].(map[string]any); nested {
				continue
			}
			parts = append(parts, k+"="+FormatValue(x[k]))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(x)
	}
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Kind returns the selected report kind.
func (v *View) Kind() domain.ReportKind {
	return domain.AllReportKinds[v.kindIndex]
}

// Days returns the report window in days.
func (v *View) Days() int {
	return v.days
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
