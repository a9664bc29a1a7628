package viz

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/san-kum/azisim/internal/analysis"
	"github.com/san-kum/azisim/internal/experiment"
	"github.com/san-kum/azisim/internal/storage"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Subtle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		})
}

func metric(label string, value any) string {
	return MetricLabel.Render(label+": ") + MetricValue.Render(fmt.Sprint(value))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// Outcome renders the result of one settings document.
func Outcome(o experiment.Outcome, runID string) string {
	name := "<unnamed>"
	if o.Settings != nil {
		name = o.Settings.Name
	}

	var lines []string
	switch {
	case o.Err != nil:
		lines = append(lines, Title.Render(name)+"  "+StatusFail.Render("failed"))
		lines = append(lines, StatusFail.Render(o.Err.Error()))
	case o.Result != nil && len(o.Result.Failures) > 0:
		lines = append(lines, Title.Render(name)+"  "+StatusWarn.Render("partial"))
	default:
		lines = append(lines, Title.Render(name)+"  "+StatusOK.Render("ok"))
	}

	if r := o.Result; r != nil {
		row := []string{
			metric("trials", r.Trials),
			metric("completed", r.Completed),
			metric("failed", len(r.Failures)),
			metric("elapsed", r.Elapsed.Round(time.Millisecond)),
		}
		lines = append(lines, strings.Join(row, "  "))
		if runID != "" {
			lines = append(lines, metric("run", runID))
		}

		counts := r.FailureCounts()
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, k)
		}
		slices.Sort(kinds)
		for _, k := range kinds {
			lines = append(lines, StatusWarn.Render(fmt.Sprintf("%d × %s", counts[k], k)))
		}

		if r.Summary != nil {
			t := newTable("attribute", "value")
			for _, a := range r.Summary.Attrs() {
				t.Row(a.Name, formatFloat(a.Value))
			}
			lines = append(lines, t.String())
		}
	}
	return Panel.Render(strings.Join(lines, "\n"))
}

// Groups renders an archive listing.
func Groups(groups []storage.Group) string {
	if len(groups) == 0 {
		return Subtle.Render("no results archived")
	}
	t := newTable("GROUP", "KIND", "TRIALS", "COMPLETED", "ELAPSED", "CREATED", "RUN")
	for _, g := range groups {
		t.Row(
			g.Name,
			g.Kind,
			strconv.Itoa(g.Trials),
			strconv.Itoa(g.Completed),
			g.Elapsed().Round(time.Millisecond).String(),
			g.Created().Format("2006-01-02 15:04:05"),
			g.RunID,
		)
	}
	return t.String()
}

// Datasets renders the datasets of an archive with a sparkline each.
func Datasets(a *storage.Archive) string {
	t := newTable("DATASET", "LENGTH", "TREND")
	for _, d := range a.Datasets {
		t.Row(d.Name, strconv.Itoa(len(d.Values)), Sparkline(d.Values, 32))
	}
	return t.String()
}

// Descriptions renders descriptive statistics, one row per dataset.
func Descriptions(names []string, ds []analysis.Description) string {
	t := newTable("DATASET", "N", "MEAN", "STD", "MEDIAN", "P5", "P95", "MIN", "MAX")
	for i, d := range ds {
		t.Row(names[i], strconv.Itoa(d.Count),
			formatFloat(d.Mean), formatFloat(d.Std), formatFloat(d.Median),
			formatFloat(d.P5), formatFloat(d.P95), formatFloat(d.Min), formatFloat(d.Max))
	}
	return t.String()
}

// SweepTable renders the statistics of a parameter sweep.
func SweepTable(parameter string, points []analysis.SweepPoint) string {
	t := newTable("GROUP", strings.ToUpper(parameter), "MEAN", "STD", "P95")
	for _, p := range points {
		t.Row(p.Label, formatFloat(p.Parameter), formatFloat(p.Stats.Mean), formatFloat(p.Stats.Std), formatFloat(p.Stats.P95))
	}
	return t.String()
}
