package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/mindstone/internal/storage"
)

// Summary renders run metadata as a bordered panel.
func Summary(meta storage.RunMetadata) string {
	var b strings.Builder
	b.WriteString(Title.Render(meta.ID))
	b.WriteString("\n")
	row := func(label, value string) {
		b.WriteString(MetricLabel.Render(fmt.Sprintf("%-18s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}
	row("plant", meta.Plant)
	model := meta.Model
	if meta.Adapter != "" {
		model += " + " + meta.Adapter
	}
	row("model", model)
	row("outcome", Status(meta.Reason))
	if meta.Fault != "" {
		row("fault", StatusFaulted.Render(meta.Fault))
	}
	row("ticks", MetricValue.Render(fmt.Sprintf("%d", meta.Ticks)))
	row("elapsed", MetricValue.Render(fmt.Sprintf("%.1f ms", meta.ElapsedMs)))

	if len(meta.Metrics) > 0 {
		b.WriteString(Separator(40))
		b.WriteString("\n")
		for _, k := range sortedKeys(meta.Metrics) {
			row(k, MetricValue.Render(fmt.Sprintf("%.6g", meta.Metrics[k])))
		}
	}
	if len(meta.Params) > 0 {
		b.WriteString(Separator(40))
		b.WriteString("\n")
		for _, k := range sortedKeys(meta.Params) {
			row(k, fmt.Sprintf("%.6g", meta.Params[k]))
		}
	}
	return Panel.Render(strings.TrimSuffix(b.String(), "\n"))
}

// RunTable lists runs one per line, newest first.
func RunTable(runs []storage.RunMetadata) string {
	if len(runs) == 0 {
		return Subtle.Render("no runs")
	}
	header := lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("%-36s %-12s %-10s %-10s %8s %12s", "ID", "PLANT", "MODEL", "OUTCOME", "TICKS", "MEAN ERROR"))
	lines := []string{header}
	for _, r := range runs {
		lines = append(lines, fmt.Sprintf("%-36s %-12s %-10s %-10s %8d %12.4g",
			r.ID, r.Plant, r.Model, r.Reason, r.Ticks, r.Metrics["mean_error"]))
	}
	return strings.Join(lines, "\n")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
